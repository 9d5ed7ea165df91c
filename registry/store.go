// Package registry bridges node and pipeline state into a gossip-backed
// service registry. Advertisements are JSON values under `service:*` keys;
// every write is best effort, because losing an advertisement only delays
// discovery until the next republish while blocking the data path on the
// registry would stall real work.
package registry

import "context"

// Store is the gossip key-value boundary the bridge writes through.
// Implementations live in store/memory and store/redis.
type Store interface {
	// Set writes key to value, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
