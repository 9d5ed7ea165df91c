// Package swarm provides the execution fabric for a cluster of embedded
// query nodes: deterministic dependency scheduling, partitioned shuffle
// transport, federated schema resolution, and a best-effort service
// registry bridge.
//
// Swarm is designed as a library, not a service. Import it, configure a
// gossip store, and wire a Node into your query engine.
//
// # Quick Start
//
//	node, err := swarm.New(
//	    swarm.WithGossipStore(redisStore),
//	    swarm.WithSchema(schema),
//	)
//	if err != nil { ... }
//	if err := node.Start(ctx); err != nil { ... }
//	defer node.Stop(context.Background())
//
// # Architecture
//
// Each concern lives in its own package with a narrow interface: plan
// computes execution order, shuffle partitions and reassembles record
// batches, swp moves them between nodes, federation resolves table names
// and placement, and registry advertises node state through a pluggable
// gossip store. The Node in this package is explicit wiring over those
// parts; nothing is process-global.
package swarm
