// Package federation exposes the tables of a distributed dataset through a
// uniform schema surface. A federated schema mixes sharded tables, whose
// shards live on the local node, with external tables served by remote
// nodes; query planning only needs names, column schemas and placement.
package federation

import (
	"github.com/p-hoffmann/trexsql-ext-sub003/batch"
)

// Kind identifies the table variant.
type Kind string

const (
	// KindSharded marks a table whose shards are stored on this node.
	KindSharded Kind = "sharded"

	// KindExternal marks a table served by a remote node.
	KindExternal Kind = "external"
)

// Table is the read surface shared by all table variants. The variant set
// is closed: a table is either sharded or external.
type Table interface {
	// Name returns the logical table name.
	Name() string

	// Kind returns the table variant.
	Kind() Kind

	// Schema returns the table's column schema.
	Schema() batch.Schema
}

// ShardedTable is a table split into locally stored shards.
type ShardedTable struct {
	TableName   string
	TableSchema batch.Schema

	// Shards lists the physical shard identifiers, in shard order.
	Shards []string
}

func (t *ShardedTable) Name() string         { return t.TableName }
func (t *ShardedTable) Kind() Kind           { return KindSharded }
func (t *ShardedTable) Schema() batch.Schema { return t.TableSchema }

// NumShards returns how many shards back the table.
func (t *ShardedTable) NumShards() int { return len(t.Shards) }

// ExternalTable is a table whose data lives on a remote node.
type ExternalTable struct {
	TableName   string
	TableSchema batch.Schema

	// Endpoint is the remote node's exchange address.
	Endpoint string

	// NodeName identifies the serving node.
	NodeName string
}

func (t *ExternalTable) Name() string         { return t.TableName }
func (t *ExternalTable) Kind() Kind           { return KindExternal }
func (t *ExternalTable) Schema() batch.Schema { return t.TableSchema }

var (
	_ Table = (*ShardedTable)(nil)
	_ Table = (*ExternalTable)(nil)
)
