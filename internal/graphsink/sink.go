// Package graphsink defines the property-graph sink interface GraphWriter
// targets and re-exports the node/edge types it writes.
//
// A sink satisfying Sink can MERGE-or-create nodes keyed by a single
// property, create edges between previously-MERGEd nodes, and commit a
// single transaction atomically. The concrete graph database wire protocol
// (e.g. speaking Bolt to Neo4j) is an external collaborator;
// this package's duckdbsink subpackage provides a complete, self-contained
// implementation backed by github.com/duckdb/duckdb-go/v2 so the pipeline
// runs end-to-end without an external graph database.
package graphsink

import "context"

// NodeLabel is one of the seven node labels names.
type NodeLabel string

const (
	LabelUsername   NodeLabel = "Username"
	LabelIPAddress  NodeLabel = "IPAddress"
	LabelDomain     NodeLabel = "Domain"
	LabelDate       NodeLabel = "Date"
	LabelDeletetime NodeLabel = "Deletetime"
	LabelID         NodeLabel = "ID"
	LabelDaterange  NodeLabel = "Daterange"
)

// EdgeLabel is one of the three edge labels names.
type EdgeLabel string

const (
	EdgeEvent  EdgeLabel = "Event"
	EdgeGroup  EdgeLabel = "Group"
	EdgePolicy EdgeLabel = "Policy"
)

// Node is a single property-graph vertex, MERGEd by (Label, Key) with the
// given property set.
type Node struct {
	Label NodeLabel
	Key   string
	Props map[string]any
}

// Edge connects two previously-MERGEd nodes.
type Edge struct {
	Label      EdgeLabel
	FromLabel  NodeLabel
	FromKey    string
	ToLabel    NodeLabel
	ToKey      string
	Props      map[string]any
}

// Tx is an open write transaction against the sink.
type Tx interface {
	MergeNode(ctx context.Context, n Node) error
	CreateEdge(ctx context.Context, e Edge) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Sink is the minimal property-graph sink contract GraphWriter depends on.
type Sink interface {
	// Begin opens a write transaction. GraphWriter performs exactly one
	// Begin/Commit pair per run ("in one transaction").
	Begin(ctx context.Context) (Tx, error)

	// Reset wipes all nodes and edges, used only when --delete is passed.
	Reset(ctx context.Context) error

	// Close releases the sink's underlying connection.
	Close() error
}
