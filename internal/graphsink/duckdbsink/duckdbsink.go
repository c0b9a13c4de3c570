// Package duckdbsink is a property-graph sink backed by DuckDB, grounded on
// internal/database's connection setup and upsert conventions. Nodes and
// edges are modeled as ordinary relational tables: a node table per label
// keyed by its property, and an edge table per label storing the two
// endpoint keys. MERGE semantics come from DuckDB's native
// INSERT ... ON CONFLICT DO UPDATE rather than a Cypher MERGE clause, since
// this module speaks to an embedded DuckDB file instead of a remote graph
// database server.
package duckdbsink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/adgraph/internal/graphsink"
	"github.com/tomtom215/adgraph/internal/logging"
	"github.com/tomtom215/adgraph/internal/metrics"
)

// Sink is a graphsink.Sink backed by an embedded DuckDB database file.
type Sink struct {
	conn *sql.DB
}

// Open creates (if needed) and opens the DuckDB file at path, and ensures the
// node/edge tables exist.
func Open(path string) (*Sink, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("duckdbsink: create dir %s: %w", dir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d", path, runtime.NumCPU())
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("duckdbsink: open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1) // DuckDB single-writer file access
	conn.SetConnMaxLifetime(time.Hour)

	s := &Sink{conn: conn}
	if err := s.createSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS node_username (
	key TEXT PRIMARY KEY,
	sid TEXT,
	is_admin BOOLEAN,
	used_ntlm BOOLEAN,
	pagerank DOUBLE,
	hmm_detected BOOLEAN
);
CREATE TABLE IF NOT EXISTS node_ipaddress (
	key TEXT PRIMARY KEY,
	pagerank DOUBLE
);
CREATE TABLE IF NOT EXISTS node_domain (
	key TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS node_date (
	key TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS node_deletetime (
	key TEXT PRIMARY KEY,
	user TEXT,
	domain TEXT
);
CREATE TABLE IF NOT EXISTS node_id (
	key TEXT PRIMARY KEY,
	category TEXT,
	subcategory TEXT
);
CREATE TABLE IF NOT EXISTS node_daterange (
	key TEXT PRIMARY KEY,
	start_time TIMESTAMP,
	end_time TIMESTAMP,
	span_hours INTEGER
);
CREATE TABLE IF NOT EXISTS edge_event (
	from_label TEXT, from_key TEXT,
	to_label TEXT, to_key TEXT,
	event_id INTEGER,
	logon_type INTEGER,
	status_hex TEXT,
	auth_package TEXT,
	count INTEGER,
	cf_score DOUBLE
);
CREATE TABLE IF NOT EXISTS edge_group (
	from_label TEXT, from_key TEXT,
	to_label TEXT, to_key TEXT,
	group_name TEXT,
	added BOOLEAN,
	occurred_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS edge_policy (
	from_label TEXT, from_key TEXT,
	to_label TEXT, to_key TEXT,
	category_id TEXT,
	subcategory_guid TEXT,
	occurred_at TIMESTAMP
);
`

func (s *Sink) createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if _, err := s.conn.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("duckdbsink: create schema: %w", err)
	}
	return nil
}

// Reset truncates every node and edge table, used for the --delete run mode.
func (s *Sink) Reset(ctx context.Context) error {
	tables := []string{
		"node_username", "node_ipaddress", "node_domain", "node_date",
		"node_deletetime", "node_id", "node_daterange",
		"edge_event", "edge_group", "edge_policy",
	}
	for _, t := range tables {
		if _, err := s.conn.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("duckdbsink: reset %s: %w", t, err)
		}
	}
	return nil
}

// Close releases the underlying DuckDB connection.
func (s *Sink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Begin opens a single write transaction. GraphWriter performs exactly one
// Begin/Commit pair per run.
func (s *Sink) Begin(ctx context.Context) (graphsink.Tx, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("duckdbsink: begin: %w", err)
	}
	return &txn{tx: tx}, nil
}

type txn struct {
	tx *sql.Tx
}

func (t *txn) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("duckdbsink: commit: %w", err)
	}
	return nil
}

func (t *txn) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("duckdbsink: rollback: %w", err)
	}
	return nil
}

func (t *txn) MergeNode(ctx context.Context, n graphsink.Node) error {
	if err := t.mergeNode(ctx, n); err != nil {
		return err
	}
	metrics.GraphWrites.WithLabelValues(string(n.Label)).Inc()
	return nil
}

func (t *txn) mergeNode(ctx context.Context, n graphsink.Node) error {
	switch n.Label {
	case graphsink.LabelUsername:
		return t.mergeUsername(ctx, n)
	case graphsink.LabelIPAddress:
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO node_ipaddress (key, pagerank) VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE SET pagerank = COALESCE(EXCLUDED.pagerank, node_ipaddress.pagerank)`,
			n.Key, n.Props["pagerank"])
		return wrap(err, "merge ipaddress")
	case graphsink.LabelDomain:
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO node_domain (key) VALUES (?) ON CONFLICT (key) DO NOTHING`, n.Key)
		return wrap(err, "merge domain")
	case graphsink.LabelDate:
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO node_date (key) VALUES (?) ON CONFLICT (key) DO NOTHING`, n.Key)
		return wrap(err, "merge date")
	case graphsink.LabelDeletetime:
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO node_deletetime (key, user, domain) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET user = EXCLUDED.user, domain = EXCLUDED.domain`,
			n.Key, n.Props["user"], n.Props["domain"])
		return wrap(err, "merge deletetime")
	case graphsink.LabelID:
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO node_id (key, category, subcategory) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET category = EXCLUDED.category, subcategory = EXCLUDED.subcategory`,
			n.Key, n.Props["category"], n.Props["subcategory"])
		return wrap(err, "merge id")
	case graphsink.LabelDaterange:
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO node_daterange (key, start_time, end_time, span_hours) VALUES (?, ?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time, span_hours = EXCLUDED.span_hours`,
			n.Key, n.Props["start_time"], n.Props["end_time"], n.Props["span_hours"])
		return wrap(err, "merge daterange")
	default:
		return fmt.Errorf("duckdbsink: unknown node label %q", n.Label)
	}
}

func (t *txn) mergeUsername(ctx context.Context, n graphsink.Node) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO node_username (key, sid, is_admin, used_ntlm, pagerank, hmm_detected)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			sid = COALESCE(EXCLUDED.sid, node_username.sid),
			is_admin = node_username.is_admin OR EXCLUDED.is_admin,
			used_ntlm = node_username.used_ntlm OR EXCLUDED.used_ntlm,
			pagerank = COALESCE(EXCLUDED.pagerank, node_username.pagerank),
			hmm_detected = node_username.hmm_detected OR EXCLUDED.hmm_detected`,
		n.Key, n.Props["sid"], n.Props["is_admin"], n.Props["used_ntlm"],
		n.Props["pagerank"], n.Props["hmm_detected"])
	return wrap(err, "merge username")
}

func (t *txn) CreateEdge(ctx context.Context, e graphsink.Edge) error {
	if err := t.createEdge(ctx, e); err != nil {
		return err
	}
	metrics.GraphWrites.WithLabelValues(string(e.Label)).Inc()
	return nil
}

func (t *txn) createEdge(ctx context.Context, e graphsink.Edge) error {
	switch e.Label {
	case graphsink.EdgeEvent:
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO edge_event (from_label, from_key, to_label, to_key, event_id, logon_type, status_hex, auth_package, count, cf_score)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.FromLabel, e.FromKey, e.ToLabel, e.ToKey,
			e.Props["event_id"], e.Props["logon_type"], e.Props["status_hex"],
			e.Props["auth_package"], e.Props["count"], e.Props["cf_score"])
		return wrap(err, "create event edge")
	case graphsink.EdgeGroup:
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO edge_group (from_label, from_key, to_label, to_key, group_name, added, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.FromLabel, e.FromKey, e.ToLabel, e.ToKey,
			e.Props["group_name"], e.Props["added"], e.Props["occurred_at"])
		return wrap(err, "create group edge")
	case graphsink.EdgePolicy:
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO edge_policy (from_label, from_key, to_label, to_key, category_id, subcategory_guid, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.FromLabel, e.FromKey, e.ToLabel, e.ToKey,
			e.Props["category_id"], e.Props["subcategory_guid"], e.Props["occurred_at"])
		return wrap(err, "create policy edge")
	default:
		return fmt.Errorf("duckdbsink: unknown edge label %q", e.Label)
	}
}

func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	logging.Error().Err(err).Str("op", op).Msg("duckdbsink write failed")
	return fmt.Errorf("duckdbsink: %s: %w", op, err)
}
