// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package store is the single source of truth for all durable state:
// sites, paths, time-series metrics, flows, and policies, per §4.1.
//
// Backed by SQLite in WAL mode (github.com/modernc.org/sqlite), the
// same storage stack the teacher codebase uses for its analytics
// store. A single mutex serializes writers — SQLite itself only ever
// allows one writer at a time, and WAL mode lets readers proceed
// concurrently with it — matching the "many concurrent readers, one
// logical writer per table" contract of §4.1. writeTx wraps every
// multi-statement mutation in a transaction so a cascade is never
// observed half-applied.
package store

import (
	"database/sql"
	"sync"

	_ "modernc.org/sqlite"

	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/perrs"
)

// Store is the durable backing store for the control plane core.
type Store struct {
	db     *sql.DB
	writeMu sync.Mutex
	logger *logging.Logger
}

// Open opens or creates the SQLite database at path and applies the
// schema, returning a ready-to-use Store.
func Open(path string, logger *logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindFatal, "open store database")
	}
	db.SetMaxOpenConns(1 << 4)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS sites (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	location TEXT,
	status TEXT NOT NULL,
	endpoints_json TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL,
	last_seen INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS paths (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	src_site_id TEXT NOT NULL REFERENCES sites(id),
	dst_site_id TEXT NOT NULL REFERENCES sites(id),
	src_endpoint_id TEXT NOT NULL,
	dst_endpoint_id TEXT NOT NULL,
	transport TEXT NOT NULL,
	status TEXT NOT NULL,
	tunnel_opaque BLOB,
	tunnel_peer_pubkey BLOB,
	UNIQUE(src_site_id, dst_site_id, src_endpoint_id, dst_endpoint_id)
);
CREATE INDEX IF NOT EXISTS idx_paths_src_site ON paths(src_site_id);
CREATE INDEX IF NOT EXISTS idx_paths_dst_site ON paths(dst_site_id);

CREATE TABLE IF NOT EXISTS path_metrics (
	path_id INTEGER NOT NULL REFERENCES paths(id),
	measured_at INTEGER NOT NULL,
	latency_ms REAL NOT NULL,
	jitter_ms REAL NOT NULL,
	packet_loss_pct REAL NOT NULL,
	bandwidth_mbps REAL NOT NULL,
	score INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_path_metrics_path_time ON path_metrics(path_id, measured_at);

CREATE TABLE IF NOT EXISTS system_metrics (
	timestamp INTEGER PRIMARY KEY,
	throughput_mbps REAL NOT NULL,
	packets_per_second REAL NOT NULL,
	active_flows INTEGER NOT NULL,
	avg_latency_ms REAL NOT NULL,
	avg_packet_loss REAL NOT NULL,
	cpu_usage REAL NOT NULL,
	memory_usage REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS routing_policies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	priority INTEGER NOT NULL,
	match_rules_json TEXT NOT NULL DEFAULT '[]',
	action TEXT NOT NULL,
	enabled INTEGER NOT NULL,
	packets_matched INTEGER NOT NULL DEFAULT 0,
	bytes_matched INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_routing_policies_priority ON routing_policies(priority DESC);

CREATE TABLE IF NOT EXISTS network_policies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	namespace TEXT NOT NULL,
	pod_selector_json TEXT NOT NULL DEFAULT '{}',
	policy_types_json TEXT NOT NULL DEFAULT '[]',
	ingress_json TEXT NOT NULL DEFAULT '[]',
	egress_json TEXT NOT NULL DEFAULT '[]',
	priority INTEGER NOT NULL,
	enabled INTEGER NOT NULL,
	UNIQUE(namespace, name)
);
CREATE INDEX IF NOT EXISTS idx_network_policies_namespace ON network_policies(namespace);

CREATE TABLE IF NOT EXISTS flows (
	src_ip TEXT NOT NULL,
	dst_ip TEXT NOT NULL,
	src_port INTEGER NOT NULL,
	dst_port INTEGER NOT NULL,
	protocol TEXT NOT NULL,
	priority TEXT NOT NULL,
	selected_path_id INTEGER,
	created_at INTEGER NOT NULL,
	last_active INTEGER NOT NULL,
	bytes_sent INTEGER NOT NULL DEFAULT 0,
	packets_sent INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (src_ip, dst_ip, src_port, dst_port, protocol)
);
CREATE INDEX IF NOT EXISTS idx_flows_last_active ON flows(last_active);
CREATE INDEX IF NOT EXISTS idx_flows_selected_path ON flows(selected_path_id);

CREATE TABLE IF NOT EXISTS audit_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	user_id TEXT,
	event_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	resource TEXT,
	resource_id TEXT,
	mutation INTEGER NOT NULL,
	message TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_time ON audit_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs(user_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_mutation ON audit_logs(mutation);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return perrs.Wrap(err, perrs.KindFatal, "apply store schema")
	}
	return nil
}

// writeTx runs fn inside a transaction, serialized against every other
// writer. A query issued from inside fn never observes a partial
// cascade from a concurrent writeTx because no other writer can be
// mid-transaction while writeMu is held.
func (s *Store) writeTx(fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return perrs.Wrap(err, perrs.KindTransientIO, "begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return perrs.Wrap(err, perrs.KindTransientIO, "commit transaction")
	}
	return nil
}

func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
