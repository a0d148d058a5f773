// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"database/sql"
	"time"

	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

// InsertFlow records a newly observed Flow. The Flow Table is the
// authoritative in-memory cache (§4.7); the Store only persists the
// subset that must survive a restart or an eviction flush.
func (s *Store) InsertFlow(f model.Flow) error {
	k := f.Key.Canonical()
	return s.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO flows (src_ip, dst_ip, src_port, dst_port, protocol, priority, selected_path_id, created_at, last_active, bytes_sent, packets_sent)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(src_ip, dst_ip, src_port, dst_port, protocol) DO UPDATE SET
				priority = excluded.priority,
				last_active = excluded.last_active
		`, k.SrcIP, k.DstIP, k.SrcPort, k.DstPort, string(k.Protocol), string(f.Priority),
			nullablePathID(f.SelectedPathID), f.CreatedAt.Unix(), f.LastActive.Unix(),
			f.Counters.BytesSent, f.Counters.PacketsSent)
		if err != nil {
			return perrs.Wrap(err, perrs.KindConflict, "insert flow")
		}
		return nil
	})
}

// UpdateFlow persists a selection decision and/or counter delta for an
// already-observed Flow.
func (s *Store) UpdateFlow(key model.FlowKey, selectedPathID *int64, lastActive time.Time, bytesDelta, packetsDelta uint64) error {
	k := key.Canonical()
	return s.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE flows SET
				selected_path_id = ?,
				last_active = ?,
				bytes_sent = bytes_sent + ?,
				packets_sent = packets_sent + ?
			WHERE src_ip=? AND dst_ip=? AND src_port=? AND dst_port=? AND protocol=?
		`, nullablePathID(selectedPathID), lastActive.Unix(), bytesDelta, packetsDelta,
			k.SrcIP, k.DstIP, k.SrcPort, k.DstPort, string(k.Protocol))
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "update flow")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return perrs.New(perrs.KindNotFound, "flow not found")
		}
		return nil
	})
}

// GetFlow returns the persisted state of one Flow by key.
func (s *Store) GetFlow(key model.FlowKey) (model.Flow, error) {
	k := key.Canonical()
	row := s.db.QueryRow(`
		SELECT src_ip, dst_ip, src_port, dst_port, protocol, priority, selected_path_id, created_at, last_active, bytes_sent, packets_sent
		FROM flows WHERE src_ip=? AND dst_ip=? AND src_port=? AND dst_port=? AND protocol=?
	`, k.SrcIP, k.DstIP, k.SrcPort, k.DstPort, string(k.Protocol))
	return scanFlow(row)
}

// ListActiveFlows returns every Flow whose last_active is at or after cutoff.
func (s *Store) ListActiveFlows(cutoff time.Time) ([]model.Flow, error) {
	rows, err := s.db.Query(`
		SELECT src_ip, dst_ip, src_port, dst_port, protocol, priority, selected_path_id, created_at, last_active, bytes_sent, packets_sent
		FROM flows WHERE last_active >= ? ORDER BY last_active DESC
	`, cutoff.Unix())
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindTransientIO, "list active flows")
	}
	defer rows.Close()

	var out []model.Flow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// EvictFlow removes a Flow row, used when the Flow Table LRU evicts it
// or its TTL expires.
func (s *Store) EvictFlow(key model.FlowKey) error {
	k := key.Canonical()
	return s.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM flows WHERE src_ip=? AND dst_ip=? AND src_port=? AND dst_port=? AND protocol=?`,
			k.SrcIP, k.DstIP, k.SrcPort, k.DstPort, string(k.Protocol))
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "evict flow")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return perrs.New(perrs.KindNotFound, "flow not found")
		}
		return nil
	})
}

// EvictFlowsByPath removes every Flow pinned to a removed Path, used
// when the Mesh Manager tears down a Path.
func (s *Store) EvictFlowsByPath(pathID int64) error {
	return s.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM flows WHERE selected_path_id = ?`, pathID)
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "evict flows by path")
		}
		return nil
	})
}

func nullablePathID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func scanFlow(row rowScanner) (model.Flow, error) {
	var f model.Flow
	var protocol, priority string
	var selectedPathID sql.NullInt64
	var createdAt, lastActive int64
	err := row.Scan(&f.Key.SrcIP, &f.Key.DstIP, &f.Key.SrcPort, &f.Key.DstPort, &protocol, &priority,
		&selectedPathID, &createdAt, &lastActive, &f.Counters.BytesSent, &f.Counters.PacketsSent)
	if err != nil {
		if isNoRows(err) {
			return model.Flow{}, perrs.New(perrs.KindNotFound, "flow not found")
		}
		return model.Flow{}, perrs.Wrap(err, perrs.KindTransientIO, "scan flow")
	}
	f.Key.Protocol = model.Protocol(protocol)
	f.Priority = model.Priority(priority)
	if selectedPathID.Valid {
		id := selectedPathID.Int64
		f.SelectedPathID = &id
	}
	f.CreatedAt = unixTime(createdAt)
	f.LastActive = unixTime(lastActive)
	return f, nil
}
