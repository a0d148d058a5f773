// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"database/sql"
	"time"

	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

// AppendPathMetrics appends one sample to a Path's time series.
func (s *Store) AppendPathMetrics(m model.PathMetrics) error {
	return s.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO path_metrics (path_id, measured_at, latency_ms, jitter_ms, packet_loss_pct, bandwidth_mbps, score)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, m.PathID, m.MeasuredAt.Unix(), m.LatencyMS, m.JitterMS, m.PacketLossPct, m.BandwidthMbps, m.Score)
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "append path metrics")
		}
		return nil
	})
}

// LatestPathMetrics returns the most recent sample for a path.
func (s *Store) LatestPathMetrics(pathID int64) (model.PathMetrics, error) {
	row := s.db.QueryRow(`
		SELECT path_id, measured_at, latency_ms, jitter_ms, packet_loss_pct, bandwidth_mbps, score
		FROM path_metrics WHERE path_id = ? ORDER BY measured_at DESC LIMIT 1
	`, pathID)
	return scanPathMetrics(row)
}

// RangePathMetrics returns samples for a path within [t0, t1] inclusive.
func (s *Store) RangePathMetrics(pathID int64, t0, t1 time.Time) ([]model.PathMetrics, error) {
	rows, err := s.db.Query(`
		SELECT path_id, measured_at, latency_ms, jitter_ms, packet_loss_pct, bandwidth_mbps, score
		FROM path_metrics WHERE path_id = ? AND measured_at BETWEEN ? AND ? ORDER BY measured_at
	`, pathID, t0.Unix(), t1.Unix())
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindTransientIO, "range path metrics")
	}
	defer rows.Close()

	var out []model.PathMetrics
	for rows.Next() {
		m, err := scanPathMetrics(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeletePathMetricsOlderThan deletes path_metrics rows measured before
// cutoff, returning the row count removed. Idempotent: a second call
// with the same cutoff after the first deletes zero rows.
func (s *Store) DeletePathMetricsOlderThan(cutoff time.Time) (int64, error) {
	var n int64
	err := s.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM path_metrics WHERE measured_at < ?`, cutoff.Unix())
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "delete old path metrics")
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

func scanPathMetrics(row rowScanner) (model.PathMetrics, error) {
	var m model.PathMetrics
	var measuredAt int64
	err := row.Scan(&m.PathID, &measuredAt, &m.LatencyMS, &m.JitterMS, &m.PacketLossPct, &m.BandwidthMbps, &m.Score)
	if err != nil {
		if isNoRows(err) {
			return model.PathMetrics{}, perrs.New(perrs.KindNotFound, "path metrics not found")
		}
		return model.PathMetrics{}, perrs.Wrap(err, perrs.KindTransientIO, "scan path metrics")
	}
	m.MeasuredAt = unixTime(measuredAt)
	return m, nil
}

// AppendSystemMetrics persists one system-wide snapshot.
func (s *Store) AppendSystemMetrics(m model.SystemMetrics) error {
	return s.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO system_metrics (timestamp, throughput_mbps, packets_per_second, active_flows, avg_latency_ms, avg_packet_loss, cpu_usage, memory_usage)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(timestamp) DO UPDATE SET
				throughput_mbps = excluded.throughput_mbps,
				packets_per_second = excluded.packets_per_second,
				active_flows = excluded.active_flows,
				avg_latency_ms = excluded.avg_latency_ms,
				avg_packet_loss = excluded.avg_packet_loss,
				cpu_usage = excluded.cpu_usage,
				memory_usage = excluded.memory_usage
		`, m.Timestamp.Unix(), m.ThroughputMbps, m.PacketsPerSecond, m.ActiveFlows, m.AvgLatencyMS, m.AvgPacketLoss, m.CPUUsage, m.MemoryUsage)
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "append system metrics")
		}
		return nil
	})
}

// LatestSystemMetrics returns the most recent snapshot.
func (s *Store) LatestSystemMetrics() (model.SystemMetrics, error) {
	row := s.db.QueryRow(`
		SELECT timestamp, throughput_mbps, packets_per_second, active_flows, avg_latency_ms, avg_packet_loss, cpu_usage, memory_usage
		FROM system_metrics ORDER BY timestamp DESC LIMIT 1
	`)
	return scanSystemMetrics(row)
}

// RangeSystemMetrics returns snapshots within [t0, t1] inclusive.
func (s *Store) RangeSystemMetrics(t0, t1 time.Time) ([]model.SystemMetrics, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, throughput_mbps, packets_per_second, active_flows, avg_latency_ms, avg_packet_loss, cpu_usage, memory_usage
		FROM system_metrics WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp
	`, t0.Unix(), t1.Unix())
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindTransientIO, "range system metrics")
	}
	defer rows.Close()

	var out []model.SystemMetrics
	for rows.Next() {
		m, err := scanSystemMetrics(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteSystemMetricsOlderThan deletes system_metrics rows older than cutoff.
func (s *Store) DeleteSystemMetricsOlderThan(cutoff time.Time) (int64, error) {
	var n int64
	err := s.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM system_metrics WHERE timestamp < ?`, cutoff.Unix())
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "delete old system metrics")
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

func scanSystemMetrics(row rowScanner) (model.SystemMetrics, error) {
	var m model.SystemMetrics
	var ts int64
	err := row.Scan(&ts, &m.ThroughputMbps, &m.PacketsPerSecond, &m.ActiveFlows, &m.AvgLatencyMS, &m.AvgPacketLoss, &m.CPUUsage, &m.MemoryUsage)
	if err != nil {
		if isNoRows(err) {
			return model.SystemMetrics{}, perrs.New(perrs.KindNotFound, "system metrics not found")
		}
		return model.SystemMetrics{}, perrs.Wrap(err, perrs.KindTransientIO, "scan system metrics")
	}
	m.Timestamp = unixTime(ts)
	return m, nil
}
