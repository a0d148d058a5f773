// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"database/sql"
	"strings"
	"time"

	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

// AppendAudit inserts one append-only audit record. Every mutation of
// Site/Path/Policy/User/Flow produces exactly one of these, per §3;
// callers (internal/audit) are responsible for calling this exactly
// once per successful mutation.
func (s *Store) AppendAudit(r model.AuditRecord) error {
	return s.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO audit_logs (timestamp, user_id, event_type, severity, resource, resource_id, mutation, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, r.Timestamp.Unix(), nullableString(r.UserID), string(r.EventType), string(r.Severity),
			nullableString(r.Resource), nullableString(r.ResourceID), boolToInt(r.Mutation), nullableString(r.Message))
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "append audit record")
		}
		return nil
	})
}

// AuditFilter narrows an audit query. Zero-valued fields are not
// applied as constraints.
type AuditFilter struct {
	UserID    string
	EventType model.AuditEventType
	Severity  model.AuditSeverity
	From, To  time.Time
	Limit     int
}

// QueryAudit returns audit records matching f, newest first, bounded
// by f.Limit (0 means unbounded).
func (s *Store) QueryAudit(f AuditFilter) ([]model.AuditRecord, error) {
	return s.queryAudit(f, false)
}

// QueryAuditMutations is QueryAudit restricted to mutation=true rows,
// the "mutation-only view" required by §4.1.
func (s *Store) QueryAuditMutations(f AuditFilter) ([]model.AuditRecord, error) {
	return s.queryAudit(f, true)
}

func (s *Store) queryAudit(f AuditFilter, mutationsOnly bool) ([]model.AuditRecord, error) {
	var where []string
	var args []any

	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, string(f.EventType))
	}
	if f.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(f.Severity))
	}
	if !f.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.From.Unix())
	}
	if !f.To.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, f.To.Unix())
	}
	if mutationsOnly {
		where = append(where, "mutation = 1")
	}

	query := `SELECT id, timestamp, user_id, event_type, severity, resource, resource_id, mutation, message FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindTransientIO, "query audit log")
	}
	defer rows.Close()

	var out []model.AuditRecord
	for rows.Next() {
		r, err := scanAuditRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanAuditRecord(row rowScanner) (model.AuditRecord, error) {
	var r model.AuditRecord
	var userID, resource, resourceID, message sql.NullString
	var eventType, severity string
	var ts int64
	var mutation int
	err := row.Scan(&r.ID, &ts, &userID, &eventType, &severity, &resource, &resourceID, &mutation, &message)
	if err != nil {
		if isNoRows(err) {
			return model.AuditRecord{}, perrs.New(perrs.KindNotFound, "audit record not found")
		}
		return model.AuditRecord{}, perrs.Wrap(err, perrs.KindTransientIO, "scan audit record")
	}
	r.Timestamp = unixTime(ts)
	r.UserID = userID.String
	r.EventType = model.AuditEventType(eventType)
	r.Severity = model.AuditSeverity(severity)
	r.Resource = resource.String
	r.ResourceID = resourceID.String
	r.Mutation = mutation != 0
	r.Message = message.String
	return r, nil
}
