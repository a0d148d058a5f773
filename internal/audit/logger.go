// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package audit turns control-plane mutations into append-only
// AuditRecord rows, with user attribution pulled from the caller's
// context when present. Every mutation of Site/Path/Policy/User/Flow
// produces exactly one record, per §3.
package audit

import (
	"context"
	"time"

	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/store"
)

type ctxKey int

const userIDKey ctxKey = iota

// WithUserID attaches a caller's user id to ctx so it is picked up
// automatically by Log. A caller context with no attached user id
// produces an audit record with an empty UserID, per §3's "with user
// attribution when a user context exists".
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the user id attached to ctx, if any.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok && v != ""
}

// Store is the subset of *store.Store the audit Logger depends on.
type Store interface {
	AppendAudit(model.AuditRecord) error
}

var _ Store = (*store.Store)(nil)

// Logger persists audit records and mirrors them to the structured
// logger so an operator tailing logs sees the same stream as a query
// against the audit_logs table.
type Logger struct {
	store  Store
	logger *logging.Logger
}

// NewLogger creates an audit Logger backed by store.
func NewLogger(s Store, logger *logging.Logger) *Logger {
	return &Logger{store: s, logger: logger}
}

// Log appends one audit record. If ctx carries a user id (see
// WithUserID) and rec.UserID is empty, it is filled in automatically.
// The record's Timestamp defaults to time.Now() if zero.
func (l *Logger) Log(ctx context.Context, rec model.AuditRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.UserID == "" {
		if uid, ok := UserID(ctx); ok {
			rec.UserID = uid
		}
	}

	l.logStructured(rec)

	if err := l.store.AppendAudit(rec); err != nil {
		l.logger.Error("failed to persist audit record", "event_type", rec.EventType, "error", err)
		return err
	}
	return nil
}

// Mutation records a successful create/update/delete/toggle against a
// resource, the common case driving the §8 "exactly-once per
// mutation" invariant.
func (l *Logger) Mutation(ctx context.Context, eventType model.AuditEventType, resource, resourceID, message string) error {
	return l.Log(ctx, model.AuditRecord{
		EventType:  eventType,
		Severity:   model.AuditInfo,
		Resource:   resource,
		ResourceID: resourceID,
		Mutation:   true,
		Message:    message,
	})
}

// Observation records a non-mutating but notable event (e.g. a
// force_failover request that was rejected, an admission denial) at
// the given severity. Mutation is always false.
func (l *Logger) Observation(ctx context.Context, eventType model.AuditEventType, severity model.AuditSeverity, resource, resourceID, message string) error {
	return l.Log(ctx, model.AuditRecord{
		EventType:  eventType,
		Severity:   severity,
		Resource:   resource,
		ResourceID: resourceID,
		Mutation:   false,
		Message:    message,
	})
}

func (l *Logger) logStructured(rec model.AuditRecord) {
	kv := []any{
		"event_type", rec.EventType,
		"user", rec.UserID,
		"resource", rec.Resource,
		"resource_id", rec.ResourceID,
		"mutation", rec.Mutation,
	}
	switch rec.Severity {
	case model.AuditWarn:
		l.logger.Warn("audit", kv...)
	case model.AuditError:
		l.logger.Error("audit", kv...)
	default:
		l.logger.Info("audit", kv...)
	}
}
