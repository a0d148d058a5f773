// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package supervisorx runs the control plane's long-lived components
// — Probe, Scorer, Mesh Manager, Flow Table, Metrics Aggregator,
// Retention, and the control API — as one cooperatively-cancelled
// group, adapted from the teacher's services.Service lifecycle
// interface and monitor.Service's ticker-driven Start/Stop pattern.
package supervisorx

import "context"

// Service is the standard lifecycle for a supervised component: Run
// blocks until ctx is cancelled or the component fails, and must
// return promptly once ctx.Done() fires.
type Service interface {
	Name() string
	Run(ctx context.Context) error
}

// Func adapts a bare run function to Service, for components (like the
// Scorer, whose Run returns no error) that only need a name attached.
type Func struct {
	FuncName string
	RunFunc  func(ctx context.Context) error
}

func (f Func) Name() string                  { return f.FuncName }
func (f Func) Run(ctx context.Context) error { return f.RunFunc(ctx) }
