// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package supervisorx

import (
	"context"

	"golang.org/x/sync/errgroup"

	"patronus.dev/core/internal/logging"
)

// Supervisor runs a fixed set of Services concurrently via an
// errgroup: the first Service to return a non-nil error cancels every
// other Service's context, and Run waits for all of them to unwind
// before returning that error. This generalizes the teacher's
// monitor.Service Start/Stop/WaitGroup pattern from one component to
// the whole process.
type Supervisor struct {
	logger   *logging.Logger
	services []Service
}

// New builds a Supervisor over no services; call Register to add them.
func New(logger *logging.Logger) *Supervisor {
	return &Supervisor{logger: logger}
}

// Register adds a Service to be started by the next Run call.
func (s *Supervisor) Register(svc Service) {
	s.services = append(s.services, svc)
}

// Run starts every registered Service and blocks until ctx is
// cancelled or any Service returns an error, at which point all
// Services are cancelled and Run waits for them to finish before
// returning the first error encountered.
func (s *Supervisor) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, svc := range s.services {
		svc := svc
		group.Go(func() error {
			s.logger.Info("supervisorx: service starting", "service", svc.Name())
			err := svc.Run(groupCtx)
			if err != nil {
				s.logger.Error("supervisorx: service exited with error", "service", svc.Name(), "error", err)
			} else {
				s.logger.Info("supervisorx: service stopped", "service", svc.Name())
			}
			return err
		})
	}

	return group.Wait()
}
