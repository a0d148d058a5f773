// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package probe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"patronus.dev/core/internal/config"
	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
)

// Emission is what the probe loop hands off to the Scorer: the Path
// just measured and its current ring window, oldest sample first.
type Emission struct {
	PathID int64
	Window []Sample
}

// Sink consumes Emissions. The Scorer is the production Sink; tests
// can substitute a channel-backed fake.
type Sink interface {
	Observe(Emission)
}

// PathSource is the subset of *store.Store the Monitor reads paths
// and their endpoints from.
type PathSource interface {
	ListPaths(siteID string) ([]model.Path, error)
	GetSite(id string) (model.Site, error)
}

// Monitor schedules one probe loop per eligible Path (status != Down)
// and fans samples out to a Sink, per §4.2. Backpressure on the
// Sink's queue is bounded-with-drop: the oldest pending Emission is
// dropped and DroppedSamples incremented rather than growing memory
// unboundedly, per the design notes in §9.
type Monitor struct {
	cfg    *config.RuntimeConfig
	prober Prober
	source PathSource
	sink   Sink
	logger *logging.Logger

	mu      sync.Mutex
	rings   map[int64]*Ring
	cancels map[int64]context.CancelFunc

	dropped atomic.Uint64
}

// New creates a Monitor. sink receives one Emission per probe per
// eligible Path.
func New(cfg *config.RuntimeConfig, prober Prober, source PathSource, sink Sink, logger *logging.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		prober:  prober,
		source:  source,
		sink:    sink,
		logger:  logger,
		rings:   make(map[int64]*Ring),
		cancels: make(map[int64]context.CancelFunc),
	}
}

// DroppedSamples returns the count of Emissions dropped under
// backpressure since startup.
func (m *Monitor) DroppedSamples() uint64 {
	return m.dropped.Load()
}

// Reconcile starts a probe loop for every eligible Path not already
// being probed, and stops loops for Paths that disappeared or went
// Down. Call it on every topology tick and whenever the Mesh Manager
// mutates the Path set.
func (m *Monitor) Reconcile(ctx context.Context) error {
	paths, err := m.source.ListPaths("")
	if err != nil {
		return err
	}

	eligible := make(map[int64]model.Path, len(paths))
	for _, p := range paths {
		if p.Status != model.PathDown {
			eligible[p.ID] = p
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, p := range eligible {
		if _, running := m.cancels[id]; running {
			continue
		}
		loopCtx, cancel := context.WithCancel(ctx)
		m.cancels[id] = cancel
		if _, ok := m.rings[id]; !ok {
			m.rings[id] = NewRing(m.cfg.SampleWindow)
		}
		go m.runLoop(loopCtx, p)
	}

	for id, cancel := range m.cancels {
		if _, ok := eligible[id]; !ok {
			cancel()
			delete(m.cancels, id)
		}
	}
	return nil
}

// Run reconciles the probe loop set immediately, then on every tick of
// `every` until ctx is cancelled, stopping all loops on return.
func (m *Monitor) Run(ctx context.Context, every time.Duration) error {
	if err := m.Reconcile(ctx); err != nil {
		m.logger.Error("probe: initial reconcile failed", "error", err)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	defer m.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.Reconcile(ctx); err != nil {
				m.logger.Error("probe: reconcile failed", "error", err)
			}
		}
	}
}

// Stop cancels every running probe loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cancel := range m.cancels {
		cancel()
		delete(m.cancels, id)
	}
}

func (m *Monitor) runLoop(ctx context.Context, p model.Path) {
	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	m.probeOnce(ctx, p)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeOnce(ctx, p)
		}
	}
}

func (m *Monitor) probeOnce(ctx context.Context, p model.Path) {
	src, dst, err := m.resolveEndpoints(p)
	if err != nil {
		m.logger.Warn("probe: cannot resolve endpoints", "path_id", p.ID, "error", err)
		return
	}

	budget := time.Duration(float64(m.cfg.ProbeInterval) * 1.5)
	attemptCtx, cancel := context.WithTimeout(ctx, minDuration(m.cfg.ProbeAttemptTimeout, budget))
	defer cancel()

	sample, err := m.prober.Probe(attemptCtx, src, dst)
	if err != nil {
		// A probe error on one path never affects others (§4.2); it is
		// recorded as a full-loss sample so the Scorer's consecutive
		// failure counter still advances toward Down.
		sample = timeoutSample(m.cfg.ProbeAttemptTimeout)
		m.logger.Debug("probe failed, recording as loss", "path_id", p.ID, "error", err)
	}

	m.mu.Lock()
	ring, ok := m.rings[p.ID]
	if !ok {
		ring = NewRing(m.cfg.SampleWindow)
		m.rings[p.ID] = ring
	}
	m.mu.Unlock()

	ring.Push(sample)
	m.emit(Emission{PathID: p.ID, Window: ring.Snapshot()})
}

// emit hands the Emission to the Sink. This implementation calls
// Observe synchronously; Sink implementations that need bounded-queue
// semantics (the Scorer) own their own internal channel and apply the
// drop-oldest policy there, incrementing DroppedSamples via
// RecordDrop so Monitor's counter stays the single source of truth
// for the observability contract in §9.
func (m *Monitor) emit(e Emission) {
	m.sink.Observe(e)
}

// RecordDrop is called by a Sink that had to drop an Emission under
// backpressure.
func (m *Monitor) RecordDrop() {
	m.dropped.Add(1)
}

func (m *Monitor) resolveEndpoints(p model.Path) (src, dst model.Endpoint, err error) {
	srcSite, err := m.source.GetSite(p.SrcSiteID)
	if err != nil {
		return model.Endpoint{}, model.Endpoint{}, err
	}
	dstSite, err := m.source.GetSite(p.DstSiteID)
	if err != nil {
		return model.Endpoint{}, model.Endpoint{}, err
	}
	src, ok := srcSite.Endpoint(p.SrcEndpointID)
	if !ok {
		return model.Endpoint{}, model.Endpoint{}, errEndpointNotFound(p.SrcEndpointID)
	}
	dst, ok = dstSite.Endpoint(p.DstEndpointID)
	if !ok {
		return model.Endpoint{}, model.Endpoint{}, errEndpointNotFound(p.DstEndpointID)
	}
	return src, dst, nil
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

type endpointNotFoundError string

func (e endpointNotFoundError) Error() string { return "endpoint not found: " + string(e) }

func errEndpointNotFound(id string) error { return endpointNotFoundError(id) }
