// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package scorer

import (
	"context"
	"sync"
	"time"

	"patronus.dev/core/internal/config"
	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/probe"
)

// Store is the subset of *store.Store the Scorer writes results to.
type Store interface {
	AppendPathMetrics(model.PathMetrics) error
	UpdatePathStatus(id int64, status model.PathStatus) error
}

// StatusPublisher is notified on every PathStatus transition so the
// Selector can re-evaluate Flows bound to that Path no later than its
// next selection tick, per §4.3/§5.
type StatusPublisher interface {
	PublishStatusChange(pathID int64, from, to model.PathStatus)
}

// dropNotifier lets the Scorer tell the Monitor it had to drop an
// Emission under backpressure, so DroppedSamples stays the single
// counter of record (§9).
type dropNotifier interface {
	RecordDrop()
}

// Scorer consumes probe Emissions and, for each, computes the §4.3
// score, advances that Path's status state machine, and persists the
// result. A single worker goroutine drains the queue so that, for a
// given Path, samples are processed in emission order (§5).
type Scorer struct {
	cfg       *config.RuntimeConfig
	store     Store
	publisher StatusPublisher
	monitor   dropNotifier
	logger    *logging.Logger

	queue chan probe.Emission
	qmu   sync.Mutex // guards drop-oldest eviction against concurrent Observe calls

	mu       sync.Mutex
	trackers map[int64]*tracker
}

// New creates a Scorer. queueSize bounds the backpressure queue;
// samples beyond it are dropped oldest-first per the design notes §9.
func New(cfg *config.RuntimeConfig, store Store, publisher StatusPublisher, monitor dropNotifier, logger *logging.Logger, queueSize int) *Scorer {
	if queueSize < 1 {
		queueSize = 1024
	}
	return &Scorer{
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		monitor:   monitor,
		logger:    logger,
		queue:     make(chan probe.Emission, queueSize),
		trackers:  make(map[int64]*tracker),
	}
}

// Observe implements probe.Sink. It never blocks: if the queue is
// full, the oldest pending Emission is dropped to make room.
func (s *Scorer) Observe(e probe.Emission) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	select {
	case s.queue <- e:
		return
	default:
	}
	select {
	case <-s.queue:
		if s.monitor != nil {
			s.monitor.RecordDrop()
		}
	default:
	}
	select {
	case s.queue <- e:
	default:
	}
}

// Run drains the queue until ctx is cancelled, blocking until then.
// Call it from a supervised task.
func (s *Scorer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queue:
			s.process(e)
		}
	}
}

func (s *Scorer) process(e probe.Emission) {
	if len(e.Window) == 0 {
		return
	}
	score := Score(e.Window)
	windowFull := len(e.Window) >= s.cfg.SampleWindow
	last := e.Window[len(e.Window)-1]

	s.mu.Lock()
	t, ok := s.trackers[e.PathID]
	if !ok {
		t = newTracker()
		s.trackers[e.PathID] = t
	}
	from := t.status
	to := t.advance(score, windowFull, last.TimedOut, s.cfg.NFailConsecutive)
	s.mu.Unlock()

	metrics := model.PathMetrics{
		PathID:        e.PathID,
		MeasuredAt:    last.MeasuredAt,
		LatencyMS:     last.LatencyMS,
		JitterMS:      last.JitterMS,
		PacketLossPct: last.PacketLossPct,
		BandwidthMbps: last.BandwidthMbps,
		Score:         score,
	}
	if metrics.MeasuredAt.IsZero() {
		metrics.MeasuredAt = time.Now().UTC()
	}
	if err := s.store.AppendPathMetrics(metrics); err != nil {
		s.logger.Error("scorer: failed to persist path metrics", "path_id", e.PathID, "error", err)
	}

	if from == to {
		return
	}
	if err := s.store.UpdatePathStatus(e.PathID, to); err != nil {
		s.logger.Error("scorer: failed to persist path status", "path_id", e.PathID, "error", err)
	}
	s.logger.Info("path status transition", "path_id", e.PathID, "from", from, "to", to, "score", score)
	if s.publisher != nil {
		s.publisher.PublishStatusChange(e.PathID, from, to)
	}
}

// CurrentStatus returns the in-memory tracked status for a Path, or
// ok=false if the Scorer has not observed it yet.
func (s *Scorer) CurrentStatus(pathID int64) (model.PathStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[pathID]
	if !ok {
		return "", false
	}
	return t.status, true
}
