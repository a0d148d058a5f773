// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metricsagg

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patronus.dev/core/internal/config"
	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Output: io.Discard})
}

type fakeStore struct {
	system []model.SystemMetrics
}

func (f *fakeStore) AppendSystemMetrics(m model.SystemMetrics) error {
	f.system = append(f.system, m)
	return nil
}
func (f *fakeStore) AppendPathMetrics(m model.PathMetrics) error { return nil }

type fakePathSource struct {
	paths   []model.Path
	metrics map[int64]model.PathMetrics
}

func (f *fakePathSource) ListPaths(siteID string) ([]model.Path, error) { return f.paths, nil }
func (f *fakePathSource) LatestPathMetrics(pathID int64) (model.PathMetrics, error) {
	m, ok := f.metrics[pathID]
	if !ok {
		return model.PathMetrics{}, assert.AnError
	}
	return m, nil
}

type fakeFlowSource struct{ count int }

func (f *fakeFlowSource) ActiveCount() int { return f.count }

type fakeCounterSource struct{ bytes, packets uint64 }

func (f *fakeCounterSource) TotalCounters() (uint64, uint64) { return f.bytes, f.packets }

func TestCollect_PersistsSnapshotAndPushesRing(t *testing.T) {
	store := &fakeStore{}
	paths := &fakePathSource{
		paths: []model.Path{
			{ID: 1, Status: model.PathUp},
			{ID: 2, Status: model.PathDown}, // excluded from averages
		},
		metrics: map[int64]model.PathMetrics{
			1: {PathID: 1, LatencyMS: 20, PacketLossPct: 0.5, Score: 90},
		},
	}
	flows := &fakeFlowSource{count: 7}
	counters := &fakeCounterSource{bytes: 1000, packets: 50}
	alerts := NewAlertEngine(config.DefaultAlertThresholds(), nil, 0, testLogger())

	agg := New(store, paths, flows, counters, alerts, 5, testLogger())
	require.NoError(t, agg.Collect(context.Background()))

	require.Len(t, store.system, 1)
	snap := store.system[0]
	assert.Equal(t, 7, snap.ActiveFlows)
	assert.Equal(t, 20.0, snap.AvgLatencyMS)
	assert.Equal(t, 0.5, snap.AvgPacketLoss)

	recent := agg.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, snap, recent[0])
}

func TestRecent_WrapsAtRingCapacity(t *testing.T) {
	agg := New(&fakeStore{}, &fakePathSource{}, &fakeFlowSource{}, &fakeCounterSource{}, nil, 2, testLogger())

	require.NoError(t, agg.Collect(context.Background()))
	require.NoError(t, agg.Collect(context.Background()))
	require.NoError(t, agg.Collect(context.Background()))

	assert.Len(t, agg.Recent(), 2)
}

func TestRate_HandlesCounterReset(t *testing.T) {
	assert.Equal(t, 0.0, rate(10, 100, 10)) // reset: current < previous
	assert.Equal(t, 10.0, rate(200, 100, 10))
	assert.Equal(t, 0.0, rate(200, 100, 0)) // zero-width window
}
