// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowtable

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Output: io.Discard})
}

type fakeStore struct {
	inserted []model.Flow
}

func (f *fakeStore) InsertFlow(flow model.Flow) error {
	f.inserted = append(f.inserted, flow)
	return nil
}
func (f *fakeStore) UpdateFlow(key model.FlowKey, selectedPathID *int64, lastActive time.Time, bytesDelta, packetsDelta uint64) error {
	return nil
}
func (f *fakeStore) EvictFlow(key model.FlowKey) error { return nil }

type fakeDatapath struct {
	installed   map[model.FlowKey]*int64
	uninstalled []model.FlowKey
}

func newFakeDatapath() *fakeDatapath {
	return &fakeDatapath{installed: make(map[model.FlowKey]*int64)}
}
func (f *fakeDatapath) InstallFlow(key model.FlowKey, pathID *int64) error {
	f.installed[key] = pathID
	return nil
}
func (f *fakeDatapath) UninstallFlow(key model.FlowKey) error {
	f.uninstalled = append(f.uninstalled, key)
	return nil
}

func key(n int) model.FlowKey {
	return model.FlowKey{SrcIP: "10.0.0.1", DstIP: "10.0.0.2", SrcPort: n, DstPort: 443, Protocol: model.ProtocolTCP}
}

func TestObserve_NewFlowThenUpdate(t *testing.T) {
	table := New(Config{ShardCount: 1, MaxEntries: 10}, &fakeStore{}, newFakeDatapath(), testLogger())

	k := key(1)
	table.Observe(k, model.PriorityNormal, 100, 1)
	table.Observe(k, model.PriorityNormal, 50, 1)

	flow, ok := table.Lookup(k)
	require.True(t, ok)
	assert.Equal(t, uint64(150), flow.Counters.BytesSent)
	assert.Equal(t, uint64(2), flow.Counters.PacketsSent)
}

// S5: at cap, observing a new key evicts the least-recently-active
// flow, flushing it to the Store and telling the datapath to drop it.
func TestObserve_EvictsLeastRecentlyActiveAtCap(t *testing.T) {
	store := &fakeStore{}
	dp := newFakeDatapath()
	table := New(Config{ShardCount: 1, MaxEntries: 2}, store, dp, testLogger())

	table.Observe(key(1), model.PriorityNormal, 10, 1)
	table.Observe(key(2), model.PriorityNormal, 10, 1)
	// key(1) touched again, making key(2) the least recently active.
	table.Observe(key(1), model.PriorityNormal, 10, 1)
	table.Observe(key(3), model.PriorityNormal, 10, 1)

	_, ok := table.Lookup(key(2))
	assert.False(t, ok)
	assert.Contains(t, dp.uninstalled, key(2).Canonical())
	require.Len(t, store.inserted, 1)
	assert.Equal(t, key(2).Canonical(), store.inserted[0].Key)

	_, ok = table.Lookup(key(1))
	assert.True(t, ok)
	_, ok = table.Lookup(key(3))
	assert.True(t, ok)
}

func TestSetPath_InstallsDatapathEntry(t *testing.T) {
	dp := newFakeDatapath()
	table := New(Config{ShardCount: 1, MaxEntries: 10}, &fakeStore{}, dp, testLogger())

	k := key(1)
	table.Observe(k, model.PriorityCritical, 10, 1)
	pathID := int64(42)
	require.NoError(t, table.SetPath(k, &pathID))

	flow, ok := table.Lookup(k)
	require.True(t, ok)
	require.NotNil(t, flow.SelectedPathID)
	assert.Equal(t, pathID, *flow.SelectedPathID)
	assert.Equal(t, &pathID, dp.installed[k.Canonical()])
}

func TestActiveCount(t *testing.T) {
	table := New(Config{ShardCount: 4, MaxEntries: 100}, &fakeStore{}, newFakeDatapath(), testLogger())
	table.Observe(key(1), model.PriorityNormal, 1, 1)
	table.Observe(key(2), model.PriorityNormal, 1, 1)
	assert.Equal(t, 2, table.ActiveCount())
}
