// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowtable

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
)

const (
	defaultShardCount = 64
	defaultMaxEntries = 1_000_000
)

// Table is the Flow Table of §4.7: a sharded, LRU-bounded in-memory
// cache of live Flows, periodically flushed to the Store.
type Table struct {
	shards     []*shard
	shardCount int
	store      Store
	datapath   Datapath
	logger     *logging.Logger
}

// Config configures a Table's shard count and global entry cap.
type Config struct {
	ShardCount int
	MaxEntries int
	FlushEvery time.Duration
}

// DefaultConfig mirrors §4.7's defaults: 64 shards, a 1,000,000-entry
// cap split evenly across them.
func DefaultConfig() Config {
	return Config{ShardCount: defaultShardCount, MaxEntries: defaultMaxEntries, FlushEvery: 10 * time.Second}
}

// New builds a Table. The global MaxEntries is divided evenly across
// ShardCount shards: each shard evicts independently once it holds its
// own share, which approximates but does not guarantee a single exact
// global LRU order — documented tradeoff for the lock-free-per-shard
// concurrency §4.7 asks for.
func New(cfg Config, store Store, datapath Datapath, logger *logging.Logger) *Table {
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = defaultShardCount
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	perShard := cfg.MaxEntries / cfg.ShardCount
	if perShard <= 0 {
		perShard = 1
	}
	shards := make([]*shard, cfg.ShardCount)
	for i := range shards {
		shards[i] = newShard(perShard)
	}
	return &Table{shards: shards, shardCount: cfg.ShardCount, store: store, datapath: datapath, logger: logger}
}

func (t *Table) shardFor(key model.FlowKey) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.SrcIP))
	h.Write([]byte(key.DstIP))
	h.Write([]byte(key.Protocol))
	h.Write([]byte(strconv.Itoa(key.SrcPort)))
	h.Write([]byte(strconv.Itoa(key.DstPort)))
	return t.shards[h.Sum32()%uint32(t.shardCount)]
}

// Observe implements §4.7's observe(flow_key, bytes, packets): updates
// counters and last_active for an existing Flow, or admits a new one,
// evicting the shard's least-recently-active Flow first if at capacity.
func (t *Table) Observe(key model.FlowKey, priority model.Priority, bytes, packets uint64) {
	key = key.Canonical()
	now := time.Now()
	sh := t.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if e, ok := sh.byKey[key]; ok {
		e.flow.Counters.BytesSent += bytes
		e.flow.Counters.PacketsSent += packets
		e.flow.LastActive = now
		sh.touch(e)
		return
	}

	if len(sh.byKey) >= sh.maxSize {
		if victim, ok := sh.evictOldestLocked(); ok {
			t.flush(victim.flow)
			if err := t.datapath.UninstallFlow(victim.flow.Key); err != nil {
				t.logger.Error("flowtable: datapath uninstall failed on eviction", "error", err)
			}
		}
	}

	elem := sh.lru.PushFront(key)
	sh.byKey[key] = &entry{
		flow: model.Flow{
			Key:        key,
			Priority:   priority,
			CreatedAt:  now,
			LastActive: now,
			Counters:   model.FlowCounters{BytesSent: bytes, PacketsSent: packets},
		},
		lruElem: elem,
	}
}

// SetPath implements §4.7's set_path(flow_key, path_id): records a
// Selector decision and installs the corresponding datapath entry. A
// nil pathID installs a reject/drop entry, per §4.4's error reporting
// to the Flow Table.
func (t *Table) SetPath(key model.FlowKey, pathID *int64) error {
	key = key.Canonical()
	sh := t.shardFor(key)

	sh.mu.Lock()
	e, ok := sh.byKey[key]
	if ok {
		e.flow.SelectedPathID = pathID
		sh.touch(e)
	}
	sh.mu.Unlock()

	if !ok {
		return nil
	}
	return t.datapath.InstallFlow(key, pathID)
}

// Lookup implements §4.7's lookup(flow_key).
func (t *Table) Lookup(key model.FlowKey) (model.Flow, bool) {
	key = key.Canonical()
	sh := t.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.byKey[key]
	if !ok {
		return model.Flow{}, false
	}
	return e.flow, true
}

// ActiveCount returns the number of Flows currently tracked across all
// shards, used by the Metrics Aggregator's active_flows figure.
func (t *Table) ActiveCount() int {
	total := 0
	for _, sh := range t.shards {
		sh.mu.Lock()
		total += len(sh.byKey)
		sh.mu.Unlock()
	}
	return total
}

// FlowsByPath returns every tracked Flow currently pinned to pathID,
// implementing selector.FlowSource for batch re-selection on failover.
func (t *Table) FlowsByPath(pathID int64) []model.Flow {
	var out []model.Flow
	for _, sh := range t.shards {
		sh.mu.Lock()
		for _, e := range sh.byKey {
			if e.flow.SelectedPathID != nil && *e.flow.SelectedPathID == pathID {
				out = append(out, e.flow)
			}
		}
		sh.mu.Unlock()
	}
	return out
}

// Unassigned returns every tracked Flow with no SelectedPathID yet,
// the set a fresh-flow selection tick needs to route.
func (t *Table) Unassigned() []model.Flow {
	var out []model.Flow
	for _, sh := range t.shards {
		sh.mu.Lock()
		for _, e := range sh.byKey {
			if e.flow.SelectedPathID == nil {
				out = append(out, e.flow)
			}
		}
		sh.mu.Unlock()
	}
	return out
}

// TotalCounters sums byte/packet counters across every tracked Flow,
// implementing metricsagg.CounterSource.
func (t *Table) TotalCounters() (bytes, packets uint64) {
	for _, sh := range t.shards {
		sh.mu.Lock()
		for _, e := range sh.byKey {
			bytes += e.flow.Counters.BytesSent
			packets += e.flow.Counters.PacketsSent
		}
		sh.mu.Unlock()
	}
	return bytes, packets
}

// Run periodically persists every tracked Flow to the Store until ctx
// is cancelled, satisfying §4.7's "backed by periodic persistence."
func (t *Table) Run(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.flushAll()
		}
	}
}

func (t *Table) flushAll() {
	for _, sh := range t.shards {
		sh.mu.Lock()
		flows := make([]model.Flow, 0, len(sh.byKey))
		for _, e := range sh.byKey {
			flows = append(flows, e.flow)
		}
		sh.mu.Unlock()

		for _, f := range flows {
			t.flush(f)
		}
	}
}

func (t *Table) flush(f model.Flow) {
	if err := t.store.InsertFlow(f); err != nil {
		t.logger.Error("flowtable: flush failed", "flow", f.Key, "error", err)
	}
}
