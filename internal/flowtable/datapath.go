// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package flowtable implements the Flow Table of §4.7: a sharded,
// in-memory LRU cache of live Flows backed by periodic persistence to
// the Store and a datapath hook for installing/uninstalling forwarding
// entries.
package flowtable

import (
	"time"

	"patronus.dev/core/internal/model"
)

// Datapath is the injected capability that actually forwards traffic.
// The Flow Table never touches the kernel or dataplane directly, per
// §6's "Datapath hook" boundary: install_flow/uninstall_flow/read_counters.
type Datapath interface {
	InstallFlow(key model.FlowKey, pathID *int64) error
	UninstallFlow(key model.FlowKey) error
}

// Store is the subset of *store.Store the Flow Table needs to flush
// evicted or periodically-persisted flow state.
type Store interface {
	InsertFlow(f model.Flow) error
	UpdateFlow(key model.FlowKey, selectedPathID *int64, lastActive time.Time, bytesDelta, packetsDelta uint64) error
	EvictFlow(key model.FlowKey) error
}
