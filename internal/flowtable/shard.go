// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowtable

import (
	"container/list"
	"sync"

	"patronus.dev/core/internal/model"
)

// entry is one shard's live Flow state plus its position in the
// shard's LRU list, ordered by last_active.
type entry struct {
	flow    model.Flow
	lruElem *list.Element
}

// shard is one of the Flow Table's N independent reader-writer
// domains, per §4.7/§5: "sharded; each shard is an independent
// reader-writer domain." Its own mutex means observing a flow in one
// shard never blocks observation of a flow in another.
type shard struct {
	mu       sync.Mutex
	byKey    map[model.FlowKey]*entry
	lru      *list.List // front = most recently active, back = least
	maxSize  int
}

func newShard(maxSize int) *shard {
	return &shard{
		byKey:   make(map[model.FlowKey]*entry),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// touch moves e to the front of the LRU list, recording it as the
// most recently active flow in this shard.
func (s *shard) touch(e *entry) {
	s.lru.MoveToFront(e.lruElem)
}

// evictOldestLocked removes and returns the least-recently-active
// entry. Caller must hold s.mu. Returns ok=false if the shard is empty.
func (s *shard) evictOldestLocked() (*entry, bool) {
	back := s.lru.Back()
	if back == nil {
		return nil, false
	}
	key := back.Value.(model.FlowKey)
	e := s.byKey[key]
	s.lru.Remove(back)
	delete(s.byKey, key)
	return e, true
}
