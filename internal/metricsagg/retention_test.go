// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metricsagg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetentionStore struct {
	pathCutoff, systemCutoff time.Time
	pathDeleted, sysDeleted  int64
}

func (f *fakeRetentionStore) DeletePathMetricsOlderThan(cutoff time.Time) (int64, error) {
	f.pathCutoff = cutoff
	return f.pathDeleted, nil
}
func (f *fakeRetentionStore) DeleteSystemMetricsOlderThan(cutoff time.Time) (int64, error) {
	f.systemCutoff = cutoff
	return f.sysDeleted, nil
}

// S6: the retention sweep deletes rows older than the horizon and is
// idempotent under repeated invocation.
func TestSweep_DeletesBeforeHorizonAndIsIdempotent(t *testing.T) {
	store := &fakeRetentionStore{pathDeleted: 12, sysDeleted: 4}
	horizon := 30 * 24 * time.Hour
	r := NewRetention(store, horizon, testLogger())

	before := time.Now()
	require.NoError(t, r.Sweep())
	assert.WithinDuration(t, before.Add(-horizon), store.pathCutoff, time.Second)
	assert.WithinDuration(t, before.Add(-horizon), store.systemCutoff, time.Second)

	store.pathDeleted, store.sysDeleted = 0, 0
	require.NoError(t, r.Sweep())
	assert.Equal(t, int64(0), store.pathDeleted)
}
