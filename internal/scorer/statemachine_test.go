// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"patronus.dev/core/internal/model"
)

func TestTracker_StaysUpBeforeFullWindow(t *testing.T) {
	tr := newTracker()
	// Score below Degraded threshold, but window not yet full: stays Up.
	status := tr.advance(10, false, false, 3)
	assert.Equal(t, model.PathUp, status)
}

func TestTracker_UpToDegradedToDown(t *testing.T) {
	tr := newTracker()
	assert.Equal(t, model.PathUp, tr.advance(95, true, false, 3))
	assert.Equal(t, model.PathDegraded, tr.advance(50, true, false, 3))
	assert.Equal(t, model.PathDown, tr.advance(10, true, false, 3))
}

func TestTracker_BoundaryScoreStaysAtPriorStatus(t *testing.T) {
	tr := newTracker()
	// score == 70 exactly: still counts as Up (score >= 70).
	assert.Equal(t, model.PathUp, tr.advance(70, true, false, 3))
}

func TestTracker_DegradedRequiresHysteresisToReturnUp(t *testing.T) {
	tr := newTracker()
	tr.status = model.PathDegraded
	// 70 is in [30,80): stays Degraded even though it would be Up
	// directly from Up.
	assert.Equal(t, model.PathDegraded, tr.advance(70, true, false, 3))
	assert.Equal(t, model.PathUp, tr.advance(85, true, false, 3))
}

func TestTracker_DownRequiresTwoConsecutiveRecoveryWindows(t *testing.T) {
	tr := newTracker()
	tr.status = model.PathDown
	assert.Equal(t, model.PathDown, tr.advance(60, true, false, 3))
	assert.Equal(t, model.PathUp, tr.advance(55, true, false, 3))
}

func TestTracker_ConsecutiveFailuresForceDown(t *testing.T) {
	tr := newTracker()
	assert.Equal(t, model.PathUp, tr.advance(95, false, true, 3))
	assert.Equal(t, model.PathUp, tr.advance(95, false, true, 3))
	assert.Equal(t, model.PathDown, tr.advance(95, false, true, 3))
}

func TestTracker_RecoveryResetsOnDrop(t *testing.T) {
	tr := newTracker()
	tr.status = model.PathDown
	tr.advance(60, true, false, 3) // recoveryWindows=1
	assert.Equal(t, model.PathDown, tr.advance(20, true, false, 3))
	assert.Equal(t, model.PathDown, tr.advance(60, true, false, 3)) // needs 2 fresh in a row
}
