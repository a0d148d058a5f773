// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package scorer

import "patronus.dev/core/internal/model"

// tracker holds the per-Path state needed to evaluate the §4.3
// transition table: the hysteresis counter for Down→Up recovery and
// the consecutive-failed-probe counter that can force Down from any
// status regardless of the computed score.
type tracker struct {
	status          model.PathStatus
	recoveryWindows int
	consecutiveFail int
}

func newTracker() *tracker {
	return &tracker{status: model.PathUp}
}

// advance applies one window's result to the state machine and
// returns the resulting status. windowFull is false until the ring
// has observed its first complete window of W samples, per the §4.3
// tie-break ("status remains Up until at least one full window has
// been observed unless N_fail_consecutive probes fail").
func (t *tracker) advance(score int, windowFull bool, lastSampleFailed bool, nFailConsecutive int) model.PathStatus {
	if lastSampleFailed {
		t.consecutiveFail++
	} else {
		t.consecutiveFail = 0
	}
	failForced := t.consecutiveFail >= nFailConsecutive

	switch t.status {
	case model.PathUp:
		if failForced {
			t.setDown()
			return t.status
		}
		if !windowFull {
			return t.status
		}
		switch {
		case score >= 70:
			// stays Up
		case score >= 30:
			t.status = model.PathDegraded
		default:
			t.setDown()
		}

	case model.PathDegraded:
		if failForced {
			t.setDown()
			return t.status
		}
		switch {
		case score >= 80:
			t.status = model.PathUp
		case score >= 30:
			// stays Degraded
		default:
			t.setDown()
		}

	case model.PathDown:
		if score >= 50 {
			t.recoveryWindows++
		} else {
			t.recoveryWindows = 0
		}
		if t.recoveryWindows >= 2 {
			t.status = model.PathUp
			t.recoveryWindows = 0
		}
		// Down is otherwise unchanged: a Down path never reacts to
		// consecutiveFail since it is already in the terminal state.
	}
	return t.status
}

func (t *tracker) setDown() {
	t.status = model.PathDown
	t.recoveryWindows = 0
}
