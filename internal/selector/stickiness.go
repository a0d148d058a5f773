// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package selector

import "time"

// ShouldReassign implements the §4.4 stickiness rule: a Flow keeps its
// current Path unless (a) the current Path has dropped out of the
// admissible set (the caller detects this and never calls
// ShouldReassign — it goes straight to Select), or (b) the Flow has
// been idle for at least StickinessHysteresis and a candidate scoring
// at least currentScore+StickinessScoreDelta exists.
func (sel *Selector) ShouldReassign(lastActive time.Time, now time.Time, currentScore int, candidates []Candidate) bool {
	if now.Sub(lastActive) < sel.cfg.StickinessHysteresis {
		return false
	}
	threshold := currentScore + sel.cfg.StickinessScoreDelta
	for _, c := range candidates {
		if c.HasData && c.Latest.Score >= threshold {
			return true
		}
	}
	return false
}
