// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import "time"

// unixTime converts an integer epoch-seconds column (§6.3: "Time
// columns are integer epoch seconds (UTC)") back to a time.Time.
func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
