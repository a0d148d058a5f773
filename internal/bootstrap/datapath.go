// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bootstrap

import (
	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/model"
)

// LoggingDatapath implements flowtable.Datapath by logging every
// install/uninstall instead of programming a real dataplane. It also
// satisfies probe.BandwidthSource, reporting zero throughput absent a
// real counter source.
type LoggingDatapath struct {
	logger *logging.Logger
}

// NewLoggingDatapath creates a LoggingDatapath.
func NewLoggingDatapath(logger *logging.Logger) *LoggingDatapath {
	return &LoggingDatapath{logger: logger}
}

func (d *LoggingDatapath) InstallFlow(key model.FlowKey, pathID *int64) error {
	d.logger.Debug("datapath: install flow", "src", key.SrcIP, "dst", key.DstIP, "path_id", pathID)
	return nil
}

func (d *LoggingDatapath) UninstallFlow(key model.FlowKey) error {
	d.logger.Debug("datapath: uninstall flow", "src", key.SrcIP, "dst", key.DstIP)
	return nil
}

func (d *LoggingDatapath) BandwidthMbps(src, dst model.Endpoint) float64 {
	return 0
}
