// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metricsagg implements the Metrics Aggregator of §4.8: a
// fixed-tick collector of system and Path metrics, an in-memory ring
// of recent snapshots, threshold alerting, and retention cleanup.
package metricsagg

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// cpuTimes is one sample of the aggregate /proc/stat "cpu" line.
type cpuTimes struct {
	idle, total uint64
}

// readCPUTimes parses /proc/stat's first line, ported from the
// teacher's collectSystemStats'/proc parsing style (bufio.Scanner over
// os.Open, strings.Fields, strconv). Unlike the teacher's
// load-average-only snapshot, this computes true busy/idle deltas so
// CPU usage can be measured as a 0..100 percentage across cores.
func readCPUTimes() (cpuTimes, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return cpuTimes{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return cpuTimes{}, scanner.Err()
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 5 || fields[0] != "cpu" {
		return cpuTimes{}, nil
	}

	var total uint64
	var idle uint64
	for i, f := range fields[1:] {
		v, _ := strconv.ParseUint(f, 10, 64)
		total += v
		if i == 3 { // idle field
			idle = v
		}
	}
	return cpuTimes{idle: idle, total: total}, nil
}

// cpuUsagePct computes 0..100 CPU busy percentage between two
// /proc/stat samples, handling a counter reset or a zero-width window
// the same defensive way the teacher's calculateRate does.
func cpuUsagePct(prev, cur cpuTimes) float64 {
	totalDelta := int64(cur.total) - int64(prev.total)
	idleDelta := int64(cur.idle) - int64(prev.idle)
	if totalDelta <= 0 {
		return 0
	}
	busy := totalDelta - idleDelta
	if busy < 0 {
		busy = 0
	}
	return clampPct(float64(busy) / float64(totalDelta) * 100)
}

// memoryUsagePct parses /proc/meminfo the same way the teacher's
// collectSystemStats does (MemTotal/MemAvailable, KB rows), returning
// 0..100 percent used.
func memoryUsagePct() (float64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var total, available uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		value, _ := strconv.ParseUint(fields[1], 10, 64)
		switch {
		case strings.HasPrefix(fields[0], "MemTotal:"):
			total = value
		case strings.HasPrefix(fields[0], "MemAvailable:"):
			available = value
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	used := total - available
	return clampPct(float64(used) / float64(total) * 100), nil
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
