// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"net"
	"time"
)

// SyslogConfig configures forwarding of log lines to an RFC 3164 syslog
// collector, in addition to the primary Output writer.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string // udp|tcp
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns syslog forwarding disabled by default, with
// the conventional port/protocol/tag/facility applied once enabled.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "patronus",
		Facility: 1,
	}
}

// syslogWriter forwards each Write call as a single RFC 3164 datagram.
type syslogWriter struct {
	conn     net.Conn
	tag      string
	facility int
}

// NewSyslogWriter dials the configured syslog collector and returns a
// writer suitable for Logger.WithSyslog.
func NewSyslogWriter(cfg SyslogConfig) (*syslogWriter, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("logging: syslog host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "patronus"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := net.DialTimeout(cfg.Protocol, addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("logging: dial syslog collector: %w", err)
	}

	return &syslogWriter{conn: conn, tag: cfg.Tag, facility: cfg.Facility}, nil
}

func (w *syslogWriter) Write(p []byte) (int, error) {
	pri := w.facility*8 + 6 // severity fixed at "info" (6); level is already in the payload
	msg := fmt.Sprintf("<%d>%s %s: %s", pri, time.Now().Format(time.Stamp), w.tag, p)
	if _, err := w.conn.Write([]byte(msg)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *syslogWriter) Close() error {
	return w.conn.Close()
}
