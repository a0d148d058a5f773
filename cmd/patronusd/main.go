// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command patronusd runs one Patronus control-plane process: it wires
// the Store to the Probe/Monitor, Scorer, Selector, Policy Engine,
// Mesh Manager, Flow Table, Metrics Aggregator, and Control API, then
// runs them all under one Supervisor until an OS signal, mirroring
// the teacher's daemon-start lifecycle generalized onto a single
// foreground process (no fork/PID-file management: that is left to
// the process supervisor — systemd, a container runtime — that
// launches this binary).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"patronus.dev/core/internal/audit"
	"patronus.dev/core/internal/bootstrap"
	"patronus.dev/core/internal/config"
	"patronus.dev/core/internal/controlapi"
	"patronus.dev/core/internal/flowtable"
	"patronus.dev/core/internal/logging"
	"patronus.dev/core/internal/mesh"
	"patronus.dev/core/internal/metricsagg"
	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/netpolicy"
	"patronus.dev/core/internal/probe"
	"patronus.dev/core/internal/routingloop"
	"patronus.dev/core/internal/scorer"
	"patronus.dev/core/internal/selector"
	"patronus.dev/core/internal/store"
	"patronus.dev/core/internal/supervisorx"
)

func main() {
	configPath := flag.String("config", "", "path to an HCL runtime config file (default built-in values)")
	flag.Parse()

	logger := logging.New(logging.DefaultConfig())
	defer logger.Close()

	if err := run(*configPath, logger); err != nil {
		logger.Error("patronusd: exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *logging.Logger) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	st, err := store.Open(cfg.StorePath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	auditLogger := audit.NewLogger(st, logger)

	keys, err := bootstrap.NewFileKeyStore("keys")
	if err != nil {
		return fmt.Errorf("open keystore: %w", err)
	}
	tunnel, err := mesh.NewWireGuardTunnel(keys, 25*time.Second, logger)
	if err != nil {
		return fmt.Errorf("open wireguard tunnel: %w", err)
	}
	meshManager := mesh.New(st, tunnel, cfg.TopologyTick, logger)
	meshManager.SetPolicy(model.TopologyPolicy{Kind: model.TopologyFullMesh})

	datapath := bootstrap.NewLoggingDatapath(logger)
	flowTable := flowtable.New(flowtable.Config{
		ShardCount: cfg.FlowTableShards,
		MaxEntries: cfg.FlowTableMaxEntries,
		FlushEvery: 10 * time.Second,
	}, st, datapath, logger)

	workloads := bootstrap.NewSiteWorkloadResolver(st)
	liveEngine := netpolicy.NewLiveEngine()
	admitter := netpolicy.NewAdmitter(liveEngine, workloads)

	sel := selector.New(selector.RuntimeLimits{
		StickinessHysteresis: cfg.StickinessHysteresis,
		StickinessScoreDelta: cfg.StickinessScoreDelta,
		FailoverBatchSize:    cfg.FailoverBatchSize,
	})
	loop := routingloop.New(sel, flowTable, st, workloads, admitter, logger)

	// The Monitor needs a Sink at construction and the Scorer needs the
	// Monitor (as a dropNotifier) at construction; sinkProxy breaks the
	// cycle by forwarding to whichever Sink is installed after both
	// exist.
	proxy := &sinkProxy{}
	prober := probe.NewICMPProber(cfg.SampleWindow, datapath)
	monitor := probe.New(cfg, prober, st, proxy, logger)
	scorerEngine := scorer.New(cfg, st, loop, monitor, logger, 4096)
	proxy.sink = scorerEngine

	alerts := metricsagg.NewAlertEngine(cfg.Alerts, webhookChannels(cfg), cfg.AlertCooldown, logger)
	aggregator := metricsagg.New(st, st, flowTable, flowTable, alerts, cfg.MetricsRingSize, logger)
	retention := metricsagg.NewRetention(st, cfg.RetentionHorizon, logger)

	api := controlapi.New(controlapi.Options{
		Store:    st,
		Flows:    flowTable,
		Mesh:     meshManager,
		Metrics:  aggregator,
		NetIndex: func() *netpolicy.Index { return nil },
		Audit:    auditLogger,
		Config:   cfg,
		Logger:   logger,
		Addr:     cfg.ControlAPIAddr,
	})

	sup := supervisorx.New(logger)
	sup.Register(supervisorx.Func{FuncName: "monitor", RunFunc: func(ctx context.Context) error { return monitor.Run(ctx, cfg.ProbeInterval) }})
	sup.Register(supervisorx.Func{FuncName: "scorer", RunFunc: func(ctx context.Context) error { scorerEngine.Run(ctx); return nil }})
	sup.Register(supervisorx.Func{FuncName: "mesh", RunFunc: meshManager.Run})
	sup.Register(supervisorx.Func{FuncName: "flowtable", RunFunc: func(ctx context.Context) error { return flowTable.Run(ctx, 10*time.Second) }})
	sup.Register(supervisorx.Func{FuncName: "routingloop", RunFunc: func(ctx context.Context) error { return loop.Run(ctx, cfg.SelectionTickInterval) }})
	sup.Register(supervisorx.Func{FuncName: "metrics", RunFunc: func(ctx context.Context) error { return aggregator.Run(ctx, cfg.MetricsTickInterval) }})
	sup.Register(supervisorx.Func{FuncName: "retention", RunFunc: func(ctx context.Context) error { return retention.Run(ctx, cfg.RetentionTick) }})
	sup.Register(supervisorx.Func{FuncName: "netpolicy-refresh", RunFunc: func(ctx context.Context) error {
		return refreshPolicies(ctx, st, workloads, liveEngine, cfg.TopologyTick, logger)
	}})
	sup.Register(api)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("patronusd: starting", "store", cfg.StorePath, "control_api_addr", cfg.ControlAPIAddr)
	return sup.Run(ctx)
}

type sinkProxy struct{ sink probe.Sink }

func (p *sinkProxy) Observe(e probe.Emission) {
	if p.sink != nil {
		p.sink.Observe(e)
	}
}

// refreshPolicies keeps the live NetworkPolicy admission Index current,
// rebuilding it from the Store on every tick rather than reacting to
// individual mutations, the same polling approach the Mesh Manager
// takes to the demanded topology (§4.6).
func refreshPolicies(ctx context.Context, st *store.Store, labeler netpolicy.NamespaceLabeler, live *netpolicy.LiveEngine, every time.Duration, logger *logging.Logger) error {
	rebuild := func() {
		policies, err := st.ListAllNetworkPolicies()
		if err != nil {
			logger.Error("netpolicy: failed to load policies", "error", err)
			return
		}
		live.Swap(netpolicy.Build(policies, labeler))
	}
	rebuild()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rebuild()
		}
	}
}

func webhookChannels(cfg *config.RuntimeConfig) []metricsagg.Channel {
	channels := make([]metricsagg.Channel, 0, len(cfg.AlertWebhooks))
	for _, wh := range cfg.AlertWebhooks {
		channels = append(channels, metricsagg.Channel{Name: wh.Name, URL: wh.URL})
	}
	return channels
}
