package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/kstaniek/xcan-gateway/internal/metrics"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("xcan-gateway %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)
	metrics.InitBuildInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	g, err := newGateway(ctx, cfg, l)
	if err != nil {
		l.Error("gateway_init_error", "error", err)
		os.Exit(1)
	}
	for _, spec := range cfg.devices {
		if _, err := g.createDevice(spec); err != nil {
			l.Error("device_create_error", "name", spec.name, "error", err)
			g.shutdown()
			os.Exit(1)
		}
	}
	if err := g.startMonitor(); err != nil {
		l.Error("monitor_start_error", "error", err)
		g.shutdown()
		os.Exit(1)
	}
	metrics.SetReadinessFunc(g.isTicking)

	var metricsSrv interface{ Close() error }
	if cfg.metricsAddr != "" {
		metricsSrv = metrics.StartHTTP(cfg.metricsAddr)
	}

	if g.mon != nil {
		if port := tcpPort(g.mon.Server().Addr()); port > 0 {
			cleanup, err := startMDNS(ctx, cfg, port, len(cfg.devices))
			if err != nil {
				l.Warn("mdns_error", "error", err)
			} else {
				defer cleanup()
			}
		}
	}

	if cfg.shellEnable {
		runShell(g, os.Stdin, os.Stdout)
	} else {
		g.run()
		<-ctx.Done()
		g.shutdown()
	}

	if metricsSrv != nil {
		_ = metricsSrv.Close()
	}
	wg.Wait()
}

// tcpPort extracts the numeric port from a listener address, 0 when it
// cannot be determined.
func tcpPort(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return n
}
