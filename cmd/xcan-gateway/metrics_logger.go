package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/xcan-gateway/internal/metrics"
)

// startMetricsLogger periodically logs the local counter snapshot for
// deployments without a Prometheus scraper.
func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"ticks", snap.Ticks,
					"routed", snap.Routed,
					"filtered", snap.Filtered,
					"unrouted", snap.Unrouted,
					"device_down", snap.DeviceDown,
					"egress_full", snap.EgressFull,
					"device_errors", snap.DeviceErrs,
					"admit_drops", snap.AdmitDrops,
					"serial_rx", snap.SerialRx,
					"socketcan_rx", snap.SocketCANRx,
					"tcp_rx", snap.TCPRx,
					"tcp_tx", snap.TCPTx,
					"hub_drops", snap.HubDrops,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
