package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/xcan-gateway/internal/adapter/loopback"
	serialadapter "github.com/kstaniek/xcan-gateway/internal/adapter/serial"
	socketcanadapter "github.com/kstaniek/xcan-gateway/internal/adapter/socketcan"
	"github.com/kstaniek/xcan-gateway/internal/gwconfig"
	"github.com/kstaniek/xcan-gateway/internal/gwdevice"
	"github.com/kstaniek/xcan-gateway/internal/hub"
	"github.com/kstaniek/xcan-gateway/internal/metrics"
	"github.com/kstaniek/xcan-gateway/internal/monitor"
	"github.com/kstaniek/xcan-gateway/internal/server"
	"github.com/kstaniek/xcan-gateway/internal/stack"
)

// gatewayCounters forwards the core's per-drop observability hooks to
// the process-wide Prometheus registry.
type gatewayCounters struct{}

func (gatewayCounters) IncRouted()      { metrics.IncRouted() }
func (gatewayCounters) IncFiltered()    { metrics.IncFiltered() }
func (gatewayCounters) IncUnrouted()    { metrics.IncUnrouted() }
func (gatewayCounters) IncDeviceDown()  { metrics.IncDeviceDown() }
func (gatewayCounters) IncEgressFull()  { metrics.IncEgressFull() }
func (gatewayCounters) IncOutOfMemory() { metrics.IncOutOfMemory() }
func (gatewayCounters) IncDeviceError() { metrics.IncDeviceError() }
func (gatewayCounters) IncAdmitDrop()   { metrics.IncAdmitDrop() }
func (gatewayCounters) IncTick()        { metrics.IncTick() }

// gateway owns one gateway-core instance plus the host-side plumbing
// around it: the device pool filled from config or shell commands, the
// optional monitor interface, and the tick loop driving the scheduler.
type gateway struct {
	cfg *appConfig
	l   *slog.Logger
	st  *stack.Stack
	hub *hub.Hub
	mon *monitor.Device
	ctx context.Context

	mu       sync.Mutex
	nextID   uint8
	ticking  bool
	stopTick context.CancelFunc
	tickDone chan struct{}
}

// newGateway loads the routing and filter tables and assembles an idle
// (not yet ticking) gateway core.
func newGateway(ctx context.Context, cfg *appConfig, l *slog.Logger) (*gateway, error) {
	routing, err := gwconfig.LoadRoutingTable(cfg.routingPath)
	if err != nil {
		return nil, err
	}
	filterTbl, err := gwconfig.LoadFilterTable(cfg.filterPath)
	if err != nil {
		return nil, err
	}
	g := &gateway{
		cfg: cfg,
		l:   l,
		st:  stack.New(routing, filterTbl, gatewayCounters{}),
		ctx: ctx,
	}
	g.st.Scheduler.LoopScore = cfg.loopScore
	l.Info("tables_loaded",
		"routing", cfg.routingPath, "filter", cfg.filterPath,
		"filter_ids", filterTbl.Len())
	return g, nil
}

// createDevice opens the adapter described by spec, assigns it the
// next free interface id and registers it in the pool. The pool is
// only mutated while the scheduler is stopped, so the shell must halt
// the gateway before growing the device set.
func (g *gateway) createDevice(spec deviceSpec) (gwdevice.Device, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ticking {
		return nil, fmt.Errorf("stop the gateway before creating devices")
	}
	id := g.nextID
	if int(id) >= gwdevice.MaxDevices {
		return nil, fmt.Errorf("device pool full (%d slots)", gwdevice.MaxDevices)
	}

	var (
		dev gwdevice.Device
		err error
	)
	switch spec.kind {
	case "loopback":
		dev = loopback.New(id, spec.name, g.cfg.qInCap, g.cfg.qOutCap)
	case "socketcan":
		dev, err = socketcanadapter.Open(g.ctx, id, spec.name, spec.target, g.cfg.qInCap, g.cfg.qOutCap)
	case "serial":
		dev, err = serialadapter.Open(g.ctx, id, spec.name, spec.target, spec.baud, g.cfg.serialReadTO, g.cfg.qInCap, g.cfg.qOutCap)
	default:
		err = fmt.Errorf("unknown device type %q", spec.kind)
	}
	if err != nil {
		return nil, err
	}
	if err := g.st.AddDevice(dev); err != nil {
		dev.Destroy()
		return nil, err
	}
	g.nextID++
	g.l.Info("device_created", "id", id, "name", spec.name, "type", spec.kind, "target", spec.target)
	return dev, nil
}

// startMonitor brings up the TCP monitor/inject interface as one more
// pool device, so routing table entries can name it like any physical
// interface.
func (g *gateway) startMonitor() error {
	if !g.cfg.monitorEnable {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	if int(id) >= gwdevice.MaxDevices {
		return fmt.Errorf("device pool full (%d slots)", gwdevice.MaxDevices)
	}
	g.hub = initHub(g.cfg, g.l)
	mon := monitor.New(id, "monitor", g.hub, g.cfg.qInCap, g.cfg.qOutCap,
		server.WithListenAddr(g.cfg.listenAddr),
		server.WithLogger(g.l),
		server.WithMaxClients(g.cfg.maxClients),
		server.WithHandshakeTimeout(g.cfg.handshakeTO),
		server.WithReadDeadline(g.cfg.clientReadTO),
	)
	if err := mon.Start(g.ctx); err != nil {
		return err
	}
	if err := g.st.AddDevice(mon); err != nil {
		mon.Destroy()
		return err
	}
	g.nextID++
	g.mon = mon
	g.l.Info("device_created", "id", id, "name", "monitor", "type", "monitor", "target", mon.Server().Addr())
	return nil
}

// run starts the tick loop; a second call while ticking is a no-op.
func (g *gateway) run() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ticking {
		return
	}
	ctx, cancel := context.WithCancel(g.ctx)
	done := make(chan struct{})
	g.ticking = true
	g.stopTick = cancel
	g.tickDone = done
	g.l.Info("gateway_running", "tick_interval", g.cfg.tickInterval, "loop_score", g.cfg.loopScore)
	go func() {
		defer close(done)
		t := time.NewTicker(g.cfg.tickInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				g.st.Tick()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// halt stops the tick loop and waits for the in-flight tick to finish.
// Registered devices stay up; run resumes them.
func (g *gateway) halt() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.ticking {
		return
	}
	g.stopTick()
	<-g.tickDone
	g.ticking = false
	g.l.Info("gateway_halted")
}

// isTicking reports whether the scheduler loop is currently running.
func (g *gateway) isTicking() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ticking
}

// shutdown halts the tick loop and tears down every device, monitor
// included.
func (g *gateway) shutdown() {
	g.halt()
	g.st.Destroy()
	g.l.Info("gateway_shutdown")
}
