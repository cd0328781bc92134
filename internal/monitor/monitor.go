// Package monitor exposes the gateway's TCP monitor/inject surface as
// one more gwdevice.Device in the pool. Every frame the router sends to
// this interface is broadcast to all attached TCP clients, and frames a
// client injects enter the core through the ingress queue exactly like
// a physical adapter's, so the router and scheduler need no
// special-casing for it.
package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kstaniek/xcan-gateway/internal/cnl"
	"github.com/kstaniek/xcan-gateway/internal/gwdevice"
	"github.com/kstaniek/xcan-gateway/internal/hub"
	"github.com/kstaniek/xcan-gateway/internal/logging"
	"github.com/kstaniek/xcan-gateway/internal/server"
	"github.com/kstaniek/xcan-gateway/internal/transport"
)

// DefaultInjectBuffer bounds the channel between the TCP readers and
// Poll; a burst of injected frames beyond this is dropped with
// transport.ErrTxOverflow, which the server counts in one server-wide
// total.
const DefaultInjectBuffer = 256

const shutdownTimeout = 3 * time.Second

// Device is the monitor/inject virtual CAN interface. Link state is up
// while the TCP listener is serving; with the listener down the router
// skips this destination like any other dead interface.
type Device struct {
	gwdevice.Base
	hub     *hub.Hub
	srv     *server.Server
	ingest  chan transport.WireFrame
	cancel  context.CancelFunc
	serving atomic.Bool
}

// New builds a monitor device around h. opts are passed through to the
// underlying TCP server; the hub, codec and inject path are wired here
// and must not be overridden by opts.
func New(id uint8, name string, h *hub.Hub, qInCap, qOutCap int, opts ...server.ServerOption) *Device {
	d := &Device{
		Base:   gwdevice.NewBase(id, name, qInCap, qOutCap),
		hub:    h,
		ingest: make(chan transport.WireFrame, DefaultInjectBuffer),
	}
	opts = append(opts,
		server.WithHub(h),
		server.WithCodec(&cnl.Codec{}),
		server.WithSend(d.inject),
	)
	d.srv = server.NewServer(opts...)
	return d
}

// Server exposes the underlying TCP server, for the host binary to
// read the bound address (mDNS advertisement) or watch Errors.
func (d *Device) Server() *server.Server { return d.srv }

// Start launches the TCP listener and blocks until it is accepting,
// the server fails, or ctx is cancelled.
func (d *Device) Start(ctx context.Context) error {
	sctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	go func() {
		if err := d.srv.Serve(sctx); err != nil {
			logging.L().Error("monitor_serve_error", "device", d.Name(), "error", err)
		}
		d.serving.Store(false)
	}()
	select {
	case <-d.srv.Ready():
		d.serving.Store(true)
		return nil
	case err := <-d.srv.Errors():
		cancel()
		return fmt.Errorf("monitor: %w", err)
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// inject is the server's SendFunc: a frame decoded off a client
// connection is buffered for the scheduler's next Poll.
func (d *Device) inject(fr transport.WireFrame) error {
	select {
	case d.ingest <- fr:
		return nil
	default:
		return transport.ErrTxOverflow
	}
}

// LinkState reports whether the TCP listener is serving.
func (d *Device) LinkState() bool { return d.serving.Load() }

// Send broadcasts one routed frame to every attached client. The hub
// applies its per-client backpressure policy internally, so from the
// scheduler's point of view the monitor interface never blocks and
// never fails; zero attached clients is an ordinary broadcast to
// nobody.
func (d *Device) Send(id uint32, flags uint8, data []byte) gwdevice.SendResult {
	var fr transport.WireFrame
	fr.ID = id
	fr.Flags = flags
	fr.Len = uint8(len(data))
	copy(fr.Data[:], data)
	d.hub.Broadcast(fr)
	return gwdevice.SendOK
}

// Poll drains up to loopScore injected frames into recv.
func (d *Device) Poll(loopScore int, recv func(canID uint32, flags uint8, data []byte, length int)) int {
	for loopScore > 0 {
		select {
		case fr := <-d.ingest:
			recv(fr.ID, fr.Flags, fr.Data[:fr.Len], int(fr.Len))
			loopScore--
		default:
			return loopScore
		}
	}
	return loopScore
}

// Destroy stops the listener and disconnects every client.
func (d *Device) Destroy() {
	d.serving.Store(false)
	if d.cancel != nil {
		d.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.srv.Shutdown(ctx); err != nil {
		logging.L().Warn("monitor_shutdown_error", "device", d.Name(), "error", err)
	}
}

var _ gwdevice.Device = (*Device)(nil)
