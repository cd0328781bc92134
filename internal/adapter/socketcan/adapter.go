//go:build linux

// Package socketcan adapts a raw AF_CAN socket (internal/socketcan)
// into a gwdevice.Device, binding one named SocketCAN interface into
// the gateway's device pool.
package socketcan

import (
	"context"

	"github.com/kstaniek/xcan-gateway/internal/gwdevice"
	"github.com/kstaniek/xcan-gateway/internal/logging"
	"github.com/kstaniek/xcan-gateway/internal/metrics"
	"github.com/kstaniek/xcan-gateway/internal/socketcan"
	"github.com/kstaniek/xcan-gateway/internal/stackerr"
	"github.com/kstaniek/xcan-gateway/internal/transport"
)

// DefaultIngestBuffer bounds the channel the background reader feeds
// and Poll drains; it absorbs bursts between ticks the way a hardware
// FIFO would.
const DefaultIngestBuffer = 256

// DefaultTxBuffer sizes the async transmit queue. Send must stay
// non-blocking: a full buffer yields WouldBlock, not a stall.
const DefaultTxBuffer = 256

// Device registers one SocketCAN interface as a gwdevice.Device. A
// background goroutine performs the blocking socket reads and hands
// decoded frames to Poll via a channel, so Poll itself never blocks.
type Device struct {
	gwdevice.Base
	dev    socketcan.Dev
	tx     *socketcan.TXWriter
	ingest chan transport.WireFrame
	cancel context.CancelFunc
}

// Open binds iface and returns a registered-ready Device; the caller
// still must Pool.Register it and start polling via the scheduler.
func Open(ctx context.Context, id uint8, name, iface string, qInCap, qOutCap int) (*Device, error) {
	dev, err := socketcan.Open(iface)
	if err != nil {
		return nil, err
	}
	dctx, cancel := context.WithCancel(ctx)
	d := &Device{
		Base:   gwdevice.NewBase(id, name, qInCap, qOutCap),
		dev:    dev,
		tx:     socketcan.NewTXWriter(dctx, dev, DefaultTxBuffer),
		ingest: make(chan transport.WireFrame, DefaultIngestBuffer),
		cancel: cancel,
	}
	go d.readLoop(dctx)
	return d, nil
}

// readLoop performs the blocking socket reads off the scheduler
// goroutine and hands each frame to the ingest channel for Poll to
// pick up without blocking.
func (d *Device) readLoop(ctx context.Context) {
	l := logging.L().With("adapter", "socketcan", "device", d.Name())
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		var fr transport.WireFrame
		if err := d.dev.ReadFrame(&fr); err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncError(metrics.ErrSocketCANRead)
			l.Warn("socketcan_read_error", "error", err)
			continue
		}
		metrics.IncSocketCANRx()
		select {
		case d.ingest <- fr:
		default:
			metrics.IncError(metrics.ErrSocketCANOver)
		}
	}
}

// Poll drains up to loopScore frames the background reader has queued.
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

// Send queues fr for asynchronous transmission; a full TX buffer maps
// to WouldBlock so the scheduler retries next tick instead of
// blocking.
func (d *Device) Send(id uint32, flags uint8, data []byte) gwdevice.SendResult {
	var fr transport.WireFrame
	fr.ID = id
	fr.Flags = flags
	fr.Len = uint8(len(data))
	copy(fr.Data[:], data)
	if err := d.tx.SendFrame(fr); err != nil {
		if err == socketcan.ErrTxOverflow {
			return gwdevice.SendWouldBlock
		}
		logging.L().Warn("socketcan_send_error", "device", d.Name(),
			"error", stackerr.Wrap(stackerr.CategoryDeviceError, err))
		return gwdevice.SendError
	}
	return gwdevice.SendOK
}

func (d *Device) LinkState() bool { return d.dev.LinkState() }

// Destroy stops the background reader, the TX worker, and closes the
// socket, unregistering the device's resources symmetrically with Open.
func (d *Device) Destroy() {
	d.cancel()
	d.tx.Close()
	_ = d.dev.Close()
}

var _ gwdevice.Device = (*Device)(nil)
