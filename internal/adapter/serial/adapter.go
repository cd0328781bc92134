// Package serial adapts a UART-framed CAN link (internal/serial) into
// a gwdevice.Device: a background reader decodes the byte stream into
// frames for Poll, and an async writer drains Send without stalling
// the scheduler.
package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/kstaniek/xcan-gateway/internal/gwdevice"
	"github.com/kstaniek/xcan-gateway/internal/logging"
	"github.com/kstaniek/xcan-gateway/internal/metrics"
	"github.com/kstaniek/xcan-gateway/internal/serial"
	"github.com/kstaniek/xcan-gateway/internal/stackerr"
	"github.com/kstaniek/xcan-gateway/internal/transport"
)

const (
	// DefaultIngestBuffer bounds the channel the background reader feeds.
	DefaultIngestBuffer = 256
	// DefaultTxBuffer sizes the async transmit queue.
	DefaultTxBuffer = 256
	readBufSize     = 4096
	// reclaimThreshold is the capacity above which the RX accumulator is
	// discarded and reallocated once fully drained, bounding growth from
	// pathological noise bursts.
	reclaimThreshold = 16 * 1024
	backoffMin       = 20 * time.Millisecond
	backoffMax       = 500 * time.Millisecond
)

// sleepFn and openPort are test seams.
var sleepFn = time.Sleep
var openPort = serial.Open

// Device wires a serial port through serial.Codec into a gwdevice.Device.
// Link state tracks whether the background reader is still running;
// once the port errors out permanently the device reports down.
type Device struct {
	gwdevice.Base
	port   serial.Port
	codec  serial.Codec
	tx     *serial.TXWriter
	ingest chan transport.WireFrame
	cancel context.CancelFunc
	up     *int32
}

// Open opens path at baud and returns a registered-ready Device.
func Open(ctx context.Context, id uint8, name, path string, baud int, readTimeout time.Duration, qInCap, qOutCap int) (*Device, error) {
	port, err := openPort(path, baud, readTimeout)
	if err != nil {
		return nil, err
	}
	dctx, cancel := context.WithCancel(ctx)
	up := int32(1)
	d := &Device{
		Base:   gwdevice.NewBase(id, name, qInCap, qOutCap),
		port:   port,
		codec:  serial.Codec{},
		tx:     serial.NewTXWriter(dctx, port, serial.Codec{}, DefaultTxBuffer),
		ingest: make(chan transport.WireFrame, DefaultIngestBuffer),
		cancel: cancel,
		up:     &up,
	}
	go d.readLoop(dctx)
	return d, nil
}

func (d *Device) readLoop(ctx context.Context) {
	l := logging.L().With("adapter", "serial", "device", d.Name())
	buf := make([]byte, readBufSize)
	acc := bytes.NewBuffer(nil)
	backoff := backoffMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := d.port.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			_ = d.codec.DecodeStream(acc, func(fr transport.WireFrame) {
				select {
				case d.ingest <- fr:
				default:
					metrics.IncError(metrics.ErrSerialOverflow)
				}
			})
			if acc.Len() == 0 && cap(acc.Bytes()) > reclaimThreshold {
				acc = bytes.NewBuffer(nil)
			}
			backoff = backoffMin
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var perr *os.PathError
			if errors.As(err, &perr) {
				atomicStoreDown(d.up)
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				continue
			}
			metrics.IncError(metrics.ErrSerialRead)
			l.Warn("serial_read_error", "error", err, "backoff", backoff)
			sleepFn(backoff)
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
		}
	}
}

func atomicStoreDown(up *int32) { atomic.StoreInt32(up, 0) }

// Poll drains up to loopScore frames the background reader has decoded.
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
// to WouldBlock.
func (d *Device) Send(id uint32, flags uint8, data []byte) gwdevice.SendResult {
	var fr transport.WireFrame
	fr.ID = id
	fr.Flags = flags
	fr.Len = uint8(len(data))
	copy(fr.Data[:], data)
	if err := d.tx.SendFrame(fr); err != nil {
		if err == serial.ErrTxOverflow {
			return gwdevice.SendWouldBlock
		}
		logging.L().Warn("serial_send_error", "device", d.Name(),
			"error", stackerr.Wrap(stackerr.CategoryDeviceError, err))
		return gwdevice.SendError
	}
	return gwdevice.SendOK
}

// LinkState reports false once the background reader has hit a
// permanent port error (e.g. the device node was removed).
func (d *Device) LinkState() bool { return atomic.LoadInt32(d.up) != 0 }

// Destroy stops the background reader, the TX worker, and closes the port.
func (d *Device) Destroy() {
	d.cancel()
	d.tx.Close()
	_ = d.port.Close()
}

var _ gwdevice.Device = (*Device)(nil)
