// Package loopback implements a pure-software CAN interface: a
// gwdevice.Device with no physical transport, whose Send records the
// frame and whose Inject lets a caller (in this repository, its tests)
// hand it a frame as if it had arrived off the wire.
package loopback

import (
	"github.com/kstaniek/xcan-gateway/internal/frame"
	"github.com/kstaniek/xcan-gateway/internal/gwdevice"
)

// DefaultInjectBuffer bounds the channel Inject feeds into; it mirrors
// the small buffering a real adapter would have between its own RX
// interrupt and the scheduler's next Poll.
const DefaultInjectBuffer = 64

type injected struct {
	id    uint32
	flags uint8
	data  []byte
}

// Device is a virtual CAN interface with no backing hardware. Link
// state defaults to up and can be toggled for tests exercising the
// down-destination drop path.
type Device struct {
	gwdevice.Base
	up     bool
	ingest chan injected

	// Sent records the result of every Send call, for test assertions;
	// the last frame itself is available from LastSent.
	Sent []gwdevice.SendResult
	last injected
}

// New returns an up loopback device registered under id/name with the
// given queue caps (0 = uncapped).
func New(id uint8, name string, qInCap, qOutCap int) *Device {
	return &Device{
		Base:   gwdevice.NewBase(id, name, qInCap, qOutCap),
		up:     true,
		ingest: make(chan injected, DefaultInjectBuffer),
	}
}

// SetLinkState toggles LinkState for DeviceDown scenarios.
func (d *Device) SetLinkState(up bool) { d.up = up }

func (d *Device) LinkState() bool { return d.up }

// Send records the outbound frame and always reports success; there is
// no hardware to apply back-pressure, so loopback never returns
// WouldBlock or Error.
func (d *Device) Send(id uint32, flags uint8, data []byte) gwdevice.SendResult {
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last = injected{id: id, flags: flags, data: cp}
	d.Sent = append(d.Sent, gwdevice.SendOK)
	return gwdevice.SendOK
}

// Poll drains frames queued by Inject, handing each to recv, bounded
// by loopScore.
func (d *Device) Poll(loopScore int, recv func(canID uint32, flags uint8, data []byte, length int)) int {
	for loopScore > 0 {
		select {
		case f := <-d.ingest:
			recv(f.id, f.flags, f.data, len(f.data))
			loopScore--
		default:
			return loopScore
		}
	}
	return loopScore
}

// Inject hands the device a frame as if received off its (nonexistent)
// wire; it is picked up on the device's next Poll. Returns false if the
// internal buffer is full (the frame is dropped, counted by the caller
// the same way a real adapter's overrun would be).
func (d *Device) Inject(id uint32, flags uint8, data []byte) bool {
	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case d.ingest <- injected{id: id, flags: uint8(frame.Flags(flags)), data: cp}:
		return true
	default:
		return false
	}
}

// LastSent returns the most recent frame passed to Send, for test
// assertions on payload/ID.
func (d *Device) LastSent() (id uint32, flags uint8, data []byte) {
	return d.last.id, d.last.flags, d.last.data
}

// Destroy is a no-op; loopback owns no external resource. Frames still
// on its queues are not drained or discarded.
func (d *Device) Destroy() {}

var _ gwdevice.Device = (*Device)(nil)
