// Package gwdevice defines the polymorphic CAN interface capability
// contract every adapter must satisfy, and the fixed-capacity device
// pool mapping small integer interface ids to registered devices.
package gwdevice

import (
	"errors"
	"fmt"

	"github.com/kstaniek/xcan-gateway/internal/queue"
)

// MaxDevices bounds the device pool. Large enough for the
// monitor/inject virtual interface alongside several physical
// adapters; interface ids index a fixed array, so keep it small.
const MaxDevices = 16

// SendResult is the outcome of a Device.Send call.
type SendResult int

const (
	// SendOK means the frame was accepted for transmission.
	SendOK SendResult = iota
	// SendWouldBlock means the adapter is not ready; the caller must
	// retain the frame and retry on the next tick.
	SendWouldBlock
	// SendError means the frame cannot be sent; it is a permanent
	// failure for this frame only.
	SendError
)

func (r SendResult) String() string {
	switch r {
	case SendOK:
		return "ok"
	case SendWouldBlock:
		return "would_block"
	case SendError:
		return "error"
	default:
		return "unknown"
	}
}

// Device is the capability interface every CAN/CAN-FD interface
// adapter (physical or virtual) must implement. All operations must be
// non-blocking from the core's point of view.
type Device interface {
	// ID reports the device's pool slot, in [0, MaxDevices).
	ID() uint8
	// Name returns a short label for logs and metrics.
	Name() string
	// LinkState reports whether the interface is currently usable.
	LinkState() bool
	// Send attempts to transmit one frame. The adapter must not retain
	// data beyond the call.
	Send(id uint32, flags uint8, data []byte) SendResult
	// Poll lets the adapter pull up to loopScore frames from its
	// hardware/source, feeding each into the supplied recv callback,
	// and returns the remaining budget.
	Poll(loopScore int, recv func(canID uint32, flags uint8, data []byte, length int)) int
	// Destroy unregisters and frees all device-local resources.
	Destroy()
	// QueueIn and QueueOut are the device's owned ingress/egress FIFOs.
	QueueIn() *queue.Queue
	QueueOut() *queue.Queue
}

// ErrInvalidID is returned by Pool.Register for ids outside [0, MaxDevices).
var ErrInvalidID = errors.New("gwdevice: id out of range")

// ErrSlotTaken is returned by Pool.Register when the slot is occupied.
var ErrSlotTaken = errors.New("gwdevice: slot already registered")

// Pool is a fixed-capacity id -> Device mapping, process-wide state
// that is initialised before the first tick and torn down after the
// last one. It is mutated only at init/destroy time, on the same
// goroutine that drives Scheduler.Tick.
type Pool struct {
	slots [MaxDevices]Device
}

// NewPool returns an empty device pool.
func NewPool() *Pool { return &Pool{} }

// Register places dev at its own ID() slot.
func (p *Pool) Register(dev Device) error {
	id := dev.ID()
	if int(id) >= MaxDevices {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	if p.slots[id] != nil {
		return fmt.Errorf("%w: %d", ErrSlotTaken, id)
	}
	p.slots[id] = dev
	return nil
}

// Unregister removes the device at id, if any, without destroying it.
func (p *Pool) Unregister(id uint8) {
	if int(id) < MaxDevices {
		p.slots[id] = nil
	}
}

// Get returns the device registered at id, or nil.
func (p *Pool) Get(id uint8) Device {
	if int(id) >= MaxDevices {
		return nil
	}
	return p.slots[id]
}

// Each invokes fn for every registered device, in slot order.
func (p *Pool) Each(fn func(Device)) {
	for _, d := range p.slots {
		if d != nil {
			fn(d)
		}
	}
}

// Destroy tears down every registered device and empties the pool.
func (p *Pool) Destroy() {
	for i, d := range p.slots {
		if d != nil {
			p.slots[i] = nil
			d.Destroy()
		}
	}
}
