package gwdevice

import (
	"errors"

	"github.com/kstaniek/xcan-gateway/internal/frame"
	"github.com/kstaniek/xcan-gateway/internal/queue"
)

// ErrDrop is returned by Admit when the frame could not be admitted
// (allocation failure or a full ingress queue); the caller has nothing
// further to do, the frame is already discarded.
var ErrDrop = errors.New("gwdevice: admit dropped frame")

// Admit is the shared ingress admission path used by both the stack's
// external entry point and the scheduler's own device polling:
// allocate a frame, copy the payload,
// tag it with its origin device, and enqueue it on q_in. On failure
// the frame (if allocated) is discarded and ErrDrop is returned.
func Admit(d Device, canID uint32, flags uint8, data []byte, length int) error {
	f, err := frame.Alloc(length)
	if err != nil {
		return ErrDrop
	}
	f.ID = canID
	f.Flags = FlagsFromByte(flags)
	f.Dev = d.ID()
	copy(f.Data, data[:length])

	if err := d.QueueIn().Enqueue(f); err != nil {
		frame.Discard(f)
		if errors.Is(err, queue.ErrFull) {
			return ErrDrop
		}
		return ErrDrop
	}
	return nil
}

// FlagsFromByte converts the adapter-facing uint8 flags byte into the
// core's Flags bitset. The two share a representation, but the
// explicit conversion keeps adapters decoupled from frame's type.
func FlagsFromByte(b uint8) frame.Flags { return frame.Flags(b) }
