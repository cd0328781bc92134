// Package frame implements the gateway's CAN/CAN-FD frame descriptor:
// a reference-counted payload with an intrusive queue link. Shallow
// copies share the payload and bump the count; the payload is released
// when the last reference is discarded.
package frame

import "errors"

// Flag bits. These are the core's own bit assignments, not SocketCAN's
// can_id high bits; each adapter translates them to its wire format.
const (
	FlagExtendedID Flags = 1 << iota
	FlagRemoteRequest
	FlagFDFormat
	FlagBitrateSwitch
	FlagErrorStateIndicator
)

// Flags is a bitset of per-frame properties.
type Flags uint8

// MaxClassicLen and MaxFDLen bound Data for classical CAN and CAN-FD frames.
const (
	MaxClassicLen = 8
	MaxFDLen      = 64
)

// ErrOutOfMemory is returned by Alloc/Copy/DeepCopy when allocation fails.
// In Go it is returned for a size outside 0..MaxFDLen or a nil (or, for
// Copy, already freed) source frame; it
// exists so callers keep a localised-drop handling path even though
// the runtime otherwise panics on real OOM.
var ErrOutOfMemory = errors.New("frame: out of memory")

// Frame is a CAN/CAN-FD frame descriptor. Payload is reference counted:
// Copy shares it and bumps the count, DeepCopy clones it, Discard drops
// a reference and frees the payload once the count reaches zero.
//
// Next is owned by whichever Queue the frame is currently enqueued in;
// it must be nil when Copy/DeepCopy/Alloc return and when the frame is
// not enqueued. A Frame belongs to at most one queue at a time.
type Frame struct {
	ID    uint32
	Flags Flags
	Data  []byte
	Len   uint8

	// Dev is a weak back-reference to the originating interface id; it
	// is a relation, never ownership, and is not copied by DeepCopy's
	// payload semantics (it is a plain field, but the gateway sets it
	// at StackRecv time and otherwise treats it as read-only metadata).
	Dev uint8

	Next *Frame

	usage *int
}

// Alloc allocates a frame descriptor and a zero-initialised payload of
// size bytes (size must fit within MaxFDLen). usage_count starts at 1.
func Alloc(size int) (*Frame, error) {
	if size < 0 || size > MaxFDLen {
		return nil, ErrOutOfMemory
	}
	u := 1
	return &Frame{
		Data:  make([]byte, size),
		Len:   uint8(size),
		usage: &u,
	}, nil
}

// Discard decrements the usage count; when it reaches zero the payload
// and descriptor are released. Safe to call with a nil frame.
func Discard(f *Frame) {
	if f == nil || f.usage == nil {
		return
	}
	*f.usage--
	if *f.usage <= 0 {
		f.Data = nil
		f.usage = nil
	}
}

// Copy duplicates the descriptor only; the payload is shared and the
// usage count incremented. The returned frame is unlinked (Next == nil).
func Copy(f *Frame) (*Frame, error) {
	if f == nil || f.usage == nil {
		return nil, ErrOutOfMemory
	}
	*f.usage++
	g := *f
	g.Next = nil
	return &g, nil
}

// DeepCopy duplicates the descriptor and allocates a fresh payload
// initialised from f's; the new payload has its own usage count of 1.
func DeepCopy(f *Frame) (*Frame, error) {
	if f == nil {
		return nil, ErrOutOfMemory
	}
	u := 1
	g := *f
	g.Next = nil
	g.Data = make([]byte, len(f.Data))
	copy(g.Data, f.Data)
	g.usage = &u
	return &g, nil
}

// UsageCount reports the live reference count of the frame's payload,
// for tests verifying reference-count soundness. Returns 0 once the
// payload has been freed.
func UsageCount(f *Frame) int {
	if f == nil || f.usage == nil {
		return 0
	}
	return *f.usage
}
