// Package transport holds the wire-level frame representation and the
// codec/sink interfaces shared by every adapter and the TCP monitor,
// plus the reusable asynchronous transmit fan-in (AsyncTx).
package transport

import (
	"errors"
	"io"
)

// WireFrame is the on-the-wire/over-channel representation of one CAN
// or CAN-FD frame: a plain value (no refcounting, no queue link) safe
// to copy across goroutines and channels. Adapters convert to/from
// internal/frame.Frame at the gwdevice.Device boundary.
type WireFrame struct {
	ID    uint32
	Flags uint8
	Len   uint8
	Data  [64]byte
}

// ID masks for the standard (11-bit) and extended (29-bit) CAN
// identifier spaces, mirroring SocketCAN's CAN_SFF_MASK/CAN_EFF_MASK.
const (
	CANSFFMask uint32 = 0x000007FF
	CANEFFMask uint32 = 0x1FFFFFFF
)

// ErrTxOverflow is returned by a FrameSink when its outbound buffer is
// full; callers classify it via errors.Is to count it as back-pressure
// rather than a hard device error.
var ErrTxOverflow = errors.New("transport: tx overflow")

// FrameDecoder decodes a single frame from a stream.
type FrameDecoder interface {
	Decode(r io.Reader) (WireFrame, error)
}

// MultiFrameDecoder optionally drains multiple frames from a stream.
type MultiFrameDecoder interface {
	DecodeN(r io.Reader, max int, onFrame func(WireFrame)) (int, error)
}

// FrameBatchEncoder can encode batches efficiently (either to bytes or directly to writer).
type FrameBatchEncoder interface {
	Encode([]WireFrame) []byte
	EncodeTo(w io.Writer, frames []WireFrame) (int, error)
}

// FrameSink is a generic frame transmission target.
type FrameSink interface {
	SendFrame(WireFrame) error
}
