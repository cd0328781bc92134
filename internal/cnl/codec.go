package cnl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/kstaniek/xcan-gateway/internal/metrics"
	"github.com/kstaniek/xcan-gateway/internal/transport"
)

// Codec encodes/decodes cannelloni-derived frames over the monitor TCP
// link. Stateless and safe for concurrent use.
//
// Wire format per frame, extended from the classic cannelloni layout to
// carry CAN-FD payloads and flags: 4-byte BE CAN ID, 1-byte flags,
// 1-byte length (0..64), payload.
type Codec struct{}

// ErrInvalidLength is returned when a frame length is outside 0..64.
var ErrInvalidLength = errors.New("cannelloni: invalid length")

// ErrTruncatedFrame is returned when the underlying reader ends mid-frame.
var ErrTruncatedFrame = errors.New("cannelloni: truncated frame")

// Encode packs frames into a single packet.
func (c *Codec) Encode(frames []transport.WireFrame) []byte {
	if len(frames) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Grow(len(frames) * (4 + 1 + 1 + 8))
	_, _ = c.EncodeTo(&buf, frames)
	return buf.Bytes()
}

// EncodeTo writes the wire representation of frames to w and returns bytes written.
func (c *Codec) EncodeTo(w io.Writer, frames []transport.WireFrame) (int, error) {
	var total int
	for _, f := range frames {
		var hdr [6]byte
		binary.BigEndian.PutUint32(hdr[0:4], f.ID)
		hdr[4] = f.Flags
		hdr[5] = f.Len
		n, err := w.Write(hdr[:])
		total += n
		if err != nil {
			return total, fmt.Errorf("cannelloni encode header: %w", err)
		}
		if f.Len > 0 {
			n, err = w.Write(f.Data[:f.Len])
			total += n
			if err != nil {
				return total, fmt.Errorf("cannelloni encode data: %w", err)
			}
		}
	}
	return total, nil
}

// Decode reads exactly one frame from r.
// It returns io.EOF if called at a clean frame boundary and no more data is available.
func (c *Codec) Decode(r io.Reader) (transport.WireFrame, error) {
	var f transport.WireFrame
	var idb [4]byte
	if _, err := io.ReadFull(r, idb[:]); err != nil {
		return f, err
	}
	f.ID = binary.BigEndian.Uint32(idb[:])
	var hdr [2]byte
	n, err := r.Read(hdr[:1])
	if err != nil {
		return f, err
	}
	if n == 0 {
		return f, io.EOF
	}
	if _, err := io.ReadFull(r, hdr[1:]); err != nil {
		return f, err
	}
	f.Flags = hdr[0]
	ln := int(hdr[1])
	if ln > len(f.Data) {
		metrics.IncMalformed()
		return f, fmt.Errorf("cannelloni decode: %w (%d)", ErrInvalidLength, ln)
	}
	f.Len = uint8(ln)
	if ln > 0 {
		if _, err := io.ReadFull(r, f.Data[:ln]); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				metrics.IncMalformed()
				return f, fmt.Errorf("cannelloni decode payload: %w", ErrTruncatedFrame)
			}
			metrics.IncMalformed()
			return f, fmt.Errorf("cannelloni decode payload: %w", err)
		}
	}
	return f, nil
}

// DecodeN decodes up to max frames (if max>0) or until EOF (if max<=0) invoking onFrame for each.
func (c *Codec) DecodeN(r io.Reader, max int, onFrame func(transport.WireFrame)) (int, error) {
	var n int
	for max <= 0 || n < max {
		fr, err := c.Decode(r)
		if err != nil {
			return n, err
		}
		onFrame(fr)
		n++
	}
	return n, nil
}

// DecodeStream decodes a single frame from r and hands it to onFrame.
func (c *Codec) DecodeStream(r io.Reader, onFrame func(transport.WireFrame)) error {
	fr, err := c.Decode(r)
	if err != nil {
		return err
	}
	onFrame(fr)
	return nil
}
