// Package serial implements the byte framing spoken to a UART CAN
// bridge: a two-byte preamble, a length byte, a flags byte, a
// big-endian CAN id, the payload and an additive checksum. The same
// envelope is used in both directions and carries classic and FD
// payloads, so DLC 0..64 all round-trip.
package serial

import (
	"bytes"
	"encoding/binary"

	"github.com/kstaniek/xcan-gateway/internal/frame"
	"github.com/kstaniek/xcan-gateway/internal/metrics"
	"github.com/kstaniek/xcan-gateway/internal/transport"
)

const (
	pre0 = 0x7E
	pre1 = 0xC5

	// envelope length byte counts flags(1) + id(4) + payload + checksum(1)
	minLn = 1 + 4 + 0 + 1
	maxLn = 1 + 4 + frame.MaxFDLen + 1
)

type Codec struct{}

// CompactBuffer reclaims consumed prefix capacity when the underlying
// buffer grows too large relative to unread bytes. It returns true if
// compaction occurred.
func CompactBuffer(b *bytes.Buffer) bool {
	data := b.Bytes()
	if len(data) < 1024 {
		return false
	}
	if cap(data) > 0 && len(data)*4 < cap(data) {
		clone := make([]byte, len(data))
		copy(clone, data)
		b.Reset()
		_, _ = b.Write(clone)
		return true
	}
	return false
}

// envelopeSum is the additive checksum over the length byte through
// the last payload byte.
func envelopeSum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// Encode wraps f in the UART envelope:
//
//	7E C5 | len | flags | id(4,BE) | payload(0..64) | checksum
//
// where len = 1 + 4 + DLC + 1 and checksum covers len..payload.
func (Codec) Encode(f transport.WireFrame) []byte {
	canID := f.ID
	if frame.Flags(f.Flags)&frame.FlagExtendedID != 0 {
		canID &= transport.CANEFFMask
	} else {
		canID &= transport.CANSFFMask
	}
	n := int(f.Len)
	out := make([]byte, 0, 3+1+4+n+1)
	out = append(out, pre0, pre1, byte(1+4+n+1), f.Flags)
	var idb [4]byte
	binary.BigEndian.PutUint32(idb[:], canID)
	out = append(out, idb[:]...)
	out = append(out, f.Data[:n]...)
	out = append(out, envelopeSum(out[2:]))
	return out
}

// DecodeStream consumes complete envelopes from in and emits each
// decoded frame via out, leaving any trailing partial envelope in the
// buffer for the next read. Garbage between envelopes is skipped one
// byte at a time until the preamble realigns; bad lengths and bad
// checksums count as malformed. It returns nil when it simply ran out
// of bytes.
func (Codec) DecodeStream(in *bytes.Buffer, out func(transport.WireFrame)) error {
	header := []byte{pre0, pre1}
	for {
		data := in.Bytes()
		_ = CompactBuffer(in)
		if len(data) < 3 { // need preamble + len
			return nil
		}

		i := bytes.Index(data, header)
		if i < 0 {
			// keep the last byte in case the next read starts with
			// the preamble's second half
			if in.Len() > 1 {
				last := data[len(data)-1]
				in.Reset()
				_ = in.WriteByte(last)
			}
			return nil
		}
		if i > 0 {
			in.Next(i)
			continue
		}

		ln := int(data[2])
		if ln < minLn || ln > maxLn {
			metrics.IncMalformed()
			in.Next(1)
			continue
		}
		req := 3 + ln // preamble(2) + len(1) + ln
		if len(data) < req {
			return nil
		}

		if envelopeSum(data[2:req-1]) != data[req-1] {
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		var f transport.WireFrame
		f.Flags = data[3]
		f.ID = binary.BigEndian.Uint32(data[4:8])
		payload := data[8 : req-1]
		f.Len = uint8(len(payload))
		copy(f.Data[:], payload)

		out(f)
		metrics.IncSerialRx()
		in.Next(req)
	}
}
