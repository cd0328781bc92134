package serial

import (
	"bytes"
	"testing"

	"github.com/kstaniek/xcan-gateway/internal/frame"
	"github.com/kstaniek/xcan-gateway/internal/metrics"
	"github.com/kstaniek/xcan-gateway/internal/transport"
)

func TestDecodeStreamBadChecksum(t *testing.T) {
	var buf bytes.Buffer
	codec := Codec{}
	before := metrics.Snap().Malformed

	env := codec.Encode(f(1, uint8(frame.FlagExtendedID), 0xAA))
	env[len(env)-1] ^= 0xFF // corrupt checksum
	buf.Write(env)
	var got []transport.WireFrame
	if err := codec.DecodeStream(&buf, func(fr transport.WireFrame) { got = append(got, fr) }); err != nil {
		t.Fatalf("DecodeStream error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("corrupted frame decoded: %+v", got)
	}
	if after := metrics.Snap().Malformed; after <= before {
		t.Fatalf("expected malformed metric increment, before=%d after=%d", before, after)
	}
}

func TestDecodeStreamBadLength(t *testing.T) {
	var buf bytes.Buffer
	codec := Codec{}
	before := metrics.Snap().Malformed

	// Preamble followed by an impossible length byte, then a valid frame:
	// the decoder must resync and still deliver the good one.
	buf.Write([]byte{0x7E, 0xC5, 0xFE})
	buf.Write(codec.Encode(f(7, uint8(frame.FlagExtendedID), 1, 2, 3)))
	var got []transport.WireFrame
	if err := codec.DecodeStream(&buf, func(fr transport.WireFrame) { got = append(got, fr) }); err != nil {
		t.Fatalf("DecodeStream error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("expected recovery to the valid frame, got %+v", got)
	}
	if after := metrics.Snap().Malformed; after <= before {
		t.Fatalf("expected malformed metric increment, before=%d after=%d", before, after)
	}
}
