package monitor

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/kstaniek/xcan-gateway/internal/cnl"
	"github.com/kstaniek/xcan-gateway/internal/gwdevice"
	"github.com/kstaniek/xcan-gateway/internal/hub"
	"github.com/kstaniek/xcan-gateway/internal/server"
)

func startMonitor(t *testing.T, ctx context.Context) *Device {
	t.Helper()
	d := New(5, "mon0", hub.New(), 0, 0,
		server.WithListenAddr("127.0.0.1:0"),
		server.WithHandshakeTimeout(2*time.Second),
		server.WithFlushInterval(time.Millisecond),
	)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Destroy)
	return d
}

func dialAndHandshake(t *testing.T, ctx context.Context, addr string) net.Conn {
	t.Helper()
	dl := net.Dialer{Timeout: time.Second}
	c, err := dl.DialContext(ctx, "tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if _, err := c.Write([]byte(cnl.Hello)); err != nil {
		t.Fatalf("write magic: %v", err)
	}
	buf := make([]byte, len(cnl.Hello))
	if _, err := io.ReadFull(c, buf); err != nil {
		t.Fatalf("read magic: %v", err)
	}
	if string(buf) != cnl.Hello {
		t.Fatalf("unexpected handshake magic %q", string(buf))
	}
	return c
}

func waitForClients(t *testing.T, d *Device, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.hub.Count() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients", n)
}

func TestLinkStateFollowsListener(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := New(5, "mon0", hub.New(), 0, 0, server.WithListenAddr("127.0.0.1:0"))
	if d.LinkState() {
		t.Fatalf("link up before Start")
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.LinkState() {
		t.Fatalf("link down after Start")
	}
	d.Destroy()
	if d.LinkState() {
		t.Fatalf("link up after Destroy")
	}
}

func TestInjectedFrameReachesPoll(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := startMonitor(t, ctx)
	conn := dialAndHandshake(t, ctx, d.Server().Addr())

	var buf bytes.Buffer
	var idb [4]byte
	binary.BigEndian.PutUint32(idb[:], 0x2A0)
	buf.Write(idb[:])
	buf.WriteByte(0) // flags
	buf.WriteByte(2) // len
	buf.Write([]byte{0xAA, 0xBB})
	if _, err := conn.Write(buf.Bytes()); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	type got struct {
		id   uint32
		data []byte
	}
	deadline := time.Now().Add(2 * time.Second)
	var frames []got
	for time.Now().Before(deadline) && len(frames) == 0 {
		d.Poll(10, func(canID uint32, flags uint8, data []byte, length int) {
			frames = append(frames, got{id: canID, data: append([]byte(nil), data[:length]...)})
		})
		time.Sleep(time.Millisecond)
	}
	if len(frames) != 1 {
		t.Fatalf("Poll yielded %d frames, want 1", len(frames))
	}
	if frames[0].id != 0x2A0 || !bytes.Equal(frames[0].data, []byte{0xAA, 0xBB}) {
		t.Fatalf("unexpected frame %+v", frames[0])
	}
}

func TestSendBroadcastsToClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := startMonitor(t, ctx)
	conn := dialAndHandshake(t, ctx, d.Server().Addr())

	// The server registers the client with the hub just after the
	// handshake bytes land; give it a moment before broadcasting.
	waitForClients(t, d, 1)
	if r := d.Send(0x101, 0, []byte{1, 2, 3}); r != gwdevice.SendOK {
		t.Fatalf("Send = %v, want ok", r)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	dec := &cnl.Codec{}
	fr, err := dec.Decode(conn)
	if err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	if fr.ID != 0x101 || fr.Len != 3 || !bytes.Equal(fr.Data[:3], []byte{1, 2, 3}) {
		t.Fatalf("unexpected broadcast frame %+v", fr)
	}
}

func TestSendWithoutClients(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := startMonitor(t, ctx)
	if r := d.Send(0x7FF, 0, nil); r != gwdevice.SendOK {
		t.Fatalf("Send with zero clients = %v, want ok", r)
	}
}
