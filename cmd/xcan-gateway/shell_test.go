package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func testGateway(t *testing.T) *gateway {
	t.Helper()
	cfg := validConfig()
	cfg.routingPath = ""
	cfg.filterPath = ""
	cfg.monitorEnable = false
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	g, err := newGateway(context.Background(), cfg, l)
	if err != nil {
		t.Fatalf("newGateway: %v", err)
	}
	return g
}

func TestShellCreateRunStop(t *testing.T) {
	g := testGateway(t)
	in := strings.NewReader("create-device loop0 loopback\ncreate-device loop1 loopback\nrun\nstop\n")
	var out bytes.Buffer
	runShell(g, in, &out)

	// stop tears the pool down, but the id counter witnesses both
	// create-device commands having registered a device.
	if g.nextID != 2 {
		t.Fatalf("nextID = %d, want 2 devices created", g.nextID)
	}
	if g.isTicking() {
		t.Fatalf("gateway still ticking after stop")
	}
	for i, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line != "ok" {
			t.Fatalf("line %d = %q, want ok", i, line)
		}
	}
}

func TestShellRejectsUnknownCommand(t *testing.T) {
	g := testGateway(t)
	var out bytes.Buffer
	runShell(g, strings.NewReader("self-destruct\nstop\n"), &out)
	if !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("missing diagnostic, got %q", out.String())
	}
}

func TestShellCreateDeviceBadArgs(t *testing.T) {
	g := testGateway(t)
	var out bytes.Buffer
	runShell(g, strings.NewReader("create-device loop0\nstop\n"), &out)
	if !strings.Contains(out.String(), "usage:") {
		t.Fatalf("missing usage diagnostic, got %q", out.String())
	}
}

func TestGatewayRunIsIdempotentAndHaltable(t *testing.T) {
	g := testGateway(t)
	if _, err := g.createDevice(deviceSpec{kind: "loopback", name: "loop0"}); err != nil {
		t.Fatalf("createDevice: %v", err)
	}
	g.run()
	g.run() // second call must not spawn a second loop
	if !g.isTicking() {
		t.Fatalf("not ticking after run")
	}
	time.Sleep(5 * time.Millisecond)
	g.halt()
	if g.isTicking() {
		t.Fatalf("still ticking after halt")
	}
	g.shutdown()
}
