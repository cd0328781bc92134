package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := &appConfig{
		routingPath:  "routing.yaml",
		filterPath:   "filter.yaml",
		loopScore:    20,
		tickInterval: time.Millisecond,
		listenAddr:   ":20000",
		hubBuffer:    512,
		hubPolicy:    "drop",
		logFormat:    "text",
		logLevel:     "info",
	}

	os.Setenv("CAN_GATEWAY_ROUTING", "/etc/xcan/routes.yaml")
	os.Setenv("CAN_GATEWAY_LOOP_SCORE", "40")
	os.Setenv("CAN_GATEWAY_TICK_INTERVAL", "500us")
	os.Setenv("CAN_GATEWAY_DEVICES", "loopback:loop0, socketcan:can0:can0")
	os.Setenv("CAN_GATEWAY_MDNS", "true")
	t.Cleanup(func() {
		os.Unsetenv("CAN_GATEWAY_ROUTING")
		os.Unsetenv("CAN_GATEWAY_LOOP_SCORE")
		os.Unsetenv("CAN_GATEWAY_TICK_INTERVAL")
		os.Unsetenv("CAN_GATEWAY_DEVICES")
		os.Unsetenv("CAN_GATEWAY_MDNS")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.routingPath != "/etc/xcan/routes.yaml" {
		t.Fatalf("expected routing override, got %q", base.routingPath)
	}
	if base.loopScore != 40 {
		t.Fatalf("expected loop-score override, got %d", base.loopScore)
	}
	if base.tickInterval != 500*time.Microsecond {
		t.Fatalf("expected tickInterval 500us got %v", base.tickInterval)
	}
	if len(base.devices) != 2 || base.devices[0].kind != "loopback" || base.devices[1].target != "can0" {
		t.Fatalf("expected 2 devices from env, got %+v", base.devices)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := &appConfig{loopScore: 20}
	os.Setenv("CAN_GATEWAY_LOOP_SCORE", "99")
	t.Cleanup(func() { os.Unsetenv("CAN_GATEWAY_LOOP_SCORE") })
	// Simulate user passed -loop-score (so env should be ignored)
	if err := applyEnvOverrides(base, map[string]struct{}{"loop-score": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.loopScore != 20 {
		t.Fatalf("expected loopScore unchanged 20 got %d", base.loopScore)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := &appConfig{hubBuffer: 512}
	os.Setenv("CAN_GATEWAY_HUB_BUFFER", "notint")
	t.Cleanup(func() { os.Unsetenv("CAN_GATEWAY_HUB_BUFFER") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}

func TestApplyEnvOverrides_BadDeviceSpec(t *testing.T) {
	base := &appConfig{}
	os.Setenv("CAN_GATEWAY_DEVICES", "warp-drive:wd0")
	t.Cleanup(func() { os.Unsetenv("CAN_GATEWAY_DEVICES") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for unknown device type")
	}
	if len(base.devices) != 0 {
		t.Fatalf("partial device list applied: %+v", base.devices)
	}
}
