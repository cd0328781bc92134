package main

import (
	"testing"
	"time"
)

func validConfig() *appConfig {
	return &appConfig{
		routingPath:  "routing.yaml",
		filterPath:   "filter.yaml",
		loopScore:    20,
		tickInterval: time.Millisecond,
		qOutCap:      1024,
		serialReadTO: 50 * time.Millisecond,
		listenAddr:   ":20000",
		handshakeTO:  3 * time.Second,
		clientReadTO: 60 * time.Second,
		hubBuffer:    512,
		hubPolicy:    "drop",
		logFormat:    "text",
		logLevel:     "info",
	}
}

func TestConfigValidate_OK(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*appConfig)
	}{
		{"bad log format", func(c *appConfig) { c.logFormat = "xml" }},
		{"bad log level", func(c *appConfig) { c.logLevel = "loud" }},
		{"bad hub policy", func(c *appConfig) { c.hubPolicy = "queue" }},
		{"zero loop score", func(c *appConfig) { c.loopScore = 0 }},
		{"zero tick interval", func(c *appConfig) { c.tickInterval = 0 }},
		{"negative queue cap", func(c *appConfig) { c.qOutCap = -1 }},
		{"zero hub buffer", func(c *appConfig) { c.hubBuffer = 0 }},
		{"negative max clients", func(c *appConfig) { c.maxClients = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			if err := c.validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseDeviceSpec(t *testing.T) {
	cases := []struct {
		in      string
		want    deviceSpec
		wantErr bool
	}{
		{in: "loopback:loop0", want: deviceSpec{kind: "loopback", name: "loop0"}},
		{in: "socketcan:can0", want: deviceSpec{kind: "socketcan", name: "can0", target: "can0"}},
		{in: "socketcan:front:vcan0", want: deviceSpec{kind: "socketcan", name: "front", target: "vcan0"}},
		{in: "serial:uart0:/dev/ttyUSB0", want: deviceSpec{kind: "serial", name: "uart0", target: "/dev/ttyUSB0", baud: 115200}},
		{in: "serial:uart0:/dev/ttyUSB0:230400", want: deviceSpec{kind: "serial", name: "uart0", target: "/dev/ttyUSB0", baud: 230400}},
		{in: "serial:uart0", wantErr: true},
		{in: "serial:uart0:/dev/ttyUSB0:fast", wantErr: true},
		{in: "loopback", wantErr: true},
		{in: "hologram:h0", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseDeviceSpec(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseDeviceSpec(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDeviceSpec(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseDeviceSpec(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
