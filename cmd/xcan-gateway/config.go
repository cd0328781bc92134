package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// deviceSpec describes one CAN interface to bring up at startup:
// "type:name[:target[:baud]]", e.g. "socketcan:can0:can0",
// "serial:uart0:/dev/ttyUSB0:115200", "loopback:loop0". Interface ids
// are assigned in declaration order, starting at 0, matching the ids
// the routing table references.
type deviceSpec struct {
	kind   string
	name   string
	target string
	baud   int
}

func parseDeviceSpec(s string) (deviceSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return deviceSpec{}, fmt.Errorf("device %q: want type:name[:target[:baud]]", s)
	}
	spec := deviceSpec{kind: parts[0], name: parts[1]}
	if spec.name == "" {
		return deviceSpec{}, fmt.Errorf("device %q: empty name", s)
	}
	if len(parts) > 2 {
		spec.target = parts[2]
	}
	if len(parts) > 3 {
		n, err := strconv.Atoi(parts[3])
		if err != nil || n <= 0 {
			return deviceSpec{}, fmt.Errorf("device %q: bad baud %q", s, parts[3])
		}
		spec.baud = n
	}
	switch spec.kind {
	case "loopback":
	case "socketcan":
		if spec.target == "" {
			spec.target = spec.name
		}
	case "serial":
		if spec.target == "" {
			return deviceSpec{}, fmt.Errorf("device %q: serial needs a port path", s)
		}
		if spec.baud == 0 {
			spec.baud = 115200
		}
	default:
		return deviceSpec{}, fmt.Errorf("device %q: unknown type %q (use socketcan|serial|loopback)", s, spec.kind)
	}
	return spec, nil
}

// deviceList is a repeatable -device flag.
type deviceList []deviceSpec

func (d *deviceList) String() string {
	names := make([]string, 0, len(*d))
	for _, s := range *d {
		names = append(names, s.kind+":"+s.name)
	}
	return strings.Join(names, ",")
}

func (d *deviceList) Set(v string) error {
	spec, err := parseDeviceSpec(v)
	if err != nil {
		return err
	}
	*d = append(*d, spec)
	return nil
}

type appConfig struct {
	devices         deviceList
	routingPath     string
	filterPath      string
	loopScore       int
	tickInterval    time.Duration
	qInCap          int
	qOutCap         int
	serialReadTO    time.Duration
	monitorEnable   bool
	listenAddr      string
	maxClients      int
	handshakeTO     time.Duration
	clientReadTO    time.Duration
	hubBuffer       int
	hubPolicy       string
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
	shellEnable     bool
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	flag.Var(&cfg.devices, "device", "CAN interface to create (repeatable): type:name[:target[:baud]]")
	routing := flag.String("routing", "routing.yaml", "Routing table YAML path")
	filterPath := flag.String("filter", "filter.yaml", "Filter table YAML path")
	loopScore := flag.Int("loop-score", 20, "Per-tick frame budget across all interfaces")
	tickInterval := flag.Duration("tick-interval", time.Millisecond, "Scheduler tick period")
	qInCap := flag.Int("qin-cap", 0, "Per-device ingress queue cap (0 = unbounded)")
	qOutCap := flag.Int("qout-cap", 1024, "Per-device egress queue cap (0 = unbounded)")
	serialReadTO := flag.Duration("serial-read-timeout", 50*time.Millisecond, "Serial read timeout")
	monitorEnable := flag.Bool("monitor", true, "Enable the TCP monitor/inject interface")
	listen := flag.String("listen", ":20000", "Monitor TCP listen address")
	maxClients := flag.Int("max-clients", 0, "Maximum simultaneous monitor clients (0 = unlimited)")
	handshakeTO := flag.Duration("handshake-timeout", 3*time.Second, "Monitor client handshake timeout")
	clientReadTO := flag.Duration("client-read-timeout", 60*time.Second, "Monitor per-connection read deadline")
	hubBuf := flag.Int("hub-buffer", 512, "Per-client monitor buffer (frames)")
	hubPolicy := flag.String("hub-policy", "drop", "Monitor backpressure policy: drop|kick")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement of the monitor endpoint")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default xcan-gateway-<hostname>)")
	shellEnable := flag.Bool("shell", false, "Read create-device/run/stop commands from stdin instead of starting immediately")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Track which flags were explicitly set to give them precedence over env.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.routingPath = *routing
	cfg.filterPath = *filterPath
	cfg.loopScore = *loopScore
	cfg.tickInterval = *tickInterval
	cfg.qInCap = *qInCap
	cfg.qOutCap = *qOutCap
	cfg.serialReadTO = *serialReadTO
	cfg.monitorEnable = *monitorEnable
	cfg.listenAddr = *listen
	cfg.maxClients = *maxClients
	cfg.handshakeTO = *handshakeTO
	cfg.clientReadTO = *clientReadTO
	cfg.hubBuffer = *hubBuf
	cfg.hubPolicy = *hubPolicy
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName
	cfg.shellEnable = *shellEnable

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed
// configuration. It does not attempt to open devices or listeners,
// only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.hubPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid hub-policy: %s", c.hubPolicy)
	}
	if c.loopScore <= 0 {
		return fmt.Errorf("loop-score must be > 0 (got %d)", c.loopScore)
	}
	if c.tickInterval <= 0 {
		return fmt.Errorf("tick-interval must be > 0")
	}
	if c.qInCap < 0 || c.qOutCap < 0 {
		return fmt.Errorf("queue caps must be >= 0")
	}
	if c.hubBuffer <= 0 {
		return fmt.Errorf("hub-buffer must be > 0 (got %d)", c.hubBuffer)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if c.handshakeTO <= 0 {
		return fmt.Errorf("handshake-timeout must be > 0")
	}
	if c.clientReadTO <= 0 {
		return fmt.Errorf("client-read-timeout must be > 0")
	}
	if c.maxClients < 0 {
		return fmt.Errorf("max-clients must be >= 0")
	}
	return nil
}

// applyEnvOverrides maps CAN_GATEWAY_* environment variables to config
// fields unless a corresponding flag was explicitly set. Empty values
// are ignored, except CAN_GATEWAY_METRICS, where an empty value clears
// the metrics address; durations accept Go time.ParseDuration format; the
// device list accepts comma-separated specs.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["device"]; !ok {
		if v, ok := get("CAN_GATEWAY_DEVICES"); ok && v != "" {
			var list deviceList
			for _, one := range strings.Split(v, ",") {
				if err := list.Set(strings.TrimSpace(one)); err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("invalid CAN_GATEWAY_DEVICES: %w", err)
					}
					list = nil
					break
				}
			}
			if list != nil {
				c.devices = list
			}
		}
	}
	if _, ok := set["routing"]; !ok {
		if v, ok := get("CAN_GATEWAY_ROUTING"); ok && v != "" {
			c.routingPath = v
		}
	}
	if _, ok := set["filter"]; !ok {
		if v, ok := get("CAN_GATEWAY_FILTER"); ok && v != "" {
			c.filterPath = v
		}
	}
	if _, ok := set["loop-score"]; !ok {
		if v, ok := get("CAN_GATEWAY_LOOP_SCORE"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.loopScore = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CAN_GATEWAY_LOOP_SCORE: %w", err)
			}
		}
	}
	if _, ok := set["tick-interval"]; !ok {
		if v, ok := get("CAN_GATEWAY_TICK_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.tickInterval = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CAN_GATEWAY_TICK_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["listen"]; !ok {
		if v, ok := get("CAN_GATEWAY_LISTEN"); ok && v != "" {
			c.listenAddr = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("CAN_GATEWAY_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("CAN_GATEWAY_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("CAN_GATEWAY_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["hub-buffer"]; !ok {
		if v, ok := get("CAN_GATEWAY_HUB_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.hubBuffer = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CAN_GATEWAY_HUB_BUFFER: %w", err)
			}
		}
	}
	if _, ok := set["hub-policy"]; !ok {
		if v, ok := get("CAN_GATEWAY_HUB_POLICY"); ok && v != "" {
			c.hubPolicy = v
		}
	}
	if _, ok := set["max-clients"]; !ok {
		if v, ok := get("CAN_GATEWAY_MAX_CLIENTS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.maxClients = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CAN_GATEWAY_MAX_CLIENTS: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("CAN_GATEWAY_MDNS"); ok && v != "" {
			c.mdnsEnable = v == "1" || strings.EqualFold(v, "true")
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("CAN_GATEWAY_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}
