package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/xcan-gateway/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus instruments. Gateway-core drop counters sit
// beside per-adapter rx/tx and monitor-hub gauges; everything is also
// mirrored into cheap local counters for the periodic snapshot log.
var (
	SerialRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serial_rx_frames_total",
		Help: "Total CAN frames decoded off the UART CAN bridge.",
	})
	SocketCANRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socketcan_rx_frames_total",
		Help: "Total CAN frames read from raw SocketCAN sockets.",
	})
	SerialTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serial_tx_frames_total",
		Help: "Total CAN frames written to the UART CAN bridge.",
	})
	SocketCANTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socketcan_tx_frames_total",
		Help: "Total CAN frames written to raw SocketCAN sockets.",
	})
	TCPRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_rx_frames_total",
		Help: "Total CAN frames injected by monitor TCP clients.",
	})
	TCPTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_tx_frames_total",
		Help: "Total CAN frames broadcast to monitor TCP clients.",
	})
	HubDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_frames_total",
		Help: "Total broadcast frames dropped on slow monitor clients.",
	})
	HubKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_kicked_clients_total",
		Help: "Total monitor clients disconnected by the kick backpressure policy.",
	})
	HubRejectedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_rejected_clients_total",
		Help: "Total monitor connection attempts rejected (e.g., max-clients).",
	})
	HubActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_active_clients",
		Help: "Current number of attached monitor clients.",
	})
	HubBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_broadcast_fanout",
		Help: "Monitor clients targeted in the most recent broadcast.",
	})
	HubQueueDepthMax = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_queue_depth_max",
		Help: "Max queued frames across monitor clients in the last sample.",
	})
	HubQueueDepthAvg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_queue_depth_avg",
		Help: "Approximate average queued frames per monitor client in last sample.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total malformed wire frames rejected (bad length, bad checksum, truncated).",
	})

	FramesRouted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_frames_routed_total",
		Help: "Total frames successfully enqueued onto at least one destination interface.",
	})
	FramesFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_frames_filtered_total",
		Help: "Total frames rejected by the accept-list filter before routing.",
	})
	FramesUnrouted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_frames_unrouted_total",
		Help: "Total filter-accepted frames with no routing table entry.",
	})
	DeviceDownDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_device_down_drops_total",
		Help: "Total frames dropped because the destination device link was down.",
	})
	EgressFullDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_egress_full_drops_total",
		Help: "Total frames dropped because a destination's egress queue was full.",
	})
	OutOfMemoryDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_out_of_memory_drops_total",
		Help: "Total frames dropped because the shared frame pool was exhausted.",
	})
	DeviceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_device_errors_total",
		Help: "Total device-level send errors other than would-block.",
	})
	AdmitDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_admit_drops_total",
		Help: "Total frames dropped at ingress admission (e.g. malformed or unsupported).",
	})
	TicksRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_scheduler_ticks_total",
		Help: "Total scheduler tick iterations executed.",
	})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label values, a fixed set to bound errors_total cardinality.
const (
	ErrTCPRead        = "tcp_read"
	ErrTCPWrite       = "tcp_write"
	ErrHandshake      = "handshake"
	ErrSerialWrite    = "serial_write"
	ErrSerialOverflow = "serial_tx_overflow"
	ErrSocketCANWrite = "socketcan_write"
	ErrSocketCANOver  = "socketcan_tx_overflow"
	ErrSerialRead     = "serial_read"
	ErrSocketCANRead  = "socketcan_read"
	ErrMonitorInject  = "monitor_inject"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at
// /ready on a new mux of its own, listening on addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrors of the counters above, so the snapshot logger never has
// to gather the Prometheus registry in-process.
var (
	localSerialRx    uint64
	localSerialTx    uint64
	localSocketCANTx uint64
	localSocketCANRx uint64
	localTCPRx       uint64
	localTCPTx       uint64
	localHubDrop     uint64
	localHubKick     uint64
	localHubReject   uint64
	localErrors      uint64
	localHubClients  uint64
	localFanout      uint64
	localMalformed   uint64
	localQDMax       uint64
	localQDAvg       uint64
	localRouted      uint64
	localFiltered    uint64
	localUnrouted    uint64
	localDeviceDown  uint64
	localEgressFull  uint64
	localOOM         uint64
	localDeviceErr   uint64
	localAdmitDrop   uint64
	localTicks       uint64
)

// Snapshot is a point-in-time copy of the local counter mirrors.
type Snapshot struct {
	SerialRx      uint64
	SocketCANRx   uint64
	SerialTx      uint64
	SocketCANTx   uint64
	TCPRx         uint64
	TCPTx         uint64
	HubDrops      uint64
	HubKicks      uint64
	HubRejects    uint64
	Errors        uint64 // sum across error labels
	HubClients    uint64
	Fanout        uint64
	Malformed     uint64
	QueueDepthMax uint64
	QueueDepthAvg uint64
	Routed        uint64
	Filtered      uint64
	Unrouted      uint64
	DeviceDown    uint64
	EgressFull    uint64
	OutOfMemory   uint64
	DeviceErrs    uint64
	AdmitDrops    uint64
	Ticks         uint64
}

func Snap() Snapshot {
	return Snapshot{
		SerialRx:      atomic.LoadUint64(&localSerialRx),
		SocketCANRx:   atomic.LoadUint64(&localSocketCANRx),
		SerialTx:      atomic.LoadUint64(&localSerialTx),
		SocketCANTx:   atomic.LoadUint64(&localSocketCANTx),
		TCPRx:         atomic.LoadUint64(&localTCPRx),
		TCPTx:         atomic.LoadUint64(&localTCPTx),
		HubDrops:      atomic.LoadUint64(&localHubDrop),
		HubKicks:      atomic.LoadUint64(&localHubKick),
		HubRejects:    atomic.LoadUint64(&localHubReject),
		Errors:        atomic.LoadUint64(&localErrors),
		HubClients:    atomic.LoadUint64(&localHubClients),
		Fanout:        atomic.LoadUint64(&localFanout),
		Malformed:     atomic.LoadUint64(&localMalformed),
		QueueDepthMax: atomic.LoadUint64(&localQDMax),
		QueueDepthAvg: atomic.LoadUint64(&localQDAvg),
		Routed:        atomic.LoadUint64(&localRouted),
		Filtered:      atomic.LoadUint64(&localFiltered),
		Unrouted:      atomic.LoadUint64(&localUnrouted),
		DeviceDown:    atomic.LoadUint64(&localDeviceDown),
		EgressFull:    atomic.LoadUint64(&localEgressFull),
		OutOfMemory:   atomic.LoadUint64(&localOOM),
		DeviceErrs:    atomic.LoadUint64(&localDeviceErr),
		AdmitDrops:    atomic.LoadUint64(&localAdmitDrop),
		Ticks:         atomic.LoadUint64(&localTicks),
	}
}

// IncRouted increments the count of frames successfully enqueued onto at
// least one destination interface.
func IncRouted() {
	FramesRouted.Inc()
	atomic.AddUint64(&localRouted, 1)
}

// IncFiltered increments the count of frames rejected by the accept-list filter.
func IncFiltered() {
	FramesFiltered.Inc()
	atomic.AddUint64(&localFiltered, 1)
}

// IncUnrouted increments the count of filter-accepted frames with no routing entry.
func IncUnrouted() {
	FramesUnrouted.Inc()
	atomic.AddUint64(&localUnrouted, 1)
}

// IncDeviceDown increments the count of frames dropped for a down destination link.
func IncDeviceDown() {
	DeviceDownDrops.Inc()
	atomic.AddUint64(&localDeviceDown, 1)
}

// IncEgressFull increments the count of frames dropped due to a full egress queue.
func IncEgressFull() {
	EgressFullDrops.Inc()
	atomic.AddUint64(&localEgressFull, 1)
}

// IncOutOfMemory increments the count of frames dropped due to frame pool exhaustion.
func IncOutOfMemory() {
	OutOfMemoryDrops.Inc()
	atomic.AddUint64(&localOOM, 1)
}

// IncDeviceError increments the count of device send errors other than would-block.
func IncDeviceError() {
	DeviceErrors.Inc()
	atomic.AddUint64(&localDeviceErr, 1)
}

// IncAdmitDrop increments the count of frames dropped at ingress admission.
func IncAdmitDrop() {
	AdmitDrops.Inc()
	atomic.AddUint64(&localAdmitDrop, 1)
}

// IncTick increments the scheduler tick counter.
func IncTick() {
	TicksRun.Inc()
	atomic.AddUint64(&localTicks, 1)
}

// IncSerialRx counts one frame decoded off the UART CAN bridge.
func IncSerialRx() {
	SerialRxFrames.Inc()
	atomic.AddUint64(&localSerialRx, 1)
}

// IncSocketCANRx increments SocketCAN receive counters.
func IncSocketCANRx() {
	SocketCANRxFrames.Inc()
	atomic.AddUint64(&localSocketCANRx, 1)
}

func IncSerialTx() {
	SerialTxFrames.Inc()
	atomic.AddUint64(&localSerialTx, 1)
}

// IncSocketCANTx increments SocketCAN transmit counters.
func IncSocketCANTx() {
	SocketCANTxFrames.Inc()
	atomic.AddUint64(&localSocketCANTx, 1)
}

func IncTCPRx() {
	TCPRxFrames.Inc()
	atomic.AddUint64(&localTCPRx, 1)
}

func AddTCPTx(n int) {
	TCPTxFrames.Add(float64(n))
	atomic.AddUint64(&localTCPTx, uint64(n))
}

func IncHubDrop() {
	HubDroppedFrames.Inc()
	atomic.AddUint64(&localHubDrop, 1)
}

func IncHubKick() {
	HubKickedClients.Inc()
	atomic.AddUint64(&localHubKick, 1)
}

func IncHubReject() {
	HubRejectedClients.Inc()
	atomic.AddUint64(&localHubReject, 1)
}

func SetHubClients(n int) {
	HubActiveClients.Set(float64(n))
	atomic.StoreUint64(&localHubClients, uint64(n))
}

func SetBroadcastFanout(n int) {
	HubBroadcastFanout.Set(float64(n))
	atomic.StoreUint64(&localFanout, uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

// SetQueueDepth records a snapshot of max and avg queue depth.
func SetQueueDepth(max, avg int) {
	HubQueueDepthMax.Set(float64(max))
	HubQueueDepthAvg.Set(float64(avg))
	atomic.StoreUint64(&localQDMax, uint64(max))
	atomic.StoreUint64(&localQDAvg, uint64(avg))
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common error label series so first error does not log a registration latency.
	for _, lbl := range []string{
		ErrTCPRead, ErrTCPWrite, ErrHandshake,
		ErrSerialWrite, ErrSerialOverflow, ErrSerialRead,
		ErrSocketCANWrite, ErrSocketCANOver, ErrSocketCANRead,
		ErrMonitorInject,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
