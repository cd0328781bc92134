// Package stack assembles Pool + FilterTable + RoutingTable + Scheduler
// into one process-owned value with an init/destroy lifecycle, and
// exposes the single external entry point a device adapter's
// interrupt/poll context calls to admit a frame into the core.
package stack

import (
	"github.com/kstaniek/xcan-gateway/internal/datalink"
	"github.com/kstaniek/xcan-gateway/internal/filter"
	"github.com/kstaniek/xcan-gateway/internal/gwdevice"
	"github.com/kstaniek/xcan-gateway/internal/router"
	"github.com/kstaniek/xcan-gateway/internal/scheduler"
)

// Counters aggregates every observability hook the core components
// need; one implementation satisfies router.Counters,
// datalink.FilterCounters and scheduler.Counters and is handed to each
// sub-component.
type Counters interface {
	router.Counters
	datalink.FilterCounters
	scheduler.Counters
	IncAdmitDrop()
}

// Stack owns one gateway core instance: a device pool, a read-only
// filter and routing table, and the scheduler that ticks them. It is
// created at init and torn down at destroy; nothing about it is global.
type Stack struct {
	Pool      *gwdevice.Pool
	Filter    *filter.Table
	Routing   *router.Table
	Router    *router.Router
	Datalink  *datalink.Datalink
	Scheduler *scheduler.Scheduler
	counters  Counters
}

// New builds a Stack from a routing table and filter table, both
// supplied once at init and read-only thereafter.
func New(routing *router.Table, filterTable *filter.Table, counters Counters) *Stack {
	pool := gwdevice.NewPool()
	r := router.NewRouter(routing, pool, counters)
	dl := datalink.New(filterTable, r, counters)
	sched := scheduler.New(pool, dl, counters)
	return &Stack{
		Pool:      pool,
		Filter:    filterTable,
		Routing:   routing,
		Router:    r,
		Datalink:  dl,
		Scheduler: sched,
		counters:  counters,
	}
}

// AddDevice registers dev in the pool at its own ID.
func (s *Stack) AddDevice(dev gwdevice.Device) error {
	return s.Pool.Register(dev)
}

// StackRecv is the single entry point a device adapter's
// interrupt/poll context calls to admit one received frame into the
// core. It is safe to call concurrently with the scheduler's own Tick
// on the same device: the ingress queue's append and dequeue each run
// inside internal/queue's short critical section.
func (s *Stack) StackRecv(dev gwdevice.Device, canID uint32, flags uint8, data []byte, length int) error {
	if err := gwdevice.Admit(dev, canID, flags, data, length); err != nil {
		s.counters.IncAdmitDrop()
		return err
	}
	return nil
}

// Tick runs one scheduler pass.
func (s *Stack) Tick() { s.Scheduler.Tick() }

// Destroy tears down every registered device, in pool order.
func (s *Stack) Destroy() { s.Pool.Destroy() }
