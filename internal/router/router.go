// Package router implements the static CAN-ID -> destination-interface
// mapping: a linear scan of the routing table, first entry whose
// can_id matches wins, then a shallow copy of the frame is enqueued on
// every destination's egress queue.
package router

import (
	"github.com/kstaniek/xcan-gateway/internal/frame"
	"github.com/kstaniek/xcan-gateway/internal/gwdevice"
	"github.com/kstaniek/xcan-gateway/internal/queue"
)

// Entry maps one CAN ID to an ordered set of destination interface ids.
type Entry struct {
	CANID        uint32
	InterfaceIDs []uint8
}

// Table is the ordered, read-only-after-init routing table. can_ids may
// repeat only with "first match wins" semantics; the
// table does not reject duplicates, it simply never reaches past the
// first.
type Table struct {
	entries []Entry
}

// New builds a routing table from entries, in table order.
func New(entries []Entry) *Table {
	return &Table{entries: append([]Entry(nil), entries...)}
}

func (t *Table) lookup(canID uint32) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	for _, e := range t.entries {
		if e.CANID == canID {
			return e, true
		}
	}
	return Entry{}, false
}

// Lookup exposes the first-match-wins entry for canID, for callers
// (config loaders, introspection commands) that need to inspect the
// table without routing a frame.
func (t *Table) Lookup(canID uint32) (Entry, bool) { return t.lookup(canID) }

// Counters receives dispatch outcomes for observability. Implementations
// must be safe to call from the scheduler's single goroutine (no
// concurrency requirement beyond that).
type Counters interface {
	IncUnrouted()
	IncDeviceDown()
	IncEgressFull()
	IncRouted()
}

// noopCounters discards everything; used when Route is called without
// a Counters (e.g. from tests).
type noopCounters struct{}

func (noopCounters) IncUnrouted()   {}
func (noopCounters) IncDeviceDown() {}
func (noopCounters) IncEgressFull() {}
func (noopCounters) IncRouted()     {}

// SuppressLoopback, when true, skips delivery to a destination
// interface equal to the frame's originating interface. Defaults to
// false: a frame received on interface I and routed back to I is
// delivered like any other destination.
type Router struct {
	Table            *Table
	Pool             *gwdevice.Pool
	Counters         Counters
	SuppressLoopback bool
}

// NewRouter constructs a Router bound to a table and device pool.
func NewRouter(tbl *Table, pool *gwdevice.Pool, counters Counters) *Router {
	if counters == nil {
		counters = noopCounters{}
	}
	return &Router{Table: tbl, Pool: pool, Counters: counters}
}

// Route enumerates destination devices for f, delivers a shallow copy
// to each reachable one, and discards the original ingress frame. It
// is the sole owner of f from the moment it is called.
func (r *Router) Route(f *frame.Frame) {
	defer frame.Discard(f)

	entry, ok := r.Table.lookup(f.ID)
	if !ok {
		r.Counters.IncUnrouted()
		return
	}

	for _, destID := range entry.InterfaceIDs {
		if r.SuppressLoopback && destID == f.Dev {
			continue
		}
		dest := r.Pool.Get(destID)
		if dest == nil || !dest.LinkState() {
			r.Counters.IncDeviceDown()
			continue
		}
		cp, err := frame.Copy(f)
		if err != nil {
			r.Counters.IncDeviceDown()
			continue
		}
		if err := dest.QueueOut().Enqueue(cp); err != nil {
			if err == queue.ErrFull {
				r.Counters.IncEgressFull()
			}
			frame.Discard(cp)
			continue
		}
		r.Counters.IncRouted()
	}
}
