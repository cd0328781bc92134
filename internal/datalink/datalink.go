// Package datalink is the thin glue between ingress and routing:
// every admitted frame passes the filter first, then the router takes
// ownership for dispatch and disposal.
package datalink

import (
	"github.com/kstaniek/xcan-gateway/internal/filter"
	"github.com/kstaniek/xcan-gateway/internal/frame"
	"github.com/kstaniek/xcan-gateway/internal/router"
)

// FilterCounters receives the one outcome datalink itself is
// responsible for counting.
type FilterCounters interface {
	IncFiltered()
}

type noopFilterCounters struct{}

func (noopFilterCounters) IncFiltered() {}

// Datalink glues Filter and Router: reject frames the filter table does
// not list, hand everything else to the router, which from that point
// owns dispatch and disposal.
type Datalink struct {
	Filter   *filter.Table
	Router   *router.Router
	Counters FilterCounters
}

// New builds a Datalink bound to a filter table and router.
func New(f *filter.Table, r *router.Router, counters FilterCounters) *Datalink {
	if counters == nil {
		counters = noopFilterCounters{}
	}
	return &Datalink{Filter: f, Router: r, Counters: counters}
}

// Receive runs the filter first; on reject, discard and return. On
// accept, the router takes ownership of f.
func (d *Datalink) Receive(f *frame.Frame) {
	if !d.Filter.Accept(f.Dev, f.ID) {
		d.Counters.IncFiltered()
		frame.Discard(f)
		return
	}
	d.Router.Route(f)
}

// Send is a placeholder for future upward layers (diagnostics /
// firmware-update hooks); nothing in the gateway calls it yet.
func (d *Datalink) Send(f *frame.Frame) error {
	return nil
}
