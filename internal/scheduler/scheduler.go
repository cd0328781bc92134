// Package scheduler implements the cooperative tick loop: a single
// per-tick loop_score budget bounds work done across all devices and
// both directions, so one busy interface can never starve the host.
package scheduler

import (
	"github.com/kstaniek/xcan-gateway/internal/datalink"
	"github.com/kstaniek/xcan-gateway/internal/frame"
	"github.com/kstaniek/xcan-gateway/internal/gwdevice"
)

// DefaultLoopScore is the per-tick work budget when none is configured.
const DefaultLoopScore = 20

// Counters receives scheduler-level observability events.
type Counters interface {
	IncOutOfMemory()
	IncDeviceError()
	IncTick()
}

type noopCounters struct{}

func (noopCounters) IncOutOfMemory() {}
func (noopCounters) IncDeviceError() {}
func (noopCounters) IncTick()        {}

// Scheduler owns the per-tick loop_score budget and drives ingress and
// egress draining across every device registered in Pool.
type Scheduler struct {
	Pool      *gwdevice.Pool
	Datalink  *datalink.Datalink
	LoopScore int
	Counters  Counters
}

// New returns a Scheduler with the default loop_score budget.
func New(pool *gwdevice.Pool, dl *datalink.Datalink, counters Counters) *Scheduler {
	if counters == nil {
		counters = noopCounters{}
	}
	return &Scheduler{Pool: pool, Datalink: dl, LoopScore: DefaultLoopScore, Counters: counters}
}

// Tick runs one cooperative scheduler pass: poll every device for new
// ingress (filling q_in), drain q_in through the datalink, then drain
// every device's q_out via Send. Ingress runs first against the whole
// LoopScore budget; whatever it does not spend (because its queues ran
// dry before the budget did) carries over to egress, which is how a
// direction that finishes early lets the other consume the remainder.
func (s *Scheduler) Tick() {
	s.Counters.IncTick()
	score := s.LoopScore
	if score <= 0 {
		return
	}

	score = s.pollDevices(score)
	score = s.drainIngress(score)
	s.drainEgress(score)
}

// pollDevices lets each device pull ingress frames from its underlying
// source (hardware read, socket recv, ...), bounded by score.
func (s *Scheduler) pollDevices(score int) int {
	if score <= 0 {
		return score
	}
	s.Pool.Each(func(d gwdevice.Device) {
		if score <= 0 {
			return
		}
		score = d.Poll(score, func(canID uint32, flags uint8, data []byte, length int) {
			if err := gwdevice.Admit(d, canID, flags, data, length); err != nil {
				s.Counters.IncOutOfMemory()
			}
		})
	})
	return score
}

// drainIngress dequeues every device's q_in through the datalink,
// stopping once score is exhausted or every q_in is empty.
func (s *Scheduler) drainIngress(score int) int {
	for score > 0 {
		progressed := false
		s.Pool.Each(func(d gwdevice.Device) {
			if score <= 0 {
				return
			}
			f := d.QueueIn().Dequeue()
			if f == nil {
				return
			}
			s.Datalink.Receive(f)
			score--
			progressed = true
		})
		if !progressed {
			break
		}
	}
	return score
}

// drainEgress peeks each device's q_out and calls Send; on SendOK the
// frame is dequeued and discarded, on SendWouldBlock it is retained at
// the head for the next tick, on SendError it is dequeued and dropped.
func (s *Scheduler) drainEgress(score int) int {
	for score > 0 {
		progressed := false
		s.Pool.Each(func(d gwdevice.Device) {
			if score <= 0 {
				return
			}
			f := d.QueueOut().Peek()
			if f == nil {
				return
			}
			switch d.Send(f.ID, uint8(f.Flags), f.Data[:f.Len]) {
			case gwdevice.SendOK:
				dq := d.QueueOut().Dequeue()
				frame.Discard(dq)
				score--
				progressed = true
			case gwdevice.SendWouldBlock:
				// Retained at head; retried next tick.
			case gwdevice.SendError:
				dq := d.QueueOut().Dequeue()
				frame.Discard(dq)
				s.Counters.IncDeviceError()
				score--
				progressed = true
			}
		})
		if !progressed {
			break
		}
	}
	return score
}
