package datalink

import (
	"testing"

	"github.com/kstaniek/xcan-gateway/internal/filter"
	"github.com/kstaniek/xcan-gateway/internal/frame"
	"github.com/kstaniek/xcan-gateway/internal/gwdevice"
	"github.com/kstaniek/xcan-gateway/internal/router"
)

type fakeDevice struct {
	gwdevice.Base
}

func (d *fakeDevice) LinkState() bool { return true }
func (d *fakeDevice) Send(id uint32, flags uint8, data []byte) gwdevice.SendResult {
	return gwdevice.SendOK
}
func (d *fakeDevice) Poll(loopScore int, recv func(uint32, uint8, []byte, int)) int {
	return loopScore
}
func (d *fakeDevice) Destroy() {}

type counters struct{ filtered int }

func (c *counters) IncFiltered() { c.filtered++ }

// Filtered drop: filter table excludes id 3, routing table has an
// entry for it, so no egress enqueues should occur.
func TestReceiveFilteredDropBeforeRouting(t *testing.T) {
	pool := gwdevice.NewPool()
	dest := &fakeDevice{Base: gwdevice.NewBase(0, "d0", 0, 0)}
	pool.Register(dest)

	ft := filter.New([]uint32{1, 2})
	rt := router.New([]router.Entry{{CANID: 3, InterfaceIDs: []uint8{0}}})
	cnt := &counters{}
	dl := New(ft, router.NewRouter(rt, pool, nil), cnt)

	f, _ := frame.Alloc(1)
	f.ID = 3
	dl.Receive(f)

	if dest.QueueOut().Len() != 0 {
		t.Fatalf("filtered frame must not reach the router's egress enqueue")
	}
	if cnt.filtered != 1 {
		t.Fatalf("filtered = %d, want 1", cnt.filtered)
	}
}

func TestReceiveAcceptedFrameIsRouted(t *testing.T) {
	pool := gwdevice.NewPool()
	dest := &fakeDevice{Base: gwdevice.NewBase(0, "d0", 0, 0)}
	pool.Register(dest)

	ft := filter.New([]uint32{1})
	rt := router.New([]router.Entry{{CANID: 1, InterfaceIDs: []uint8{0}}})
	dl := New(ft, router.NewRouter(rt, pool, nil), nil)

	f, _ := frame.Alloc(1)
	f.ID = 1
	dl.Receive(f)

	if dest.QueueOut().Len() != 1 {
		t.Fatalf("accepted frame should have been routed")
	}
}
