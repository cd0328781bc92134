package gwdevice

import (
	"errors"
	"testing"
)

type fakeDevice struct {
	Base
	destroyed bool
}

func newFakeDevice(id uint8) *fakeDevice {
	return &fakeDevice{Base: NewBase(id, "fake", 0, 0)}
}

func (d *fakeDevice) LinkState() bool { return true }
func (d *fakeDevice) Destroy()        { d.destroyed = true }

func (d *fakeDevice) Send(uint32, uint8, []byte) SendResult { return SendOK }

func (d *fakeDevice) Poll(n int, _ func(uint32, uint8, []byte, int)) int { return n }

func TestPoolRegisterAndGet(t *testing.T) {
	p := NewPool()
	d := newFakeDevice(3)
	if err := p.Register(d); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := p.Get(3); got != Device(d) {
		t.Fatalf("Get(3) = %v, want the registered device", got)
	}
	if p.Get(4) != nil {
		t.Fatalf("Get on an empty slot must return nil")
	}
}

func TestPoolRejectsDuplicateSlot(t *testing.T) {
	p := NewPool()
	if err := p.Register(newFakeDevice(1)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Register(newFakeDevice(1)); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("err = %v, want ErrSlotTaken", err)
	}
}

func TestPoolRejectsOutOfRangeID(t *testing.T) {
	p := NewPool()
	if err := p.Register(newFakeDevice(MaxDevices)); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("err = %v, want ErrInvalidID", err)
	}
}

func TestPoolDestroyTearsDownEverything(t *testing.T) {
	p := NewPool()
	d0, d1 := newFakeDevice(0), newFakeDevice(1)
	p.Register(d0)
	p.Register(d1)
	p.Destroy()
	if !d0.destroyed || !d1.destroyed {
		t.Fatalf("Destroy must tear down every registered device")
	}
	if p.Get(0) != nil || p.Get(1) != nil {
		t.Fatalf("Destroy must empty the pool")
	}
}

func TestAdmitTagsOriginAndCopiesPayload(t *testing.T) {
	d := newFakeDevice(2)
	src := []byte{0xDE, 0xAD}
	if err := Admit(d, 0x321, 0, src, 2); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	src[0] = 0 // the admitted frame must own its payload
	f := d.QueueIn().Dequeue()
	if f == nil || f.ID != 0x321 || f.Dev != 2 {
		t.Fatalf("admitted frame mismatch: %+v", f)
	}
	if f.Data[0] != 0xDE || f.Data[1] != 0xAD {
		t.Fatalf("payload not copied: % X", f.Data)
	}
}

func TestAdmitDropsOnFullIngress(t *testing.T) {
	d := &fakeDevice{Base: NewBase(5, "fake", 1, 0)}
	if err := Admit(d, 1, 0, []byte{1}, 1); err != nil {
		t.Fatalf("first Admit: %v", err)
	}
	if err := Admit(d, 2, 0, []byte{2}, 1); !errors.Is(err, ErrDrop) {
		t.Fatalf("err = %v, want ErrDrop on full q_in", err)
	}
	if d.QueueIn().Len() != 1 {
		t.Fatalf("q_in len = %d, want 1", d.QueueIn().Len())
	}
}
