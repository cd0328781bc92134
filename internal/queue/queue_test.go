package queue

import (
	"testing"

	"github.com/kstaniek/xcan-gateway/internal/frame"
)

func mustFrame(t *testing.T, id uint32) *frame.Frame {
	t.Helper()
	f, err := frame.Alloc(1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	f.ID = id
	return f
}

func TestEnqueueDequeueConservation(t *testing.T) {
	q := New(0)
	for i := uint32(0); i < 5; i++ {
		if err := q.Enqueue(mustFrame(t, i)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if q.Len() != 5 {
		t.Fatalf("Len = %d, want 5", q.Len())
	}
	for i := uint32(0); i < 3; i++ {
		f := q.Dequeue()
		if f == nil || f.ID != i {
			t.Fatalf("Dequeue out of FIFO order: got %v, want id %d", f, i)
		}
	}
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
}

func TestEmptyInvariant(t *testing.T) {
	q := New(0)
	q.Enqueue(mustFrame(t, 1))
	q.Dequeue()
	if q.Len() != 0 {
		t.Fatalf("Len = %d, want 0", q.Len())
	}
	if q.Peek() != nil {
		t.Fatalf("Peek on empty queue should return nil")
	}
	if q.Dequeue() != nil {
		t.Fatalf("Dequeue on empty queue should return nil")
	}
}

func TestFullCap(t *testing.T) {
	q := New(2)
	if err := q.Enqueue(mustFrame(t, 1)); err != nil {
		t.Fatalf("Enqueue 1: %v", err)
	}
	if err := q.Enqueue(mustFrame(t, 2)); err != nil {
		t.Fatalf("Enqueue 2: %v", err)
	}
	if err := q.Enqueue(mustFrame(t, 3)); err != ErrFull {
		t.Fatalf("err = %v, want ErrFull", err)
	}
}

func TestPeekNonDestructive(t *testing.T) {
	q := New(0)
	q.Enqueue(mustFrame(t, 7))
	if p := q.Peek(); p == nil || p.ID != 7 {
		t.Fatalf("Peek = %v, want id 7", p)
	}
	if q.Len() != 1 {
		t.Fatalf("Peek must not mutate Len, got %d", q.Len())
	}
}

func TestConcurrentEnqueueDequeue(t *testing.T) {
	q := New(0)
	const n = 1000
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := uint32(0); i < n; i++ {
			if err := q.Enqueue(mustFrame(t, i)); err != nil {
				t.Errorf("Enqueue: %v", err)
				return
			}
		}
	}()
	got := 0
	for got < n {
		f := q.Dequeue()
		if f == nil {
			continue
		}
		if f.ID != uint32(got) {
			t.Fatalf("FIFO broken under concurrency: got id %d, want %d", f.ID, got)
		}
		got++
	}
	<-done
	if q.Len() != 0 {
		t.Fatalf("Len = %d after draining everything", q.Len())
	}
}

func TestDrainDiscardsAll(t *testing.T) {
	q := New(0)
	f1 := mustFrame(t, 1)
	f2 := mustFrame(t, 2)
	q.Enqueue(f1)
	q.Enqueue(f2)
	q.Drain()
	if q.Len() != 0 {
		t.Fatalf("Len after Drain = %d, want 0", q.Len())
	}
	if frame.UsageCount(f1) != 0 || frame.UsageCount(f2) != 0 {
		t.Fatalf("Drain should discard every frame")
	}
}
