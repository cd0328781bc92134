// Package queue implements the intrusive singly-linked FIFO used for a
// device's ingress and egress buffering: head/tail pointers threaded
// through each frame's Next link, plus an optional max-frames cap.
package queue

import (
	"errors"
	"sync"

	"github.com/kstaniek/xcan-gateway/internal/frame"
)

// ErrFull is returned by Enqueue when the queue has a configured cap
// and is at capacity.
var ErrFull = errors.New("queue: full")

// Queue is a FIFO of *frame.Frame. The zero value is an empty,
// uncapped queue. MaxFrames, if positive, bounds Enqueue.
//
// Invariant: head == nil iff tail == nil iff frames == 0; when
// frames > 0 the chain head -> ... -> tail has exactly frames links
// and tail.Next == nil.
//
// Every operation runs inside a short critical section, the Go
// rendition of the interrupt-masked append the original adapters used:
// an adapter context may Enqueue on a device's ingress queue while the
// scheduler goroutine is mid-Dequeue on the same queue. A frame
// returned by Peek is only valid until the next mutating call and must
// not be read concurrently with one.
type Queue struct {
	mu         sync.Mutex
	head, tail *frame.Frame
	frames     int
	MaxFrames  int
}

// New returns an empty queue, uncapped if maxFrames <= 0.
func New(maxFrames int) *Queue {
	return &Queue{MaxFrames: maxFrames}
}

// Len reports the number of frames currently enqueued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.frames
}

// Enqueue appends f at the tail. f must be unlinked (f.Next == nil);
// the queue takes ownership of f until it is dequeued.
func (q *Queue) Enqueue(f *frame.Frame) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.MaxFrames > 0 && q.frames >= q.MaxFrames {
		return ErrFull
	}
	f.Next = nil
	if q.head == nil {
		q.head = f
		q.tail = f
	} else {
		q.tail.Next = f
		q.tail = f
	}
	q.frames++
	return nil
}

// Dequeue detaches and returns the head frame, or nil if empty. The
// returned frame has Next == nil.
func (q *Queue) Dequeue() *frame.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	f := q.head
	if f == nil {
		return nil
	}
	q.head = f.Next
	q.frames--
	if q.head == nil {
		q.tail = nil
	}
	f.Next = nil
	return f
}

// Peek returns the head frame without removing it, or nil if empty.
// The borrow is only valid until the next mutating call on q.
func (q *Queue) Peek() *frame.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head
}

// Drain dequeues and discards every frame, used on device teardown.
func (q *Queue) Drain() {
	for f := q.Dequeue(); f != nil; f = q.Dequeue() {
		frame.Discard(f)
	}
}
