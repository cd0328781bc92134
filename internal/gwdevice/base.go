package gwdevice

import "github.com/kstaniek/xcan-gateway/internal/queue"

// Base carries the fields every adapter needs (id, name, owned
// in/out queues) so concrete adapters can embed it instead of
// re-implementing ID/Name/QueueIn/QueueOut, mirroring how
// xcan_device_init populated the common prefix of the C struct before
// handing back to the adapter-specific constructor.
type Base struct {
	id   uint8
	name string
	qIn  *queue.Queue
	qOut *queue.Queue
}

// NewBase allocates the owned queues and returns a Base for id/name.
// qInCap/qOutCap of 0 mean uncapped.
func NewBase(id uint8, name string, qInCap, qOutCap int) Base {
	return Base{
		id:   id,
		name: name,
		qIn:  queue.New(qInCap),
		qOut: queue.New(qOutCap),
	}
}

func (b *Base) ID() uint8              { return b.id }
func (b *Base) Name() string           { return b.name }
func (b *Base) QueueIn() *queue.Queue  { return b.qIn }
func (b *Base) QueueOut() *queue.Queue { return b.qOut }
