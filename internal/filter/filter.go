// Package filter implements the ingress accept/reject predicate: a
// flat table of accepted frame IDs, accept on first match, drop
// everything else before it reaches the router.
package filter

// Table is a flat ordered sequence of frame IDs the gateway accepts on
// ingress. Anything not listed is dropped. Exact match only for now;
// id/mask pairs are the obvious extension once a deployment needs
// range acceptance.
type Table struct {
	ids map[uint32]struct{}
}

// New builds a filter table from a list of accepted frame IDs.
func New(ids []uint32) *Table {
	t := &Table{ids: make(map[uint32]struct{}, len(ids))}
	for _, id := range ids {
		t.ids[id] = struct{}{}
	}
	return t
}

// Accept reports whether id is present in the table. The device id the
// frame arrived on is accepted as a parameter to keep the signature
// stable for per-interface acceptance masks, even though the current
// table ignores it.
func (t *Table) Accept(deviceID uint8, id uint32) bool {
	if t == nil {
		return false
	}
	_, ok := t.ids[id]
	return ok
}

// Len reports the number of distinct accepted IDs.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ids)
}
