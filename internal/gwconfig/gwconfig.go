// Package gwconfig loads the gateway's two static, read-only-after-init
// tables from YAML files: the routing table as a flat list of
// (can_id, interfaces[]) entries and the filter table as a flat list of
// accepted frame ids. Both are provided once at startup; there is no
// hot-reload.
package gwconfig

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v2"

	"github.com/kstaniek/xcan-gateway/internal/filter"
	"github.com/kstaniek/xcan-gateway/internal/router"
)

// RouteSpec is one YAML routing entry: a CAN ID and its ordered
// destination interface ids, matching router.Entry's field order.
type RouteSpec struct {
	CANID      uint32  `yaml:"can_id"`
	Interfaces []uint8 `yaml:"interfaces"`
}

// RoutingDoc is the top-level shape of a routing.yaml file.
type RoutingDoc struct {
	Routes []RouteSpec `yaml:"routes"`
}

// FilterDoc is the top-level shape of a filter.yaml file: a flat list
// of accepted frame ids.
type FilterDoc struct {
	Accept []uint32 `yaml:"accept"`
}

// LoadRoutingTable reads path and builds a router.Table in file order
// (first match wins is router.Table's own semantics, not this loader's).
// A missing path is not an error: it yields an empty table, since a
// frame with no routing entry is a normal, countable unrouted drop
// rather than a startup failure.
func LoadRoutingTable(path string) (*router.Table, error) {
	if path == "" {
		return router.New(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return router.New(nil), nil
		}
		return nil, fmt.Errorf("gwconfig: read routing table %s: %w", path, err)
	}
	var doc RoutingDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("gwconfig: parse routing table %s: %w", path, err)
	}
	entries := make([]router.Entry, 0, len(doc.Routes))
	for _, r := range doc.Routes {
		entries = append(entries, router.Entry{CANID: r.CANID, InterfaceIDs: r.Interfaces})
	}
	return router.New(entries), nil
}

// LoadFilterTable reads path and builds a filter.Table of accepted
// frame ids. A missing path yields an empty (reject-everything) table,
// the safe default for an unconfigured gateway.
func LoadFilterTable(path string) (*filter.Table, error) {
	if path == "" {
		return filter.New(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return filter.New(nil), nil
		}
		return nil, fmt.Errorf("gwconfig: read filter table %s: %w", path, err)
	}
	var doc FilterDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("gwconfig: parse filter table %s: %w", path, err)
	}
	return filter.New(doc.Accept), nil
}
