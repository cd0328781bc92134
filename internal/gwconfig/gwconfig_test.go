package gwconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRoutingTableParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routing.yaml")
	doc := "routes:\n  - can_id: 1\n    interfaces: [0, 1]\n  - can_id: 2\n    interfaces: [0, 2]\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	tbl, err := LoadRoutingTable(path)
	if err != nil {
		t.Fatalf("LoadRoutingTable: %v", err)
	}
	entry, ok := tbl.Lookup(1)
	if !ok {
		t.Fatalf("expected entry for can_id 1")
	}
	if len(entry.InterfaceIDs) != 2 || entry.InterfaceIDs[0] != 0 || entry.InterfaceIDs[1] != 1 {
		t.Fatalf("unexpected interfaces: %+v", entry.InterfaceIDs)
	}
}

func TestLoadRoutingTableMissingFileIsEmpty(t *testing.T) {
	tbl, err := LoadRoutingTable(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadRoutingTable: %v", err)
	}
	if _, ok := tbl.Lookup(1); ok {
		t.Fatalf("expected no entries in a missing-file table")
	}
}

func TestLoadFilterTableParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filter.yaml")
	if err := os.WriteFile(path, []byte("accept: [1, 2, 3]\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	tbl, err := LoadFilterTable(path)
	if err != nil {
		t.Fatalf("LoadFilterTable: %v", err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("expected 3 accepted ids, got %d", tbl.Len())
	}
	if !tbl.Accept(0, 2) {
		t.Fatalf("expected id 2 to be accepted")
	}
	if tbl.Accept(0, 99) {
		t.Fatalf("expected id 99 to be rejected")
	}
}

func TestLoadFilterTableEmptyPathRejectsEverything(t *testing.T) {
	tbl, err := LoadFilterTable("")
	if err != nil {
		t.Fatalf("LoadFilterTable: %v", err)
	}
	if tbl.Accept(0, 1) {
		t.Fatalf("expected empty table to reject everything")
	}
}
