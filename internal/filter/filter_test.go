package filter

import "testing"

func TestAcceptKnownID(t *testing.T) {
	tbl := New([]uint32{1, 2, 3})
	if !tbl.Accept(0, 2) {
		t.Fatalf("expected id 2 to be accepted")
	}
}

func TestRejectUnknownID(t *testing.T) {
	tbl := New([]uint32{1, 2})
	if tbl.Accept(0, 99) {
		t.Fatalf("expected id 99 to be rejected")
	}
}

func TestNilTableRejectsEverything(t *testing.T) {
	var tbl *Table
	if tbl.Accept(0, 1) {
		t.Fatalf("nil table must reject all ids")
	}
}
