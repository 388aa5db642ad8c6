package blobstore

import (
	"bytes"
	"testing"
)

func TestSaveLoadDelete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id := "3b9a0c1e-1111-2222-3333-444455556666"
	data := []byte("PK\x03\x04fake archive")

	if err := s.Save(id, data); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !s.Has(id) {
		t.Error("Has = false after Save")
	}

	got, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("loaded bytes differ from saved bytes")
	}

	s.Delete(id)
	if s.Has(id) {
		t.Error("Has = true after Delete")
	}
	if _, err := s.Load(id); err == nil {
		t.Error("Load succeeded after Delete")
	}

	// Deleting again is a no-op, not a panic or error path.
	s.Delete(id)
}

func TestRejectsTraversalIDs(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	bad := []string{"", "../escape", "a/b", "..", "ID-WITH-UPPER", "z-not-hex"}
	for _, id := range bad {
		if err := s.Save(id, []byte("x")); err == nil {
			t.Errorf("Save accepted invalid ID %q", id)
		}
		if _, err := s.Load(id); err == nil {
			t.Errorf("Load accepted invalid ID %q", id)
		}
		if s.Has(id) {
			t.Errorf("Has accepted invalid ID %q", id)
		}
	}
}
