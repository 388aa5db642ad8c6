package pptx

import (
	"bytes"
	"testing"
)

func TestArchive_RoundTrip(t *testing.T) {
	a := NewArchive()
	a.SetText("dir/a.xml", "<a/>")
	a.SetEntry("media/img.bin", []byte{0x00, 0xFF, 0x10, 0x89})

	data, err := a.Bytes()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	b, err := OpenArchive(data)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if txt, ok := b.Text("dir/a.xml"); !ok || txt != "<a/>" {
		t.Errorf("text entry lost: %q %v", txt, ok)
	}
	bin, ok := b.Entry("media/img.bin")
	if !ok || !bytes.Equal(bin, []byte{0x00, 0xFF, 0x10, 0x89}) {
		t.Errorf("binary entry not byte-identical: %v", bin)
	}
}

func TestArchive_SetReplacesContent(t *testing.T) {
	a := NewArchive()
	a.SetText("x.xml", "old")
	a.SetText("x.xml", "new")
	if a.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", a.Len())
	}
	if txt, _ := a.Text("x.xml"); txt != "new" {
		t.Errorf("expected replacement, got %q", txt)
	}
}

func TestArchive_Remove(t *testing.T) {
	a := NewArchive()
	a.SetText("x.xml", "x")
	a.Remove("x.xml")
	a.Remove("missing.xml") // no-op
	if a.Has("x.xml") || a.Len() != 0 {
		t.Errorf("entry not removed")
	}
}

func TestArchive_ListPrefix(t *testing.T) {
	a := NewArchive()
	a.SetText("ppt/slides/slide2.xml", "")
	a.SetText("ppt/slides/slide1.xml", "")
	a.SetText("ppt/theme/theme1.xml", "")
	got := a.List("ppt/slides/")
	if len(got) != 2 || got[0] != "ppt/slides/slide1.xml" {
		t.Errorf("unexpected list: %v", got)
	}
}

func TestOpenArchive_NotAZip(t *testing.T) {
	if _, err := OpenArchive([]byte("definitely not a zip")); err == nil {
		t.Error("expected error for non-zip input")
	}
}
