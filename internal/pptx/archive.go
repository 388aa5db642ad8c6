package pptx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Archive is an in-memory OOXML package: an ordered set of named entries.
// All entry contents are held fully in memory; an Archive is loaded fresh
// from source bytes per operation and discarded after serialization, so it
// needs no locking.
type Archive struct {
	entries map[string][]byte
	order   []string
}

// OpenArchive loads a ZIP package fully into memory.
func OpenArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	a := &Archive{entries: make(map[string][]byte, len(zr.File))}
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue // directory entries carry no content
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read archive entry %s: %w", f.Name, err)
		}
		if _, dup := a.entries[f.Name]; !dup {
			a.order = append(a.order, f.Name)
		}
		a.entries[f.Name] = content
	}
	return a, nil
}

// NewArchive creates an empty in-memory package.
func NewArchive() *Archive {
	return &Archive{entries: make(map[string][]byte)}
}

// Entry returns the content of the named entry and whether it exists.
func (a *Archive) Entry(path string) ([]byte, bool) {
	content, ok := a.entries[path]
	return content, ok
}

// Text returns the named entry decoded as a string, or "" if absent.
func (a *Archive) Text(path string) (string, bool) {
	content, ok := a.entries[path]
	if !ok {
		return "", false
	}
	return string(content), true
}

// SetEntry adds or replaces an entry. New entries are appended after all
// existing ones so serialization order stays stable.
func (a *Archive) SetEntry(path string, content []byte) {
	if _, ok := a.entries[path]; !ok {
		a.order = append(a.order, path)
	}
	a.entries[path] = content
}

// SetText is SetEntry for string content.
func (a *Archive) SetText(path, content string) {
	a.SetEntry(path, []byte(content))
}

// Remove deletes an entry. Removing a missing entry is a no-op.
func (a *Archive) Remove(path string) {
	if _, ok := a.entries[path]; !ok {
		return
	}
	delete(a.entries, path)
	for i, p := range a.order {
		if p == path {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// Has reports whether the named entry exists.
func (a *Archive) Has(path string) bool {
	_, ok := a.entries[path]
	return ok
}

// List returns the paths of all entries with the given prefix, sorted.
func (a *Archive) List(prefix string) []string {
	var paths []string
	for p := range a.entries {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Bytes serializes the package back to ZIP bytes. Entries are written in
// insertion order with default deflate compression; compression level is a
// size tradeoff, not a correctness contract.
func (a *Archive) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, path := range a.order {
		fw, err := zw.Create(path)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("create zip entry %s: %w", path, err)
		}
		if _, err := fw.Write(a.entries[path]); err != nil {
			zw.Close()
			return nil, fmt.Errorf("write zip entry %s: %w", path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
