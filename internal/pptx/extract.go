package pptx

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
)

// cfbSignature is the OLE2/CFB magic number, the container format of
// pre-2007 binary Office files.
var cfbSignature = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

// Extract parses an uploaded presentation package and recovers its
// descriptor: slide geometry, theme, and the classified layout catalog.
// It is a pure function of its input; theme and geometry degrade to
// documented defaults, but an archive without a presentation manifest is
// rejected outright.
func Extract(data []byte) (*TemplateDescriptor, error) {
	if isLegacyBinary(data) {
		if isLegacyPowerPoint(data) {
			return nil, fmt.Errorf("legacy binary .ppt files are not supported, save the template as .pptx first")
		}
		return nil, fmt.Errorf("file is an OLE compound document, not a presentation archive; save the template as .pptx first")
	}

	a, err := OpenArchive(data)
	if err != nil {
		return nil, fmt.Errorf("template is not a readable presentation archive: %w", err)
	}
	if !a.Has(presentationPart) {
		return nil, fmt.Errorf("template is not a valid presentation archive: missing %s", presentationPart)
	}

	width, height := ReadSlideSize(a)
	desc := &TemplateDescriptor{
		SlideWidth:  width,
		SlideHeight: height,
		Theme:       ReadTheme(a),
		Layouts:     BuildLayoutCatalog(a),
	}
	return desc, nil
}

// isLegacyBinary reports whether data starts with the OLE2/CFB magic. The
// signature alone is decisive for rejection since no such file can be a ZIP
// package.
func isLegacyBinary(data []byte) bool {
	return bytes.HasPrefix(data, cfbSignature)
}

// isLegacyPowerPoint walks the compound file's directory looking for the
// stream old .ppt files store their records in. Used only to pick the more
// specific error message; a truncated or corrupt container reads as a plain
// OLE file.
func isLegacyPowerPoint(data []byte) bool {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return false
	}
	for {
		entry, err := doc.Next()
		if err == io.EOF {
			return false
		}
		if err != nil {
			return false
		}
		if strings.EqualFold(entry.Name, "PowerPoint Document") {
			return true
		}
	}
}
