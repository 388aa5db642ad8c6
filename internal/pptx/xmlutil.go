package pptx

import (
	"regexp"
	"strconv"
	"strings"
)

// xmlEscaper covers the five XML special characters. User-supplied text must
// pass through this before being embedded in any part; skipping it produces
// malformed XML, not just ugly output.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes the five XML special characters in s.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// SplitParagraphs splits text into one entry per line. Windows line endings
// are normalized first. Empty input yields a single empty paragraph so a
// placeholder shape is never emitted without a text body.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// Pre-compiled patterns for the relinker's string-level surgery. These
// operate on the three consistency documents (manifest, relationship table,
// content-type registry), which are small and structurally regular.
var (
	relIDRe = regexp.MustCompile(`Id="rId(\d+)"`)

	// Relationship entries whose Type is exactly .../relationships/slide or
	// .../relationships/notesSlide. The closing quote anchors the match so
	// slideLayout and slideMaster entries are untouched.
	slideRelRe = regexp.MustCompile(`<Relationship\b[^>]*Type="[^"]*/relationships/(?:slide|notesSlide)"[^>]*/?>(?:</Relationship>)?`)

	// Content-type overrides for slide and notes-slide parts.
	slideOverrideRe = regexp.MustCompile(`<Override\b[^>]*ContentType="application/vnd\.openxmlformats-officedocument\.presentationml\.(?:slide|notesSlide)\+xml"[^>]*/?>(?:</Override>)?`)

	// The ordered slide list in the presentation manifest: populated,
	// empty, or self-closing.
	sldIdLstRe = regexp.MustCompile(`(?s)<p:sldIdLst>.*?</p:sldIdLst>|<p:sldIdLst\s*/>`)

	// Ordinal suffix of a layout part path.
	layoutNumRe = regexp.MustCompile(`slideLayout(\d+)\.xml$`)

	// Slide part paths and their per-slide relationship parts.
	slidePartRe    = regexp.MustCompile(`^ppt/slides/slide\d+\.xml$`)
	slideRelPartRe = regexp.MustCompile(`^ppt/slides/_rels/slide\d+\.xml\.rels$`)
	notesPartRe    = regexp.MustCompile(`^ppt/notesSlides/notesSlide\d+\.xml$`)
	notesRelPartRe = regexp.MustCompile(`^ppt/notesSlides/_rels/notesSlide\d+\.xml\.rels$`)
)

// MaxRelID scans relationship XML for the highest-numbered rId.
// Returns 0 when the table holds no numbered IDs.
func MaxRelID(relsXML string) int {
	max := 0
	for _, m := range relIDRe.FindAllStringSubmatch(relsXML, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}

// StripSlideRelationships removes every relationship entry targeting a slide
// or notes-slide part. Removal is by type tag, not by enumerating removed
// file paths, so it holds up against foreign templates' naming variations.
func StripSlideRelationships(relsXML string) string {
	return slideRelRe.ReplaceAllString(relsXML, "")
}

// StripSlideOverrides removes every slide and notes-slide content-type
// override from the registry XML.
func StripSlideOverrides(typesXML string) string {
	return slideOverrideRe.ReplaceAllString(typesXML, "")
}

// ReplaceSlideIDList substitutes the manifest's ordered slide list with
// listXML. Whether the original list was populated, empty, or self-closing,
// the result is a single well-formed list. If no list exists at all, the new
// one is inserted ahead of the slide-size declaration (or before the closing
// root tag as a last resort).
func ReplaceSlideIDList(presentationXML, listXML string) string {
	if sldIdLstRe.MatchString(presentationXML) {
		return sldIdLstRe.ReplaceAllString(presentationXML, listXML)
	}
	if i := strings.Index(presentationXML, "<p:sldSz"); i >= 0 {
		return presentationXML[:i] + listXML + presentationXML[i:]
	}
	if i := strings.Index(presentationXML, "</p:presentation>"); i >= 0 {
		return presentationXML[:i] + listXML + presentationXML[i:]
	}
	return presentationXML
}

// AppendBeforeClose inserts fragment immediately before the given closing
// tag. Returns the input unchanged if the tag is absent.
func AppendBeforeClose(doc, closeTag, fragment string) string {
	i := strings.LastIndex(doc, closeTag)
	if i < 0 {
		return doc
	}
	return doc[:i] + fragment + doc[i:]
}

// LayoutOrdinal extracts the numeric suffix from a layout part path,
// e.g. "ppt/slideLayouts/slideLayout12.xml" -> 12. Returns 0 when the path
// does not follow the conventional naming.
func LayoutOrdinal(path string) int {
	m := layoutNumRe.FindStringSubmatch(path)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
