package pptx

import (
	"bytes"
	"log"
	"strconv"

	"github.com/antchfx/xmlquery"
)

const (
	presentationPart = "ppt/presentation.xml"
	presentationRels = "ppt/_rels/presentation.xml.rels"
	contentTypesPart = "[Content_Types].xml"
	themeDir         = "ppt/theme/"
	layoutDir        = "ppt/slideLayouts/"

	// DefaultFont is the universal fallback typeface used when the theme
	// omits a font scheme.
	DefaultFont = "Calibri"
)

// colorSlots is the fixed 12-entry scheme color enumeration, in schema order.
var colorSlots = []string{
	"dk1", "lt1", "dk2", "lt2",
	"accent1", "accent2", "accent3", "accent4", "accent5", "accent6",
	"hlink", "folHlink",
}

// ReadSlideSize reads the slide dimensions in EMUs from the presentation
// manifest. A missing or unreadable slide-size declaration yields the
// standard 16:9 defaults; this is never an error.
func ReadSlideSize(a *Archive) (width, height int64) {
	width, height = DefaultSlideWidth, DefaultSlideHeight

	data, ok := a.Entry(presentationPart)
	if !ok {
		return width, height
	}
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		log.Printf("[EXTRACT] presentation manifest unparseable, using default slide size: %v", err)
		return width, height
	}
	node := xmlquery.FindOne(doc, "//*[local-name()='sldSz']")
	if node == nil {
		return width, height
	}
	if cx, err := strconv.ParseInt(node.SelectAttr("cx"), 10, 64); err == nil && cx > 0 {
		width = cx
	}
	if cy, err := strconv.ParseInt(node.SelectAttr("cy"), 10, 64); err == nil && cy > 0 {
		height = cy
	}
	return width, height
}

// ReadTheme extracts the 12-slot color scheme and major/minor Latin
// typefaces from the first theme part. An absent or malformed theme is a
// degraded-but-valid result (empty color map, fallback fonts), not an error.
func ReadTheme(a *Archive) Theme {
	theme := Theme{
		Colors:    make(map[string]string),
		MajorFont: DefaultFont,
		MinorFont: DefaultFont,
	}

	themeFiles := a.List(themeDir)
	if len(themeFiles) == 0 {
		return theme
	}
	data, _ := a.Entry(themeFiles[0])
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		log.Printf("[EXTRACT] theme part %s unparseable, using fallbacks: %v", themeFiles[0], err)
		return theme
	}

	for _, slot := range colorSlots {
		elem := xmlquery.FindOne(doc, "//*[local-name()='clrScheme']/*[local-name()='"+slot+"']")
		if hex := schemeColorHex(elem); hex != "" {
			theme.Colors[slot] = hex
		}
	}

	if face := latinTypeface(doc, "majorFont"); face != "" {
		theme.MajorFont = face
	}
	if face := latinTypeface(doc, "minorFont"); face != "" {
		theme.MinorFont = face
	}
	return theme
}

// schemeColorHex resolves a scheme color element to a hex value: a direct
// srgbClr val, else a sysClr's last-resort lastClr.
func schemeColorHex(elem *xmlquery.Node) string {
	if elem == nil {
		return ""
	}
	if srgb := elem.SelectElement("*[local-name()='srgbClr']"); srgb != nil {
		if val := srgb.SelectAttr("val"); val != "" {
			return val
		}
	}
	if sys := elem.SelectElement("*[local-name()='sysClr']"); sys != nil {
		if last := sys.SelectAttr("lastClr"); last != "" {
			return last
		}
	}
	return ""
}

// latinTypeface reads the first Latin typeface name from the named font
// scheme block (majorFont or minorFont).
func latinTypeface(doc *xmlquery.Node, block string) string {
	latin := xmlquery.FindOne(doc, "//*[local-name()='"+block+"']/*[local-name()='latin']")
	if latin == nil {
		return ""
	}
	return latin.SelectAttr("typeface")
}
