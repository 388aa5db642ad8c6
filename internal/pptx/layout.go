package pptx

import (
	"bytes"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Placeholder type names as they appear in the ph element's type attribute.
const (
	phTitle    = "title"
	phCtrTitle = "ctrTitle"
	phSubTitle = "subTitle"
	phBody     = "body"
)

// layoutInfo is one enumerated layout part before classification.
type layoutInfo struct {
	file         string // base name, e.g. "slideLayout3.xml"
	name         string // declared display name
	placeholders []PlaceholderDef
}

// Classification scores. Only the relative ordering matters: the
// title+subtitle pairing beats a bare centered title, and a single-body
// layout beats a multi-body one.
const (
	scoreTitlePair    = 10
	scoreTitleAlone   = 5
	scoreSingleBody   = 10
	scoreMultiBody    = 7
	scoreDividerMatch = 5
)

// BuildLayoutCatalog enumerates every layout part, extracts placeholder
// shapes, and classifies layouts into the title/content/divider categories.
// The content category is always populated: if no layout matches its
// signature, the first layout with any placeholder is used, and failing
// that, the first layout at all.
func BuildLayoutCatalog(a *Archive) map[string]LayoutConfig {
	layouts := enumerateLayouts(a)
	catalog := make(map[string]LayoutConfig)
	if len(layouts) == 0 {
		return catalog
	}

	type candidate struct {
		index int
		score int
	}
	best := make(map[string]candidate)

	// Each category is tested independently; ties keep the earliest layout
	// in enumeration order (strict > below), which makes the assignment
	// deterministic for a fixed layout set.
	for i, l := range layouts {
		counts := placeholderTypeCounts(l.placeholders)
		hasCtr := counts[phCtrTitle] > 0
		hasSub := counts[phSubTitle] > 0
		hasTitle := counts[phTitle] > 0
		bodies := counts[phBody]

		if hasCtr {
			score := scoreTitleAlone
			if hasSub {
				score = scoreTitlePair
			}
			if c, ok := best[CategoryTitle]; !ok || score > c.score {
				best[CategoryTitle] = candidate{index: i, score: score}
			}
		}
		if hasTitle && bodies > 0 {
			score := scoreMultiBody
			if bodies == 1 {
				score = scoreSingleBody
			}
			if c, ok := best[CategoryContent]; !ok || score > c.score {
				best[CategoryContent] = candidate{index: i, score: score}
			}
		}
		if hasCtr && bodies == 0 && !hasSub {
			if _, ok := best[CategoryDivider]; !ok {
				best[CategoryDivider] = candidate{index: i, score: scoreDividerMatch}
			}
		}
	}

	for category, c := range best {
		catalog[category] = layoutConfigFor(layouts[c.index], category)
	}

	if _, ok := catalog[CategoryContent]; !ok {
		fallback := 0
		for i, l := range layouts {
			if len(l.placeholders) > 0 {
				fallback = i
				break
			}
		}
		log.Printf("[EXTRACT] no layout matched the content signature, falling back to %s", layouts[fallback].file)
		catalog[CategoryContent] = layoutConfigFor(layouts[fallback], CategoryContent)
	}
	return catalog
}

// layoutConfigFor builds a LayoutConfig for one category, renumbering the
// layout's placeholders to sequential positional indices in extraction
// order. Each category gets its own copy so a layout backing two categories
// cannot share mutable state.
func layoutConfigFor(l layoutInfo, category string) LayoutConfig {
	phs := make([]PlaceholderDef, len(l.placeholders))
	copy(phs, l.placeholders)
	for i := range phs {
		phs[i].Idx = strconv.Itoa(i)
	}
	return LayoutConfig{
		LayoutFile:   l.file,
		MatchingName: l.name,
		Category:     category,
		Placeholders: phs,
	}
}

// enumerateLayouts lists every layout part sorted by ordinal suffix and
// extracts its placeholder shapes. Unparseable layouts are skipped with a
// log line; a foreign template's one broken layout must not sink the rest.
func enumerateLayouts(a *Archive) []layoutInfo {
	var paths []string
	for _, p := range a.List(layoutDir) {
		if layoutNumRe.MatchString(p) {
			paths = append(paths, p)
		}
	}
	sort.Slice(paths, func(i, j int) bool {
		return LayoutOrdinal(paths[i]) < LayoutOrdinal(paths[j])
	})

	var layouts []layoutInfo
	for _, path := range paths {
		data, _ := a.Entry(path)
		info, err := parseLayout(path, data)
		if err != nil {
			log.Printf("[EXTRACT] skipping layout %s: %v", path, err)
			continue
		}
		layouts = append(layouts, info)
	}
	return layouts
}

// parseLayout reads one layout part: declared name and every shape carrying
// a placeholder marker.
func parseLayout(path string, data []byte) (layoutInfo, error) {
	base := strings.TrimPrefix(path, layoutDir)
	info := layoutInfo{
		file: base,
		name: strings.TrimSuffix(base, ".xml"),
	}

	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return info, fmt.Errorf("parse layout xml: %w", err)
	}

	if cSld := xmlquery.FindOne(doc, "//*[local-name()='cSld']"); cSld != nil {
		if name := cSld.SelectAttr("name"); name != "" {
			info.name = name
		}
	}

	for _, sp := range xmlquery.Find(doc, "//*[local-name()='spTree']/*[local-name()='sp']") {
		ph := sp.SelectElement(".//*[local-name()='ph']")
		if ph == nil {
			continue
		}
		def := PlaceholderDef{
			Type:  ph.SelectAttr("type"),
			PhIdx: ph.SelectAttr("idx"),
		}
		if def.Type == "" {
			def.Type = phBody // ph with no type attribute acts as a body slot
		}
		if cNvPr := sp.SelectElement(".//*[local-name()='cNvPr']"); cNvPr != nil {
			def.Name = cNvPr.SelectAttr("name")
		}
		def.Position = shapePosition(sp)
		info.placeholders = append(info.placeholders, def)
	}
	return info, nil
}

// shapePosition reads the shape's explicit transform, if any. A shape
// without its own xfrm inherits position from further up the layout/master
// chain and is recorded with no position.
func shapePosition(sp *xmlquery.Node) *Position {
	xfrm := sp.SelectElement("*[local-name()='spPr']/*[local-name()='xfrm']")
	if xfrm == nil {
		return nil
	}
	off := xfrm.SelectElement("*[local-name()='off']")
	ext := xfrm.SelectElement("*[local-name()='ext']")
	if off == nil || ext == nil {
		return nil
	}
	x, errX := strconv.ParseInt(off.SelectAttr("x"), 10, 64)
	y, errY := strconv.ParseInt(off.SelectAttr("y"), 10, 64)
	w, errW := strconv.ParseInt(ext.SelectAttr("cx"), 10, 64)
	h, errH := strconv.ParseInt(ext.SelectAttr("cy"), 10, 64)
	if errX != nil || errY != nil || errW != nil || errH != nil {
		return nil
	}
	return &Position{X: x, Y: y, W: w, H: h}
}

// placeholderTypeCounts tallies placeholder types for classification.
func placeholderTypeCounts(phs []PlaceholderDef) map[string]int {
	counts := make(map[string]int, len(phs))
	for _, ph := range phs {
		counts[ph.Type]++
	}
	return counts
}
