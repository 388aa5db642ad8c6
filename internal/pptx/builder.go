package pptx

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/antchfx/xmlquery"
)

const xmlDecl = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`

// OOXML namespace, relationship-type, and content-type constants used by
// the relinker.
const (
	nsRelationships = "http://schemas.openxmlformats.org/package/2006/relationships"

	relTypeSlide      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relTypeLayout     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	relTypeNotesSlide = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide"

	ctSlide      = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
	ctNotesSlide = "application/vnd.openxmlformats-officedocument.presentationml.notesSlide+xml"
)

// slideIDBase is the first presentation-level slide ID allocated for
// synthesized slides. A fixed convention, not derived from the source file:
// well-formed templates keep master/layout IDs well below this range, and a
// constant baseline keeps generation deterministic.
const slideIDBase = 256

// Build synthesizes a presentation from the template bytes, the resolved
// layout catalog, and the ordered content records. Passing nil template
// bytes or a nil catalog selects the built-in default template and catalog.
//
// The source archive is loaded fresh, mutated in memory, and serialized;
// every part the relinker does not touch passes through byte-identical,
// which is what lets an uploaded template's branding survive generation.
func Build(templateBytes []byte, catalog map[string]LayoutConfig, records []ContentRecord) ([]byte, error) {
	if templateBytes == nil {
		templateBytes = DefaultTemplate()
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}

	a, err := OpenArchive(templateBytes)
	if err != nil {
		return nil, fmt.Errorf("template archive: %w", err)
	}
	if err := relink(a, catalog, records); err != nil {
		return nil, err
	}
	out, err := a.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize presentation: %w", err)
	}
	return out, nil
}

// relink is the orchestration core: it strips the template's own slides,
// allocates fresh IDs, emits one slide part per record, and rewrites the
// three consistency documents to describe exactly the new slide set.
func relink(a *Archive, catalog map[string]LayoutConfig, records []ContentRecord) error {
	presXML, okPres := a.Text(presentationPart)
	relsXML, okRels := a.Text(presentationRels)
	typesXML, okTypes := a.Text(contentTypesPart)
	if !okPres || !okRels || !okTypes {
		return fmt.Errorf("not a valid presentation archive: missing manifest, relationship table, or content-type registry")
	}

	// Clean slate: drop every pre-existing slide and notes part before the
	// consistency documents are read for mutation.
	for _, path := range a.List("ppt/slides/") {
		if slidePartRe.MatchString(path) || slideRelPartRe.MatchString(path) {
			a.Remove(path)
		}
	}
	for _, path := range a.List("ppt/notesSlides/") {
		if notesPartRe.MatchString(path) || notesRelPartRe.MatchString(path) {
			a.Remove(path)
		}
	}
	relsXML = StripSlideRelationships(relsXML)
	typesXML = StripSlideOverrides(typesXML)

	// New slide relationship IDs form a contiguous ascending run starting
	// one past the highest ID surviving the strip.
	nextRelID := MaxRelID(relsXML) + 1

	contentLayout, ok := catalog[CategoryContent]
	if !ok {
		return fmt.Errorf("layout catalog has no content entry")
	}

	var sldIDs strings.Builder
	var newRels strings.Builder
	var newOverrides strings.Builder

	for i, rec := range records {
		slideNum := i + 1
		layout, ok := catalog[rec.Layout]
		if !ok {
			if rec.Layout != "" {
				log.Printf("[BUILD] unknown layout category %q on slide %d, using content layout", rec.Layout, slideNum)
			}
			layout = contentLayout
		}

		positions := layoutPositions(a, layout.LayoutFile)
		slidePath := fmt.Sprintf("ppt/slides/slide%d.xml", slideNum)
		a.SetText(slidePath, SynthesizeSlide(rec, layout, positions))

		notes := strings.TrimSpace(rec.Notes)
		hasNotes := notes != ""

		// Per-slide relationship part: the chosen layout, plus the notes
		// slide when one is emitted.
		var sr strings.Builder
		sr.WriteString(xmlDecl)
		fmt.Fprintf(&sr, `<Relationships xmlns="%s">`, nsRelationships)
		fmt.Fprintf(&sr, `<Relationship Id="rId1" Type="%s" Target="../slideLayouts/%s"/>`, relTypeLayout, layout.LayoutFile)
		if hasNotes {
			fmt.Fprintf(&sr, `<Relationship Id="rId2" Type="%s" Target="../notesSlides/notesSlide%d.xml"/>`, relTypeNotesSlide, slideNum)
		}
		sr.WriteString(`</Relationships>`)
		a.SetText(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", slideNum), sr.String())

		if hasNotes {
			notesPath := fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", slideNum)
			a.SetText(notesPath, SynthesizeNotesSlide(notes))
			var nr strings.Builder
			nr.WriteString(xmlDecl)
			fmt.Fprintf(&nr, `<Relationships xmlns="%s">`, nsRelationships)
			fmt.Fprintf(&nr, `<Relationship Id="rId1" Type="%s" Target="../slides/slide%d.xml"/>`, relTypeSlide, slideNum)
			nr.WriteString(`</Relationships>`)
			a.SetText(fmt.Sprintf("ppt/notesSlides/_rels/notesSlide%d.xml.rels", slideNum), nr.String())
			fmt.Fprintf(&newOverrides, `<Override PartName="/%s" ContentType="%s"/>`, notesPath, ctNotesSlide)
		}

		relID := nextRelID + i
		fmt.Fprintf(&sldIDs, `<p:sldId id="%d" r:id="rId%d"/>`, slideIDBase+i, relID)
		fmt.Fprintf(&newRels, `<Relationship Id="rId%d" Type="%s" Target="slides/slide%d.xml"/>`, relID, relTypeSlide, slideNum)
		fmt.Fprintf(&newOverrides, `<Override PartName="/%s" ContentType="%s"/>`, slidePath, ctSlide)
	}

	// The manifest's ordered slide list determines slide order in the final
	// file; it must mirror the input record order exactly.
	listXML := "<p:sldIdLst>" + sldIDs.String() + "</p:sldIdLst>"
	if len(records) == 0 {
		listXML = "<p:sldIdLst/>"
	}
	presXML = ReplaceSlideIDList(presXML, listXML)
	relsXML = AppendBeforeClose(relsXML, "</Relationships>", newRels.String())
	typesXML = AppendBeforeClose(typesXML, "</Types>", newOverrides.String())

	a.SetText(presentationPart, presXML)
	a.SetText(presentationRels, relsXML)
	a.SetText(contentTypesPart, typesXML)
	return nil
}

// layoutPositions parses the referenced layout part and returns explicit
// placeholder rectangles keyed by (type, native idx). An unreadable layout
// part degrades to position-less emission for that slide's shapes; it never
// aborts the generation.
func layoutPositions(a *Archive, layoutFile string) map[string]Position {
	if layoutFile == "" {
		return nil
	}
	data, ok := a.Entry(layoutDir + layoutFile)
	if !ok {
		log.Printf("[BUILD] layout part %s missing from template, emitting shapes without positions", layoutFile)
		return nil
	}
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		log.Printf("[BUILD] layout part %s unparseable, emitting shapes without positions: %v", layoutFile, err)
		return nil
	}

	positions := make(map[string]Position)
	for _, sp := range xmlquery.Find(doc, "//*[local-name()='spTree']/*[local-name()='sp']") {
		ph := sp.SelectElement(".//*[local-name()='ph']")
		if ph == nil {
			continue
		}
		phType := ph.SelectAttr("type")
		if phType == "" {
			phType = phBody
		}
		if pos := shapePosition(sp); pos != nil {
			positions[PlaceholderKey(phType, ph.SelectAttr("idx"))] = *pos
		}
	}
	return positions
}
