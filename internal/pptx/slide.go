package pptx

import (
	"fmt"
	"strings"
)

// bodySpacingPts is the extra spacing, in hundredths of a point, applied
// before the first paragraph of body-role placeholders to separate body text
// from the title above it.
const bodySpacingPts = 600

// SynthesizeSlide builds a complete slide document for one content record.
// One shape is emitted per layout placeholder, in the layout's order; a
// placeholder with no text still gets a shape with a single empty paragraph,
// since dropping the shape breaks layout inheritance in some consumers.
//
// positions maps the composite (type, native idx) key to the layout shape's
// explicit rectangle; pass nil to emit every shape without a transform.
func SynthesizeSlide(rec ContentRecord, layout LayoutConfig, positions map[string]Position) string {
	var sb strings.Builder
	sb.WriteString(xmlDecl)
	sb.WriteString(`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">`)
	sb.WriteString(`<p:cSld><p:spTree>`)
	sb.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>`)
	sb.WriteString(`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`)

	// Shape ID 1 is the root group; synthesized shapes count from 2.
	// Uniqueness is per slide document, not global.
	shapeID := 2
	for _, ph := range layout.Placeholders {
		text := rec.Texts[ph.Idx]
		var pos *Position
		if positions != nil {
			if p, ok := positions[PlaceholderKey(ph.Type, ph.PhIdx)]; ok {
				pos = &p
			}
		}
		writeShape(&sb, shapeID, ph, text, pos)
		shapeID++
	}

	sb.WriteString(`</p:spTree></p:cSld>`)
	sb.WriteString(`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>`)
	sb.WriteString(`</p:sld>`)
	return sb.String()
}

// PlaceholderKey is the composite lookup key binding a synthesized shape to
// its layout counterpart: placeholder type AND native index together, with
// an absent index defaulting to the implicit "0".
func PlaceholderKey(phType, phIdx string) string {
	if phIdx == "" {
		phIdx = "0"
	}
	return phType + "/" + phIdx
}

// writeShape emits one placeholder shape. Only the ph marker and (when the
// layout shape carries one) the absolute rectangle are copied from the
// layout; nothing else, so no embedded-resource references leak over.
func writeShape(sb *strings.Builder, id int, ph PlaceholderDef, text string, pos *Position) {
	name := ph.Name
	if name == "" {
		name = fmt.Sprintf("Placeholder %d", id)
	}

	sb.WriteString(`<p:sp><p:nvSpPr>`)
	fmt.Fprintf(sb, `<p:cNvPr id="%d" name="%s"/>`, id, EscapeXML(name))
	sb.WriteString(`<p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>`)
	sb.WriteString(`<p:nvPr>`)
	if ph.PhIdx != "" {
		fmt.Fprintf(sb, `<p:ph type="%s" idx="%s"/>`, ph.Type, ph.PhIdx)
	} else {
		fmt.Fprintf(sb, `<p:ph type="%s"/>`, ph.Type)
	}
	sb.WriteString(`</p:nvPr></p:nvSpPr>`)

	if pos != nil {
		fmt.Fprintf(sb,
			`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm></p:spPr>`,
			pos.X, pos.Y, pos.W, pos.H)
	} else {
		sb.WriteString(`<p:spPr/>`)
	}

	sb.WriteString(`<p:txBody><a:bodyPr/><a:lstStyle/>`)
	writeParagraphs(sb, text, isBodyRole(ph.Type))
	sb.WriteString(`</p:txBody></p:sp>`)
}

// writeParagraphs emits one a:p per input line. Body-role placeholders get
// extra spacing before their first paragraph.
func writeParagraphs(sb *strings.Builder, text string, body bool) {
	if strings.TrimSpace(text) == "" {
		sb.WriteString(`<a:p><a:endParaRPr lang="en-US"/></a:p>`)
		return
	}
	for i, line := range SplitParagraphs(text) {
		sb.WriteString(`<a:p>`)
		if body && i == 0 {
			fmt.Fprintf(sb, `<a:pPr><a:spcBef><a:spcPts val="%d"/></a:spcBef></a:pPr>`, bodySpacingPts)
		}
		if line == "" {
			sb.WriteString(`<a:endParaRPr lang="en-US"/>`)
		} else {
			fmt.Fprintf(sb, `<a:r><a:rPr lang="en-US" dirty="0"/><a:t>%s</a:t></a:r>`, EscapeXML(line))
		}
		sb.WriteString(`</a:p>`)
	}
}

func isBodyRole(phType string) bool {
	return phType == phBody || phType == "obj"
}

// SynthesizeNotesSlide builds a notes-slide document for one slide's
// speaker notes.
func SynthesizeNotesSlide(notes string) string {
	var sb strings.Builder
	sb.WriteString(xmlDecl)
	sb.WriteString(`<p:notes xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">`)
	sb.WriteString(`<p:cSld><p:spTree>`)
	sb.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>`)
	sb.WriteString(`<p:grpSpPr/>`)
	sb.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Notes Placeholder 1"/>`)
	sb.WriteString(`<p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>`)
	sb.WriteString(`<p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr>`)
	sb.WriteString(`<p:spPr/><p:txBody><a:bodyPr/><a:lstStyle/>`)
	writeParagraphs(&sb, notes, false)
	sb.WriteString(`</p:txBody></p:sp>`)
	sb.WriteString(`</p:spTree></p:cSld>`)
	sb.WriteString(`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>`)
	sb.WriteString(`</p:notes>`)
	return sb.String()
}
