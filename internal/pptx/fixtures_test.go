package pptx

import (
	"fmt"
	"strings"
)

// testPh describes one placeholder in a fixture layout: type, native idx
// (empty for the implicit zero), and an optional "x,y,w,h" rectangle.
type testPh struct {
	typ  string
	idx  string
	rect string
}

// fixtureLayout renders a minimal layout part with the given display name
// and placeholders.
func fixtureLayout(name string, phs ...testPh) string {
	var sb strings.Builder
	sb.WriteString(xmlDecl)
	sb.WriteString(`<p:sldLayout xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">`)
	fmt.Fprintf(&sb, `<p:cSld name="%s"><p:spTree>`, name)
	sb.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`)
	for i, ph := range phs {
		fmt.Fprintf(&sb, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="Shape %d"/><p:cNvSpPr/><p:nvPr>`, i+2, i+1)
		if ph.idx != "" {
			fmt.Fprintf(&sb, `<p:ph type="%s" idx="%s"/>`, ph.typ, ph.idx)
		} else {
			fmt.Fprintf(&sb, `<p:ph type="%s"/>`, ph.typ)
		}
		sb.WriteString(`</p:nvPr></p:nvSpPr>`)
		if ph.rect != "" {
			var x, y, w, h int64
			fmt.Sscanf(ph.rect, "%d,%d,%d,%d", &x, &y, &w, &h)
			fmt.Fprintf(&sb, `<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm></p:spPr>`, x, y, w, h)
		} else {
			sb.WriteString(`<p:spPr/>`)
		}
		sb.WriteString(`<p:txBody><a:bodyPr/><a:lstStyle/><a:p><a:endParaRPr lang="en-US"/></a:p></p:txBody></p:sp>`)
	}
	sb.WriteString(`</p:spTree></p:cSld></p:sldLayout>`)
	return sb.String()
}

// fixtureTemplate starts from the built-in default template and lets a test
// replace or add parts before serializing.
func fixtureTemplate(mutate func(a *Archive)) []byte {
	a, err := OpenArchive(DefaultTemplate())
	if err != nil {
		panic(err)
	}
	if mutate != nil {
		mutate(a)
	}
	data, err := a.Bytes()
	if err != nil {
		panic(err)
	}
	return data
}
