package pptx

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"testing"
)

// templateWithExistingSlides builds a template that already contains two
// sample slides, a notes slide, and a relationship table whose highest ID
// is rId5 after the slide entries are stripped.
func templateWithExistingSlides() []byte {
	return fixtureTemplate(func(a *Archive) {
		a.SetText("ppt/slides/slide1.xml", SynthesizeSlide(ContentRecord{}, DefaultCatalog()[CategoryContent], nil))
		a.SetText("ppt/slides/slide2.xml", SynthesizeSlide(ContentRecord{}, DefaultCatalog()[CategoryContent], nil))
		a.SetText("ppt/slides/_rels/slide1.xml.rels", xmlDecl+`<Relationships xmlns="`+nsRelationships+`"/>`)
		a.SetText("ppt/slides/_rels/slide2.xml.rels", xmlDecl+`<Relationships xmlns="`+nsRelationships+`"/>`)
		a.SetText("ppt/notesSlides/notesSlide1.xml", SynthesizeNotesSlide("old notes"))
		a.SetText("ppt/notesSlides/_rels/notesSlide1.xml.rels", xmlDecl+`<Relationships xmlns="`+nsRelationships+`"/>`)

		// rId1 master, rId2 theme, rId3..5 padding; rId6/rId7 slides and
		// rId8 a notes slide, all of which must be stripped.
		a.SetText(presentationRels, xmlDecl+`<Relationships xmlns="`+nsRelationships+`">`+
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>`+
			`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="theme/theme1.xml"/>`+
			`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/presProps" Target="presProps.xml"/>`+
			`<Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/viewProps" Target="viewProps.xml"/>`+
			`<Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/tableStyles" Target="tableStyles.xml"/>`+
			`<Relationship Id="rId6" Type="`+relTypeSlide+`" Target="slides/slide1.xml"/>`+
			`<Relationship Id="rId7" Type="`+relTypeSlide+`" Target="slides/slide2.xml"/>`+
			`<Relationship Id="rId8" Type="`+relTypeNotesSlide+`" Target="notesSlides/notesSlide1.xml"/>`+
			`</Relationships>`)

		pres, _ := a.Text(presentationPart)
		pres = ReplaceSlideIDList(pres, `<p:sldIdLst><p:sldId id="300" r:id="rId6"/><p:sldId id="301" r:id="rId7"/></p:sldIdLst>`)
		a.SetText(presentationPart, pres)
	})
}

func threeRecords() []ContentRecord {
	return []ContentRecord{
		{Layout: CategoryTitle, Texts: map[string]string{"0": "Deck", "1": "Subtitle"}},
		{Layout: CategoryContent, Texts: map[string]string{"0": "One", "1": "Body"}},
		{Layout: CategoryContent, Texts: map[string]string{"0": "Two", "1": "Body"}},
	}
}

func TestBuild_SlideCountMatchesRecords(t *testing.T) {
	out, err := Build(templateWithExistingSlides(), DefaultCatalog(), threeRecords())
	if err != nil {
		t.Fatal(err)
	}
	a, err := OpenArchive(out)
	if err != nil {
		t.Fatal(err)
	}

	var slides []string
	for _, p := range a.List("ppt/slides/") {
		if slidePartRe.MatchString(p) {
			slides = append(slides, p)
		}
	}
	if len(slides) != 3 {
		t.Errorf("expected exactly 3 slide parts, got %v", slides)
	}
}

func TestBuild_RelIDsContinuePastStrippedMax(t *testing.T) {
	// Highest surviving ID is rId5, so the three new slides take rId6..8.
	out, err := Build(templateWithExistingSlides(), DefaultCatalog(), threeRecords())
	if err != nil {
		t.Fatal(err)
	}
	a, _ := OpenArchive(out)
	rels, _ := a.Text(presentationRels)
	pres, _ := a.Text(presentationPart)

	for i, rid := range []string{"rId6", "rId7", "rId8"} {
		want := fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="slides/slide%d.xml"/>`, rid, relTypeSlide, i+1)
		if !strings.Contains(rels, want) {
			t.Errorf("missing relationship %s:\n%s", want, rels)
		}
	}
	if !strings.Contains(pres, `<p:sldId id="256" r:id="rId6"/><p:sldId id="257" r:id="rId7"/><p:sldId id="258" r:id="rId8"/>`) {
		t.Errorf("manifest IDs not contiguous from baseline: %s", pres)
	}
}

func TestBuild_RelIDsUnique(t *testing.T) {
	out, err := Build(templateWithExistingSlides(), DefaultCatalog(), threeRecords())
	if err != nil {
		t.Fatal(err)
	}
	a, _ := OpenArchive(out)
	rels, _ := a.Text(presentationRels)

	seen := make(map[string]bool)
	for _, m := range regexp.MustCompile(`Id="(rId\d+)"`).FindAllStringSubmatch(rels, -1) {
		if seen[m[1]] {
			t.Errorf("duplicate relationship ID %s:\n%s", m[1], rels)
		}
		seen[m[1]] = true
	}
}

func TestBuild_OrderFollowsRecords(t *testing.T) {
	records := []ContentRecord{
		{Layout: CategoryContent, Texts: map[string]string{"0": "Alpha"}},
		{Layout: CategoryContent, Texts: map[string]string{"0": "Beta"}},
	}
	out, err := Build(nil, nil, records)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := OpenArchive(out)
	s1, _ := a.Text("ppt/slides/slide1.xml")
	s2, _ := a.Text("ppt/slides/slide2.xml")
	if !strings.Contains(s1, "Alpha") || !strings.Contains(s2, "Beta") {
		t.Errorf("slide order does not follow record order")
	}

	// Reordering the input reorders the output identically.
	out2, err := Build(nil, nil, []ContentRecord{records[1], records[0]})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := OpenArchive(out2)
	s1b, _ := b.Text("ppt/slides/slide1.xml")
	if !strings.Contains(s1b, "Beta") {
		t.Errorf("reordered input must reorder output")
	}
}

func TestBuild_StripsTemplateSlides(t *testing.T) {
	// Zero records: the output has no slides no matter how many the
	// template shipped with.
	out, err := Build(templateWithExistingSlides(), DefaultCatalog(), nil)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := OpenArchive(out)
	for _, p := range a.List("ppt/slides/") {
		t.Errorf("unexpected surviving slide part %s", p)
	}
	for _, p := range a.List("ppt/notesSlides/") {
		t.Errorf("unexpected surviving notes part %s", p)
	}
	rels, _ := a.Text(presentationRels)
	if strings.Contains(rels, relTypeSlide+`"`) {
		t.Errorf("stale slide relationships: %s", rels)
	}
}

func TestBuild_PreservesUntouchedParts(t *testing.T) {
	media := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01, 0x02}
	src := fixtureTemplate(func(a *Archive) {
		a.SetEntry("ppt/media/image1.png", media)
	})
	srcArchive, _ := OpenArchive(src)

	out, err := Build(src, DefaultCatalog(), threeRecords())
	if err != nil {
		t.Fatal(err)
	}
	outArchive, _ := OpenArchive(out)

	touched := func(p string) bool {
		return slidePartRe.MatchString(p) || slideRelPartRe.MatchString(p) ||
			notesPartRe.MatchString(p) || notesRelPartRe.MatchString(p) ||
			p == presentationPart || p == presentationRels || p == contentTypesPart
	}
	for _, p := range srcArchive.List("") {
		if touched(p) {
			continue
		}
		want, _ := srcArchive.Entry(p)
		got, ok := outArchive.Entry(p)
		if !ok {
			t.Errorf("part %s dropped", p)
			continue
		}
		if !bytes.Equal(want, got) {
			t.Errorf("part %s not byte-identical", p)
		}
	}
}

func TestBuild_NotesConditionality(t *testing.T) {
	records := []ContentRecord{
		{Layout: CategoryContent, Texts: map[string]string{"0": "No notes"}, Notes: "   \n\t"},
		{Layout: CategoryContent, Texts: map[string]string{"0": "Has notes"}, Notes: "Remember the demo"},
	}
	out, err := Build(nil, nil, records)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := OpenArchive(out)

	if a.Has("ppt/notesSlides/notesSlide1.xml") {
		t.Error("whitespace-only notes must not produce a notes part")
	}
	notes, ok := a.Text("ppt/notesSlides/notesSlide2.xml")
	if !ok {
		t.Fatal("non-empty notes must produce a notes part")
	}
	if !strings.Contains(notes, "Remember the demo") {
		t.Errorf("notes text missing: %s", notes)
	}

	// Notes rels back-reference the owning slide by path.
	nr, ok := a.Text("ppt/notesSlides/_rels/notesSlide2.xml.rels")
	if !ok || !strings.Contains(nr, `Target="../slides/slide2.xml"`) {
		t.Errorf("notes relationship must reference its slide: %s", nr)
	}
	// And the slide rels reference the notes part.
	sr, _ := a.Text("ppt/slides/_rels/slide2.xml.rels")
	if !strings.Contains(sr, "notesSlide2.xml") {
		t.Errorf("slide relationship must reference its notes part: %s", sr)
	}
	// Content-type override only for the notes part actually created.
	types, _ := a.Text(contentTypesPart)
	if got := strings.Count(types, ctNotesSlide); got != 1 {
		t.Errorf("expected exactly 1 notes override, got %d", got)
	}
}

func TestBuild_UnknownCategoryFallsBackToContent(t *testing.T) {
	records := []ContentRecord{
		{Layout: "keynote-hero", Texts: map[string]string{"0": "Fallback"}},
	}
	out, err := Build(nil, nil, records)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := OpenArchive(out)
	sr, _ := a.Text("ppt/slides/_rels/slide1.xml.rels")
	if !strings.Contains(sr, "slideLayout2.xml") {
		t.Errorf("unknown category must bind the content layout: %s", sr)
	}
}

func TestBuild_MissingLayoutPartDegradesGracefully(t *testing.T) {
	src := fixtureTemplate(func(a *Archive) {
		a.Remove("ppt/slideLayouts/slideLayout2.xml")
	})
	out, err := Build(src, DefaultCatalog(), []ContentRecord{
		{Layout: CategoryContent, Texts: map[string]string{"0": "Still works"}},
	})
	if err != nil {
		t.Fatalf("missing layout part must not abort generation: %v", err)
	}
	a, _ := OpenArchive(out)
	slide, _ := a.Text("ppt/slides/slide1.xml")
	if strings.Contains(slide, "<a:xfrm>") && strings.Count(slide, "<a:xfrm>") > 1 {
		t.Errorf("shapes must be emitted without positions: %s", slide)
	}
	if !strings.Contains(slide, "Still works") {
		t.Errorf("slide content missing: %s", slide)
	}
}

func TestBuild_MissingConsistencyPartsFatal(t *testing.T) {
	for _, part := range []string{presentationPart, presentationRels, contentTypesPart} {
		src := fixtureTemplate(func(a *Archive) {
			a.Remove(part)
		})
		if _, err := Build(src, DefaultCatalog(), threeRecords()); err == nil {
			t.Errorf("missing %s must be fatal", part)
		}
	}
}

func TestBuild_DefaultTemplateProducesOpenableArchive(t *testing.T) {
	out, err := Build(nil, nil, threeRecords())
	if err != nil {
		t.Fatal(err)
	}
	a, err := OpenArchive(out)
	if err != nil {
		t.Fatalf("output is not a readable archive: %v", err)
	}
	types, _ := a.Text(contentTypesPart)
	if got := strings.Count(types, `ContentType="`+ctSlide+`"`); got != 3 {
		t.Errorf("expected 3 slide overrides, got %d", got)
	}
}

func TestBuild_ContentTypeOverridesPerSlide(t *testing.T) {
	out, err := Build(templateWithExistingSlides(), DefaultCatalog(), threeRecords())
	if err != nil {
		t.Fatal(err)
	}
	a, _ := OpenArchive(out)
	types, _ := a.Text(contentTypesPart)
	for i := 1; i <= 3; i++ {
		want := fmt.Sprintf(`<Override PartName="/ppt/slides/slide%d.xml" ContentType="%s"/>`, i, ctSlide)
		if !strings.Contains(types, want) {
			t.Errorf("missing override for slide %d:\n%s", i, types)
		}
	}
}
