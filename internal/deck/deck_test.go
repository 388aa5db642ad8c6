package deck

import (
	"fmt"
	"path/filepath"
	"testing"

	"deckforge/internal/blobstore"
	"deckforge/internal/db"
	"deckforge/internal/llm"
	"deckforge/internal/pptx"
	"deckforge/internal/store"
)

// stubPlanner returns canned records or a fixed error.
type stubPlanner struct {
	records []pptx.ContentRecord
	err     error
	lastReq llm.PlanRequest
}

func (p *stubPlanner) Plan(req llm.PlanRequest) ([]pptx.ContentRecord, error) {
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return p.records, nil
}

func testService(t *testing.T, planner llm.Planner) (*Service, *store.TemplateStore, *store.GenerationStore) {
	t.Helper()
	database, err := db.InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	bs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	ts := store.NewTemplateStore(database)
	gs := store.NewGenerationStore(database)
	return NewService(ts, bs, gs, planner, 10), ts, gs
}

func titleAndContent(n int) []pptx.ContentRecord {
	records := []pptx.ContentRecord{
		{Layout: "title", Texts: map[string]string{"0": "Deck", "1": "Subtitle"}},
	}
	for i := 1; i < n; i++ {
		records = append(records, pptx.ContentRecord{
			Layout: "content",
			Texts:  map[string]string{"0": fmt.Sprintf("Part %d", i), "1": "one\ntwo"},
		})
	}
	return records
}

func TestGenerateWithBuiltinTemplate(t *testing.T) {
	planner := &stubPlanner{records: titleAndContent(4)}
	svc, _, gs := testService(t, planner)

	result, err := svc.Generate(GenerateRequest{Topic: "Quarterly review", SlideCount: 4})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.SlideCount != 4 {
		t.Errorf("SlideCount = %d, want 4", result.SlideCount)
	}
	if len(result.Data) == 0 {
		t.Fatal("empty package")
	}
	if result.TemplateID != "" {
		t.Errorf("TemplateID = %q, want empty for builtin template", result.TemplateID)
	}

	// The planner saw the request shape the pipeline is supposed to pass on.
	if planner.lastReq.SlideCount != 4 || planner.lastReq.Topic != "Quarterly review" {
		t.Errorf("planner request = %+v", planner.lastReq)
	}

	// Success is recorded.
	list, err := gs.List(10)
	if err != nil {
		t.Fatalf("List generations: %v", err)
	}
	if len(list) != 1 || list[0].Status != "success" || list[0].SlideCount != 4 {
		t.Errorf("generation audit = %+v", list)
	}
	if result.GenerationID != list[0].ID {
		t.Errorf("GenerationID = %q, audit row = %q", result.GenerationID, list[0].ID)
	}
}

func TestGenerateClampsSlideCount(t *testing.T) {
	planner := &stubPlanner{records: titleAndContent(3)}
	svc, _, _ := testService(t, planner) // maxSlides = 10

	if _, err := svc.Generate(GenerateRequest{Topic: "Big deck", SlideCount: 500}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if planner.lastReq.SlideCount != 10 {
		t.Errorf("planner asked for %d slides, want clamp to 10", planner.lastReq.SlideCount)
	}
}

func TestGenerateTruncatesOverlongPlan(t *testing.T) {
	// Planner ignores the request and returns more slides than allowed.
	planner := &stubPlanner{records: titleAndContent(15)}
	svc, _, _ := testService(t, planner)

	result, err := svc.Generate(GenerateRequest{Topic: "Verbose", SlideCount: 5})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.SlideCount != 10 {
		t.Errorf("SlideCount = %d, want truncation to 10", result.SlideCount)
	}
}

func TestGenerateRecordsPlannerFailure(t *testing.T) {
	planner := &stubPlanner{err: fmt.Errorf("planner unavailable")}
	svc, _, gs := testService(t, planner)

	if _, err := svc.Generate(GenerateRequest{Topic: "Doomed"}); err == nil {
		t.Fatal("expected error from planner failure")
	}

	list, err := gs.List(10)
	if err != nil {
		t.Fatalf("List generations: %v", err)
	}
	if len(list) != 1 || list[0].Status != "failed" {
		t.Fatalf("audit = %+v", list)
	}
	if list[0].Error == "" {
		t.Error("failed audit row has no error message")
	}
}

func TestImportTemplateActivatesFirst(t *testing.T) {
	svc, ts, _ := testService(t, &stubPlanner{})

	rec, err := svc.ImportTemplate("Minimal", pptx.DefaultTemplate())
	if err != nil {
		t.Fatalf("ImportTemplate: %v", err)
	}
	if !rec.Active {
		t.Error("first imported template not active")
	}
	if got, _ := ts.GetActive(); got != rec.ID {
		t.Errorf("GetActive = %q, want %q", got, rec.ID)
	}

	// A second import does not steal the active pointer.
	rec2, err := svc.ImportTemplate("Second", pptx.DefaultTemplate())
	if err != nil {
		t.Fatalf("ImportTemplate second: %v", err)
	}
	if rec2.Active {
		t.Error("second import should not become active")
	}
	if got, _ := ts.GetActive(); got != rec.ID {
		t.Errorf("active pointer moved to %q", got)
	}
}

func TestImportTemplateRejectsGarbage(t *testing.T) {
	svc, ts, _ := testService(t, &stubPlanner{})

	if _, err := svc.ImportTemplate("Bad", []byte("not a zip")); err == nil {
		t.Fatal("garbage upload accepted")
	}
	list, err := ts.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("rejected upload left %d template rows", len(list))
	}
}

func TestGenerateWithImportedTemplate(t *testing.T) {
	planner := &stubPlanner{records: titleAndContent(3)}
	svc, _, _ := testService(t, planner)

	rec, err := svc.ImportTemplate("Minimal", pptx.DefaultTemplate())
	if err != nil {
		t.Fatalf("ImportTemplate: %v", err)
	}

	result, err := svc.Generate(GenerateRequest{Topic: "Topic", SlideCount: 3})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.TemplateID != rec.ID {
		t.Errorf("TemplateID = %q, want active template %q", result.TemplateID, rec.ID)
	}
	// The planner must receive the stored catalog, not the builtin one.
	if len(planner.lastReq.Catalog) == 0 {
		t.Error("planner received empty catalog")
	}
}

func TestBuildFromRecords(t *testing.T) {
	svc, _, gs := testService(t, &stubPlanner{})

	data, err := svc.BuildFromRecords("", titleAndContent(2))
	if err != nil {
		t.Fatalf("BuildFromRecords: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty package")
	}

	// CLI builds are not audited.
	list, err := gs.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("BuildFromRecords recorded %d generations", len(list))
	}
}
