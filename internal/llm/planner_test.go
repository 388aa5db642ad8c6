package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"deckforge/internal/pptx"
)

func testCatalog() map[string]pptx.LayoutConfig {
	return map[string]pptx.LayoutConfig{
		"title": {
			LayoutFile: "ppt/slideLayouts/slideLayout1.xml",
			Category:   pptx.CategoryTitle,
			Placeholders: []pptx.PlaceholderDef{
				{Idx: "0", Type: "ctrTitle"},
				{Idx: "1", Type: "subTitle"},
			},
			Rules: "Keep the subtitle under ten words.",
		},
		"content": {
			LayoutFile: "ppt/slideLayouts/slideLayout2.xml",
			Category:   pptx.CategoryContent,
			Placeholders: []pptx.PlaceholderDef{
				{Idx: "0", Type: "title"},
				{Idx: "1", Type: "body"},
			},
			UserLabel: "Bulleted content",
		},
	}
}

func TestBuildMessagesDescribesCatalog(t *testing.T) {
	msgs := BuildMessages(PlanRequest{
		Topic:      "Q3 results",
		Audience:   "executives",
		SlideCount: 5,
		Catalog:    testCatalog(),
		Overrides:  pptx.PromptOverrides{StyleRules: "No jargon."},
	})
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	sys, user := msgs[0].Content, msgs[1].Content

	for _, want := range []string{`"content"`, `"title"`, "0=ctrTitle", "1=body", "Bulleted content", "Keep the subtitle under ten words.", "No jargon."} {
		if !strings.Contains(sys, want) {
			t.Errorf("system message missing %q", want)
		}
	}
	if !strings.Contains(user, "Q3 results") || !strings.Contains(user, "executives") {
		t.Errorf("user message missing topic or audience: %q", user)
	}
	if !strings.Contains(user, "exactly 5 slides") {
		t.Errorf("user message missing slide count: %q", user)
	}
}

func TestDecodeRecordsPlainJSON(t *testing.T) {
	raw := `[{"layout":"title","texts":{"0":"Hello","1":"World"}},{"layout":"content","texts":{"0":"Part 1","1":"a\nb"},"notes":"Say hi."}]`
	records, err := DecodeRecords(raw)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Layout != "title" || records[0].Texts["0"] != "Hello" {
		t.Errorf("record 0 mismatch: %+v", records[0])
	}
	if records[1].Notes != "Say hi." {
		t.Errorf("record 1 notes = %q", records[1].Notes)
	}
}

func TestDecodeRecordsStripsFences(t *testing.T) {
	raw := "```json\n[{\"layout\":\"title\",\"texts\":{\"0\":\"T\"}}]\n```"
	records, err := DecodeRecords(raw)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(records) != 1 || records[0].Texts["0"] != "T" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestDecodeRecordsRepairsBrokenJSON(t *testing.T) {
	// Trailing comma, the most common model output defect.
	raw := `[{"layout":"title","texts":{"0":"T"},},]`
	records, err := DecodeRecords(raw)
	if err != nil {
		t.Fatalf("DecodeRecords did not repair: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
}

func TestDecodeRecordsRejectsGarbage(t *testing.T) {
	if _, err := DecodeRecords("I cannot help with that."); err == nil {
		t.Error("expected error for non-JSON response")
	}
}

func TestPlanAgainstStubServer(t *testing.T) {
	content := `[{"layout":"title","texts":{"0":"Hi","1":"Sub"}},{"layout":"content","texts":{"0":"One","1":"a\nb"}}]`
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("got %d messages, want 2", len(req.Messages))
		}
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}},
		})
	}))
	defer srv.Close()

	p := NewAPIPlanner(srv.URL, "test-key", "test-model", 0.4, 1024)
	records, err := p.Plan(PlanRequest{
		Topic:      "Testing",
		SlideCount: 2,
		Catalog:    testCatalog(),
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestPlanSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(chatResponse{Error: &apiError{Message: "bad key", Type: "auth"}})
	}))
	defer srv.Close()

	p := NewAPIPlanner(srv.URL, "wrong", "m", 0, 0)
	_, err := p.Plan(PlanRequest{Topic: "x", SlideCount: 1, Catalog: testCatalog()})
	if err == nil {
		t.Fatal("expected error from API failure")
	}
	if !strings.Contains(err.Error(), "bad key") {
		t.Errorf("error does not surface API message: %v", err)
	}
}

func TestPlanValidatesInput(t *testing.T) {
	p := NewAPIPlanner("http://unused", "", "m", 0, 0)
	if _, err := p.Plan(PlanRequest{Topic: "  ", SlideCount: 3}); err == nil {
		t.Error("expected error for empty topic")
	}
	if _, err := p.Plan(PlanRequest{Topic: "x", SlideCount: 0}); err == nil {
		t.Error("expected error for zero slide count")
	}
}
