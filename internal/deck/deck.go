// Package deck orchestrates deck generation: it resolves the template to
// use, asks the content planner for slide records, runs the synthesis
// engine, and verifies that the produced package opens as a presentation.
package deck

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"time"

	goppt "github.com/VantageDataChat/GoPPT"

	"deckforge/internal/blobstore"
	"deckforge/internal/errlog"
	"deckforge/internal/llm"
	"deckforge/internal/pptx"
	"deckforge/internal/store"
)

// Service binds the stores and the planner into the generation pipeline.
type Service struct {
	templates *store.TemplateStore
	blobs     *blobstore.Store
	gens      *store.GenerationStore
	planner   llm.Planner
	maxSlides int
}

// NewService creates a deck Service. maxSlides caps the per-deck slide count;
// zero selects a default of 30.
func NewService(templates *store.TemplateStore, blobs *blobstore.Store, gens *store.GenerationStore, planner llm.Planner, maxSlides int) *Service {
	if maxSlides <= 0 {
		maxSlides = 30
	}
	return &Service{
		templates: templates,
		blobs:     blobs,
		gens:      gens,
		planner:   planner,
		maxSlides: maxSlides,
	}
}

// SetPlanner swaps the content planner. Called after LLM config updates.
func (s *Service) SetPlanner(p llm.Planner) {
	s.planner = p
}

// ImportTemplate extracts a descriptor from uploaded template bytes and
// stores both the descriptor and the blob. The first imported template
// becomes the active one automatically.
func (s *Service) ImportTemplate(name string, data []byte) (*store.TemplateRecord, error) {
	desc, err := pptx.Extract(data)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		name = "Untitled template"
	}
	rec, err := s.templates.Create(name, name, desc)
	if err != nil {
		return nil, err
	}
	if err := s.blobs.Save(rec.ID, data); err != nil {
		// The descriptor row without its blob is useless; roll it back.
		if delErr := s.templates.Delete(rec.ID); delErr != nil {
			log.Printf("[DECK] orphaned template row %s: %v", rec.ID, delErr)
		}
		return nil, err
	}

	active, _ := s.templates.GetActive()
	if active == "" {
		if err := s.templates.SetActive(rec.ID); err != nil {
			log.Printf("[DECK] failed to activate first template %s: %v", rec.ID, err)
		} else {
			rec.Active = true
		}
	}
	return rec, nil
}

// DeleteTemplate removes a template record and its blob.
func (s *Service) DeleteTemplate(id string) error {
	if err := s.templates.Delete(id); err != nil {
		return err
	}
	s.blobs.Delete(id)
	return nil
}

// GenerateRequest describes one deck to produce.
type GenerateRequest struct {
	Topic      string `json:"topic"`
	Audience   string `json:"audience,omitempty"`
	SlideCount int    `json:"slide_count,omitempty"`
	TemplateID string `json:"template_id,omitempty"`
}

// GenerateResult is the produced package plus its audit identifiers.
type GenerateResult struct {
	Data         []byte
	GenerationID string
	SlideCount   int
	TemplateID   string
}

// Generate runs the full pipeline: plan content for the topic, synthesize
// slides into the selected (or active, or built-in) template, and verify
// the output. Every attempt is recorded in the generations table.
func (s *Service) Generate(req GenerateRequest) (*GenerateResult, error) {
	start := time.Now()

	count := req.SlideCount
	if count <= 0 {
		count = 8
	}
	if count > s.maxSlides {
		count = s.maxSlides
	}

	templateBytes, catalog, overrides, templateID, err := s.resolveTemplate(req.TemplateID)
	if err != nil {
		s.recordFailure(req, templateID, start, err)
		return nil, err
	}

	records, err := s.planner.Plan(llm.PlanRequest{
		Topic:      req.Topic,
		Audience:   req.Audience,
		SlideCount: count,
		Catalog:    catalog,
		Overrides:  overrides,
	})
	if err != nil {
		s.recordFailure(req, templateID, start, err)
		return nil, err
	}
	if len(records) > s.maxSlides {
		records = records[:s.maxSlides]
	}

	data, err := pptx.Build(templateBytes, catalog, records)
	if err != nil {
		s.recordFailure(req, templateID, start, err)
		return nil, err
	}

	if err := verifyPackage(data, len(records)); err != nil {
		errlog.Logf("[DECK] generated package failed verification: %v", err)
		s.recordFailure(req, templateID, start, err)
		return nil, err
	}

	genID, err := s.gens.Record(store.GenerationRecord{
		TemplateID: templateID,
		Title:      req.Topic,
		SlideCount: len(records),
		Status:     "success",
		DurationMS: time.Since(start).Milliseconds(),
	})
	if err != nil {
		log.Printf("[DECK] failed to record generation: %v", err)
	}

	return &GenerateResult{
		Data:         data,
		GenerationID: genID,
		SlideCount:   len(records),
		TemplateID:   templateID,
	}, nil
}

// BuildFromRecords synthesizes a deck from pre-written content records,
// bypassing the planner. Used by the CLI build path.
func (s *Service) BuildFromRecords(templateID string, records []pptx.ContentRecord) ([]byte, error) {
	templateBytes, catalog, _, _, err := s.resolveTemplate(templateID)
	if err != nil {
		return nil, err
	}
	data, err := pptx.Build(templateBytes, catalog, records)
	if err != nil {
		return nil, err
	}
	if err := verifyPackage(data, len(records)); err != nil {
		return nil, err
	}
	return data, nil
}

// resolveTemplate returns the template bytes and catalog for an explicit ID,
// the active template, or the built-in default when nothing is stored.
func (s *Service) resolveTemplate(id string) (data []byte, catalog map[string]pptx.LayoutConfig, overrides pptx.PromptOverrides, templateID string, err error) {
	if id == "" {
		id, err = s.templates.GetActive()
		if err != nil {
			return nil, nil, overrides, "", err
		}
	}
	if id == "" {
		// No stored templates: use the compiled-in default.
		return nil, nil, overrides, "", nil
	}

	rec, err := s.templates.Get(id)
	if err != nil {
		return nil, nil, overrides, id, err
	}
	data, err = s.blobs.Load(id)
	if err != nil {
		return nil, nil, overrides, id, err
	}
	return data, rec.Descriptor.Layouts, rec.Descriptor.PromptOverrides, id, nil
}

func (s *Service) recordFailure(req GenerateRequest, templateID string, start time.Time, cause error) {
	if _, err := s.gens.Record(store.GenerationRecord{
		TemplateID: templateID,
		Title:      req.Topic,
		SlideCount: 0,
		Status:     "failed",
		Error:      cause.Error(),
		DurationMS: time.Since(start).Milliseconds(),
	}); err != nil {
		log.Printf("[DECK] failed to record failed generation: %v", err)
	}
}

// verifyPackage opens the produced bytes with an independent reader and
// checks the slide count. Catches relinker regressions before a corrupt
// file reaches the user.
func verifyPackage(data []byte, wantSlides int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("presentation reader panicked: %v", r)
		}
	}()

	pres, err := goppt.ReadFrom(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("generated package does not open: %w", err)
	}
	defer pres.Close()

	if got := len(pres.Slides()); got != wantSlides {
		return fmt.Errorf("generated package has %d slides, want %d", got, wantSlides)
	}
	return nil
}
