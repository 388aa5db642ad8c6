// Package store persists template descriptors and generation records.
// Template bytes themselves live in the blob store; this package owns the
// structured metadata and the active-template pointer.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"deckforge/internal/pptx"
)

// TemplateRecord is a stored template: its identity plus the extracted
// descriptor.
type TemplateRecord struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"name"`
	SourceName string                   `json:"source_name,omitempty"`
	Descriptor *pptx.TemplateDescriptor `json:"descriptor,omitempty"`
	Active     bool                     `json:"active"`
	CreatedAt  string                   `json:"created_at,omitempty"`
	UpdatedAt  string                   `json:"updated_at,omitempty"`
}

// GenerationRecord is an audit row for one deck generation.
type GenerationRecord struct {
	ID         string `json:"id"`
	TemplateID string `json:"template_id,omitempty"`
	Title      string `json:"title"`
	SlideCount int    `json:"slide_count"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// TemplateStore provides CRUD over template descriptors.
type TemplateStore struct {
	db *sql.DB
}

// NewTemplateStore creates a TemplateStore backed by the given database.
func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// Create stores a new template descriptor and returns its record.
func (ts *TemplateStore) Create(name, sourceName string, desc *pptx.TemplateDescriptor) (*TemplateRecord, error) {
	if desc == nil {
		return nil, fmt.Errorf("descriptor is required")
	}
	data, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("marshal descriptor: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = ts.db.Exec(
		`INSERT INTO templates (id, name, source_name, descriptor, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, sourceName, string(data), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	return &TemplateRecord{
		ID:         id,
		Name:       name,
		SourceName: sourceName,
		Descriptor: desc,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Get returns a template record with its parsed descriptor.
func (ts *TemplateStore) Get(id string) (*TemplateRecord, error) {
	var rec TemplateRecord
	var descJSON string
	var createdAt, updatedAt sql.NullString
	err := ts.db.QueryRow(
		`SELECT id, name, COALESCE(source_name,''), descriptor, created_at, updated_at FROM templates WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Name, &rec.SourceName, &descJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}

	var desc pptx.TemplateDescriptor
	if err := json.Unmarshal([]byte(descJSON), &desc); err != nil {
		return nil, fmt.Errorf("parse stored descriptor: %w", err)
	}
	rec.Descriptor = &desc
	if createdAt.Valid {
		rec.CreatedAt = createdAt.String
	}
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.String
	}

	activeID, _ := ts.GetActive()
	rec.Active = activeID == rec.ID
	return &rec, nil
}

// List returns all template records without descriptors, newest first.
func (ts *TemplateStore) List() ([]TemplateRecord, error) {
	rows, err := ts.db.Query(
		`SELECT id, name, COALESCE(source_name,''), created_at, updated_at FROM templates ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	activeID, _ := ts.GetActive()

	var out []TemplateRecord
	for rows.Next() {
		var rec TemplateRecord
		var createdAt, updatedAt sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.SourceName, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			rec.CreatedAt = createdAt.String
		}
		if updatedAt.Valid {
			rec.UpdatedAt = updatedAt.String
		}
		rec.Active = rec.ID == activeID
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a template record. Deleting the active template clears the
// active pointer.
func (ts *TemplateStore) Delete(id string) error {
	tx, err := ts.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, _ = tx.Exec(`DELETE FROM active_template WHERE template_id = ?`, id)
	result, err := tx.Exec(`DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("template %s not found", id)
	}
	return tx.Commit()
}

// SetActive points the single active-template row at the given template.
func (ts *TemplateStore) SetActive(id string) error {
	var exists string
	err := ts.db.QueryRow(`SELECT id FROM templates WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("template %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("query template: %w", err)
	}
	_, err = ts.db.Exec(
		`INSERT INTO active_template (id, template_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET template_id = excluded.template_id`, id,
	)
	if err != nil {
		return fmt.Errorf("set active template: %w", err)
	}
	return nil
}

// GetActive returns the active template ID, or empty string when none is set.
func (ts *TemplateStore) GetActive() (string, error) {
	var id string
	err := ts.db.QueryRow(`SELECT template_id FROM active_template WHERE id = 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query active template: %w", err)
	}
	return id, nil
}

// UpdateDescriptor applies a JSON merge patch to a stored descriptor:
// object fields merge recursively, null removes a key, and any other value
// replaces the stored one. Used to adjust classification results (layout
// categories, prompt overrides, user labels) without re-uploading.
func (ts *TemplateStore) UpdateDescriptor(id string, patch map[string]interface{}) (*TemplateRecord, error) {
	if len(patch) == 0 {
		return ts.Get(id)
	}

	var descJSON string
	err := ts.db.QueryRow(`SELECT descriptor FROM templates WHERE id = ?`, id).Scan(&descJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}

	var current map[string]interface{}
	if err := json.Unmarshal([]byte(descJSON), &current); err != nil {
		return nil, fmt.Errorf("parse stored descriptor: %w", err)
	}

	merged := mergePatch(current, patch)

	// Round-trip through the typed descriptor so a patch cannot store
	// fields the rest of the system does not understand.
	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal merged descriptor: %w", err)
	}
	var desc pptx.TemplateDescriptor
	if err := json.Unmarshal(mergedJSON, &desc); err != nil {
		return nil, fmt.Errorf("patch produces invalid descriptor: %w", err)
	}
	canonical, err := json.Marshal(&desc)
	if err != nil {
		return nil, fmt.Errorf("marshal descriptor: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = ts.db.Exec(
		`UPDATE templates SET descriptor = ?, updated_at = ? WHERE id = ?`,
		string(canonical), now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update descriptor: %w", err)
	}
	return ts.Get(id)
}

// mergePatch merges patch into current. Nested objects merge key by key;
// a null patch value deletes the key; everything else replaces.
func mergePatch(current, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(current)+len(patch))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		patchObj, patchIsObj := v.(map[string]interface{})
		curObj, curIsObj := out[k].(map[string]interface{})
		if patchIsObj && curIsObj {
			out[k] = mergePatch(curObj, patchObj)
			continue
		}
		out[k] = v
	}
	return out
}

// GenerationStore records deck generation outcomes.
type GenerationStore struct {
	db *sql.DB
}

// NewGenerationStore creates a GenerationStore backed by the given database.
func NewGenerationStore(db *sql.DB) *GenerationStore {
	return &GenerationStore{db: db}
}

// Record inserts a generation audit row and returns its ID.
func (gs *GenerationStore) Record(rec GenerationRecord) (string, error) {
	id := uuid.NewString()
	_, err := gs.db.Exec(
		`INSERT INTO generations (id, template_id, title, slide_count, status, error, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.TemplateID, rec.Title, rec.SlideCount, rec.Status, rec.Error, rec.DurationMS,
	)
	if err != nil {
		return "", fmt.Errorf("insert generation: %w", err)
	}
	return id, nil
}

// List returns the most recent generation records, newest first.
func (gs *GenerationStore) List(limit int) ([]GenerationRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := gs.db.Query(
		`SELECT id, COALESCE(template_id,''), title, slide_count, status, COALESCE(error,''), COALESCE(duration_ms,0), created_at
		 FROM generations ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var out []GenerationRecord
	for rows.Next() {
		var rec GenerationRecord
		var createdAt sql.NullString
		if err := rows.Scan(&rec.ID, &rec.TemplateID, &rec.Title, &rec.SlideCount, &rec.Status, &rec.Error, &rec.DurationMS, &createdAt); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			rec.CreatedAt = createdAt.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
