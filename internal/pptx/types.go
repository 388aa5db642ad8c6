// Package pptx implements template extraction and presentation synthesis for
// OOXML presentation packages. It treats a .pptx file as a ZIP container of
// interlinked XML parts and performs targeted surgery on the handful of parts
// that must change (manifest, relationship table, content-type registry,
// slides, notes), leaving everything else byte-identical.
package pptx

// EMU geometry constants. 914400 EMUs per inch; the defaults are the
// standard 16:9 slide size.
const (
	EMUPerInch         = 914400
	DefaultSlideWidth  = 12192000
	DefaultSlideHeight = 6858000
)

// Layout category keys. Content records reference layouts by these names.
const (
	CategoryTitle   = "title"
	CategoryContent = "content"
	CategoryDivider = "divider"
)

// Position is an absolute rectangle in EMUs.
type Position struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
	W int64 `json:"w"`
	H int64 `json:"h"`
}

// PlaceholderDef describes one placeholder shape within a layout.
//
// Idx is the renumbered positional index ("0".."n-1") assigned during
// classification; content records address placeholders by this index, never
// by the template's native idx attribute. The native attribute is preserved
// separately in PhIdx (empty for the implicit index-0 case) because it is
// what binds position/formatting inheritance at render time.
type PlaceholderDef struct {
	Idx      string    `json:"idx"`
	Type     string    `json:"type"`
	PhIdx    string    `json:"ph_idx,omitempty"`
	Name     string    `json:"name,omitempty"`
	Position *Position `json:"position,omitempty"`
}

// LayoutConfig is one chosen layout for a category.
type LayoutConfig struct {
	LayoutFile   string           `json:"layout_file"`
	MatchingName string           `json:"matching_name"`
	Category     string           `json:"category"`
	Placeholders []PlaceholderDef `json:"placeholders"`
	Rules        string           `json:"rules,omitempty"`
	UserLabel    string           `json:"user_label,omitempty"`
}

// Theme holds the extracted color scheme and font pair.
type Theme struct {
	Colors    map[string]string `json:"colors"`
	MajorFont string            `json:"major_font"`
	MinorFont string            `json:"minor_font"`
}

// PromptOverrides carries user-edited free text consumed only by the
// content-generation collaborator. Opaque to the engine.
type PromptOverrides struct {
	SystemPrompt string `json:"system_prompt,omitempty"`
	StyleRules   string `json:"style_rules,omitempty"`
}

// TemplateDescriptor is the output of extraction.
type TemplateDescriptor struct {
	SlideWidth      int64                   `json:"slide_width"`
	SlideHeight     int64                   `json:"slide_height"`
	Theme           Theme                   `json:"theme"`
	Layouts         map[string]LayoutConfig `json:"layouts"`
	PromptOverrides PromptOverrides         `json:"prompt_overrides,omitempty"`
}

// ContentRecord is one slide's worth of generated content. Texts maps the
// renumbered positional placeholder index to the text for that placeholder.
// An unknown Layout falls back to the content category at build time.
type ContentRecord struct {
	Layout string            `json:"layout"`
	Texts  map[string]string `json:"texts"`
	Notes  string            `json:"notes,omitempty"`
}

// DeckMeta is top-level metadata for a generation request.
type DeckMeta struct {
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
}
