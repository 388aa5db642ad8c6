// Package llm provides the content planner client that turns a topic and a
// template's layout catalog into per-slide content records, via an
// OpenAI-compatible Chat Completion API.
package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"deckforge/internal/pptx"
)

// Planner defines the interface for slide content generation.
type Planner interface {
	Plan(req PlanRequest) ([]pptx.ContentRecord, error)
}

// PlanRequest describes one deck to plan.
type PlanRequest struct {
	Topic      string
	Audience   string
	SlideCount int
	Catalog    map[string]pptx.LayoutConfig
	Overrides  pptx.PromptOverrides
}

// APIPlanner implements Planner using an OpenAI-compatible Chat Completion API.
type APIPlanner struct {
	Endpoint    string
	APIKey      string
	ModelName   string
	Temperature float64
	MaxTokens   int
	client      *http.Client
}

// NewAPIPlanner creates a new APIPlanner with the given configuration.
func NewAPIPlanner(endpoint, apiKey, modelName string, temperature float64, maxTokens int) *APIPlanner {
	return &APIPlanner{
		Endpoint:    endpoint,
		APIKey:      apiKey,
		ModelName:   modelName,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// chatRequest is the request body for the chat completion API.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// chatMessage represents a single message in the chat completion request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response body from the chat completion API.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// BuildMessages constructs the system and user messages for a plan request.
// The system message documents the available layout categories and their
// placeholder indices so the model addresses placeholders the same way the
// synthesizer does.
func BuildMessages(req PlanRequest) []chatMessage {
	var sys strings.Builder
	sys.WriteString("You are a presentation content writer. ")
	sys.WriteString("Produce slide content as a JSON array only, no prose and no markdown fences. ")
	sys.WriteString("Each element has the shape {\"layout\": <category>, \"texts\": {<placeholder index>: <text>}, \"notes\": <speaker notes, optional>}. ")
	sys.WriteString("Multi-line body text uses \\n between bullet lines.\n\nAvailable layouts:\n")

	// Stable category order for deterministic prompts.
	categories := make([]string, 0, len(req.Catalog))
	for c := range req.Catalog {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		layout := req.Catalog[c]
		fmt.Fprintf(&sys, "- %q", c)
		if layout.UserLabel != "" {
			fmt.Fprintf(&sys, " (%s)", layout.UserLabel)
		}
		sys.WriteString(": placeholders ")
		for i, ph := range layout.Placeholders {
			if i > 0 {
				sys.WriteString(", ")
			}
			fmt.Fprintf(&sys, "%s=%s", ph.Idx, ph.Type)
		}
		if layout.Rules != "" {
			fmt.Fprintf(&sys, ". %s", layout.Rules)
		}
		sys.WriteString("\n")
	}
	if req.Overrides.SystemPrompt != "" {
		sys.WriteString("\n" + req.Overrides.SystemPrompt)
	}
	if req.Overrides.StyleRules != "" {
		sys.WriteString("\nStyle rules: " + req.Overrides.StyleRules)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Topic: %s\n", req.Topic)
	if req.Audience != "" {
		fmt.Fprintf(&user, "Audience: %s\n", req.Audience)
	}
	fmt.Fprintf(&user, "Write exactly %d slides. The first slide uses the \"title\" layout.", req.SlideCount)

	return []chatMessage{
		{Role: "system", Content: sys.String()},
		{Role: "user", Content: user.String()},
	}
}

// Plan sends the request to the LLM and decodes the slide records.
// It retries the API call once on transport failure.
func (p *APIPlanner) Plan(req PlanRequest) ([]pptx.ContentRecord, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if req.SlideCount < 1 {
		return nil, fmt.Errorf("slide count must be at least 1")
	}
	messages := BuildMessages(req)

	raw, err := p.callAPI(messages)
	if err != nil {
		log.Printf("[LLM] plan attempt failed, retrying once: %v", err)
		raw, err = p.callAPI(messages)
		if err != nil {
			return nil, fmt.Errorf("content planner unavailable: %w", err)
		}
	}

	records, err := DecodeRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("content planner returned no slides")
	}
	return records, nil
}

// DecodeRecords parses the model output into content records. Models wrap
// JSON in markdown fences or emit slightly broken JSON often enough that a
// repair pass is attempted before giving up.
func DecodeRecords(raw string) ([]pptx.ContentRecord, error) {
	cleaned := stripFences(raw)

	var records []pptx.ContentRecord
	if err := json.Unmarshal([]byte(cleaned), &records); err == nil {
		return records, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(cleaned)
	if repairErr != nil {
		return nil, fmt.Errorf("response is not valid JSON and repair failed: %w", repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), &records); err != nil {
		return nil, fmt.Errorf("repaired response still not a record array: %w", err)
	}
	return records, nil
}

// stripFences removes a surrounding ```json ... ``` fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// callAPI sends the chat completion request and returns the generated text.
func (p *APIPlanner) callAPI(messages []chatMessage) (string, error) {
	reqBody := chatRequest{
		Model:       p.ModelName,
		Messages:    messages,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(p.Endpoint, "/") + "/chat/completions"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("LLM API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != nil {
			return "", fmt.Errorf("LLM API error (HTTP %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("LLM API error (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("LLM API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("LLM API returned no choices")
	}

	return result.Choices[0].Message.Content, nil
}
