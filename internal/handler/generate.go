package handler

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"deckforge/internal/deck"
	"deckforge/internal/errlog"
	"deckforge/internal/store"
)

// HandleGenerate runs the generation pipeline and streams the produced
// package back as a .pptx attachment.
func HandleGenerate(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetAdminSession(app, r); err != nil {
			WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if r.Method != http.MethodPost {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req deck.GenerateRequest
		if err := ReadJSONBody(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Topic) == "" {
			WriteError(w, http.StatusBadRequest, "topic is required")
			return
		}
		if req.TemplateID != "" && !IsValidUUID(req.TemplateID) {
			WriteError(w, http.StatusBadRequest, "invalid template ID")
			return
		}

		result, err := app.deckService.Generate(req)
		if err != nil {
			log.Printf("[Generate] failed for topic %q: %v", req.Topic, err)
			errlog.Logf("[Generate] failed for topic %q: %v", req.Topic, err)
			WriteError(w, http.StatusBadGateway, err.Error())
			return
		}

		filename := safeFilename(req.Topic) + ".pptx"
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.presentationml.presentation")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
		w.Header().Set("X-Generation-ID", result.GenerationID)
		w.WriteHeader(http.StatusOK)
		w.Write(result.Data)
	}
}

// HandleGenerations lists recent generation audit records.
func HandleGenerations(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetAdminSession(app, r); err != nil {
			WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if r.Method != http.MethodGet {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, err := app.generations.List(limit)
		if err != nil {
			log.Printf("[Generate] list error: %v", err)
			WriteError(w, http.StatusInternalServerError, "failed to list generations")
			return
		}
		if list == nil {
			list = []store.GenerationRecord{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"generations": list})
	}
}

// safeFilename reduces a topic to a short filesystem- and header-safe name.
func safeFilename(topic string) string {
	var b strings.Builder
	for _, c := range strings.TrimSpace(topic) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ', c == '-', c == '_':
			if s := b.String(); s != "" && !strings.HasSuffix(s, "-") {
				b.WriteByte('-')
			}
		}
		if b.Len() >= 60 {
			break
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "presentation"
	}
	return name
}
