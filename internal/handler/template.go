package handler

import (
	"io"
	"log"
	"net/http"
	"strings"

	"deckforge/internal/errlog"
	"deckforge/internal/store"
)

// HandleTemplateUpload accepts a multipart template upload, extracts its
// descriptor, and stores it.
func HandleTemplateUpload(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetAdminSession(app, r); err != nil {
			WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if r.Method != http.MethodPost {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		cfg := app.configManager.Get()
		maxBytes := int64(cfg.Deck.MaxUploadMB) << 20
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		if err := r.ParseMultipartForm(maxBytes); err != nil {
			WriteError(w, http.StatusBadRequest, "upload too large or malformed")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read upload")
			return
		}

		name := r.FormValue("name")
		if name == "" {
			name = strings.TrimSuffix(header.Filename, ".pptx")
		}

		rec, err := app.deckService.ImportTemplate(name, data)
		if err != nil {
			log.Printf("[Template] import failed for %q: %v", header.Filename, err)
			errlog.Logf("[Template] import failed for %q: %v", header.Filename, err)
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, rec)
	}
}

// HandleTemplates lists stored templates.
func HandleTemplates(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetAdminSession(app, r); err != nil {
			WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if r.Method != http.MethodGet {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		list, err := app.templates.List()
		if err != nil {
			log.Printf("[Template] list error: %v", err)
			WriteError(w, http.StatusInternalServerError, "failed to list templates")
			return
		}
		if list == nil {
			list = []store.TemplateRecord{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"templates": list})
	}
}

// HandleTemplateByID handles GET (descriptor), PATCH (descriptor merge
// update), DELETE, and POST .../activate for a single template.
func HandleTemplateByID(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetAdminSession(app, r); err != nil {
			WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/api/templates/")
		id := rest
		activate := false
		if strings.HasSuffix(rest, "/activate") {
			id = strings.TrimSuffix(rest, "/activate")
			activate = true
		}
		if !IsValidUUID(id) {
			WriteError(w, http.StatusBadRequest, "invalid template ID")
			return
		}

		if activate {
			if r.Method != http.MethodPost {
				WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			if err := app.templates.SetActive(id); err != nil {
				WriteError(w, http.StatusNotFound, err.Error())
				return
			}
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "active": id})
			return
		}

		switch r.Method {
		case http.MethodGet:
			rec, err := app.templates.Get(id)
			if err != nil {
				WriteError(w, http.StatusNotFound, err.Error())
				return
			}
			WriteJSON(w, http.StatusOK, rec)

		case http.MethodPatch:
			var patch map[string]interface{}
			if err := ReadJSONBody(r, &patch); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			rec, err := app.templates.UpdateDescriptor(id, patch)
			if err != nil {
				WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			WriteJSON(w, http.StatusOK, rec)

		case http.MethodDelete:
			if err := app.deckService.DeleteTemplate(id); err != nil {
				WriteError(w, http.StatusNotFound, err.Error())
				return
			}
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})

		default:
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}
