package handler

import (
	"log"
	"net/http"
	"strconv"

	"deckforge/internal/errlog"
)

// HandleConfig serves the masked configuration (GET) and applies partial
// updates (PUT).
func HandleConfig(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetAdminSession(app, r); err != nil {
			WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}

		switch r.Method {
		case http.MethodGet:
			cfg := app.GetConfig()
			if cfg == nil {
				WriteError(w, http.StatusInternalServerError, "configuration not loaded")
				return
			}
			WriteJSON(w, http.StatusOK, cfg)

		case http.MethodPut:
			var updates map[string]interface{}
			if err := ReadJSONBody(r, &updates); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if err := app.UpdateConfig(updates); err != nil {
				WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			WriteJSON(w, http.StatusOK, app.GetConfig())

		default:
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleLogsRecent returns the tail of the error log.
func HandleLogsRecent(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetAdminSession(app, r); err != nil {
			WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if r.Method != http.MethodGet {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		n, _ := strconv.Atoi(r.URL.Query().Get("lines"))
		if n <= 0 || n > 1000 {
			n = 200
		}
		lines, err := errlog.RecentLines(n)
		if err != nil {
			log.Printf("[Logs] read error: %v", err)
			WriteError(w, http.StatusInternalServerError, "failed to read log")
			return
		}
		if lines == nil {
			lines = []string{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"lines": lines})
	}
}

// HandleSystemStatus reports template and generation counts for the
// dashboard.
func HandleSystemStatus(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetAdminSession(app, r); err != nil {
			WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if r.Method != http.MethodGet {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var templateCount, generationCount int
		if err := app.db.QueryRow(`SELECT COUNT(*) FROM templates`).Scan(&templateCount); err != nil {
			log.Printf("[Status] count templates: %v", err)
		}
		if err := app.db.QueryRow(`SELECT COUNT(*) FROM generations`).Scan(&generationCount); err != nil {
			log.Printf("[Status] count generations: %v", err)
		}
		activeID, _ := app.templates.GetActive()

		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"templates":       templateCount,
			"generations":     generationCount,
			"active_template": activeID,
		})
	}
}
