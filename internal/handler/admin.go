package handler

import (
	"log"
	"net/http"
	"strings"
)

// HandleAdminStatus reports whether the admin password is configured and
// whether the caller holds a valid session.
func HandleAdminStatus(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		authenticated := false
		if _, err := GetAdminSession(app, r); err == nil {
			authenticated = true
		}
		WriteJSON(w, http.StatusOK, map[string]bool{
			"configured":    app.IsAdminConfigured(),
			"authenticated": authenticated,
		})
	}
}

// HandleAdminSetup sets the admin password for the first time.
func HandleAdminSetup(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Password string `json:"password"`
		}
		if err := ReadJSONBody(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		resp, err := app.AdminSetup(req.Password)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleAdminLogin verifies the admin password and returns a session.
func HandleAdminLogin(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Password string `json:"password"`
		}
		if err := ReadJSONBody(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		resp, err := app.AdminLogin(req.Password)
		if err != nil {
			log.Printf("[Auth] failed admin login attempt from %s", r.RemoteAddr)
			WriteError(w, http.StatusUnauthorized, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleAdminLogout deletes the caller's session.
func HandleAdminLogout(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		authHeader := r.Header.Get("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" || token == authHeader {
			WriteError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		if err := app.sessionManager.DeleteSession(token); err != nil {
			log.Printf("[Auth] logout error: %v", err)
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
