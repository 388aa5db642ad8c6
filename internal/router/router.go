// Package router provides centralized API route registration.
// All HTTP routes are registered here, grouped by business domain,
// with appropriate middleware applied to each group.
package router

import (
	"net/http"
	"time"

	"deckforge/internal/handler"
	"deckforge/internal/middleware"
)

// Register registers all API routes to http.DefaultServeMux.
// It creates middleware instances internally and groups routes by business domain.
// Returns a cleanup function that should be called on shutdown to stop background goroutines.
func Register(app *handler.App) func() {
	// Build the secure API middleware chain: SecurityHeaders + CORS + RequestID
	secureAPI := middleware.Chain(
		middleware.SecurityHeaders(),
		middleware.CORS(),
		middleware.RequestID(),
	)

	// Auth rate limiter: 10 attempts per minute per IP
	authRL := middleware.NewRateLimiter(10, 1*time.Minute)
	rateLimit := authRL.Limit()

	// Generation rate limiter: 20 decks per minute per IP
	genRL := middleware.NewRateLimiter(20, 1*time.Minute)
	genRateLimit := genRL.Limit()

	secure := func(h http.HandlerFunc) http.HandlerFunc {
		return secureAPI(h)
	}
	secureRL := func(h http.HandlerFunc) http.HandlerFunc {
		return secureAPI(rateLimit(h))
	}
	secureGenRL := func(h http.HandlerFunc) http.HandlerFunc {
		return secureAPI(genRateLimit(h))
	}

	// ── Admin login ──
	http.HandleFunc("/api/admin/login", secureRL(handler.HandleAdminLogin(app)))
	http.HandleFunc("/api/admin/setup", secureRL(handler.HandleAdminSetup(app)))
	http.HandleFunc("/api/admin/status", secure(handler.HandleAdminStatus(app)))
	http.HandleFunc("/api/admin/logout", secure(handler.HandleAdminLogout(app)))

	// ── Templates ──
	http.HandleFunc("/api/templates/upload", secure(handler.HandleTemplateUpload(app)))
	http.HandleFunc("/api/templates", secure(handler.HandleTemplates(app)))
	http.HandleFunc("/api/templates/", secure(handler.HandleTemplateByID(app)))

	// ── Generation ──
	http.HandleFunc("/api/generate", secureGenRL(handler.HandleGenerate(app)))
	http.HandleFunc("/api/generations", secure(handler.HandleGenerations(app)))

	// ── Config ──
	http.HandleFunc("/api/config", secure(handler.HandleConfig(app)))

	// ── System ──
	http.HandleFunc("/api/system/status", secure(handler.HandleSystemStatus(app)))

	// ── Log management (admin only) ──
	http.HandleFunc("/api/logs/recent", secure(handler.HandleLogsRecent(app)))

	// ── Health check ──
	http.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			handler.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Return cleanup function to stop rate limiter goroutines
	return func() {
		authRL.Stop()
		genRL.Stop()
	}
}
