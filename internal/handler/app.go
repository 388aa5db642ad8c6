// Package handler provides the App struct that serves as the API facade
// for the deckforge system, delegating to internal service components.
package handler

import (
	"database/sql"
	"fmt"
	"strings"

	"deckforge/internal/auth"
	"deckforge/internal/blobstore"
	"deckforge/internal/config"
	"deckforge/internal/deck"
	"deckforge/internal/llm"
	"deckforge/internal/store"
)

// App is the API facade that binds all backend services for the frontend.
// Each public method delegates to the appropriate service component.
type App struct {
	db             *sql.DB
	sessionManager *auth.SessionManager
	configManager  *config.Manager
	templates      *store.TemplateStore
	generations    *store.GenerationStore
	blobs          *blobstore.Store
	deckService    *deck.Service
}

// NewApp creates a new App with all service dependencies injected.
func NewApp(
	db *sql.DB,
	sm *auth.SessionManager,
	cm *config.Manager,
	ts *store.TemplateStore,
	gs *store.GenerationStore,
	bs *blobstore.Store,
	ds *deck.Service,
) *App {
	return &App{
		db:             db,
		sessionManager: sm,
		configManager:  cm,
		templates:      ts,
		generations:    gs,
		blobs:          bs,
		deckService:    ds,
	}
}

// SessionManager returns the session manager for testing purposes.
func (a *App) SessionManager() *auth.SessionManager {
	return a.sessionManager
}

// --- Admin Authentication Interface ---

// AdminLoginResponse contains the session created after admin login.
type AdminLoginResponse struct {
	Session *auth.Session `json:"session"`
}

// IsAdminConfigured returns whether the admin password has been set.
func (a *App) IsAdminConfigured() bool {
	cfg := a.configManager.Get()
	return cfg != nil && cfg.Admin.PasswordHash != ""
}

// AdminSetup sets the admin password for the first time.
// Returns an error if admin is already configured.
func (a *App) AdminSetup(password string) (*AdminLoginResponse, error) {
	if a.IsAdminConfigured() {
		return nil, fmt.Errorf("admin password already configured")
	}
	password = strings.TrimSpace(password)
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	if len(password) > 72 {
		return nil, fmt.Errorf("password must be at most 72 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := a.configManager.Update(map[string]interface{}{
		"admin.password_hash": hash,
	}); err != nil {
		return nil, err
	}

	session, err := a.sessionManager.CreateSession("admin")
	if err != nil {
		return nil, err
	}
	return &AdminLoginResponse{Session: session}, nil
}

// AdminLogin verifies the admin password and creates a session.
// Old admin sessions are invalidated first (session rotation).
func (a *App) AdminLogin(password string) (*AdminLoginResponse, error) {
	cfg := a.configManager.Get()
	if cfg == nil || cfg.Admin.PasswordHash == "" {
		return nil, fmt.Errorf("admin password not configured")
	}
	if err := auth.VerifyAdminPassword(password, cfg.Admin.PasswordHash); err != nil {
		return nil, fmt.Errorf("wrong password")
	}

	_ = a.sessionManager.DeleteSessionsByUserID("admin")
	session, err := a.sessionManager.CreateSession("admin")
	if err != nil {
		return nil, err
	}
	return &AdminLoginResponse{Session: session}, nil
}

// --- Configuration Interface ---

// MaskedConfig is a copy of Config with secrets replaced by "***".
type MaskedConfig struct {
	Server  config.ServerConfig  `json:"server"`
	LLM     config.LLMConfig     `json:"llm"`
	Storage config.StorageConfig `json:"storage"`
	Deck    config.DeckConfig    `json:"deck"`
	Admin   config.AdminConfig   `json:"admin"`
}

// GetConfig returns the current configuration with secrets masked.
func (a *App) GetConfig() *MaskedConfig {
	cfg := a.configManager.Get()
	if cfg == nil {
		return nil
	}
	masked := &MaskedConfig{
		Server:  cfg.Server,
		LLM:     cfg.LLM,
		Storage: cfg.Storage,
		Deck:    cfg.Deck,
		Admin:   cfg.Admin,
	}
	masked.LLM.APIKey = maskSecret(cfg.LLM.APIKey)
	masked.Admin.PasswordHash = maskSecret(cfg.Admin.PasswordHash)
	return masked
}

// UpdateConfig applies partial configuration updates and refreshes the
// content planner with the new LLM settings.
func (a *App) UpdateConfig(updates map[string]interface{}) error {
	if err := a.configManager.Update(updates); err != nil {
		return err
	}
	for key := range updates {
		if strings.HasPrefix(key, "llm.") {
			cfg := a.configManager.Get()
			a.deckService.SetPlanner(llm.NewAPIPlanner(
				cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.ModelName,
				cfg.LLM.Temperature, cfg.LLM.MaxTokens,
			))
			break
		}
	}
	return nil
}

// maskSecret replaces a non-empty secret with "***".
func maskSecret(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return "***"
}
