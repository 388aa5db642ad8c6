// Package config provides configuration management with encrypted API key storage.
// It supports loading, saving, and partial updates of system configuration.
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// encryptionKeyEnvVar is the environment variable name for the AES encryption key.
const encryptionKeyEnvVar = "DECKFORGE_ENCRYPTION_KEY"

// encryptedPrefix marks a value as AES-encrypted in the config file.
const encryptedPrefix = "enc:"

// Config holds all system configuration.
type Config struct {
	Server  ServerConfig  `json:"server"`
	LLM     LLMConfig     `json:"llm"`
	Storage StorageConfig `json:"storage"`
	Deck    DeckConfig    `json:"deck"`
	Admin   AdminConfig   `json:"admin"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int `json:"port"`
}

// LLMConfig holds the content planner LLM configuration.
type LLMConfig struct {
	Endpoint    string  `json:"endpoint"`
	APIKey      string  `json:"api_key"`
	ModelName   string  `json:"model_name"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// StorageConfig holds database and template blob storage paths.
type StorageConfig struct {
	DBPath  string `json:"db_path"`
	BlobDir string `json:"blob_dir"`
}

// DeckConfig holds generation limits.
type DeckConfig struct {
	MaxSlides   int `json:"max_slides"`
	MaxUploadMB int `json:"max_upload_mb"`
}

// AdminConfig holds admin authentication configuration.
type AdminConfig struct {
	PasswordHash string `json:"password_hash"`
}

// Manager manages loading, saving, and updating configuration.
type Manager struct {
	configPath    string
	config        *Config
	mu            sync.RWMutex
	encryptionKey []byte // 32-byte AES-256 key
}

// NewManager creates a new Manager for the given config file path.
// The AES encryption key is read from the DECKFORGE_ENCRYPTION_KEY environment
// variable; when unset, a random key is generated and persisted under ./data.
func NewManager(configPath string) (*Manager, error) {
	key, err := getOrCreateEncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("encryption key error: %w", err)
	}
	return &Manager{configPath: configPath, encryptionKey: key}, nil
}

// NewManagerWithKey creates a Manager with an explicit encryption key (for testing).
func NewManagerWithKey(configPath string, key []byte) (*Manager, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes for AES-256")
	}
	return &Manager{configPath: configPath, encryptionKey: key}, nil
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		LLM: LLMConfig{
			Endpoint:    "https://api.openai.com/v1",
			ModelName:   "gpt-4o-mini",
			Temperature: 0.4,
			MaxTokens:   4096,
		},
		Storage: StorageConfig{
			DBPath:  "./data/deckforge.db",
			BlobDir: "./data/templates",
		},
		Deck: DeckConfig{
			MaxSlides:   30,
			MaxUploadMB: 50,
		},
	}
}

// Load reads the config file from disk and decrypts the API key.
// If the file does not exist, it initializes with default values and saves.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			m.config = DefaultConfig()
			return m.saveLocked()
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if cfg.LLM.APIKey, err = m.decryptIfNeeded(cfg.LLM.APIKey); err != nil {
		return fmt.Errorf("decrypt LLM API key: %w", err)
	}

	m.applyDefaults(&cfg)
	m.config = &cfg
	return nil
}

// Save writes the current config to disk with the API key encrypted.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveLocked()
}

// saveLocked writes config to disk. Caller must hold at least a read lock.
func (m *Manager) saveLocked() error {
	if m.config == nil {
		return errors.New("no config loaded")
	}

	out := *m.config
	out.LLM.APIKey = m.encryptIfNeeded(m.config.LLM.APIKey)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return nil
	}
	c := *m.config
	return &c
}

// Update applies partial updates to the configuration and saves to disk.
// Supported keys: "server.port", "llm.endpoint", "llm.api_key", "llm.model_name",
// "llm.temperature", "llm.max_tokens", "storage.db_path", "storage.blob_dir",
// "deck.max_slides", "deck.max_upload_mb", "admin.password", "admin.password_hash".
func (m *Manager) Update(updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config == nil {
		m.config = DefaultConfig()
	}

	for key, val := range updates {
		if err := m.applyUpdate(key, val); err != nil {
			return fmt.Errorf("update key %q: %w", key, err)
		}
	}

	return m.saveLocked()
}

func (m *Manager) applyUpdate(key string, val interface{}) error {
	switch key {
	case "server.port":
		n, err := toInt(val)
		if err != nil {
			return err
		}
		if n < 1 || n > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		m.config.Server.Port = n

	case "llm.endpoint":
		s, ok := val.(string)
		if !ok {
			return errors.New("expected string")
		}
		m.config.LLM.Endpoint = s
	case "llm.api_key":
		s, ok := val.(string)
		if !ok {
			return errors.New("expected string")
		}
		m.config.LLM.APIKey = s
	case "llm.model_name":
		s, ok := val.(string)
		if !ok {
			return errors.New("expected string")
		}
		m.config.LLM.ModelName = s
	case "llm.temperature":
		f, err := toFloat64(val)
		if err != nil {
			return err
		}
		m.config.LLM.Temperature = f
	case "llm.max_tokens":
		n, err := toInt(val)
		if err != nil {
			return err
		}
		m.config.LLM.MaxTokens = n

	case "storage.db_path":
		s, ok := val.(string)
		if !ok {
			return errors.New("expected string")
		}
		m.config.Storage.DBPath = s
	case "storage.blob_dir":
		s, ok := val.(string)
		if !ok {
			return errors.New("expected string")
		}
		m.config.Storage.BlobDir = s

	case "deck.max_slides":
		n, err := toInt(val)
		if err != nil {
			return err
		}
		if n < 1 {
			return errors.New("max_slides must be at least 1")
		}
		m.config.Deck.MaxSlides = n
	case "deck.max_upload_mb":
		n, err := toInt(val)
		if err != nil {
			return err
		}
		if n < 1 {
			return errors.New("max_upload_mb must be at least 1")
		}
		m.config.Deck.MaxUploadMB = n

	case "admin.password_hash":
		s, ok := val.(string)
		if !ok {
			return errors.New("expected string")
		}
		m.config.Admin.PasswordHash = s
	case "admin.password":
		s, ok := val.(string)
		if !ok {
			return errors.New("expected string")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		m.config.Admin.PasswordHash = string(hash)

	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// applyDefaults fills in zero-value fields with defaults.
func (m *Manager) applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.LLM.Endpoint == "" {
		cfg.LLM.Endpoint = defaults.LLM.Endpoint
	}
	if cfg.LLM.ModelName == "" {
		cfg.LLM.ModelName = defaults.LLM.ModelName
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = defaults.LLM.Temperature
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = defaults.LLM.MaxTokens
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = defaults.Storage.DBPath
	}
	if cfg.Storage.BlobDir == "" {
		cfg.Storage.BlobDir = defaults.Storage.BlobDir
	}
	if cfg.Deck.MaxSlides == 0 {
		cfg.Deck.MaxSlides = defaults.Deck.MaxSlides
	}
	if cfg.Deck.MaxUploadMB == 0 {
		cfg.Deck.MaxUploadMB = defaults.Deck.MaxUploadMB
	}
}

// --- AES-GCM encryption helpers ---

// encrypt encrypts plaintext using AES-256-GCM.
func (m *Manager) encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	block, err := aes.NewCipher(m.encryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

// decrypt decrypts an AES-256-GCM encrypted hex string.
func (m *Manager) decrypt(ciphertextHex string) (string, error) {
	if ciphertextHex == "" {
		return "", nil
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("hex decode: %w", err)
	}
	block, err := aes.NewCipher(m.encryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// encryptIfNeeded encrypts a value and adds the "enc:" prefix.
// Empty strings are returned as-is.
func (m *Manager) encryptIfNeeded(value string) string {
	if value == "" {
		return ""
	}
	encrypted, err := m.encrypt(value)
	if err != nil {
		// Fallback: return as-is (should not happen with a valid key)
		return value
	}
	return encryptedPrefix + encrypted
}

// decryptIfNeeded decrypts a value if it has the "enc:" prefix.
func (m *Manager) decryptIfNeeded(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if strings.HasPrefix(value, encryptedPrefix) {
		return m.decrypt(value[len(encryptedPrefix):])
	}
	// Not encrypted (e.g., manually edited config) — return as-is
	return value, nil
}

// --- Encryption key management ---

func getOrCreateEncryptionKey() ([]byte, error) {
	keyHex := os.Getenv(encryptionKeyEnvVar)
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
		}
		return key, nil
	}

	keyFile := "./data/encryption.key"
	if data, err := os.ReadFile(keyFile); err == nil {
		keyHex = strings.TrimSpace(string(data))
		if key, err := hex.DecodeString(keyHex); err == nil && len(key) == 32 {
			return key, nil
		}
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	keyHex = hex.EncodeToString(key)
	os.MkdirAll("./data", 0755)
	if err := os.WriteFile(keyFile, []byte(keyHex+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("save encryption key: %w", err)
	}
	return key, nil
}

// --- Type conversion helpers ---

func toFloat64(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", val)
	}
}

func toInt(val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case float32:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", val)
	}
}
