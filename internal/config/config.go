package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the file-based configuration for the fieldsync CLI and server.
type Config struct {
	LogLevel  string          `json:"logLevel" yaml:"logLevel"`
	HostTable HostTableConfig `json:"hostTable" yaml:"hostTable"`
	Lookup    LookupConfig    `json:"lookup" yaml:"lookup"`
	Catalog   CatalogConfig   `json:"catalog" yaml:"catalog"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Sync      SyncConfig      `json:"sync" yaml:"sync"`
}

// HostTableConfig locates one table of the host spreadsheet API.
type HostTableConfig struct {
	BaseURL     string `json:"baseUrl" yaml:"baseUrl"`
	AppToken    string `json:"appToken" yaml:"appToken"`
	TableID     string `json:"tableId" yaml:"tableId"`
	AccessToken string `json:"accessToken" yaml:"accessToken"`
}

// LookupConfig locates the external lookup service.
type LookupConfig struct {
	BaseURL     string `json:"baseUrl" yaml:"baseUrl"`
	AccessToken string `json:"accessToken" yaml:"accessToken"`
}

// CatalogConfig locates the field catalog sources.
type CatalogConfig struct {
	DocURL    string `json:"docUrl" yaml:"docUrl"`
	LocalPath string `json:"localPath" yaml:"localPath"`
}

// StoreConfig selects the run-history backend by DSN.
type StoreConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	JWTSecret string `json:"jwtSecret" yaml:"jwtSecret"`
}

// SyncConfig tunes the synchronization workflow.
type SyncConfig struct {
	SourceColumn    string `json:"sourceColumn" yaml:"sourceColumn"`
	MaxRetries      int    `json:"maxRetries" yaml:"maxRetries"`
	RetryDelayMs    int    `json:"retryDelayMs" yaml:"retryDelayMs"`
	CreationPauseMs int    `json:"creationPauseMs" yaml:"creationPauseMs"`
}

// Load reads a JSON or YAML config file (by extension), applies defaults
// and env overrides, and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "fieldsync.json"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overlay := func(target *string, name string) {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			*target = value
		}
	}
	overlay(&c.HostTable.AccessToken, "FIELDSYNC_HOST_TOKEN")
	overlay(&c.Lookup.AccessToken, "FIELDSYNC_LOOKUP_TOKEN")
	overlay(&c.Store.DSN, "FIELDSYNC_STORE_DSN")
	overlay(&c.Server.Addr, "FIELDSYNC_ADDR")
	overlay(&c.Server.JWTSecret, "FIELDSYNC_JWT_SECRET")
	overlay(&c.LogLevel, "FIELDSYNC_LOG_LEVEL")
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Store.DSN == "" {
		c.Store.DSN = "memory://"
	}
	if c.Sync.MaxRetries <= 0 {
		c.Sync.MaxRetries = 1
	}
	if c.Sync.RetryDelayMs <= 0 {
		c.Sync.RetryDelayMs = 1000
	}
	if c.Sync.CreationPauseMs <= 0 {
		c.Sync.CreationPauseMs = 200
	}
}

func (c *Config) validate() error {
	if c.HostTable.BaseURL == "" {
		return fmt.Errorf("hostTable.baseUrl is required")
	}
	if c.HostTable.AppToken == "" {
		return fmt.Errorf("hostTable.appToken is required")
	}
	if c.HostTable.TableID == "" {
		return fmt.Errorf("hostTable.tableId is required")
	}
	if c.HostTable.AccessToken == "" {
		return fmt.Errorf("hostTable.accessToken is required (or FIELDSYNC_HOST_TOKEN)")
	}
	if c.Lookup.BaseURL == "" {
		return fmt.Errorf("lookup.baseUrl is required")
	}
	if c.Sync.SourceColumn == "" {
		return fmt.Errorf("sync.sourceColumn is required")
	}
	return nil
}
