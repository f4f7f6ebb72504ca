package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	TierFast  = "fast"
	TierLarge = "large"

	defaultConfigFile = "config.json"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Analysis    AnalysisConfig            `json:"analysis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	LogLevel      string `json:"log_level"`
	MaxUploadMB   int    `json:"max_upload_mb"`
	MaxFiles      int    `json:"max_files"`
	QueueSize     int    `json:"queue_size"`
}

// AnalysisConfig selects the provider and model tier used for every completion call.
type AnalysisConfig struct {
	Provider              string `json:"provider"`
	ModelTier             string `json:"model_tier"`
	CacheTTLMinutes       int    `json:"cache_ttl_minutes"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

type ProviderConfig struct {
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	LargeModel string `json:"large_model"`
	APIKey     string `json:"api_key"`
	APIKeyEnv  string `json:"api_key_env"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

// RedisConfig leaves caching disabled when Host is empty.
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress: ":8090",
			LogLevel:      "info",
			MaxUploadMB:   10,
			MaxFiles:      10,
			QueueSize:     8,
		},
		Analysis: AnalysisConfig{
			Provider:        "groq",
			ModelTier:       TierFast,
			CacheTTLMinutes: 60,
		},
		Providers: map[string]ProviderConfig{
			"groq": {
				BaseURL:    "https://api.groq.com/openai/v1",
				Model:      "llama-3.1-8b-instant",
				LargeModel: "llama-3.3-70b-versatile",
				APIKeyEnv:  "GROQ_API_KEY",
			},
			"openai": {
				Model:      "gpt-4o-mini",
				LargeModel: "gpt-4o",
				APIKeyEnv:  "OPENAI_API_KEY",
			},
			"gemini": {
				Model:      "gemini-2.5-flash",
				LargeModel: "gemini-2.5-pro",
				APIKeyEnv:  "GEMINI_API_KEY",
			},
			"claude": {
				Model:      "claude-3-5-haiku-latest",
				LargeModel: "claude-sonnet-4-0",
				APIKeyEnv:  "ANTHROPIC_API_KEY",
			},
		},
		Databases: map[string]DatabaseConfig{
			"sqlite3": {DSN: "./data/resumecoach.db"},
		},
	}
}

// Load reads configuration from the provided path (defaults to config.json),
// loads .env and applies environment overrides. A missing default config file
// is not an error; the built-in defaults are used instead.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		resolveRelativePaths(cfg, filepath.Dir(absPath))
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

func resolveRelativePaths(cfg *Config, base string) {
	for name, db := range cfg.Databases {
		if db.DSN == "" || db.DSN == ":memory:" || filepath.IsAbs(db.DSN) || strings.Contains(db.DSN, "?") {
			continue
		}
		db.DSN = filepath.Join(base, db.DSN)
		cfg.Databases[name] = db
	}
}

// applyEnv fills provider API keys from their configured environment variables.
func (c *Config) applyEnv() {
	for name, p := range c.Providers {
		if p.APIKeyEnv == "" {
			continue
		}
		if v := strings.TrimSpace(os.Getenv(p.APIKeyEnv)); v != "" {
			p.APIKey = v
			c.Providers[name] = p
		}
	}
	if v := strings.TrimSpace(os.Getenv("RESUMECOACH_PROVIDER")); v != "" {
		c.Analysis.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("RESUMECOACH_MODEL_TIER")); v != "" {
		c.Analysis.ModelTier = v
	}
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = def.BasicConfig.ServerAddress
	}
	if c.BasicConfig.MaxUploadMB <= 0 {
		c.BasicConfig.MaxUploadMB = def.BasicConfig.MaxUploadMB
	}
	if c.BasicConfig.MaxFiles <= 0 {
		c.BasicConfig.MaxFiles = def.BasicConfig.MaxFiles
	}
	if c.BasicConfig.QueueSize <= 0 {
		c.BasicConfig.QueueSize = def.BasicConfig.QueueSize
	}
	if c.Analysis.ModelTier == "" {
		c.Analysis.ModelTier = TierFast
	}
	// a provider entry in the file replaces the default entry wholesale
	for name, p := range c.Providers {
		d, ok := def.Providers[name]
		if !ok {
			continue
		}
		if p.BaseURL == "" {
			p.BaseURL = d.BaseURL
		}
		if p.Model == "" {
			p.Model = d.Model
		}
		if p.LargeModel == "" {
			p.LargeModel = d.LargeModel
		}
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = d.APIKeyEnv
			if p.APIKey == "" {
				p.APIKey = strings.TrimSpace(os.Getenv(d.APIKeyEnv))
			}
		}
		c.Providers[name] = p
	}
}

// Validate checks that the selected provider is usable. A missing API key is
// reported here so the caller can treat it as a fatal startup condition.
func (c *Config) Validate() error {
	p, ok := c.Providers[c.Analysis.Provider]
	if !ok {
		return fmt.Errorf("provider %q not configured", c.Analysis.Provider)
	}
	if c.Analysis.ModelTier != TierFast && c.Analysis.ModelTier != TierLarge {
		return fmt.Errorf("invalid model_tier %q", c.Analysis.ModelTier)
	}
	if c.ModelName() == "" {
		return fmt.Errorf("no %s model configured for provider %s", c.Analysis.ModelTier, c.Analysis.Provider)
	}
	if strings.TrimSpace(p.APIKey) == "" {
		if p.APIKeyEnv != "" {
			return fmt.Errorf("%s not set for provider %s", p.APIKeyEnv, c.Analysis.Provider)
		}
		return fmt.Errorf("api_key must be configured for provider %s", c.Analysis.Provider)
	}
	return nil
}

// Provider returns the active provider configuration.
func (c *Config) Provider() ProviderConfig {
	return c.Providers[c.Analysis.Provider]
}

// ModelName resolves the model identifier for the configured tier.
func (c *Config) ModelName() string {
	p := c.Provider()
	if c.Analysis.ModelTier == TierLarge && p.LargeModel != "" {
		return p.LargeModel
	}
	return p.Model
}

// MaxUploadBytes is the per-file upload limit.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.BasicConfig.MaxUploadMB) << 20
}
