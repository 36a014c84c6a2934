package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"

	"github.com/trainproof/trainproof/internal/model"
)

type Config struct {
	Port              int              `json:"port"`
	CORSOrigins       []string         `json:"cors_origins"`
	TriggerIntervalMS int              `json:"trigger_interval_ms"`
	LogConfig         logger.LogConfig `json:"log_config"`
	Database          DatabaseConfig   `json:"database"`
	FileStore         FileStoreConfig  `json:"file_store"`
	AI                AIConfig         `json:"ai"`
	Indexing          IndexingConfig   `json:"indexing"`
	Validation        ValidationConfig `json:"validation"`
	Schedule          ScheduleConfig   `json:"schedule"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// AIConfig holds every configured provider. Which one a job uses is
// chosen at job creation time and stored on the job row.
type AIConfig struct {
	DefaultProvider string                    `json:"default_provider"`
	DefaultStrategy string                    `json:"default_strategy"`
	Providers       map[string]ProviderConfig `json:"providers"`
}

type ProviderConfig struct {
	GenerateModel  string      `json:"generate_model"`
	EmbedModel     string      `json:"embed_model"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	Rate           RateConfig  `json:"rate"`
	Data           interface{} `json:"data"`
}

// RateConfig is the provider-wide budget shared by every job that
// targets the provider.
type RateConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	Burst             int `json:"burst"`
	MaxWaitSeconds    int `json:"max_wait_seconds"`
	MaxConcurrent     int `json:"max_concurrent"`
}

type IndexingConfig struct {
	ChunkWindow     int `json:"chunk_window"`
	ChunkOverlap    int `json:"chunk_overlap"`
	EmbeddingDim    int `json:"embedding_dim"`
	CacheSize       int `json:"cache_size"`
	CacheTTLMinutes int `json:"cache_ttl_minutes"`
}

type ValidationConfig struct {
	MaxAttempts   int     `json:"max_attempts"`
	BackoffBaseMS int     `json:"backoff_base_ms"`
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
}

type ScheduleConfig struct {
	IndexSweepSpec  string `json:"index_sweep_spec"`
	IndexSweepBatch int    `json:"index_sweep_batch"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if len(cfg.AI.Providers) == 0 {
		return nil, fmt.Errorf("ai.providers is required")
	}
	if cfg.AI.DefaultProvider == "" {
		return nil, fmt.Errorf("ai.default_provider is required")
	}
	if _, ok := cfg.AI.Providers[cfg.AI.DefaultProvider]; !ok {
		return nil, fmt.Errorf("ai.default_provider %q is not configured", cfg.AI.DefaultProvider)
	}
	if cfg.AI.DefaultStrategy == "" {
		cfg.AI.DefaultStrategy = model.StrategyRetrieval
	}
	if cfg.AI.DefaultStrategy != model.StrategyRetrieval && cfg.AI.DefaultStrategy != model.StrategyWholeContext {
		return nil, fmt.Errorf("ai.default_strategy must be %s or %s", model.StrategyRetrieval, model.StrategyWholeContext)
	}
	for name, p := range cfg.AI.Providers {
		if p.GenerateModel == "" || p.EmbedModel == "" {
			return nil, fmt.Errorf("ai.providers.%s generate_model/embed_model are required", name)
		}
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Indexing.ChunkWindow == 0 {
		cfg.Indexing.ChunkWindow = 1200
	}
	if cfg.Indexing.ChunkOverlap == 0 {
		cfg.Indexing.ChunkOverlap = 200
	}
	if cfg.Indexing.EmbeddingDim == 0 {
		cfg.Indexing.EmbeddingDim = 768
	}
	if cfg.Indexing.CacheSize == 0 {
		cfg.Indexing.CacheSize = 10000
	}
	if cfg.Indexing.CacheTTLMinutes == 0 {
		cfg.Indexing.CacheTTLMinutes = 120
	}
	if cfg.Validation.MaxAttempts == 0 {
		cfg.Validation.MaxAttempts = 4
	}
	if cfg.Validation.BackoffBaseMS == 0 {
		cfg.Validation.BackoffBaseMS = 500
	}
	if cfg.Validation.TopK == 0 {
		cfg.Validation.TopK = 6
	}
	if cfg.Validation.MinSimilarity == 0 {
		cfg.Validation.MinSimilarity = 0.55
	}
	if cfg.Schedule.IndexSweepSpec == "" {
		cfg.Schedule.IndexSweepSpec = "* * * * *"
	}
	if cfg.Schedule.IndexSweepBatch == 0 {
		cfg.Schedule.IndexSweepBatch = 10
	}
	for name, p := range cfg.AI.Providers {
		if p.TimeoutSeconds == 0 {
			p.TimeoutSeconds = 60
		}
		if p.Rate.RequestsPerMinute == 0 {
			p.Rate.RequestsPerMinute = 60
		}
		if p.Rate.Burst == 0 {
			p.Rate.Burst = 1
		}
		if p.Rate.MaxWaitSeconds == 0 {
			p.Rate.MaxWaitSeconds = 30
		}
		if p.Rate.MaxConcurrent == 0 {
			p.Rate.MaxConcurrent = 2
		}
		cfg.AI.Providers[name] = p
	}
}
