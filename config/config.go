// Package config loads docchat settings from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultTopK         = 4
)

// ProviderConfig selects an embedding or completion backend.
type ProviderConfig struct {
	Provider string        `yaml:"provider" validate:"oneof=openai ollama"`
	URL      string        `yaml:"url" validate:"required"`
	Model    string        `yaml:"model" validate:"required"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
}

type Config struct {
	ServerAddr  string `yaml:"server_addr" validate:"required"`
	DataDir     string `yaml:"data_dir" validate:"required"`
	UploadDir   string `yaml:"upload_dir"`
	ChatsDir    string `yaml:"chats_dir"`
	StorePath   string `yaml:"store_path"`
	BodyLimitMB int    `yaml:"body_limit_mb" validate:"gt=0"`

	CorpusBackend string `yaml:"corpus_backend" validate:"oneof=file postgres"`
	PostgresDSN   string `yaml:"pg_dsn" validate:"required_if=CorpusBackend postgres"`

	ChunkSize    int `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap int `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	TopK         int `yaml:"top_k" validate:"gt=0"`

	ChatTemperature      float64 `yaml:"chat_temperature" validate:"gte=0,lte=2"`
	TranslateTemperature float64 `yaml:"translate_temperature" validate:"gte=0,lte=2"`
	TranslateConcurrency int     `yaml:"translate_concurrency" validate:"gt=0"`

	Embedding ProviderConfig `yaml:"embedding"`
	LLM       ProviderConfig `yaml:"llm"`

	// Header and footer heights in points removed from PDFs before text extraction.
	PDFCropTop    float64 `yaml:"pdf_crop_top" validate:"gte=0"`
	PDFCropBottom float64 `yaml:"pdf_crop_bottom" validate:"gte=0"`

	WatchDir    string        `yaml:"watch_dir"`
	ArchiveDir  string        `yaml:"archive_dir"`
	BadDir      string        `yaml:"bad_dir"`
	WatchSettle time.Duration `yaml:"watch_settle" validate:"gt=0"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`
}

func Default() *Config {
	return &Config{
		ServerAddr:           ":3001",
		DataDir:              "data",
		BodyLimitMB:          50,
		CorpusBackend:        "file",
		ChunkSize:            DefaultChunkSize,
		ChunkOverlap:         DefaultChunkOverlap,
		TopK:                 DefaultTopK,
		ChatTemperature:      0.7,
		TranslateTemperature: 0.3,
		TranslateConcurrency: 4,
		Embedding: ProviderConfig{
			Provider: "openai",
			URL:      "https://api.openai.com/v1",
			Model:    "text-embedding-3-small",
			Timeout:  60 * time.Second,
		},
		LLM: ProviderConfig{
			Provider: "openai",
			URL:      "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
			Timeout:  120 * time.Second,
		},
		WatchSettle: 5 * time.Second,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load builds the configuration. The YAML file is read from path, or from CONFIG_FILE when path is
// empty; a missing file is not an error. Environment variables (including a local .env) win over the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.deriveDirs()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) deriveDirs() {
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(c.DataDir, "uploads")
	}
	if c.ChatsDir == "" {
		c.ChatsDir = filepath.Join(c.DataDir, "chats")
	}
	if c.StorePath == "" {
		c.StorePath = filepath.Join(c.DataDir, "vector_store.json")
	}
	if c.WatchDir != "" {
		if c.ArchiveDir == "" {
			c.ArchiveDir = filepath.Join(c.DataDir, "archive")
		}
		if c.BadDir == "" {
			c.BadDir = filepath.Join(c.DataDir, "bad")
		}
	}
}

func (c *Config) applyEnv() error {
	setString(&c.ServerAddr, "SERVER_ADDR")
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.UploadDir, "UPLOAD_DIR")
	setString(&c.ChatsDir, "CHATS_DIR")
	setString(&c.StorePath, "STORE_PATH")
	setString(&c.CorpusBackend, "CORPUS_BACKEND")
	setString(&c.PostgresDSN, "PG_DSN")
	setString(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&c.Embedding.URL, "EMBEDDING_URL")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	setString(&c.Embedding.APIKey, "EMBEDDING_API_KEY")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.URL, "LLM_URL")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.WatchDir, "WATCH_DIR")
	setString(&c.ArchiveDir, "ARCHIVE_DIR")
	setString(&c.BadDir, "BAD_DIR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")

	return errors.Join(
		setInt(&c.BodyLimitMB, "BODY_LIMIT_MB"),
		setInt(&c.ChunkSize, "CHUNK_SIZE"),
		setInt(&c.ChunkOverlap, "CHUNK_OVERLAP"),
		setInt(&c.TopK, "TOP_K"),
		setInt(&c.TranslateConcurrency, "TRANSLATE_CONCURRENCY"),
		setFloat(&c.ChatTemperature, "CHAT_TEMPERATURE"),
		setFloat(&c.TranslateTemperature, "TRANSLATE_TEMPERATURE"),
		setFloat(&c.PDFCropTop, "PDF_CROP_TOP"),
		setFloat(&c.PDFCropBottom, "PDF_CROP_BOTTOM"),
		setDuration(&c.WatchSettle, "WATCH_SETTLE"),
		setDuration(&c.Embedding.Timeout, "EMBEDDING_TIMEOUT"),
		setDuration(&c.LLM.Timeout, "LLM_TIMEOUT"),
	)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
