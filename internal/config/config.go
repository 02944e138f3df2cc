package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Corpus layout
	CorpusRoot   string `yaml:"corpus_root"`
	DocumentExt  string `yaml:"document_ext"`
	TEINamespace string `yaml:"tei_namespace"`

	// Auth for mutating endpoints; empty disables them.
	APIKey string `yaml:"api_key"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// Search
	IndexDir string `yaml:"index_dir"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		CorpusRoot:   envOr("CORPUS_ROOT", "corpus/protocols"),
		DocumentExt:  envOr("DOCUMENT_EXT", ".xml"),
		TEINamespace: envOr("TEI_NAMESPACE", "http://www.tei-c.org/ns/1.0"),

		APIKey: os.Getenv("API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		IndexDir: envOr("INDEX_DIR", "search/index"),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "json"),
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
	if c.JobTTL <= 0 {
		c.JobTTL = 1 * time.Hour
	}
}

// LoadFile reads a YAML file and overlays its non-zero values on base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("parse config file: %w", err)
	}

	base.Merge(file)
	return base, nil
}

// Merge copies every non-zero field of other into c.
func (c *Config) Merge(other Config) {
	mergeString(&c.Port, other.Port)
	mergeString(&c.CorpusRoot, other.CorpusRoot)
	mergeString(&c.DocumentExt, other.DocumentExt)
	mergeString(&c.TEINamespace, other.TEINamespace)
	mergeString(&c.APIKey, other.APIKey)
	mergeString(&c.IndexDir, other.IndexDir)
	mergeString(&c.LogLevel, other.LogLevel)
	mergeString(&c.LogFormat, other.LogFormat)
	if other.WorkerCount > 0 {
		c.WorkerCount = other.WorkerCount
	}
	if other.MaxQueueSize > 0 {
		c.MaxQueueSize = other.MaxQueueSize
	}
	if other.JobTTL > 0 {
		c.JobTTL = other.JobTTL
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c Config) Validate() error {
	if c.CorpusRoot == "" {
		return fmt.Errorf("CORPUS_ROOT is required")
	}
	if !strings.HasPrefix(c.DocumentExt, ".") || len(c.DocumentExt) < 2 {
		return fmt.Errorf("DOCUMENT_EXT must start with a dot, got %q", c.DocumentExt)
	}
	if strings.ContainsAny(c.DocumentExt, `*?[]{}/\`) {
		return fmt.Errorf("DOCUMENT_EXT must not contain glob characters, got %q", c.DocumentExt)
	}
	if c.TEINamespace == "" {
		return fmt.Errorf("TEI_NAMESPACE is required")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
