package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string `yaml:"port"`
	Environment  string `yaml:"env"`
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`
	LogLevel     string `yaml:"log_level"`

	EditorDBPath   string  `yaml:"editor_db_path"`
	MigrationsPath string  `yaml:"migrations_path"`
	PhotoDir       string  `yaml:"photo_dir"`
	MaskDir        string  `yaml:"mask_dir"`
	DetectorURL    string  `yaml:"detector_url"`
	EditorURL      string  `yaml:"editor_url"`
	TextureBaseURL string  `yaml:"texture_base_url"`
	DetectTimeout  int     `yaml:"detect_timeout"`
	TextureTimeout int     `yaml:"texture_timeout"`
	CanvasPadding  float64 `yaml:"canvas_padding"`

	AllowOrigins []string `yaml:"allow_origins"`
}

func defaults() Config {
	return Config{
		Environment:    "development",
		ReadTimeout:    10,
		WriteTimeout:   10,
		LogLevel:       "info",
		EditorDBPath:   "data/db/editor.db",
		MigrationsPath: "migrations/001_init_projects.sql",
		PhotoDir:       "source",
		MaskDir:        "masks",
		DetectorURL:    "http://localhost:3001",
		EditorURL:      "http://localhost:3002",
		DetectTimeout:  30,
		TextureTimeout: 10,
		CanvasPadding:  32,
		AllowOrigins:   []string{"*"},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE (palitra.yaml when unset) and environment variables, in
// increasing precedence.
func Load() (*Config, error) {
	cfg := defaults()
	if err := loadOptional(getEnv("CONFIG_FILE", "palitra.yaml"), &cfg); err != nil {
		return nil, err
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENV", cfg.Environment)
	cfg.ReadTimeout = getEnvAsInt("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvAsInt("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.EditorDBPath = getEnv("EDITOR_DB_PATH", cfg.EditorDBPath)
	cfg.MigrationsPath = getEnv("MIGRATIONS_PATH", cfg.MigrationsPath)
	cfg.PhotoDir = getEnv("PHOTO_DIR", cfg.PhotoDir)
	cfg.MaskDir = getEnv("MASK_DIR", cfg.MaskDir)
	cfg.DetectorURL = getEnv("DETECTOR_URL", cfg.DetectorURL)
	cfg.EditorURL = getEnv("EDITOR_URL", cfg.EditorURL)
	cfg.TextureBaseURL = getEnv("TEXTURE_BASE_URL", cfg.TextureBaseURL)
	cfg.DetectTimeout = getEnvAsInt("DETECT_TIMEOUT", cfg.DetectTimeout)
	cfg.TextureTimeout = getEnvAsInt("TEXTURE_TIMEOUT", cfg.TextureTimeout)
	cfg.CanvasPadding = getEnvAsFloat("CANVAS_PADDING", cfg.CanvasPadding)
	cfg.AllowOrigins = getEnvAsList("CORS_ORIGINS", cfg.AllowOrigins)
	return &cfg, nil
}

// Addr is the listen address, using defaultPort when no port is configured.
func (c *Config) Addr(defaultPort string) string {
	port := c.Port
	if port == "" {
		port = defaultPort
	}
	return ":" + port
}

func (c *Config) Debug() bool {
	return c.Environment == "development"
}

func (c *Config) DetectTimeoutDuration() time.Duration {
	return time.Duration(c.DetectTimeout) * time.Second
}

func (c *Config) TextureTimeoutDuration() time.Duration {
	return time.Duration(c.TextureTimeout) * time.Second
}

// loadOptional overlays a YAML file onto cfg. A missing file is not an error.
func loadOptional(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
