// Package config provides application configuration with support for command-line flags, environment variables and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/listenupapp/photoshelf/internal/validation"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Library   LibraryConfig
	Thumbnail ThumbnailConfig
	Server    ServerConfig
	Import    ImportConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `env:"ENV" validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" validate:"required,oneof=debug info warn error"`
}

// LibraryConfig holds the on-disk layout of the photo library.
// PhotosPath and ThumbnailsPath default to "photos" and "thumbnails" under Path.
type LibraryConfig struct {
	Path           string `env:"LIBRARY_PATH" validate:"required"`
	PhotosPath     string `env:"PHOTOS_PATH" validate:"required"`
	ThumbnailsPath string `env:"THUMBNAILS_PATH" validate:"required,nefield=PhotosPath"`
	ScanWorkers    int    `env:"SCAN_WORKERS" validate:"gte=1,lte=64"`
	WatchEnabled   bool   `env:"WATCH_ENABLED"`
}

// ThumbnailConfig holds thumbnail geometry and encoding.
type ThumbnailConfig struct {
	Width   int `env:"THUMBNAIL_WIDTH" validate:"gte=1,lte=1024"`
	Height  int `env:"THUMBNAIL_HEIGHT" validate:"gte=1,lte=1024"`
	Quality int `env:"THUMBNAIL_QUALITY" validate:"gte=1,lte=100"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `env:"SERVER_PORT" validate:"required,numeric"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" validate:"gt=0"`

	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string `env:"CORS_ORIGINS" validate:"min=1,dive,required"`
}

// ImportConfig holds upload limits.
type ImportConfig struct {
	RatePerMinute int   `env:"IMPORT_RATE" validate:"gte=1"`
	Burst         int   `env:"IMPORT_BURST" validate:"gte=1"`
	Quality       int   `env:"IMPORT_QUALITY" validate:"gte=1,lte=100"`
	MaxBytes      int64 `env:"IMPORT_MAX_BYTES" validate:"gte=1024"`
}

// Flags carries command-line overrides. Empty strings mean "not set".
type Flags struct {
	EnvFile          string
	Env              string
	LogLevel         string
	LibraryPath      string
	PhotosPath       string
	ThumbnailsPath   string
	ThumbnailWidth   string
	ThumbnailHeight  string
	ThumbnailQuality string
	ScanWorkers      string
	Watch            string
	Port             string
}

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file (never overrides the real environment).
// 4. Default values (lowest priority).
func Load(flags Flags) (*Config, error) {
	envFile := flags.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	s := sources{dotenv: dotenv}

	cfg := &Config{
		App: AppConfig{
			Environment: s.get(flags.Env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: strings.ToLower(s.get(flags.LogLevel, "LOG_LEVEL", "info")),
		},
		Library: LibraryConfig{
			Path:           s.get(flags.LibraryPath, "LIBRARY_PATH", ""),
			PhotosPath:     s.get(flags.PhotosPath, "PHOTOS_PATH", ""),
			ThumbnailsPath: s.get(flags.ThumbnailsPath, "THUMBNAILS_PATH", ""),
			WatchEnabled:   s.getBool(flags.Watch, "WATCH_ENABLED", true),
		},
		Server: ServerConfig{
			Port:           s.get(flags.Port, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(s.get("", "CORS_ORIGINS", "*")),
		},
	}

	ints := []struct {
		dst  *int
		flag string
		key  string
		def  int
	}{
		{&cfg.Library.ScanWorkers, flags.ScanWorkers, "SCAN_WORKERS", 4},
		{&cfg.Thumbnail.Width, flags.ThumbnailWidth, "THUMBNAIL_WIDTH", 64},
		{&cfg.Thumbnail.Height, flags.ThumbnailHeight, "THUMBNAIL_HEIGHT", 64},
		{&cfg.Thumbnail.Quality, flags.ThumbnailQuality, "THUMBNAIL_QUALITY", 90},
		{&cfg.Import.RatePerMinute, "", "IMPORT_RATE", 30},
		{&cfg.Import.Burst, "", "IMPORT_BURST", 5},
		{&cfg.Import.Quality, "", "IMPORT_QUALITY", 95},
	}
	for _, v := range ints {
		if *v.dst, err = s.getInt(v.flag, v.key, v.def); err != nil {
			return nil, err
		}
	}

	maxBytes, err := s.getInt("", "IMPORT_MAX_BYTES", 32<<20)
	if err != nil {
		return nil, err
	}
	cfg.Import.MaxBytes = int64(maxBytes)

	durations := []struct {
		dst *time.Duration
		key string
		def string
	}{
		{&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
	}
	for _, d := range durations {
		raw := s.get("", d.key, d.def)
		if *d.dst, err = time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.key, raw, err)
		}
	}

	if err := cfg.expandLibraryPaths(); err != nil {
		return nil, fmt.Errorf("invalid library path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and within bounds.
func (c *Config) Validate() error {
	return validation.New().Validate(c)
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// expandLibraryPaths resolves the library root and derives the store directories from it.
func (c *Config) expandLibraryPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	root, err := expandPath(c.Library.Path, filepath.Join(homeDir, "Photoshelf"))
	if err != nil {
		return err
	}
	c.Library.Path = root

	if c.Library.PhotosPath, err = expandPath(c.Library.PhotosPath, filepath.Join(root, "photos")); err != nil {
		return err
	}
	if c.Library.ThumbnailsPath, err = expandPath(c.Library.ThumbnailsPath, filepath.Join(root, "thumbnails")); err != nil {
		return err
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned as is.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/"))
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// sources resolves a key through flag, environment and .env values.
type sources struct {
	dotenv map[string]string
}

// get returns the first non-empty value from flag, env var, .env file or default.
func (s sources) get(flagValue, key, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := s.dotenv[key]; v != "" {
		return v
	}
	return defaultValue
}

// getBool accepts "true", "1", "yes" and "on" (case-insensitive) as true.
func (s sources) getBool(flagValue, key string, defaultValue bool) bool {
	v := s.get(flagValue, key, "")
	if v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func (s sources) getInt(flagValue, key string, defaultValue int) (int, error) {
	v := s.get(flagValue, key, "")
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", key, v)
	}
	return n, nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
