package config

import (
	"log/slog"
	"path/filepath"
)

const (
	DirName  = ".ctxtree"
	FileName = "config.yaml"
)

type Config struct {
	// CacheDir holds the SQLite cache. Relative paths are resolved against
	// the project directory, the parent of .ctxtree.
	CacheDir string `yaml:"cache_dir" validate:"required"`

	// Workers bounds concurrent document processing; 0 means one per CPU.
	Workers int `yaml:"workers" validate:"min=0,max=256"`

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Render RenderConfig `yaml:"render"`
}

type RenderConfig struct {
	Dedup         bool   `yaml:"dedup"`
	SkipWarmup    bool   `yaml:"skip_warmup"`
	PreviewLength int    `yaml:"preview_length" validate:"min=0"`
	Color         string `yaml:"color" validate:"oneof=auto always never"`
}

func DefaultConfig() Config {
	return Config{
		CacheDir: DirName,
		Workers:  0,
		LogLevel: "warn",
		Render: RenderConfig{
			Dedup:         true,
			SkipWarmup:    true,
			PreviewLength: 1000,
			Color:         "auto",
		},
	}
}

// DefaultPath is where init writes the config for projectDir.
func DefaultPath(projectDir string) string {
	return filepath.Join(projectDir, DirName, FileName)
}

func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
