// Package config loads the engine configuration: a YAML file (optional)
// with CLIPFORGE_* environment overrides on top, so a packaged desktop shell
// can tune tool paths without shipping a config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes the clipforge YAML configuration.
type Config struct {
	Tools struct {
		Python  string `yaml:"python"`
		Aubio   string `yaml:"aubio"`
		FFmpeg  string `yaml:"ffmpeg"`
		FFprobe string `yaml:"ffprobe"`
		Whisper string `yaml:"whisper"`
	} `yaml:"tools"`
	Workspace struct {
		Root string `yaml:"root"`
	} `yaml:"workspace"`
	Split struct {
		DetectPhaseEnd float64 `yaml:"detect_phase_end"`
	} `yaml:"split"`
	Proc struct {
		GraceSeconds int `yaml:"grace_seconds"`
	} `yaml:"proc"`
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	var cfg Config
	cfg.Tools.Python = "python3"
	cfg.Tools.Aubio = "aubio"
	cfg.Tools.FFmpeg = "ffmpeg"
	cfg.Tools.FFprobe = "ffprobe"
	cfg.Tools.Whisper = "whisper"
	cfg.Split.DetectPhaseEnd = 0.30
	cfg.Proc.GraceSeconds = 5
	cfg.Server.ListenAddr = ":8990"
	cfg.LogLevel = "info"
	return cfg
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Tools.Python, "CLIPFORGE_PYTHON")
	setString(&cfg.Tools.Aubio, "CLIPFORGE_AUBIO")
	setString(&cfg.Tools.FFmpeg, "CLIPFORGE_FFMPEG")
	setString(&cfg.Tools.FFprobe, "CLIPFORGE_FFPROBE")
	setString(&cfg.Tools.Whisper, "CLIPFORGE_WHISPER")
	setString(&cfg.Workspace.Root, "CLIPFORGE_WORKSPACE_ROOT")
	setString(&cfg.Server.ListenAddr, "CLIPFORGE_LISTEN_ADDR")
	setString(&cfg.LogLevel, "CLIPFORGE_LOG_LEVEL")
	if v := os.Getenv("CLIPFORGE_DETECT_PHASE_END"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Split.DetectPhaseEnd = f
		}
	}
	if v := os.Getenv("CLIPFORGE_GRACE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Proc.GraceSeconds = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	if c.Tools.Python == "" {
		return fmt.Errorf("tools.python is required")
	}
	if c.Split.DetectPhaseEnd <= 0 || c.Split.DetectPhaseEnd >= 1 {
		return fmt.Errorf("split.detect_phase_end %v outside (0,1)", c.Split.DetectPhaseEnd)
	}
	if c.Proc.GraceSeconds <= 0 {
		return fmt.Errorf("proc.grace_seconds must be positive")
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}

// Grace returns the process termination grace period as a duration.
func (c *Config) Grace() time.Duration {
	return time.Duration(c.Proc.GraceSeconds) * time.Second
}
