package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// WorkflowPath points at a workflow template: a .json file or a
	// directory containing exactly one.
	WorkflowPath string
	// SettingsPath optionally points at an HCL settings file whose values
	// fill any fields the flags left empty.
	SettingsPath string

	ServerURL string
	APIKey    string // falls back to the C3_API_KEY environment variable
	OutputDir string

	PositivePrompt string
	NegativePrompt string
	ImagePath      string
	AudioPath      string
	Width          int
	Height         int
	Frames         int
	FPS            float64
	Steps          int
	Seed           int64 // negative requests a random seed

	Timeout      time.Duration
	TerminalNode string // empty: inferred from the compiled graph

	CacheEnabled bool
	CacheDir     string

	LogFormat string
	LogLevel  string
}

// settingsFile is the HCL shape of an optional settings file.
type settingsFile struct {
	ServerURL      string `hcl:"server_url,optional"`
	APIKey         string `hcl:"api_key,optional"`
	OutputDir      string `hcl:"output_dir,optional"`
	CacheDir       string `hcl:"cache_dir,optional"`
	TerminalNode   string `hcl:"terminal_node,optional"`
	TimeoutMinutes int    `hcl:"timeout_minutes,optional"`
}

// NewConfig validates and completes a Config: the settings file (when
// given) and environment fill empty fields, flags always win.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.SettingsPath != "" {
		var settings settingsFile
		if err := hclsimple.DecodeFile(cfg.SettingsPath, nil, &settings); err != nil {
			return nil, fmt.Errorf("settings file %s: %w", cfg.SettingsPath, err)
		}
		if cfg.ServerURL == "" {
			cfg.ServerURL = settings.ServerURL
		}
		if cfg.APIKey == "" {
			cfg.APIKey = settings.APIKey
		}
		if cfg.OutputDir == "" {
			cfg.OutputDir = settings.OutputDir
		}
		if cfg.CacheDir == "" {
			cfg.CacheDir = settings.CacheDir
		}
		if cfg.TerminalNode == "" {
			cfg.TerminalNode = settings.TerminalNode
		}
		if cfg.Timeout == 0 && settings.TimeoutMinutes > 0 {
			cfg.Timeout = time.Duration(settings.TimeoutMinutes) * time.Minute
		}
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("C3_API_KEY")
	}

	if cfg.WorkflowPath == "" {
		return nil, errors.New("a workflow template path is required")
	}
	if cfg.ServerURL == "" {
		return nil, errors.New("a server URL is required (flag, settings file)")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("an API key is required (flag, settings file, or C3_API_KEY)")
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Hour
	}

	return &cfg, nil
}
