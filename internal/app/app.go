package app

import (
	"io"
	"log/slog"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger.
func NewApp(outW io.Writer, cfg Config) (*App, error) {
	full, err := NewConfig(cfg)
	if err != nil {
		return nil, err
	}

	logger := newLogger(full.LogLevel, full.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	return &App{
		outW:   outW,
		logger: logger,
		cfg:    full,
	}, nil
}

// Config returns the resolved application configuration. This is primarily
// for testing.
func (a *App) Config() *Config {
	return a.cfg
}
