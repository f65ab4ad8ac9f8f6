package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("C3_API_KEY", "")

	cfg, err := NewConfig(Config{
		WorkflowPath: "wf.json",
		ServerURL:    "http://engine",
		APIKey:       "k",
	})
	require.NoError(t, err)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, 2*time.Hour, cfg.Timeout)
}

func TestNewConfig_EnvironmentKeyFallback(t *testing.T) {
	t.Setenv("C3_API_KEY", "env-key")

	cfg, err := NewConfig(Config{WorkflowPath: "wf.json", ServerURL: "http://engine"})
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
}

func TestNewConfig_MissingRequirements(t *testing.T) {
	t.Setenv("C3_API_KEY", "")

	_, err := NewConfig(Config{ServerURL: "http://engine", APIKey: "k"})
	require.Error(t, err, "the workflow path is mandatory")

	_, err = NewConfig(Config{WorkflowPath: "wf.json", APIKey: "k"})
	require.Error(t, err, "the server URL is mandatory")

	_, err = NewConfig(Config{WorkflowPath: "wf.json", ServerURL: "http://engine"})
	require.Error(t, err, "some API key source is mandatory")
}

func TestNewConfig_SettingsFileFillsGaps(t *testing.T) {
	t.Setenv("C3_API_KEY", "")

	// --- Arrange ---
	settings := filepath.Join(t.TempDir(), "comfyrun.hcl")
	require.NoError(t, os.WriteFile(settings, []byte(`
server_url      = "http://from-settings"
api_key         = "settings-key"
output_dir      = "renders"
terminal_node   = "30"
timeout_minutes = 45
`), 0o644))

	// --- Act ---
	cfg, err := NewConfig(Config{
		WorkflowPath: "wf.json",
		SettingsPath: settings,
		ServerURL:    "http://from-flag", // flags beat settings
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag", cfg.ServerURL)
	assert.Equal(t, "settings-key", cfg.APIKey)
	assert.Equal(t, "renders", cfg.OutputDir)
	assert.Equal(t, "30", cfg.TerminalNode)
	assert.Equal(t, 45*time.Minute, cfg.Timeout)
}

func TestNewConfig_BadSettingsFile(t *testing.T) {
	t.Setenv("C3_API_KEY", "")

	settings := filepath.Join(t.TempDir(), "broken.hcl")
	require.NoError(t, os.WriteFile(settings, []byte(`server_url = `), 0o644))

	_, err := NewConfig(Config{WorkflowPath: "wf.json", SettingsPath: settings})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings file")
}
