package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vk/comfyrun/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("comfyrun", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
ComfyRun - A batch driver for remote ComfyUI workflows.

Usage:
  comfyrun [options] [WORKFLOW_PATH]

Arguments:
  WORKFLOW_PATH
    Path to a workflow .json file or a directory containing exactly one.

Options:
`)
		flagSet.PrintDefaults()
	}

	workflowFlag := flagSet.String("workflow", "", "Path to the workflow template file or directory.")
	wFlag := flagSet.String("w", "", "Path to the workflow template file or directory (shorthand).")
	settingsFlag := flagSet.String("settings", "", "Path to an optional HCL settings file.")
	serverFlag := flagSet.String("server", "", "Base URL of the ComfyUI server.")
	apiKeyFlag := flagSet.String("api-key", "", "API key. Falls back to the C3_API_KEY environment variable.")
	outputDirFlag := flagSet.String("output", "output", "Directory to download result files into.")
	promptFlag := flagSet.String("prompt", "", "Positive prompt text to inject.")
	negativeFlag := flagSet.String("negative", "", "Negative prompt text to inject.")
	imageFlag := flagSet.String("image", "", "Local image file to upload and wire into the workflow.")
	audioFlag := flagSet.String("audio", "", "Local WAV file to upload and wire into the workflow.")
	widthFlag := flagSet.Int("width", 0, "Output width in pixels. 0 keeps the template value.")
	heightFlag := flagSet.Int("height", 0, "Output height in pixels. 0 keeps the template value.")
	framesFlag := flagSet.Int("frames", 0, "Number of frames to generate. 0 keeps the template value.")
	fpsFlag := flagSet.Float64("fps", 0, "Output frame rate. 0 keeps the template value.")
	stepsFlag := flagSet.Int("steps", 0, "Sampler step count. 0 keeps the template value.")
	seedFlag := flagSet.Int64("seed", -1, "Sampler seed. Negative picks a random seed.")
	timeoutFlag := flagSet.Int("timeout-minutes", 0, "Completion budget in minutes. 0 uses the default.")
	terminalFlag := flagSet.String("terminal-node", "", "Node id whose output marks the job complete. Empty infers it.")
	cacheDirFlag := flagSet.String("cache-dir", "", "Directory for the download fallback cache. Empty disables it.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *workflowFlag != "" {
		path = *workflowFlag
	} else if *wFlag != "" {
		path = *wFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Workflow path determined.", "path", path)

	if path == "" {
		slog.Debug("No workflow path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		WorkflowPath:   path,
		SettingsPath:   *settingsFlag,
		ServerURL:      *serverFlag,
		APIKey:         *apiKeyFlag,
		OutputDir:      *outputDirFlag,
		PositivePrompt: *promptFlag,
		NegativePrompt: *negativeFlag,
		ImagePath:      *imageFlag,
		AudioPath:      *audioFlag,
		Width:          *widthFlag,
		Height:         *heightFlag,
		Frames:         *framesFlag,
		FPS:            *fpsFlag,
		Steps:          *stepsFlag,
		Seed:           *seedFlag,
		Timeout:        time.Duration(*timeoutFlag) * time.Minute,
		TerminalNode:   *terminalFlag,
		CacheEnabled:   *cacheDirFlag != "",
		CacheDir:       *cacheDirFlag,
		LogFormat:      logFormat,
		LogLevel:       logLevel,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return config, false, nil
}
