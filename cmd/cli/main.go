package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/comfyrun/internal/app"
	"github.com/vk/comfyrun/internal/cli"
)

// main is the entrypoint for the comfyrun application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	comfyApp, err := app.NewApp(outW, *appConfig)
	if err != nil {
		return err
	}

	result, err := comfyApp.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(outW, "job %s finished with %d file(s)\n", result.JobID, len(result.Files))
	return nil
}
