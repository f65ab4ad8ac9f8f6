package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/comfyrun/internal/blobcache"
	"github.com/vk/comfyrun/internal/comfy"
	"github.com/vk/comfyrun/internal/ctxlog"
	"github.com/vk/comfyrun/internal/fsutil"
	"github.com/vk/comfyrun/internal/inject"
	"github.com/vk/comfyrun/internal/media"
	"github.com/vk/comfyrun/internal/track"
	"github.com/vk/comfyrun/internal/workflow"
)

// Result reports what a completed run produced.
type Result struct {
	JobID string
	Files []string
}

// Run executes the full pipeline: load the template, inject parameters,
// compile, submit, wait for completion and download every output artifact.
func (a *App) Run(ctx context.Context) (*Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	templatePath, err := fsutil.ResolveTemplate(a.cfg.WorkflowPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workflow template: %w", err)
	}
	a.logger.Debug("Workflow template resolved.", "path", templatePath)

	f, err := os.Open(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow template: %w", err)
	}
	doc, err := workflow.Load(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow template: %w", err)
	}
	a.logger.Info("Workflow template loaded.", "path", templatePath, "form", doc.Form)

	client, err := comfy.New(ctx, comfy.Config{
		ServerURL: a.cfg.ServerURL,
		APIKey:    a.cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	params, err := a.buildParams(ctx, client)
	if err != nil {
		return nil, err
	}

	doc, _, err = inject.Apply(ctx, doc, params)
	if err != nil {
		return nil, fmt.Errorf("failed to inject parameters: %w", err)
	}

	form, err := workflow.Compile(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to compile workflow: %w", err)
	}
	if err := form.Validate(); err != nil {
		return nil, fmt.Errorf("compiled workflow is invalid: %w", err)
	}
	a.logger.Info("Workflow compiled.", "node_count", len(form))

	terminal := a.cfg.TerminalNode
	if terminal == "" {
		if id, ok := form.FindClass("VHS_VideoCombine", "SaveImage"); ok {
			terminal = id
		} else {
			a.logger.Warn("No terminal output node found; completion will rely on queue state alone.")
		}
	}
	a.logger.Debug("Terminal node selected.", "node", terminal)

	jobID, err := client.Submit(ctx, form, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to submit workflow: %w", err)
	}
	a.logger.Info("🚀 Workflow submitted.", "job_id", jobID)

	tracker := track.New(client, track.Config{
		TerminalNode: terminal,
		Budget:       a.cfg.Timeout,
		Progress: track.Estimator{
			ExpectedOutputs: 1,
		},
	})
	if _, err := tracker.Wait(ctx, jobID, func(st track.Status) {
		fmt.Fprintf(a.outW, "[%3d%%] %s: %s\n", st.Progress, st.State, st.Detail)
	}); err != nil {
		return nil, fmt.Errorf("workflow did not complete: %w", err)
	}
	a.logger.Info("🏁 Workflow finished.", "job_id", jobID)

	files, err := a.download(ctx, client, jobID, terminal)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("App.Run method finished.")
	return &Result{JobID: jobID, Files: files}, nil
}

// buildParams assembles the injection parameters, uploading any local
// media and probing it for dimensions and duration.
func (a *App) buildParams(ctx context.Context, client *comfy.Client) (inject.Params, error) {
	params := inject.Params{
		PositivePrompt: a.cfg.PositivePrompt,
		NegativePrompt: a.cfg.NegativePrompt,
		Width:          a.cfg.Width,
		Height:         a.cfg.Height,
		Frames:         a.cfg.Frames,
		FPS:            a.cfg.FPS,
		Steps:          a.cfg.Steps,
		Seed:           a.cfg.Seed,
	}

	if a.cfg.ImagePath != "" {
		w, h, err := media.ImageSize(a.cfg.ImagePath)
		if err != nil {
			a.logger.Warn("Could not read image dimensions.", "path", a.cfg.ImagePath, "error", err)
		} else {
			params.ImageWidth, params.ImageHeight = w, h
		}
		name, err := client.Upload(ctx, a.cfg.ImagePath)
		if err != nil {
			return inject.Params{}, fmt.Errorf("failed to upload image: %w", err)
		}
		a.logger.Info("Image uploaded.", "name", name)
		params.ImageName = name
	}

	if a.cfg.AudioPath != "" {
		secs, err := media.WAVDuration(a.cfg.AudioPath)
		if err != nil {
			a.logger.Warn("Could not read audio duration.", "path", a.cfg.AudioPath, "error", err)
		} else {
			params.AudioSeconds = secs
		}
		name, err := client.Upload(ctx, a.cfg.AudioPath)
		if err != nil {
			return inject.Params{}, fmt.Errorf("failed to upload audio: %w", err)
		}
		a.logger.Info("Audio uploaded.", "name", name)
		params.AudioName = name
	}

	return params, nil
}

// download fetches the run's artifacts into the output directory. Artifacts
// from the terminal node come first; everything else follows.
func (a *App) download(ctx context.Context, client *comfy.Client, jobID, terminal string) ([]string, error) {
	artifacts, err := client.ListOutputs(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outputs: %w", err)
	}
	if terminal != "" {
		var ordered []comfy.Artifact
		for _, art := range artifacts {
			if art.NodeID == terminal {
				ordered = append(ordered, art)
			}
		}
		for _, art := range artifacts {
			if art.NodeID != terminal {
				ordered = append(ordered, art)
			}
		}
		artifacts = ordered
	}

	dl := &comfy.Downloader{Client: client}
	if a.cfg.CacheEnabled {
		cache, err := blobcache.NewDir(a.cfg.CacheDir)
		if err != nil {
			a.logger.Warn("Could not open blob cache, continuing without it.", "error", err)
		} else {
			dl.Cache = cache
		}
	}

	var files []string
	for _, art := range artifacts {
		path, cached, err := dl.Fetch(ctx, art, a.cfg.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", art.Filename, err)
		}
		if cached {
			a.logger.Info("Artifact served from cache.", "file", art.Filename)
		}
		files = append(files, path)
		fmt.Fprintf(a.outW, "saved %s\n", filepath.Clean(path))
	}
	return files, nil
}
