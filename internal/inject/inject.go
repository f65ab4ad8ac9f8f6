package inject

import (
	"context"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/comfyrun/internal/ctxlog"
	"github.com/vk/comfyrun/internal/workflow"
)

// Params are the caller-supplied generation parameters. Zero values mean
// "not provided" and leave the corresponding nodes untouched, except Seed,
// where any negative value requests a fresh random seed.
type Params struct {
	PositivePrompt string
	NegativePrompt string

	// ImageName and AudioName are engine-side file references, i.e. the
	// names returned by the upload endpoint.
	ImageName string
	AudioName string

	// AudioSeconds is the raw duration of the referenced audio. It drives
	// the injected whole-second duration; zero with AudioName set falls
	// back to a conservative default for unreadable files.
	AudioSeconds float64

	// ImageWidth and ImageHeight are the raw pixel dimensions of the
	// referenced image, used to pick the canonical resize format.
	ImageWidth  int
	ImageHeight int

	Width  int
	Height int
	Frames int
	FPS    float64
	Steps  int
	Seed   int64
}

// fallbackDuration is injected when audio is referenced but its duration
// could not be read.
const fallbackDuration = 5

// Report collects the non-fatal findings of one injection pass. Whether a
// gap or a warning aborts the run is the caller's decision.
type Report struct {
	// Missing lists supplied parameters that found no matching node.
	Missing []string
	// Warnings lists recognized nodes left unmodified, e.g. because their
	// widget arity did not match expectation.
	Warnings []string
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// randomSeed generates a seed when the caller did not pin one. Swapped out
// in tests.
var randomSeed = func() int64 {
	return time.Now().UnixMilli() % (1 << 32)
}

// Apply writes the parameters into a deep copy of doc and returns the
// copy together with a report of gaps and skipped nodes. The input
// document is never mutated.
func Apply(ctx context.Context, doc *workflow.Document, p Params) (*workflow.Document, *Report, error) {
	logger := ctxlog.FromContext(ctx)
	out := doc.DeepCopy()
	report := &Report{}

	seed := p.Seed
	if seed < 0 {
		seed = randomSeed()
		logger.Debug("No seed pinned, generated one.", "seed", seed)
	}

	switch out.Form {
	case workflow.FormVisual:
		applyVisual(out.Visual, p, seed, report)
	case workflow.FormExecution:
		applyExec(out.Exec, p, seed, report)
	default:
		return nil, nil, fmt.Errorf("inject: unknown document form %v", out.Form)
	}

	for _, w := range report.Warnings {
		logger.Warn("Injection skipped a node.", "reason", w)
	}
	for _, m := range report.Missing {
		logger.Warn("Parameter found no matching node.", "gap", m)
	}
	return out, report, nil
}

// tracker records which parameters found at least one home.
type found struct {
	positive, negative       bool
	image, audio, duration   bool
	size, frames, fps, steps bool
	seed                     bool
}

func applyVisual(g *workflow.Graph, p Params, seed int64, report *Report) {
	var f found
	setWidget := func(n *workflow.Node, i int, v cty.Value, hit *bool) {
		if err := n.SetWidget(i, v); err != nil {
			report.warnf("%v", err)
			return
		}
		*hit = true
	}

	for _, n := range g.Nodes {
		switch n.Type {
		case "WanVideoTextEncode":
			if p.PositivePrompt != "" {
				setWidget(n, 0, cty.StringVal(p.PositivePrompt), &f.positive)
			}
			if p.NegativePrompt != "" {
				setWidget(n, 1, cty.StringVal(p.NegativePrompt), &f.negative)
			}

		case "CLIPTextEncode":
			// Duplicate encoders share the type; the declared title names
			// the role.
			switch n.Title {
			case "Positive Prompt":
				if p.PositivePrompt != "" {
					setWidget(n, 0, cty.StringVal(p.PositivePrompt), &f.positive)
				}
			case "Negative Prompt":
				if p.NegativePrompt != "" {
					setWidget(n, 0, cty.StringVal(p.NegativePrompt), &f.negative)
				}
			}

		case "LoadImage":
			if p.ImageName != "" {
				setWidget(n, 0, cty.StringVal(p.ImageName), &f.image)
			}

		case "LoadAudio", "VHS_LoadAudio":
			if p.AudioName != "" {
				setWidget(n, 0, cty.StringVal(p.AudioName), &f.audio)
			}

		case "WanVideoEmptyEmbeds":
			if p.Width > 0 && p.Height > 0 {
				setWidget(n, 0, cty.NumberIntVal(int64(p.Width)), &f.size)
				setWidget(n, 1, cty.NumberIntVal(int64(p.Height)), &f.size)
			}
			if p.Frames > 0 {
				setWidget(n, 2, cty.NumberIntVal(int64(p.Frames)), &f.frames)
			}

		case "EmptyLatentImage":
			if p.Width > 0 && p.Height > 0 {
				setWidget(n, 0, cty.NumberIntVal(int64(p.Width)), &f.size)
				setWidget(n, 1, cty.NumberIntVal(int64(p.Height)), &f.size)
			}

		case "VHS_VideoCombine":
			if p.FPS > 0 {
				if err := n.SetKeyedWidget("frame_rate", cty.NumberFloatVal(p.FPS)); err != nil {
					report.warnf("%v", err)
				} else {
					f.fps = true
				}
			}

		case "WanVideoSampler":
			if p.Steps > 0 {
				setWidget(n, 0, cty.NumberIntVal(int64(p.Steps)), &f.steps)
			}
			setWidget(n, 3, cty.NumberIntVal(seed), &f.seed)

		case "KSampler":
			setWidget(n, 0, cty.NumberIntVal(seed), &f.seed)
			if p.Steps > 0 {
				setWidget(n, 2, cty.NumberIntVal(int64(p.Steps)), &f.steps)
			}
		}
	}

	reconcile(&f, report, p)
}

func applyExec(form workflow.ExecForm, p Params, seed int64, report *Report) {
	var f found
	set := func(n *workflow.CompiledNode, name string, v cty.Value, hit *bool) {
		n.Inputs[name] = workflow.Literal(v)
		*hit = true
	}

	duration := fallbackDuration
	if p.AudioSeconds > 0 {
		duration = Duration(p.AudioSeconds)
	}

	var resize Size
	if p.ImageWidth > 0 && p.ImageHeight > 0 {
		resize = OptimalSize(p.ImageWidth, p.ImageHeight)
	}

	for _, id := range form.NodeIDs() {
		n := form[id]
		switch n.ClassType {
		case "WanVideoTextEncode":
			if p.PositivePrompt != "" {
				set(n, "positive_prompt", cty.StringVal(p.PositivePrompt), &f.positive)
			}
			if p.NegativePrompt != "" {
				set(n, "negative_prompt", cty.StringVal(p.NegativePrompt), &f.negative)
			}

		case "CLIPTextEncode":
			title := ""
			if n.Meta != nil {
				title = n.Meta.Title
			}
			switch title {
			case "Positive Prompt":
				if p.PositivePrompt != "" {
					set(n, "text", cty.StringVal(p.PositivePrompt), &f.positive)
				}
			case "Negative Prompt":
				if p.NegativePrompt != "" {
					set(n, "text", cty.StringVal(p.NegativePrompt), &f.negative)
				}
			}

		case "LoadImage":
			if p.ImageName != "" {
				set(n, "image", cty.StringVal(p.ImageName), &f.image)
			}

		case "LoadAudio", "VHS_LoadAudio":
			if p.AudioName == "" {
				break
			}
			// The two audio loader generations name their input differently.
			if _, ok := n.Inputs["audio_file"]; ok {
				set(n, "audio_file", cty.StringVal("input/"+p.AudioName), &f.audio)
			} else {
				set(n, "audio", cty.StringVal(p.AudioName), &f.audio)
			}

		case "SONIC_PreData":
			if p.AudioName == "" && p.AudioSeconds <= 0 {
				break
			}
			if _, ok := n.Inputs["duration"]; !ok {
				report.warnf("node %s (SONIC_PreData): no duration input to overwrite", id)
				break
			}
			set(n, "duration", cty.NumberIntVal(int64(duration)), &f.duration)

		case "Image Resize":
			if resize.Width > 0 {
				set(n, "resize_width", cty.NumberIntVal(int64(resize.Width)), &f.size)
				set(n, "resize_height", cty.NumberIntVal(int64(resize.Height)), &f.size)
			}

		case "WanVideoEmptyEmbeds":
			if p.Width > 0 && p.Height > 0 {
				set(n, "width", cty.NumberIntVal(int64(p.Width)), &f.size)
				set(n, "height", cty.NumberIntVal(int64(p.Height)), &f.size)
			}
			if p.Frames > 0 {
				set(n, "num_frames", cty.NumberIntVal(int64(p.Frames)), &f.frames)
			}

		case "EmptyLatentImage":
			if p.Width > 0 && p.Height > 0 {
				set(n, "width", cty.NumberIntVal(int64(p.Width)), &f.size)
				set(n, "height", cty.NumberIntVal(int64(p.Height)), &f.size)
			}

		case "VHS_VideoCombine":
			if p.FPS > 0 {
				set(n, "frame_rate", cty.NumberFloatVal(p.FPS), &f.fps)
			}

		case "WanVideoSampler", "KSampler":
			if p.Steps > 0 {
				set(n, "steps", cty.NumberIntVal(int64(p.Steps)), &f.steps)
			}
			set(n, "seed", cty.NumberIntVal(seed), &f.seed)
		}
	}

	reconcile(&f, report, p)
}

// reconcile translates un-hit parameters into reported gaps.
func reconcile(f *found, report *Report, p Params) {
	miss := func(hit bool, supplied bool, what string) {
		if supplied && !hit {
			report.Missing = append(report.Missing, what)
		}
	}
	miss(f.positive, p.PositivePrompt != "", "positive prompt: no text-encoding node found")
	miss(f.negative, p.NegativePrompt != "", "negative prompt: no text-encoding node found")
	miss(f.image, p.ImageName != "", "image reference: no image-loading node found")
	miss(f.audio, p.AudioName != "", "audio reference: no audio-loading node found")
	miss(f.size, p.Width > 0 && p.Height > 0, "dimensions: no latent or resize node found")
	miss(f.frames, p.Frames > 0, "frame count: no frame-consuming node found")
	miss(f.fps, p.FPS > 0, "frame rate: no video-combine node found")
	miss(f.steps, p.Steps > 0, "sampling steps: no sampler node found")
}
