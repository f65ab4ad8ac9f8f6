package workflow

import (
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Built-in widget schemas for the node types the driver encounters in
// practice. Each mirrors the positional layout the editor saves for that
// class type; the arity guards protect against graphs authored by other
// editor versions, where the safe behaviour is to emit nothing and let the
// engine apply its own defaults.
func init() {
	RegisterSchema("WanVideoTextEncode", func(w Widgets) map[string]cty.Value {
		if w.Len() < 2 {
			return nil
		}
		out := map[string]cty.Value{
			"positive_prompt": w.At(0),
			"negative_prompt": w.At(1),
			"force_zeros":     cty.True,
		}
		if w.Len() > 2 {
			out["force_zeros"] = w.At(2)
		}
		return out
	})

	RegisterSchema("WanVideoEmptyEmbeds", func(w Widgets) map[string]cty.Value {
		if w.Len() < 3 {
			return nil
		}
		return map[string]cty.Value{
			"width":      w.At(0),
			"height":     w.At(1),
			"num_frames": w.At(2),
		}
	})

	RegisterSchema("WanVideoBlockSwap", func(w Widgets) map[string]cty.Value {
		if w.Len() < 5 {
			return nil
		}
		return map[string]cty.Value{
			"blocks_to_swap":      w.At(0),
			"offload_txt_emb":     w.At(1),
			"offload_img_emb":     w.At(2),
			"non_blocking":        w.At(3),
			"vace_blocks_to_swap": w.At(4),
		}
	})

	RegisterSchema("WanVideoTorchCompileSettings", func(w Widgets) map[string]cty.Value {
		if w.Len() < 7 {
			return nil
		}
		return map[string]cty.Value{
			"backend":                         w.At(0),
			"fullgraph":                       w.At(1),
			"mode":                            w.At(2),
			"max_autotune":                    w.At(3),
			"max_autotune_gemm_backends":      w.At(4),
			"use_fp16_cast":                   w.At(5),
			"max_autotune_gemm_warmup":        w.At(6),
			"compile_transformer_blocks_only": cty.False,
			"dynamic":                         cty.False,
			"dynamo_cache_size_limit":         cty.NumberIntVal(64),
		}
	})

	RegisterSchema("WanVideoTeaCache", func(w Widgets) map[string]cty.Value {
		if w.Len() < 6 {
			return nil
		}
		// The engine rejects negative thresholds outright, so clamp.
		thresh := w.At(2)
		if f, ok := asFloat(thresh); ok && f < 0 {
			thresh = cty.Zero
		}
		useCoeffs := w.At(4)
		if b, ok := asBool(useCoeffs); ok {
			useCoeffs = cty.BoolVal(b)
		}
		return map[string]cty.Value{
			"start_step":       w.At(0),
			"end_step":         w.At(1),
			"rel_l1_thresh":    thresh,
			"cache_device":     w.At(3),
			"use_coefficients": useCoeffs,
			"coeff_mode":       w.At(5),
		}
	})

	RegisterSchema("WanVideoEnhanceAVideo", func(w Widgets) map[string]cty.Value {
		if w.Len() < 3 {
			return nil
		}
		return map[string]cty.Value{
			"enhance_factor": w.At(0),
			"enhance_start":  w.At(1),
			"enhance_end":    w.At(2),
			"start_percent":  cty.Zero,
			"end_percent":    cty.NumberIntVal(1),
			"weight":         cty.NumberIntVal(1),
		}
	})

	RegisterSchema("WanVideoSampler", func(w Widgets) map[string]cty.Value {
		if w.Len() < 10 {
			return nil
		}
		implementation := cty.StringVal("comfy")
		if w.Len() > 10 {
			implementation = w.At(10)
		}
		return map[string]cty.Value{
			"steps":             w.At(0),
			"cfg":               w.At(1),
			"shift":             w.At(2),
			"seed":              w.At(3),
			"sampler_name":      w.At(4),
			"diffusion_type":    w.At(5),
			"scheduler":         w.At(6),
			"riflex_freq_index": w.At(7),
			"implementation":    implementation,
		}
	})

	RegisterSchema("WanVideoDecode", func(w Widgets) map[string]cty.Value {
		if w.Len() < 5 {
			return nil
		}
		return map[string]cty.Value{
			"restore_faces":     w.At(0),
			"tile_x":            w.At(1),
			"tile_y":            w.At(2),
			"tile_stride_x":     w.At(3),
			"tile_stride_y":     w.At(4),
			"enable_vae_tiling": cty.True,
		}
	})

	RegisterSchema("WanVideoVAELoader", func(w Widgets) map[string]cty.Value {
		if w.Len() < 2 {
			return nil
		}
		return map[string]cty.Value{
			"model_name": w.At(0),
			"precision":  w.At(1),
		}
	})

	RegisterSchema("WanVideoModelLoader", func(w Widgets) map[string]cty.Value {
		if w.Len() < 5 {
			return nil
		}
		// fp8 quantization trips a loader bug server-side; fall back to none.
		quant := w.At(2)
		if s, ok := asString(quant); ok && strings.Contains(strings.ToLower(s), "fp8") {
			quant = cty.StringVal("disabled")
		}
		return map[string]cty.Value{
			"model":                    w.At(0),
			"base_precision":           w.At(1),
			"quantization":             quant,
			"load_device":              w.At(3),
			"attention_implementation": w.At(4),
		}
	})

	// VHS_VideoCombine saves its configuration keyed by name rather than
	// positionally.
	RegisterSchema("VHS_VideoCombine", func(w Widgets) map[string]cty.Value {
		if !w.Keyed() {
			return nil
		}
		out := map[string]cty.Value{
			"frame_rate":      cty.NumberIntVal(24),
			"loop_count":      cty.Zero,
			"filename_prefix": cty.StringVal("video_output"),
			"format":          cty.StringVal("video/h264-mp4"),
			"pingpong":        cty.False,
			"save_output":     cty.True,
		}
		for name := range out {
			if v := w.Get(name); v != cty.NilVal {
				out[name] = v
			}
		}
		return out
	})

	RegisterSchema("CLIPTextEncode", func(w Widgets) map[string]cty.Value {
		if w.Len() < 1 {
			return nil
		}
		return map[string]cty.Value{"text": w.At(0)}
	})

	RegisterSchema("EmptyLatentImage", func(w Widgets) map[string]cty.Value {
		if w.Len() < 3 {
			return nil
		}
		return map[string]cty.Value{
			"width":      w.At(0),
			"height":     w.At(1),
			"batch_size": w.At(2),
		}
	})

	RegisterSchema("LoadImage", func(w Widgets) map[string]cty.Value {
		if w.Len() < 1 {
			return nil
		}
		return map[string]cty.Value{"image": w.At(0)}
	})

	RegisterSchema("KSampler", func(w Widgets) map[string]cty.Value {
		if w.Len() < 7 {
			return nil
		}
		// Widget 1 is the editor-only "control_after_generate" knob.
		return map[string]cty.Value{
			"seed":         w.At(0),
			"steps":        w.At(2),
			"cfg":          w.At(3),
			"sampler_name": w.At(4),
			"scheduler":    w.At(5),
			"denoise":      w.At(6),
		}
	})

	RegisterSchema("SaveImage", func(w Widgets) map[string]cty.Value {
		if w.Len() < 1 {
			return nil
		}
		return map[string]cty.Value{"filename_prefix": w.At(0)}
	})
}
