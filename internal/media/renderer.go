package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/autodoc-ai/stepsync/internal/utils"
)

// ZoomRegion is the area of interest a segment zooms toward.
type ZoomRegion struct {
	X, Y          int
	Width, Height int
	TargetWidth   int
	TargetHeight  int
}

// Center of the region.
func (z ZoomRegion) Center() (int, int) {
	return z.X + z.Width/2, z.Y + z.Height/2
}

// StepSegment is the renderer's unit of work: one step's video interval with
// its target timing, optional replacement narration, and zoom target.
type StepSegment struct {
	StartTime     float64
	EndTime       float64
	OriginalStart float64
	OriginalEnd   float64
	Text          string
	AudioPath     string
	Zoom          *ZoomRegion
	ZoomLevel     float64
	ActionType    string
}

// Duration is the target length after alignment.
func (s StepSegment) Duration() float64 { return s.EndTime - s.StartTime }

// OriginalDuration is the source interval length.
func (s StepSegment) OriginalDuration() float64 { return s.OriginalEnd - s.OriginalStart }

// RenderOptions configure the segment renderer. Constructed once, immutable.
type RenderOptions struct {
	OutputWidth  int
	OutputHeight int
	FPS          int
	// ZoomEase is the per-frame zoom increment of the zoom-pan animation.
	ZoomEase float64
	// DefaultZoom applies when a segment has a zoom region but no level.
	DefaultZoom float64
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.OutputWidth <= 0 {
		o.OutputWidth = 1920
	}
	if o.OutputHeight <= 0 {
		o.OutputHeight = 1080
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
	if o.ZoomEase <= 0 {
		o.ZoomEase = 0.0015
	}
	if o.DefaultZoom <= 0 {
		o.DefaultZoom = 1.5
	}
	return o
}

// Renderer turns step segments into encoded clips.
type Renderer struct {
	runner *Runner
	opts   RenderOptions
}

// NewRenderer creates a segment renderer.
func NewRenderer(runner *Runner, opts RenderOptions) (*Renderer, error) {
	if runner == nil {
		return nil, fmt.Errorf("no runner")
	}
	res := &Renderer{runner: runner, opts: opts.withDefaults()}
	goapp.Log.Info().Int("w", res.opts.OutputWidth).Int("h", res.opts.OutputHeight).
		Int("fps", res.opts.FPS).Msg("Renderer")
	return res, nil
}

// RenderSegment extracts one step's interval from the source, applies the
// zoom-pan animation and a bounded time-stretch, and encodes the clip.
// A replacement narration track, when present, is muxed in and the output
// frame count pinned so picture and sound lengths agree.
func (r *Renderer) RenderSegment(ctx context.Context, inputVideo string, seg StepSegment, srcW, srcH int, outPath string) error {
	defer utils.MeasureTime("renderSegment", time.Now())

	target := seg.Duration()
	original := seg.OriginalDuration()
	if target <= 0 || original <= 0 {
		return fmt.Errorf("%w: bad segment timing [%v, %v] -> [%v, %v]",
			ErrRender, seg.OriginalStart, seg.OriginalEnd, seg.StartTime, seg.EndTime)
	}

	// single-segment stretch is clamped, not cascaded
	speed := ClampStretch(original / target)

	var filters []string
	if f := r.zoomFilter(seg, srcW, srcH); f != "" {
		filters = append(filters, f)
	}
	if r.opts.OutputWidth != srcW || r.opts.OutputHeight != srcH {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", r.opts.OutputWidth, r.opts.OutputHeight))
	}
	if speed != 1.0 {
		filters = append(filters, fmt.Sprintf("setpts=PTS/%.6f", speed))
	}
	vf := "null"
	if len(filters) > 0 {
		vf = strings.Join(filters, ",")
	}

	args := []string{
		"-ss", formatSeconds(seg.OriginalStart),
		"-t", formatSeconds(original),
		"-i", inputVideo,
	}

	withAudio := seg.AudioPath != ""
	if withAudio {
		if _, err := os.Stat(seg.AudioPath); err != nil {
			return fmt.Errorf("%w: replacement audio '%s': %v", ErrRender, seg.AudioPath, err)
		}
		frames := int(math.Round(target * float64(r.opts.FPS)))
		args = append(args,
			"-i", seg.AudioPath,
			"-filter_complex", fmt.Sprintf("[0:v]%s[v]", vf),
			"-map", "[v]",
			"-map", "1:a",
			"-frames:v", fmt.Sprintf("%d", frames),
		)
	} else if speed != 1.0 {
		args = append(args,
			"-filter_complex", fmt.Sprintf("[0:v]%s[v];[0:a]atempo=%.6f[a]", vf, speed),
			"-map", "[v]",
			"-map", "[a]",
		)
	} else {
		args = append(args, "-vf", vf)
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-y",
		outPath,
	)

	goapp.Log.Debug().Str("out", filepath.Base(outPath)).Float64("speed", speed).
		Bool("audio", withAudio).Msg("render segment")
	return r.runner.runFFmpeg(ctx, args, outPath)
}

// zoomFilter builds the zoompan expression converging from the current zoom
// toward the target over the segment's frames. The x/y offsets are functions
// of the interpolated zoom so the click point stays anchored while the
// animation runs.
func (r *Renderer) zoomFilter(seg StepSegment, srcW, srcH int) string {
	if seg.Zoom == nil {
		return ""
	}
	zoom := seg.ZoomLevel
	if zoom <= 0 {
		zoom = r.opts.DefaultZoom
	}
	if zoom <= 1.0 {
		return ""
	}

	cx, cy := seg.Zoom.Center()
	// crop window for the full zoom; clamp the center so it stays in frame
	cropW := int(float64(srcW) / zoom)
	cropH := int(float64(srcH) / zoom)
	cx = clampInt(cx, cropW/2, srcW-cropW/2)
	cy = clampInt(cy, cropH/2, srcH-cropH/2)

	frames := int(seg.Duration() * float64(r.opts.FPS))
	if frames < 1 {
		frames = 1
	}

	return fmt.Sprintf(
		"zoompan=z='if(lte(zoom,%.3f),%.3f,min(zoom+%.4f,%.3f))':"+
			"x='iw/2-(iw/zoom/2)+(%d-iw/2)*(zoom-%.3f)':"+
			"y='ih/2-(ih/zoom/2)+(%d-ih/2)*(zoom-%.3f)':"+
			"d=%d:s=%dx%d:fps=%d",
		zoom, zoom, r.opts.ZoomEase, zoom,
		cx, zoom,
		cy, zoom,
		frames, srcW, srcH, r.opts.FPS)
}

// ApplyTimeStretch re-times a whole clip to the target duration, cascading
// bounded stages so any finite positive factor is reachable.
func (r *Renderer) ApplyTimeStretch(ctx context.Context, inputVideo, outPath string, targetDuration float64) error {
	defer utils.MeasureTime("applyTimeStretch", time.Now())

	if targetDuration <= 0 {
		return fmt.Errorf("%w: target duration %v", ErrRender, targetDuration)
	}
	info, err := r.runner.Probe(ctx, inputVideo)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	if info.Duration <= 0 {
		return fmt.Errorf("%w: source has no duration", ErrRender)
	}

	stages, err := StretchStages(info.Duration / targetDuration)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	goapp.Log.Info().Floats64("stages", stages).Str("in", filepath.Base(inputVideo)).Msg("stretch plan")

	cur := inputVideo
	for i, factor := range stages {
		stageOut := outPath
		if i < len(stages)-1 {
			stageOut = fmt.Sprintf("%s.stage%d.mp4", strings.TrimSuffix(outPath, filepath.Ext(outPath)), i)
		}
		if err := r.stretchOnce(ctx, cur, stageOut, factor); err != nil {
			return err
		}
		if cur != inputVideo {
			_ = os.Remove(cur)
		}
		cur = stageOut
	}
	return nil
}

// stretchOnce applies a single in-range stretch stage.
func (r *Renderer) stretchOnce(ctx context.Context, in, out string, factor float64) error {
	args := []string{
		"-i", in,
		"-filter_complex", fmt.Sprintf("[0:v]setpts=PTS/%.6f[v];[0:a]atempo=%.6f[a]", factor, factor),
		"-map", "[v]",
		"-map", "[a]",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		out,
	}
	return r.runner.runFFmpeg(ctx, args, out)
}

// replaceAudioArgs builds the mux invocation swapping a clip's audio stream
// for a replacement narration track, copying the picture untouched.
func replaceAudioArgs(videoPath, audioPath, outPath string) []string {
	return []string{
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "128k",
		"-shortest",
		"-y",
		outPath,
	}
}

// ReplaceAudio muxes a replacement narration track over the clip's video,
// dropping whatever audio the clip carried.
func (r *Renderer) ReplaceAudio(ctx context.Context, videoPath, audioPath, outPath string) error {
	if _, err := os.Stat(audioPath); err != nil {
		return fmt.Errorf("%w: replacement audio '%s': %v", ErrRender, audioPath, err)
	}
	return r.runner.runFFmpeg(ctx, replaceAudioArgs(videoPath, audioPath, outPath), outPath)
}

// CopyVideo remuxes the input without re-encoding.
func (r *Renderer) CopyVideo(ctx context.Context, in, out string) error {
	return r.runner.runFFmpeg(ctx, []string{"-i", in, "-c", "copy", "-y", out}, out)
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func formatSeconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
