package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
)

// Caption is one timed subtitle line burned into the output.
type Caption struct {
	Start float64
	End   float64
	Text  string
}

// ExtractScreenshot grabs a single frame at the given timestamp. Zero width
// or height keeps the source size.
func (r *Renderer) ExtractScreenshot(ctx context.Context, videoPath string, ts float64, outPath string, width, height int) error {
	args := []string{
		"-ss", formatSeconds(ts),
		"-i", videoPath,
		"-vframes", "1",
	}
	if width > 0 && height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", width, height))
	}
	args = append(args, "-q:v", "2", "-y", outPath)
	return r.runner.runFFmpeg(ctx, args, outPath)
}

// shortsParams per target platform.
var shortsParams = map[string]struct {
	width, height, fps int
}{
	"tiktok":    {1080, 1920, 60},
	"instagram": {1080, 1920, 30},
	"youtube":   {1080, 1920, 60},
}

// RenderShorts reformats a finished guide video into a vertical clip for the
// given platform. Unknown platforms use the tiktok profile.
func (r *Renderer) RenderShorts(ctx context.Context, in, out, platform string) error {
	p, ok := shortsParams[platform]
	if !ok {
		p = shortsParams["tiktok"]
	}
	vf := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,crop=%d:%d,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		p.width, p.height, p.width, p.height, p.width, p.height)
	return r.runner.runFFmpeg(ctx, []string{
		"-i", in,
		"-vf", vf,
		"-r", fmt.Sprintf("%d", p.fps),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-y",
		out,
	}, out)
}

// RemoveSilence cuts audio gaps below the threshold out of a clip.
func (r *Renderer) RemoveSilence(ctx context.Context, in, out string, thresholdDB, minSilence float64) error {
	af := fmt.Sprintf(
		"silenceremove=start_threshold=%.1fdB:stop_threshold=%.1fdB:start_duration=%.2f:stop_duration=0.1",
		thresholdDB, thresholdDB, minSilence)
	return r.runner.runFFmpeg(ctx, []string{
		"-i", in,
		"-af", af,
		"-c:v", "copy",
		"-c:a", "aac",
		"-y",
		out,
	}, out)
}

// BurnCaptions renders subtitle lines into the video stream.
func (r *Renderer) BurnCaptions(ctx context.Context, in, out string, captions []Caption, srtPath string) error {
	if err := WriteSRT(srtPath, captions); err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	defer os.Remove(srtPath)
	return r.runner.runFFmpeg(ctx, []string{
		"-i", in,
		"-vf", fmt.Sprintf("subtitles=%s", srtPath),
		"-c:a", "copy",
		"-y",
		out,
	}, out)
}

// WriteSRT writes captions in SubRip format.
func WriteSRT(path string, captions []Caption) error {
	var b strings.Builder
	for i, c := range captions {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTime(c.Start), srtTime(c.End), strings.ReplaceAll(c.Text, "\n", " "))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func srtTime(seconds float64) string {
	total := int(math.Round(seconds * 1000))
	h := total / 3600000
	m := total % 3600000 / 60000
	s := total % 60000 / 1000
	ms := total % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
