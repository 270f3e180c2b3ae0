package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// ErrRender marks a fatal transcoding failure: non-zero exit, timeout, or a
// missing output file. No partial video is surfaced past it.
var ErrRender = errors.New("render failed")

// ErrConcat marks a concatenation failure after the re-encode fallback.
var ErrConcat = errors.New("concatenation failed")

// DefaultSegmentTimeout bounds one transcoding invocation.
const DefaultSegmentTimeout = 300 * time.Second

// Runner invokes the transcoding binaries across a subprocess boundary.
// A crash in the transcoder never touches the caller's process state.
type Runner struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
}

// NewRunner creates a runner. Empty paths default to binaries on PATH and
// zero timeout to DefaultSegmentTimeout.
func NewRunner(ffmpegPath, ffprobePath string, timeout time.Duration) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultSegmentTimeout
	}
	return &Runner{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, timeout: timeout}
}

// CheckInstalled verifies the ffmpeg binary is reachable.
func (r *Runner) CheckInstalled(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, r.ffmpegPath, "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg not found at '%s': %w", r.ffmpegPath, err)
	}
	return nil
}

// runFFmpeg spawns one ffmpeg invocation and waits for it within the
// configured timeout. The output file must exist afterwards.
func (r *Runner) runFFmpeg(ctx context.Context, args []string, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	goapp.Log.Debug().Str("cmd", r.ffmpegPath).Strs("args", args).Msg("spawn")
	start := time.Now()
	err := cmd.Run()
	goapp.Log.Debug().Dur("elapsed", time.Since(start)).Msg("ffmpeg done")

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: timeout after %v", ErrRender, r.timeout)
	}
	if err != nil {
		return fmt.Errorf("%w: %v: %s", ErrRender, err, tail(stderr.String(), 500))
	}
	if outPath != "" {
		if _, err := os.Stat(outPath); err != nil {
			return fmt.Errorf("%w: no output file '%s'", ErrRender, outPath)
		}
	}
	return nil
}

// runFFprobe spawns ffprobe and returns its stdout.
func (r *Runner) runFFprobe(ctx context.Context, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.ffprobePath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("probe: %v: %s", err, tail(stderr.String(), 500))
	}
	return stdout.Bytes(), nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
