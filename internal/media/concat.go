package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/autodoc-ai/stepsync/internal/utils"
)

// Concat stitches segment clips into the final video. The primary path is a
// lossless stream copy through the concat demuxer; heterogeneous segments
// fall back to one re-encode pass before failing.
func (r *Renderer) Concat(ctx context.Context, parts []string, outPath string) error {
	defer utils.MeasureTime("concat", time.Now())

	if len(parts) == 0 {
		return fmt.Errorf("%w: no segments", ErrConcat)
	}

	listPath := filepath.Join(filepath.Dir(outPath), "concat.txt")
	if err := writeConcatList(listPath, parts); err != nil {
		return fmt.Errorf("%w: %v", ErrConcat, err)
	}
	defer os.Remove(listPath)

	err := r.runner.runFFmpeg(ctx, []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outPath,
	}, outPath)
	if err == nil {
		return nil
	}

	goapp.Log.Warn().Err(err).Msg("stream-copy concat failed, re-encoding")
	err = r.runner.runFFmpeg(ctx, []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-y",
		outPath,
	}, outPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConcat, err)
	}
	return nil
}

func writeConcatList(path string, parts []string) error {
	var b strings.Builder
	for _, p := range parts {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
