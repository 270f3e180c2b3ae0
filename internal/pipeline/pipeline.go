package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/oklog/ulid/v2"

	"github.com/autodoc-ai/stepsync/internal/align"
	"github.com/autodoc-ai/stepsync/internal/api"
	"github.com/autodoc-ai/stepsync/internal/audio"
	"github.com/autodoc-ai/stepsync/internal/ingest"
	"github.com/autodoc-ai/stepsync/internal/media"
	"github.com/autodoc-ai/stepsync/internal/steps"
	"github.com/autodoc-ai/stepsync/internal/utils"
)

// ProgressSink receives per-step progress events while a guide renders.
type ProgressSink interface {
	Publish(p api.Progress)
}

// Config for one pipeline instance, constructed once and passed in.
type Config struct {
	// TempDir holds per-task scratch files, removed on success and failure.
	TempDir string
	// WorkDir holds per-guide segment clips kept for magic edit.
	WorkDir string
	// MaxClickGap drops clicks with no narration close enough, seconds.
	MaxClickGap float64
	// ZoomRegion size placed around a click, pixels.
	ZoomWidth  int
	ZoomHeight int
}

func (c Config) withDefaults() Config {
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.WorkDir == "" {
		c.WorkDir = c.TempDir
	}
	if c.MaxClickGap <= 0 {
		c.MaxClickGap = steps.DefaultMaxClickGap
	}
	if c.ZoomWidth <= 0 {
		c.ZoomWidth = 400
	}
	if c.ZoomHeight <= 0 {
		c.ZoomHeight = 300
	}
	return c
}

// Pipeline runs the full chain: ingestion, step detection, alignment,
// segment rendering, concatenation. One value serves many guides, but
// segments of a single guide are always rendered and joined in step order.
type Pipeline struct {
	cfg      Config
	detector *steps.Detector
	aligner  *align.Aligner
	renderer *media.Renderer
	runner   *media.Runner
	status   *StatusStore
	progress ProgressSink
	entropy  *ulid.MonotonicEntropy
}

// New wires a pipeline from its collaborators.
func New(cfg Config, runner *media.Runner, renderer *media.Renderer, aligner *align.Aligner, status *StatusStore, progress ProgressSink) (*Pipeline, error) {
	if runner == nil || renderer == nil || aligner == nil {
		return nil, fmt.Errorf("missing collaborator")
	}
	return &Pipeline{
		cfg:      cfg.withDefaults(),
		detector: steps.NewDetector(),
		aligner:  aligner,
		renderer: renderer,
		runner:   runner,
		status:   status,
		progress: progress,
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

// RenderGuide executes a full render job and returns per-step metadata for
// downstream export pipelines.
func (p *Pipeline) RenderGuide(ctx context.Context, job api.Job) (*api.RenderResult, error) {
	defer utils.MeasureTime("renderGuide", time.Now())

	if err := p.setStatus(ctx, job.GuideID, api.StatusProcessing, ""); err != nil {
		return nil, err
	}
	res, err := p.renderGuide(ctx, job)
	if err != nil {
		_ = p.setStatus(ctx, job.GuideID, api.StatusFailed, err.Error())
		return nil, err
	}
	if err := p.setStatus(ctx, job.GuideID, api.StatusCompleted, ""); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) renderGuide(ctx context.Context, job api.Job) (*api.RenderResult, error) {
	clicks, err := ingest.LoadClickLog(job.ClicksPath)
	if err != nil {
		return nil, err
	}
	segments, err := ingest.LoadASRResult(job.ASRPath)
	if err != nil {
		return nil, err
	}

	goapp.Log.Info().Str("guide", job.GuideID).Int("clicks", len(clicks)).
		Int("segments", len(segments)).Msg("render guide")

	clicks = p.detector.FilterClicksBySpeech(clicks, segments, p.cfg.MaxClickGap)
	candidates := p.detector.DetectSteps(clicks, segments)

	voice, actions := toAlignerInput(candidates)
	alignment := p.aligner.Align(voice, actions)
	if len(alignment.Steps) == 0 {
		return nil, fmt.Errorf("no aligned steps for guide %s", job.GuideID)
	}

	info, err := p.runner.Probe(ctx, job.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrRender, err)
	}

	segDir := p.segmentsDir(job.GuideID)
	if err := os.MkdirAll(segDir, 0o755); err != nil {
		return nil, fmt.Errorf("create segments dir: %w", err)
	}

	segs := p.toStepSegments(alignment.Steps)
	parts := make([]string, 0, len(segs))
	for i, seg := range segs {
		p.publish(api.Progress{
			GuideID:         job.GuideID,
			CurrentStep:     i + 1,
			TotalSteps:      len(segs),
			ProgressPercent: float64(i+1) / float64(len(segs)) * 100,
			Message:         fmt.Sprintf("Rendering step %d/%d", i+1, len(segs)),
			Stage:           "rendering",
		})
		part := filepath.Join(segDir, segmentFileName(i+1))
		if err := p.renderer.RenderSegment(ctx, job.VideoPath, seg, info.Video.Width, info.Video.Height, part); err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	p.publish(api.Progress{
		GuideID: job.GuideID, CurrentStep: len(segs), TotalSteps: len(segs),
		ProgressPercent: 95, Message: "Concatenating segments", Stage: "encoding",
	})
	if err := p.renderer.Concat(ctx, parts, job.OutputPath); err != nil {
		return nil, err
	}

	result := &api.RenderResult{
		GuideID:    job.GuideID,
		VideoPath:  job.OutputPath,
		Steps:      toStepRecords(alignment.Steps),
		Quality:    alignment.Quality,
		Compressed: alignment.CompressionRatio,
	}
	if err := p.saveStepRecords(job.OutputPath, result.Steps); err != nil {
		return nil, err
	}

	p.publish(api.Progress{
		GuideID: job.GuideID, CurrentStep: len(segs), TotalSteps: len(segs),
		ProgressPercent: 100, Message: "Complete", Stage: "complete",
	})
	return result, nil
}

// MagicEdit re-renders only the steps flagged for regeneration, then joins
// the full ordered segment list again. Unaffected steps keep their clips.
func (p *Pipeline) MagicEdit(ctx context.Context, job api.Job) (*api.RenderResult, error) {
	defer utils.MeasureTime("magicEdit", time.Now())

	if err := p.setStatus(ctx, job.GuideID, api.StatusProcessing, ""); err != nil {
		return nil, err
	}
	res, err := p.magicEdit(ctx, job)
	if err != nil {
		_ = p.setStatus(ctx, job.GuideID, api.StatusFailed, err.Error())
		return nil, err
	}
	if err := p.setStatus(ctx, job.GuideID, api.StatusCompleted, ""); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) magicEdit(ctx context.Context, job api.Job) (*api.RenderResult, error) {
	records, err := p.loadStepRecords(job.OutputPath)
	if err != nil {
		return nil, err
	}
	edits := make(map[int]api.EditedStep, len(job.Steps))
	for _, e := range job.Steps {
		if e.NeedsRegenerate {
			edits[e.StepNumber] = e
		}
	}
	if len(edits) == 0 {
		return nil, fmt.Errorf("magic edit for guide %s: no steps flagged", job.GuideID)
	}
	goapp.Log.Info().Str("guide", job.GuideID).Int("steps", len(records)).
		Int("flagged", len(edits)).Msg("magic edit")

	info, err := p.runner.Probe(ctx, job.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrRender, err)
	}

	segDir := p.segmentsDir(job.GuideID)
	parts := make([]string, 0, len(records))
	for i, rec := range records {
		part := filepath.Join(segDir, segmentFileName(rec.StepNumber))
		edit, flagged := edits[rec.StepNumber]
		if flagged {
			if err := p.regenerateStep(ctx, job, &records[i], edit, info.Video.Width, info.Video.Height, part); err != nil {
				return nil, err
			}
		} else if _, err := os.Stat(part); err != nil {
			return nil, fmt.Errorf("%w: segment for step %d missing", media.ErrRender, rec.StepNumber)
		}
		parts = append(parts, part)
	}

	if err := p.renderer.Concat(ctx, parts, job.OutputPath); err != nil {
		return nil, err
	}
	if err := p.saveStepRecords(job.OutputPath, records); err != nil {
		return nil, err
	}
	return &api.RenderResult{GuideID: job.GuideID, VideoPath: job.OutputPath, Steps: records}, nil
}

// regenerateStep re-renders one flagged step: its full source interval is
// extracted again, stretched to the edited narration length through the
// bounded cascade, and the new narration muxed in.
func (p *Pipeline) regenerateStep(ctx context.Context, job api.Job, rec *api.AlignedStepRecord, edit api.EditedStep, srcW, srcH int, outPath string) error {
	target := edit.TargetDuration
	if target <= 0 && edit.AudioPath != "" {
		d, err := audio.Duration(edit.AudioPath)
		if err != nil {
			return fmt.Errorf("%w: %v", media.ErrRender, err)
		}
		target = d
	}
	if target <= 0 {
		target = rec.AlignedEnd - rec.AlignedStart
	}
	if edit.Text != "" {
		rec.Text = edit.Text
	}
	rec.AlignedEnd = rec.AlignedStart + target

	seg := media.StepSegment{
		StartTime:     rec.AlignedStart,
		EndTime:       rec.AlignedStart + target,
		OriginalStart: rec.OriginalStart,
		OriginalEnd:   rec.OriginalEnd,
		Text:          rec.Text,
		AudioPath:     edit.AudioPath,
		Zoom:          p.zoomRegion(rec.ActionX, rec.ActionY),
		ActionType:    rec.ActionType,
	}

	ratio := seg.OriginalDuration() / target
	if ratio >= media.MinStretchFactor && ratio <= media.MaxStretchFactor {
		return p.renderer.RenderSegment(ctx, job.VideoPath, seg, srcW, srcH, outPath)
	}

	// out-of-range ratio: render unstretched, cascade the whole clip, then
	// mux the edited narration over the stretched picture
	tempDir := filepath.Join(p.cfg.TempDir, "render_"+p.newID())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	raw := filepath.Join(tempDir, "raw.mp4")
	rawSeg := seg
	rawSeg.StartTime = rec.OriginalStart
	rawSeg.EndTime = rec.OriginalEnd
	rawSeg.AudioPath = ""
	if err := p.renderer.RenderSegment(ctx, job.VideoPath, rawSeg, srcW, srcH, raw); err != nil {
		return err
	}
	if edit.AudioPath == "" {
		return p.renderer.ApplyTimeStretch(ctx, raw, outPath, target)
	}
	stretched := filepath.Join(tempDir, "stretched.mp4")
	if err := p.renderer.ApplyTimeStretch(ctx, raw, stretched, target); err != nil {
		return err
	}
	return p.renderer.ReplaceAudio(ctx, stretched, edit.AudioPath, outPath)
}

// Shorts reformats a completed guide video into a vertical clip.
func (p *Pipeline) Shorts(ctx context.Context, job api.Job) error {
	defer utils.MeasureTime("shorts", time.Now())
	return p.renderer.RenderShorts(ctx, job.VideoPath, job.OutputPath, job.Platform)
}

// Estimate previews alignment savings without touching any media.
func (p *Pipeline) Estimate(clicks []steps.ClickEvent, segments []steps.SpeechSegment) align.Estimate {
	candidates := p.detector.DetectSteps(p.detector.FilterClicksBySpeech(clicks, segments, p.cfg.MaxClickGap), segments)
	voice, actions := toAlignerInput(candidates)
	return p.aligner.EstimateTimeSavings(voice, actions)
}

func (p *Pipeline) toStepSegments(aligned []align.AlignedStep) []media.StepSegment {
	res := make([]media.StepSegment, 0, len(aligned))
	for _, s := range aligned {
		res = append(res, media.StepSegment{
			StartTime:     s.AlignedStart,
			EndTime:       s.AlignedEnd,
			OriginalStart: s.OriginalStart,
			OriginalEnd:   s.OriginalEnd,
			Text:          s.Text,
			Zoom:          p.zoomRegion(s.Action.X, s.Action.Y),
			ActionType:    string(s.Action.Type),
		})
	}
	return res
}

func (p *Pipeline) zoomRegion(x, y int) *media.ZoomRegion {
	return &media.ZoomRegion{
		X:      x - p.cfg.ZoomWidth/2,
		Y:      y - p.cfg.ZoomHeight/2,
		Width:  p.cfg.ZoomWidth,
		Height: p.cfg.ZoomHeight,
	}
}

func (p *Pipeline) segmentsDir(guideID string) string {
	return filepath.Join(p.cfg.WorkDir, "segments", guideID)
}

func (p *Pipeline) stepRecordsPath(outputPath string) string {
	return outputPath + ".steps.json"
}

func (p *Pipeline) saveStepRecords(outputPath string, records []api.AlignedStepRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode step records: %w", err)
	}
	if err := os.WriteFile(p.stepRecordsPath(outputPath), data, 0o644); err != nil {
		return fmt.Errorf("write step records: %w", err)
	}
	return nil
}

func (p *Pipeline) loadStepRecords(outputPath string) ([]api.AlignedStepRecord, error) {
	data, err := os.ReadFile(p.stepRecordsPath(outputPath))
	if err != nil {
		return nil, fmt.Errorf("read step records: %w", err)
	}
	var records []api.AlignedStepRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode step records: %w", err)
	}
	return records, nil
}

func (p *Pipeline) setStatus(ctx context.Context, guideID, status, errMsg string) error {
	if p.status == nil {
		return nil
	}
	return p.status.SetStatus(ctx, guideID, status, errMsg)
}

func (p *Pipeline) publish(progress api.Progress) {
	if p.progress == nil {
		return
	}
	p.progress.Publish(progress)
}

func (p *Pipeline) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), p.entropy).String()
}

func segmentFileName(stepNumber int) string {
	return fmt.Sprintf("segment_%04d.mp4", stepNumber)
}

// toAlignerInput converts step candidates into the aligner's inputs. Clicks
// without narration stay as actions; the aligner simply finds no match and
// the detection gap lowers coverage instead of failing.
func toAlignerInput(candidates []steps.StepCandidate) ([]align.VoiceSegment, []align.ScreenAction) {
	voice := make([]align.VoiceSegment, 0, len(candidates))
	seen := make(map[steps.SpeechSegment]bool)
	actions := make([]align.ScreenAction, 0, len(candidates))
	for _, c := range candidates {
		if c.Speech != nil && !seen[*c.Speech] {
			seen[*c.Speech] = true
			voice = append(voice, align.VoiceSegment{
				Start:      c.Speech.Start,
				End:        c.Speech.End,
				Text:       c.Speech.Text,
				Confidence: c.Speech.Confidence,
			})
		}
		meta := map[string]string{}
		if c.Click.Element != "" {
			meta["element"] = c.Click.Element
		}
		actions = append(actions, align.ScreenAction{
			Type:      align.ActionClick,
			Timestamp: c.Click.Timestamp,
			X:         c.Click.X,
			Y:         c.Click.Y,
			Metadata:  meta,
		})
	}
	return voice, actions
}

func toStepRecords(aligned []align.AlignedStep) []api.AlignedStepRecord {
	res := make([]api.AlignedStepRecord, 0, len(aligned))
	for _, s := range aligned {
		res = append(res, api.AlignedStepRecord{
			StepNumber:     s.StepNumber,
			OriginalStart:  s.OriginalStart,
			OriginalEnd:    s.OriginalEnd,
			AlignedStart:   s.AlignedStart,
			AlignedEnd:     s.AlignedEnd,
			Text:           s.Text,
			ActionType:     string(s.Action.Type),
			ActionX:        s.Action.X,
			ActionY:        s.Action.Y,
			SilenceRemoved: s.SilenceRemoved,
			Confidence:     s.Confidence,
		})
	}
	return res
}
