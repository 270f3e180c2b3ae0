package pipeline

import (
	"testing"

	"github.com/autodoc-ai/stepsync/internal/align"
	"github.com/autodoc-ai/stepsync/internal/media"
	"github.com/autodoc-ai/stepsync/internal/steps"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	runner := media.NewRunner("", "", 0)
	renderer, err := media.NewRenderer(runner, media.RenderOptions{})
	if err != nil {
		t.Fatalf("could not construct renderer: %v", err)
	}
	p, err := New(Config{TempDir: t.TempDir()}, runner, renderer, align.NewAligner(align.Options{}), nil, nil)
	if err != nil {
		t.Fatalf("could not construct pipeline: %v", err)
	}
	return p
}

func TestToAlignerInput(t *testing.T) {
	speech := &steps.SpeechSegment{Start: 1.0, End: 3.0, Text: "click here", Confidence: 0.9}
	candidates := []steps.StepCandidate{
		{Click: steps.ClickEvent{Timestamp: 3.5, X: 10, Y: 20, Element: "button"}, Speech: speech, RawSpeechText: "click here"},
		{Click: steps.ClickEvent{Timestamp: 4.0, X: 30, Y: 40}, Speech: speech, RawSpeechText: "click here"},
		{Click: steps.ClickEvent{Timestamp: 20.0, X: 5, Y: 5}},
	}

	voice, actions := toAlignerInput(candidates)

	if len(voice) != 1 {
		t.Errorf("voice segments = %d, want 1 (deduplicated)", len(voice))
	}
	if len(actions) != 3 {
		t.Errorf("actions = %d, want 3", len(actions))
	}
	if actions[0].Metadata["element"] != "button" {
		t.Errorf("Metadata[element] = %q, want button", actions[0].Metadata["element"])
	}
	if actions[0].Type != align.ActionClick {
		t.Errorf("Type = %v, want %v", actions[0].Type, align.ActionClick)
	}
}

func TestToAlignerInput_sameStartDistinctSegments(t *testing.T) {
	a := &steps.SpeechSegment{Start: 1.0, End: 2.0, Text: "open the menu", Confidence: 0.9}
	b := &steps.SpeechSegment{Start: 1.0, End: 3.5, Text: "open the menu and scroll", Confidence: 0.9}
	candidates := []steps.StepCandidate{
		{Click: steps.ClickEvent{Timestamp: 2.2}, Speech: a},
		{Click: steps.ClickEvent{Timestamp: 4.0}, Speech: b},
		{Click: steps.ClickEvent{Timestamp: 4.5}, Speech: b},
	}

	voice, _ := toAlignerInput(candidates)

	if len(voice) != 2 {
		t.Fatalf("voice segments = %d, want 2 (same start, different segments)", len(voice))
	}
	if voice[0].End == voice[1].End {
		t.Errorf("distinct segments collapsed: %+v", voice)
	}
}

func TestPipeline_toStepSegments(t *testing.T) {
	p := newTestPipeline(t)
	aligned := []align.AlignedStep{
		{
			StepNumber: 1, OriginalStart: 1.0, OriginalEnd: 4.0,
			AlignedStart: 1.0, AlignedEnd: 3.5, Text: "нажми сюда",
			Action: align.ScreenAction{Type: align.ActionClick, Timestamp: 4.0, X: 500, Y: 300},
		},
	}

	got := p.toStepSegments(aligned)

	if len(got) != 1 {
		t.Fatalf("toStepSegments() = %d segments, want 1", len(got))
	}
	s := got[0]
	if s.Duration() != 2.5 {
		t.Errorf("Duration() = %v, want 2.5", s.Duration())
	}
	if s.OriginalDuration() != 3.0 {
		t.Errorf("OriginalDuration() = %v, want 3.0", s.OriginalDuration())
	}
	if s.Zoom == nil {
		t.Fatal("Zoom = nil, want region around click")
	}
	cx, cy := s.Zoom.Center()
	if cx != 500 || cy != 300 {
		t.Errorf("Zoom center = (%d, %d), want (500, 300)", cx, cy)
	}
	if s.ActionType != "click" {
		t.Errorf("ActionType = %q, want click", s.ActionType)
	}
}

func TestPipeline_stepRecordsRoundTrip(t *testing.T) {
	p := newTestPipeline(t)
	out := t.TempDir() + "/final.mp4"
	records := toStepRecords([]align.AlignedStep{
		{
			StepNumber: 1, OriginalStart: 1, OriginalEnd: 4, AlignedStart: 1, AlignedEnd: 3.5,
			Text: "step one", SilenceRemoved: 0.5, Confidence: 0.9,
			Action: align.ScreenAction{Type: align.ActionClick, X: 10, Y: 20},
		},
		{
			StepNumber: 2, OriginalStart: 5, OriginalEnd: 8, AlignedStart: 5, AlignedEnd: 7,
			Text: "step two", SilenceRemoved: 1.0, Confidence: 0.8,
			Action: align.ScreenAction{Type: align.ActionScroll, X: 30, Y: 40},
		},
	})

	if err := p.saveStepRecords(out, records); err != nil {
		t.Fatalf("saveStepRecords() failed: %v", err)
	}
	got, err := p.loadStepRecords(out)
	if err != nil {
		t.Fatalf("loadStepRecords() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loadStepRecords() = %d records, want 2", len(got))
	}
	if got[0].Text != "step one" || got[1].ActionType != "scroll" {
		t.Errorf("records corrupted on round trip: %+v", got)
	}
}

func TestPipeline_Estimate(t *testing.T) {
	p := newTestPipeline(t)
	clicks := []steps.ClickEvent{{Timestamp: 12.5, X: 100, Y: 200}}
	segments := []steps.SpeechSegment{{Start: 10.0, End: 12.0, Text: "Нажмите кнопку Сохранить", Confidence: 0.95}}

	got := p.Estimate(clicks, segments)

	if got.EstimatedSteps != 1 {
		t.Fatalf("EstimatedSteps = %d, want 1", got.EstimatedSteps)
	}
	if got.TimeSavedSeconds <= 0 {
		t.Errorf("TimeSavedSeconds = %v, want > 0", got.TimeSavedSeconds)
	}
	if got.AlignedDurationSeconds >= got.OriginalDurationSeconds {
		t.Errorf("aligned %v not shorter than original %v", got.AlignedDurationSeconds, got.OriginalDurationSeconds)
	}

	empty := p.Estimate(nil, nil)
	if empty.EstimatedSteps != 0 || empty.CompressionRatio != 1.0 {
		t.Errorf("empty estimate = %+v, want 0 steps with ratio 1.0", empty)
	}
}

func TestSegmentFileName(t *testing.T) {
	if got := segmentFileName(7); got != "segment_0007.mp4" {
		t.Errorf("segmentFileName(7) = %q, want segment_0007.mp4", got)
	}
}
