package align

import (
	"math"
	"reflect"
	"testing"
)

func TestAligner_Align_keywordMatch(t *testing.T) {
	a := NewAligner(Options{})
	voice := []VoiceSegment{
		{Start: 10.0, End: 12.0, Text: "Нажмите кнопку Сохранить", Confidence: 0.9},
	}
	actions := []ScreenAction{
		{Type: ActionClick, Timestamp: 12.5, X: 100, Y: 200},
	}

	res := a.Align(voice, actions)

	if len(res.Steps) != 1 {
		t.Fatalf("Align() = %d steps, want 1", len(res.Steps))
	}
	s := res.Steps[0]
	if math.Abs(s.SilenceRemoved-0.3) > 1e-9 {
		t.Errorf("SilenceRemoved = %v, want 0.3", s.SilenceRemoved)
	}
	if s.AlignedStart != 10.0 {
		t.Errorf("AlignedStart = %v, want 10.0", s.AlignedStart)
	}
	if math.Abs(s.AlignedEnd-11.7) > 1e-9 {
		t.Errorf("AlignedEnd = %v, want 11.7", s.AlignedEnd)
	}
	// keyword hit, discounted only by the 0.5s gap penalty
	wantScore := 1.0 * (1 - 0.3*(0.5/5.0))
	if math.Abs(s.Confidence-wantScore) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", s.Confidence, wantScore)
	}
}

func TestAligner_Align_invariants(t *testing.T) {
	a := NewAligner(Options{})
	voice := []VoiceSegment{
		{Start: 1.0, End: 3.0, Text: "click the menu", Confidence: 0.9},
		{Start: 5.0, End: 8.0, Text: "scroll down to the bottom", Confidence: 0.85},
		{Start: 12.0, End: 14.0, Text: "type your name", Confidence: 0.8},
	}
	actions := []ScreenAction{
		{Type: ActionClick, Timestamp: 4.0},
		{Type: ActionScroll, Timestamp: 9.5},
		{Type: ActionType_, Timestamp: 14.5},
	}

	res := a.Align(voice, actions)

	if len(res.Steps) == 0 {
		t.Fatal("Align() produced no steps")
	}
	prev := 0
	for _, s := range res.Steps {
		if s.AlignedEnd <= s.AlignedStart {
			t.Errorf("step %d: AlignedEnd %v <= AlignedStart %v", s.StepNumber, s.AlignedEnd, s.AlignedStart)
		}
		if s.SilenceRemoved < 0 {
			t.Errorf("step %d: SilenceRemoved = %v, want >= 0", s.StepNumber, s.SilenceRemoved)
		}
		if s.Confidence < 0 || s.Confidence > 1 {
			t.Errorf("step %d: Confidence = %v, want within [0,1]", s.StepNumber, s.Confidence)
		}
		if s.StepNumber <= prev {
			t.Errorf("StepNumber %d not increasing after %d", s.StepNumber, prev)
		}
		prev = s.StepNumber
	}
	if res.Quality < 0 || res.Quality > 1 {
		t.Errorf("Quality = %v, want within [0,1]", res.Quality)
	}
}

func TestAligner_Align_deterministic(t *testing.T) {
	a := NewAligner(Options{})
	voice := []VoiceSegment{
		{Start: 0.5, End: 2.5, Text: "нажми сюда", Confidence: 0.9},
		{Start: 4.0, End: 6.0, Text: "прокрути вниз", Confidence: 0.9},
		{Start: 9.0, End: 10.0, Text: "ну эээ ммм вот", Confidence: 0.9},
	}
	actions := []ScreenAction{
		{Type: ActionClick, Timestamp: 3.0},
		{Type: ActionScroll, Timestamp: 6.5},
		{Type: ActionClick, Timestamp: 11.0},
	}

	first := a.Align(voice, actions)
	second := a.Align(voice, actions)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Align() not deterministic:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestAligner_Align_compressionWithoutSilence(t *testing.T) {
	a := NewAligner(Options{})
	// action fires during the speech, so nothing is removed
	voice := []VoiceSegment{
		{Start: 1.0, End: 5.0, Text: "click the button now", Confidence: 0.9},
	}
	actions := []ScreenAction{
		{Type: ActionClick, Timestamp: 3.0},
	}

	res := a.Align(voice, actions)

	if res.TotalSilenceRemoved != 0 {
		t.Fatalf("TotalSilenceRemoved = %v, want 0", res.TotalSilenceRemoved)
	}
	if res.CompressionRatio != 1.0 {
		t.Errorf("CompressionRatio = %v, want exactly 1.0", res.CompressionRatio)
	}
}

func TestAligner_Align_emptyInputs(t *testing.T) {
	a := NewAligner(Options{})
	tests := []struct {
		name    string
		voice   []VoiceSegment
		actions []ScreenAction
	}{
		{name: "no voice", actions: []ScreenAction{{Type: ActionClick, Timestamp: 1.0}}},
		{name: "no actions", voice: []VoiceSegment{{Start: 0, End: 1, Text: "hi", Confidence: 0.9}}},
		{name: "both empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := a.Align(tt.voice, tt.actions)
			if len(res.Steps) != 0 {
				t.Errorf("Steps = %d, want 0", len(res.Steps))
			}
			if res.CompressionRatio != 1.0 {
				t.Errorf("CompressionRatio = %v, want 1.0", res.CompressionRatio)
			}
			if res.Quality != 0 {
				t.Errorf("Quality = %v, want 0", res.Quality)
			}
		})
	}
}

func TestAligner_Align_gapTooBig(t *testing.T) {
	a := NewAligner(Options{MaxGapThreshold: 5.0})
	voice := []VoiceSegment{
		{Start: 1.0, End: 2.0, Text: "click it", Confidence: 0.9},
	}
	actions := []ScreenAction{
		{Type: ActionClick, Timestamp: 10.0},
	}
	res := a.Align(voice, actions)
	if len(res.Steps) != 0 {
		t.Errorf("Steps = %d, want 0 for an 8s gap", len(res.Steps))
	}
}

func TestAligner_cleanPauses(t *testing.T) {
	a := NewAligner(Options{})
	tests := []struct {
		name     string
		seg      VoiceSegment
		wantEnd  float64
		wantConf float64
	}{
		{
			name:     "filler heavy segment shrinks",
			seg:      VoiceSegment{Start: 10.0, End: 20.0, Text: "эээ ммм ну вот", Confidence: 1.0},
			wantEnd:  18.0,
			wantConf: 0.8,
		},
		{
			name:     "normal speech untouched",
			seg:      VoiceSegment{Start: 10.0, End: 20.0, Text: "нажмите на кнопку сохранить и подождите", Confidence: 1.0},
			wantEnd:  20.0,
			wantConf: 1.0,
		},
		{
			name:     "empty text untouched",
			seg:      VoiceSegment{Start: 1.0, End: 2.0, Text: "", Confidence: 0.5},
			wantEnd:  2.0,
			wantConf: 0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.cleanPauses([]VoiceSegment{tt.seg})
			if len(got) != 1 {
				t.Fatalf("cleanPauses() = %d segments, want 1", len(got))
			}
			if math.Abs(got[0].End-tt.wantEnd) > 1e-9 {
				t.Errorf("End = %v, want %v", got[0].End, tt.wantEnd)
			}
			if math.Abs(got[0].Confidence-tt.wantConf) > 1e-9 {
				t.Errorf("Confidence = %v, want %v", got[0].Confidence, tt.wantConf)
			}
		})
	}
}

func TestAligner_contextScore(t *testing.T) {
	a := NewAligner(Options{})
	tests := []struct {
		name       string
		text       string
		actionType ActionType
		want       float64
		atLeast    bool
	}{
		{name: "ru click keyword", text: "Нажмите кнопку", actionType: ActionClick, want: 1.0},
		{name: "en click keyword", text: "now press enter", actionType: ActionClick, want: 1.0},
		{name: "scroll keyword", text: "прокрути страницу", actionType: ActionScroll, want: 1.0},
		{name: "no phrase set falls back", text: "что-то происходит", actionType: ActionHover, want: 0.3},
		{name: "unknown type", text: "anything", actionType: ActionDrag, want: 0.5},
		{name: "similarity fallback", text: "нажми на кнопку пожалуйста", actionType: ActionScroll, want: 0.1, atLeast: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.contextScore(tt.text, tt.actionType)
			if tt.atLeast {
				if got < tt.want || got >= 1.0 {
					t.Errorf("contextScore() = %v, want similarity in [%v, 1.0)", got, tt.want)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("contextScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "equal", a: "abcd", b: "abcd", want: 1.0},
		{name: "disjoint", a: "abc", b: "xyz", want: 0.0},
		{name: "both empty", a: "", b: "", want: 1.0},
		{name: "one empty", a: "abc", b: "", want: 0.0},
		{name: "partial", a: "abcd", b: "bcde", want: 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
