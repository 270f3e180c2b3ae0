package steps

import (
	"time"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/autodoc-ai/stepsync/internal/utils"
)

// ClickEvent is a raw mouse click from the recording log.
type ClickEvent struct {
	Timestamp float64
	X, Y      int
	Element   string
}

// SpeechSegment is a raw timed segment from the transcription.
type SpeechSegment struct {
	Start      float64
	End        float64
	Text       string
	Confidence float64
}

// StepCandidate pairs a click with the nearest speech spoken before it.
// Speech is nil when nothing qualifies; the raw text then stays empty and
// downstream normalization may still produce a placeholder instruction.
type StepCandidate struct {
	Click         ClickEvent
	Speech        *SpeechSegment
	RawSpeechText string
}

// MaxSpeechSeconds bounds the lookback window between a click and the speech
// describing it.
const MaxSpeechSeconds = 5.0

// DefaultMaxClickGap is the default cutoff for FilterClicksBySpeech.
const DefaultMaxClickGap = 3.0

// Detector pairs click events with preceding narration.
type Detector struct {
	maxSpeechSeconds float64
}

// NewDetector creates a step detector with the default lookback window.
func NewDetector() *Detector {
	return &Detector{maxSpeechSeconds: MaxSpeechSeconds}
}

// DetectSteps produces one candidate per click, in click order.
func (d *Detector) DetectSteps(clicks []ClickEvent, segments []SpeechSegment) []StepCandidate {
	defer utils.MeasureTime("detectSteps", time.Now())
	goapp.Log.Info().Int("clicks", len(clicks)).Int("segments", len(segments)).Msg("detecting steps")

	res := make([]StepCandidate, 0, len(clicks))
	for i, click := range clicks {
		speech := d.nearestSpeechBefore(click.Timestamp, segments)
		text := ""
		if speech != nil {
			text = speech.Text
		}
		res = append(res, StepCandidate{Click: click, Speech: speech, RawSpeechText: text})
		goapp.Log.Debug().Int("step", i+1).Float64("at", click.Timestamp).Str("text", text).Msg("candidate")
	}
	goapp.Log.Info().Int("candidates", len(res)).Msg("detected")
	return res
}

// FilterClicksBySpeech drops clicks whose nearest qualifying speech ends more
// than maxGap seconds earlier, or that have no qualifying speech at all.
func (d *Detector) FilterClicksBySpeech(clicks []ClickEvent, segments []SpeechSegment, maxGap float64) []ClickEvent {
	if maxGap <= 0 {
		maxGap = DefaultMaxClickGap
	}
	filtered := make([]ClickEvent, 0, len(clicks))
	for _, click := range clicks {
		nearest := d.nearestSpeechBefore(click.Timestamp, segments)
		if nearest == nil {
			goapp.Log.Debug().Float64("at", click.Timestamp).Msg("click skipped: no speech nearby")
			continue
		}
		gap := click.Timestamp - nearest.End
		if gap > maxGap {
			goapp.Log.Debug().Float64("at", click.Timestamp).Float64("gap", gap).Msg("click skipped: gap too big")
			continue
		}
		filtered = append(filtered, click)
	}
	goapp.Log.Info().Int("in", len(clicks)).Int("out", len(filtered)).Msg("filtered clicks by speech")
	return filtered
}

// nearestSpeechBefore returns the segment whose end is closest to the click
// timestamp without exceeding it, within the lookback window.
func (d *Detector) nearestSpeechBefore(clickTS float64, segments []SpeechSegment) *SpeechSegment {
	var best *SpeechSegment
	bestDistance := d.maxSpeechSeconds + 1
	for i := range segments {
		seg := &segments[i]
		if seg.End > clickTS {
			continue
		}
		if seg.End < clickTS-d.maxSpeechSeconds {
			continue
		}
		distance := clickTS - seg.End
		if distance < bestDistance {
			bestDistance = distance
			best = seg
		}
	}
	return best
}
