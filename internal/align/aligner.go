package align

import (
	"regexp"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/autodoc-ai/stepsync/internal/utils"
)

// actionPatterns map narration keywords to action types (RU + EN).
var actionPatterns = map[ActionType]*regexp.Regexp{
	ActionClick: regexp.MustCompile(strings.Join([]string{
		"нажми", "кликни", "щелкни", "ткни", "нажать", "кликнуть",
		"выбери", "выбрать", "открой", "открыть", "нажмите", "кликните",
		"click", "press", "tap",
	}, "|")),
	ActionScroll: regexp.MustCompile(strings.Join([]string{
		"пролистай", "прокрути", "скролл", "опусти", "подними", "листай", "двинь",
		"scroll", "swipe",
	}, "|")),
	ActionType_: regexp.MustCompile(strings.Join([]string{
		"введи", "напечатай", "напиши", "ввести", "напечатать", "ввод",
		"type", "enter", "input",
	}, "|")),
	ActionHover: regexp.MustCompile(strings.Join([]string{
		"наведи", "наведи курсор", "подведи", "наведите",
		"hover", "move",
	}, "|")),
}

// typicalPhrases are canonical formulations scored by string similarity when
// no keyword hits.
var typicalPhrases = map[ActionType][]string{
	ActionClick:  {"нажми на кнопку", "нажми здесь", "кликни по ссылке"},
	ActionScroll: {"прокрути вниз", "пролистай страницу"},
	ActionType_:  {"введи текст", "напиши сообщение"},
}

// pausePattern matches hesitation fillers the narrator says while thinking.
var pausePattern = regexp.MustCompile(strings.Join([]string{
	"эээ", "ммм", "ну", "вот", "значит", "понимаешь", "как бы", "в общем", "допустим",
	"um+", "uh+", "erm?",
}, "|"))

// Options configure the aligner. Zero values fall back to defaults.
type Options struct {
	// MaxGapThreshold is the largest allowed distance between speech and
	// action, seconds.
	MaxGapThreshold float64
	// MinSpeechGap is the smallest pause between segments worth analyzing.
	MinSpeechGap float64
	// PauseWordThreshold is the filler-to-word ratio above which a segment
	// counts as thinking aloud.
	PauseWordThreshold float64
	// ConfidenceThreshold is the minimum confidence for a trusted match.
	ConfidenceThreshold float64
}

func (o Options) withDefaults() Options {
	if o.MaxGapThreshold <= 0 {
		o.MaxGapThreshold = 5.0
	}
	if o.MinSpeechGap <= 0 {
		o.MinSpeechGap = 0.3
	}
	if o.PauseWordThreshold <= 0 {
		o.PauseWordThreshold = 0.5
	}
	if o.ConfidenceThreshold <= 0 {
		o.ConfidenceThreshold = 0.7
	}
	return o
}

// silenceBuffer is kept between speech and action for naturalness.
const silenceBuffer = 0.2

// minStepDuration floors a step whose end would collapse onto its start.
const minStepDuration = 0.5

// Aligner matches narration to screen actions and removes dead time.
//
// The matching is a greedy one-to-one assignment processed in screen-action
// order. It does not revisit earlier assignments when a later action would
// fit better.
type Aligner struct {
	opts Options
}

// NewAligner creates an aligner with the given options.
func NewAligner(opts Options) *Aligner {
	return &Aligner{opts: opts.withDefaults()}
}

type matchedPair struct {
	voice   VoiceSegment
	action  ScreenAction
	score   float64
	silence float64
}

// Align synchronizes voice segments with screen actions.
func (a *Aligner) Align(voice []VoiceSegment, actions []ScreenAction) Result {
	defer utils.MeasureTime("align", time.Now())
	goapp.Log.Info().Int("voice", len(voice)).Int("actions", len(actions)).Msg("starting alignment")

	if len(voice) == 0 || len(actions) == 0 {
		return emptyResult()
	}

	cleaned := a.cleanPauses(voice)
	matched := a.matchActions(cleaned, actions)
	steps := assembleSteps(matched)

	var totalOriginal, totalAligned float64
	for _, s := range steps {
		totalOriginal += s.OriginalDuration()
		totalAligned += s.Duration()
	}
	totalSilence := totalOriginal - totalAligned
	if totalSilence < 0 {
		totalSilence = 0
	}
	compression := 1.0
	if totalAligned > 0 {
		compression = totalOriginal / totalAligned
	}
	quality := a.calculateQuality(steps, voice)

	goapp.Log.Info().Int("steps", len(steps)).
		Float64("compression", compression).Float64("quality", quality).
		Msg("alignment complete")

	return Result{
		Steps:                 steps,
		TotalOriginalDuration: totalOriginal,
		TotalAlignedDuration:  totalAligned,
		TotalSilenceRemoved:   totalSilence,
		CompressionRatio:      compression,
		Quality:               quality,
	}
}

// cleanPauses shrinks segments dominated by hesitation fillers by 20% and
// discounts their confidence.
func (a *Aligner) cleanPauses(segments []VoiceSegment) []VoiceSegment {
	cleaned := make([]VoiceSegment, 0, len(segments))
	for _, seg := range segments {
		text := strings.ToLower(seg.Text)
		words := strings.Fields(text)
		if len(words) == 0 {
			cleaned = append(cleaned, seg)
			continue
		}
		fillers := len(pausePattern.FindAllString(text, -1))
		ratio := float64(fillers) / float64(len(words))
		if ratio > a.opts.PauseWordThreshold {
			cleaned = append(cleaned, VoiceSegment{
				Start:      seg.Start,
				End:        seg.Start + seg.Duration()*0.8,
				Text:       seg.Text,
				Confidence: seg.Confidence * 0.8,
			})
			continue
		}
		cleaned = append(cleaned, seg)
	}
	return cleaned
}

// matchActions performs the greedy one-to-one assignment.
func (a *Aligner) matchActions(voice []VoiceSegment, actions []ScreenAction) []matchedPair {
	matched := make([]matchedPair, 0, len(actions))
	usedVoices := make(map[int]bool)

	for _, action := range actions {
		bestIdx := -1
		bestScore := 0.0
		bestGap := 0.0

		for i, v := range voice {
			if usedVoices[i] {
				continue
			}
			var gap float64
			if action.Timestamp >= v.End {
				gap = action.Timestamp - v.End
			} else {
				gap = v.Start - action.Timestamp
				if gap < 0 {
					gap = -gap
				}
			}
			if gap > a.opts.MaxGapThreshold {
				continue
			}
			contextScore := a.contextScore(v.Text, action.Type)
			gapPenalty := gap / a.opts.MaxGapThreshold
			if gapPenalty > 1 {
				gapPenalty = 1
			}
			score := contextScore * (1 - 0.3*gapPenalty)
			if score > bestScore {
				bestIdx = i
				bestScore = score
				bestGap = gap
			}
		}

		if bestIdx < 0 {
			continue
		}
		usedVoices[bestIdx] = true
		v := voice[bestIdx]
		matched = append(matched, matchedPair{
			voice:   v,
			action:  action,
			score:   bestScore,
			silence: silenceRemoval(v, action, bestGap),
		})
	}
	return matched
}

// contextScore rates how well segment text describes the action type:
// 1.0 on a keyword hit, otherwise the best similarity against canonical
// phrases, or 0.3 when the type has no phrase set.
func (a *Aligner) contextScore(text string, actionType ActionType) float64 {
	lower := strings.ToLower(text)

	pattern, ok := actionPatterns[actionType]
	if !ok {
		return 0.5
	}
	if pattern.MatchString(lower) {
		return 1.0
	}

	phrases, ok := typicalPhrases[actionType]
	if !ok {
		return 0.3
	}
	maxSim := 0.0
	for _, phrase := range phrases {
		if sim := similarity(lower, phrase); sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim
}

// silenceRemoval computes the dead time to cut between speech and action.
// Action during the speech removes nothing.
func silenceRemoval(v VoiceSegment, action ScreenAction, gap float64) float64 {
	if action.Timestamp >= v.End {
		removed := gap - silenceBuffer
		if removed < 0 {
			return 0
		}
		return removed
	}
	return 0
}

func assembleSteps(matched []matchedPair) []AlignedStep {
	steps := make([]AlignedStep, 0, len(matched))
	for i, m := range matched {
		newStart := m.voice.Start
		newEnd := m.voice.End - m.silence
		if newEnd <= newStart {
			newEnd = newStart + minStepDuration
		}
		steps = append(steps, AlignedStep{
			StepNumber:     i + 1,
			OriginalStart:  m.voice.Start,
			OriginalEnd:    m.voice.End,
			AlignedStart:   newStart,
			AlignedEnd:     newEnd,
			Text:           m.voice.Text,
			Action:         m.action,
			SilenceRemoved: m.silence,
			Confidence:     m.score,
		})
	}
	return steps
}

// calculateQuality scores the run: coverage of voice segments, average match
// confidence, and whether the removed-time ratio stays in the 10-30% band.
func (a *Aligner) calculateQuality(steps []AlignedStep, voice []VoiceSegment) float64 {
	if len(steps) == 0 || len(voice) == 0 {
		return 0.0
	}

	coverage := float64(len(steps)) / float64(len(voice))
	if coverage > 1.0 {
		coverage = 1.0
	}

	var sumConfidence, totalRemoved, totalDuration float64
	for _, s := range steps {
		sumConfidence += s.Confidence
		totalRemoved += s.SilenceRemoved
		totalDuration += s.OriginalDuration()
	}
	avgConfidence := sumConfidence / float64(len(steps))

	if totalDuration < 0.1 {
		totalDuration = 0.1
	}
	removalRatio := totalRemoved / totalDuration

	var removalScore float64
	switch {
	case removalRatio < 0.1:
		removalScore = removalRatio / 0.1
	case removalRatio > 0.3:
		removalScore = 1 - (removalRatio-0.3)/0.7
		if removalScore < 0 {
			removalScore = 0
		}
	default:
		removalScore = 1.0
	}

	quality := 0.3*coverage + 0.4*avgConfidence + 0.3*removalScore
	if quality > 1.0 {
		quality = 1.0
	}
	return quality
}

// EstimateTimeSavings runs alignment and reports the expected savings
// without rendering anything.
func (a *Aligner) EstimateTimeSavings(voice []VoiceSegment, actions []ScreenAction) Estimate {
	res := a.Align(voice, actions)
	return Estimate{
		OriginalDurationSeconds: res.TotalOriginalDuration,
		AlignedDurationSeconds:  res.TotalAlignedDuration,
		TimeSavedSeconds:        res.TotalSilenceRemoved,
		CompressionRatio:        res.CompressionRatio,
		EstimatedSteps:          len(res.Steps),
		QualityScore:            res.Quality,
	}
}

func emptyResult() Result {
	return Result{CompressionRatio: 1.0}
}
