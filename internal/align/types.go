package align

// ActionType classifies an on-screen interaction.
type ActionType string

const (
	ActionClick       ActionType = "click"
	ActionDoubleClick ActionType = "double_click"
	ActionRightClick  ActionType = "right_click"
	ActionScroll      ActionType = "scroll"
	ActionType_       ActionType = "type"
	ActionDrag        ActionType = "drag"
	ActionHover       ActionType = "hover"
	ActionKeyPress    ActionType = "key_press"
)

// ScreenAction is a normalized user action consumed by the aligner.
type ScreenAction struct {
	Type      ActionType
	Timestamp float64
	X, Y      int
	Metadata  map[string]string
}

// VoiceSegment is speech after pause cleaning. End may be shorter and
// Confidence lower than in the raw transcription segment.
type VoiceSegment struct {
	Start      float64
	End        float64
	Text       string
	Confidence float64
}

// Duration of the segment in seconds.
func (v VoiceSegment) Duration() float64 { return v.End - v.Start }

// AlignedStep is one narrated action with dead time removed.
type AlignedStep struct {
	StepNumber     int
	OriginalStart  float64
	OriginalEnd    float64
	AlignedStart   float64
	AlignedEnd     float64
	Text           string
	Action         ScreenAction
	SilenceRemoved float64
	Confidence     float64
}

// Duration after alignment.
func (s AlignedStep) Duration() float64 { return s.AlignedEnd - s.AlignedStart }

// OriginalDuration before dead-time removal.
func (s AlignedStep) OriginalDuration() float64 { return s.OriginalEnd - s.OriginalStart }

// Result of an alignment run.
type Result struct {
	Steps                 []AlignedStep
	TotalOriginalDuration float64
	TotalAlignedDuration  float64
	TotalSilenceRemoved   float64
	CompressionRatio      float64
	Quality               float64
}

// Estimate is a pre-render summary of what alignment would save.
type Estimate struct {
	OriginalDurationSeconds float64 `json:"original_duration_seconds"`
	AlignedDurationSeconds  float64 `json:"aligned_duration_seconds"`
	TimeSavedSeconds        float64 `json:"time_saved_seconds"`
	CompressionRatio        float64 `json:"compression_ratio"`
	EstimatedSteps          int     `json:"estimated_steps"`
	QualityScore            float64 `json:"quality_score"`
}
