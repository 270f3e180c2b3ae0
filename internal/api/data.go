package api

// RawClick is one entry of the browser extension click log.
type RawClick struct {
	Timestamp float64 `json:"timestamp"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Element   string  `json:"element,omitempty"`
}

// ClickLog is the JSON payload produced by the recording extension.
type ClickLog struct {
	Clicks          []RawClick `json:"clicks"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
}

// ASRSegment is one timed segment of the transcription result.
// Confidence is a pointer so an explicit zero from the provider stays
// distinguishable from an absent field.
type ASRSegment struct {
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ASRResult is the transcription provider response.
type ASRResult struct {
	Text     string       `json:"text"`
	Segments []ASRSegment `json:"segments"`
	Duration float64      `json:"duration,omitempty"`
	Language string       `json:"language,omitempty"`
}

// AlignedStepRecord is the per-step metadata exported for downstream
// pipelines (markdown export, captioning, shorts reformat).
type AlignedStepRecord struct {
	StepNumber     int     `json:"step_number"`
	OriginalStart  float64 `json:"original_start"`
	OriginalEnd    float64 `json:"original_end"`
	AlignedStart   float64 `json:"aligned_start"`
	AlignedEnd     float64 `json:"aligned_end"`
	Text           string  `json:"text"`
	ActionType     string  `json:"action_type"`
	ActionX        int     `json:"action_x"`
	ActionY        int     `json:"action_y"`
	SilenceRemoved float64 `json:"silence_removed"`
	Confidence     float64 `json:"confidence"`
}

// RenderResult is what a finished render job reports back.
type RenderResult struct {
	GuideID    string              `json:"guide_id"`
	VideoPath  string              `json:"video_path"`
	Steps      []AlignedStepRecord `json:"steps"`
	Quality    float64             `json:"alignment_quality"`
	Compressed float64             `json:"compression_ratio"`
}

// Job kinds form a closed set, dispatched through a registered handler table.
const (
	KindRenderGuide = "render_guide"
	KindMagicEdit   = "magic_edit"
	KindShorts      = "shorts_generation"
)

// Job is one queued unit of work for the render worker.
type Job struct {
	ID         string       `json:"id"`
	Kind       string       `json:"kind"`
	GuideID    string       `json:"guide_id"`
	VideoPath  string       `json:"video_path"`
	ClicksPath string       `json:"clicks_path,omitempty"`
	ASRPath    string       `json:"asr_path,omitempty"`
	OutputPath string       `json:"output_path"`
	Steps      []EditedStep `json:"steps,omitempty"`
	Platform   string       `json:"platform,omitempty"`
}

// EditedStep carries per-step overrides for magic edit: only steps with
// NeedsRegenerate set are re-rendered.
type EditedStep struct {
	StepNumber      int     `json:"step_number"`
	Text            string  `json:"text,omitempty"`
	AudioPath       string  `json:"audio_path,omitempty"`
	TargetDuration  float64 `json:"target_duration,omitempty"`
	NeedsRegenerate bool    `json:"needs_regenerate"`
}

// Guide processing states.
const (
	StatusDraft      = "DRAFT"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Progress is streamed to subscribed clients while a guide renders.
type Progress struct {
	GuideID         string  `json:"guide_id"`
	CurrentStep     int     `json:"current_step"`
	TotalSteps      int     `json:"total_steps"`
	ProgressPercent float64 `json:"progress_percent"`
	Message         string  `json:"message"`
	Stage           string  `json:"stage"`
}
