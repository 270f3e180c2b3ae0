package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/autodoc-ai/stepsync/internal/api"
	"github.com/autodoc-ai/stepsync/internal/steps"
)

// ParseClickLog decodes the extension click log into click events sorted by
// timestamp. Entries with negative timestamps are dropped.
func ParseClickLog(data []byte) ([]steps.ClickEvent, error) {
	var log api.ClickLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("decode click log: %w", err)
	}
	res := make([]steps.ClickEvent, 0, len(log.Clicks))
	for _, c := range log.Clicks {
		if c.Timestamp < 0 {
			continue
		}
		res = append(res, steps.ClickEvent{
			Timestamp: c.Timestamp,
			X:         c.X,
			Y:         c.Y,
			Element:   c.Element,
		})
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp < res[j].Timestamp })
	return res, nil
}

// ParseASRResult decodes a transcription provider response into speech
// segments. Segments with end before start are rejected.
func ParseASRResult(data []byte) ([]steps.SpeechSegment, error) {
	var asr api.ASRResult
	if err := json.Unmarshal(data, &asr); err != nil {
		return nil, fmt.Errorf("decode asr result: %w", err)
	}
	res := make([]steps.SpeechSegment, 0, len(asr.Segments))
	for i, s := range asr.Segments {
		if s.End < s.Start {
			return nil, fmt.Errorf("segment %d: end %.3f before start %.3f", i, s.End, s.Start)
		}
		conf := 0.9
		if s.Confidence != nil {
			conf = *s.Confidence
		}
		res = append(res, steps.SpeechSegment{
			Start:      s.Start,
			End:        s.End,
			Text:       strings.TrimSpace(s.Text),
			Confidence: conf,
		})
	}
	return res, nil
}

// LoadClickLog reads and parses a click log file.
func LoadClickLog(path string) ([]steps.ClickEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read click log: %w", err)
	}
	return ParseClickLog(data)
}

// LoadASRResult reads and parses a transcription result file.
func LoadASRResult(path string) ([]steps.SpeechSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asr result: %w", err)
	}
	return ParseASRResult(data)
}
