package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Duration returns the play time of a WAV narration track in seconds.
// Replacement narration from the TTS provider arrives as WAV; the renderer
// needs its exact length to pin the segment's target duration.
func Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("not a valid wav file: %s", path)
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("wav duration: %w", err)
	}
	return d.Seconds(), nil
}
