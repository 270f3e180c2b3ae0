package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWAV(t *testing.T, path string, seconds float64, sampleRate int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, int(seconds*float64(sampleRate))),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
	}{
		{name: "one second", seconds: 1.0},
		{name: "short", seconds: 0.25},
		{name: "longer", seconds: 3.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.wav")
			writeTestWAV(t, path, tt.seconds, 16000)
			got, err := Duration(path)
			if err != nil {
				t.Fatalf("Duration() failed: %v", err)
			}
			if math.Abs(got-tt.seconds) > 0.01 {
				t.Errorf("Duration() = %v, want %v", got, tt.seconds)
			}
		})
	}
}

func TestDuration_errors(t *testing.T) {
	tests := []struct {
		name string
		prep func(t *testing.T, dir string) string
	}{
		{
			name: "missing file",
			prep: func(t *testing.T, dir string) string { return filepath.Join(dir, "nope.wav") },
		},
		{
			name: "not a wav",
			prep: func(t *testing.T, dir string) string {
				path := filepath.Join(dir, "bad.wav")
				if err := os.WriteFile(path, []byte("not audio"), 0o644); err != nil {
					t.Fatalf("write file: %v", err)
				}
				return path
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.prep(t, t.TempDir())
			if _, err := Duration(path); err == nil {
				t.Error("Duration() succeeded unexpectedly")
			}
		})
	}
}
