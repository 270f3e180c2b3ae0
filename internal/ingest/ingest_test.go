package ingest

import (
	"testing"
)

func TestParseClickLog(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{
			name: "ok",
			data: `{"clicks":[{"timestamp":1.5,"x":10,"y":20,"element":"button"},{"timestamp":3.2,"x":5,"y":7}],"duration_seconds":10}`,
			want: 2,
		},
		{
			name: "unsorted input gets sorted",
			data: `{"clicks":[{"timestamp":9.0,"x":1,"y":1},{"timestamp":2.0,"x":2,"y":2}]}`,
			want: 2,
		},
		{
			name: "negative timestamp dropped",
			data: `{"clicks":[{"timestamp":-1.0,"x":1,"y":1},{"timestamp":2.0,"x":2,"y":2}]}`,
			want: 1,
		},
		{name: "empty log", data: `{"clicks":[]}`, want: 0},
		{name: "bad json", data: `{"clicks":[`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gotErr := ParseClickLog([]byte(tt.data))
			if gotErr != nil {
				if !tt.wantErr {
					t.Errorf("ParseClickLog() failed: %v", gotErr)
				}
				return
			}
			if tt.wantErr {
				t.Fatal("ParseClickLog() succeeded unexpectedly")
			}
			if len(got) != tt.want {
				t.Fatalf("ParseClickLog() = %d clicks, want %d", len(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i].Timestamp < got[i-1].Timestamp {
					t.Errorf("clicks not sorted at %d: %v < %v", i, got[i].Timestamp, got[i-1].Timestamp)
				}
			}
		})
	}
}

func TestParseASRResult(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		want     int
		wantConf float64
		wantErr  bool
	}{
		{
			name:     "ok",
			data:     `{"text":"full","segments":[{"start":0.0,"end":2.5,"text":" нажмите кнопку ","confidence":0.85}]}`,
			want:     1,
			wantConf: 0.85,
		},
		{
			name:     "missing confidence defaults",
			data:     `{"segments":[{"start":1.0,"end":2.0,"text":"hi"}]}`,
			want:     1,
			wantConf: 0.9,
		},
		{
			name:     "explicit zero confidence kept",
			data:     `{"segments":[{"start":1.0,"end":2.0,"text":"hi","confidence":0}]}`,
			want:     1,
			wantConf: 0,
		},
		{
			name:    "end before start",
			data:    `{"segments":[{"start":5.0,"end":2.0,"text":"bad"}]}`,
			wantErr: true,
		},
		{name: "bad json", data: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gotErr := ParseASRResult([]byte(tt.data))
			if gotErr != nil {
				if !tt.wantErr {
					t.Errorf("ParseASRResult() failed: %v", gotErr)
				}
				return
			}
			if tt.wantErr {
				t.Fatal("ParseASRResult() succeeded unexpectedly")
			}
			if len(got) != tt.want {
				t.Fatalf("ParseASRResult() = %d segments, want %d", len(got), tt.want)
			}
			if got[0].Confidence != tt.wantConf {
				t.Errorf("Confidence = %v, want %v", got[0].Confidence, tt.wantConf)
			}
			if got[0].Text != "" && (got[0].Text[0] == ' ' || got[0].Text[len(got[0].Text)-1] == ' ') {
				t.Errorf("Text = %q, want trimmed", got[0].Text)
			}
		})
	}
}
