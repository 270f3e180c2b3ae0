package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// VideoInfo describes a media file as reported by ffprobe.
type VideoInfo struct {
	Duration   float64
	FormatName string
	SizeBytes  int64
	Video      StreamInfo
	Audio      *AudioInfo
}

// StreamInfo describes the first video stream.
type StreamInfo struct {
	Codec  string
	Width  int
	Height int
	FPS    float64
	PixFmt string
}

// AudioInfo describes the first audio stream, when present.
type AudioInfo struct {
	Codec      string
	Channels   int
	SampleRate int
}

type probeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
		Size       string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		PixFmt     string `json:"pix_fmt"`
		Channels   int    `json:"channels"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
}

// Probe inspects a media file with ffprobe.
func (r *Runner) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	out, err := r.runFFprobe(ctx, []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	})
	if err != nil {
		return nil, fmt.Errorf("probe '%s': %w", path, err)
	}

	var data probeOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, fmt.Errorf("decode probe output: %w", err)
	}

	res := &VideoInfo{FormatName: data.Format.FormatName}
	res.Duration, _ = strconv.ParseFloat(data.Format.Duration, 64)
	res.SizeBytes, _ = strconv.ParseInt(data.Format.Size, 10, 64)

	videoFound := false
	for _, s := range data.Streams {
		switch s.CodecType {
		case "video":
			if videoFound {
				continue
			}
			videoFound = true
			res.Video = StreamInfo{
				Codec:  s.CodecName,
				Width:  s.Width,
				Height: s.Height,
				FPS:    parseFPS(s.RFrameRate),
				PixFmt: s.PixFmt,
			}
		case "audio":
			if res.Audio != nil {
				continue
			}
			rate, _ := strconv.Atoi(s.SampleRate)
			res.Audio = &AudioInfo{Codec: s.CodecName, Channels: s.Channels, SampleRate: rate}
		}
	}
	if !videoFound {
		return nil, fmt.Errorf("no video stream in '%s'", path)
	}
	return res, nil
}

// parseFPS parses rates like "30/1" or "30000/1001". Falls back to 30.
func parseFPS(rate string) float64 {
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		return 30.0
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 30.0
	}
	return n / d
}
