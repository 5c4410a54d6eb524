// Package probe wraps the external ffprobe tool to extract container and
// codec metadata from video files.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// Metadata is the simplified probe result attached to ingested video
// records. RawJSON carries the full ffprobe output for later inspection.
type Metadata struct {
	Duration    float64  `json:"duration,omitempty"`
	Container   string   `json:"container,omitempty"`
	VideoCodec  string   `json:"video_codec,omitempty"`
	AudioCodecs []string `json:"audio_codecs,omitempty"`
	Width       int      `json:"width,omitempty"`
	Height      int      `json:"height,omitempty"`
	Bitrate     int64    `json:"bitrate,omitempty"`
	RawJSON     string   `json:"streams_json,omitempty"`
}

var (
	availableOnce sync.Once
	available     bool
)

// Available reports whether ffprobe is on PATH. The lookup result is
// cached for the process lifetime.
func Available() bool {
	availableOnce.Do(func() {
		_, err := exec.LookPath("ffprobe")
		available = err == nil
	})
	return available
}

const probeTimeout = 60 * time.Second

// ffprobeOutput mirrors the subset of ffprobe's JSON output we read.
type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// File runs ffprobe against the path and extracts simplified metadata.
func File(ctx context.Context, path string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-print_format", "json",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	return parse(stdout.Bytes())
}

func parse(data []byte) (*Metadata, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("ffprobe output parse: %w", err)
	}

	meta := &Metadata{
		Container: out.Format.FormatName,
		RawJSON:   string(data),
	}
	if out.Format.Duration != "" {
		meta.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	}
	if out.Format.BitRate != "" {
		meta.Bitrate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)
	}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if meta.VideoCodec == "" {
				meta.VideoCodec = s.CodecName
				meta.Width = s.Width
				meta.Height = s.Height
			}
		case "audio":
			if s.CodecName != "" {
				meta.AudioCodecs = append(meta.AudioCodecs, s.CodecName)
			}
		}
	}

	return meta, nil
}
