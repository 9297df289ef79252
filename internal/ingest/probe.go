package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/your-org/vca/internal/analysis"
)

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
}

// Probe reads the first video stream's size, rate and frame count with ffprobe.
func Probe(ctx context.Context, url string) (analysis.SourceInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate,r_frame_rate,nb_frames",
		"-of", "json",
		url,
	)
	output, err := cmd.Output()
	if err != nil {
		return analysis.SourceInfo{}, fmt.Errorf("%w: ffprobe %s: %v", ErrSourceOpen, url, err)
	}
	return parseProbe(output)
}

func parseProbe(data []byte) (analysis.SourceInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return analysis.SourceInfo{}, fmt.Errorf("%w: parse ffprobe output: %v", ErrSourceOpen, err)
	}
	if len(out.Streams) == 0 {
		return analysis.SourceInfo{}, fmt.Errorf("%w: no video stream", ErrSourceOpen)
	}

	s := out.Streams[0]
	fps := parseFrameRate(s.AvgFrameRate)
	if fps <= 0 {
		fps = parseFrameRate(s.RFrameRate)
	}
	frames, _ := strconv.Atoi(s.NbFrames)

	return analysis.SourceInfo{
		FPS:    fps,
		Width:  s.Width,
		Height: s.Height,
		Frames: frames,
	}, nil
}

// parseFrameRate parses ffprobe rates such as "30000/1001" or "25".
func parseFrameRate(v string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(v), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
