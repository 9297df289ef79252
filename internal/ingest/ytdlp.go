package ingest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ResolveYouTubeURL uses yt-dlp to get a direct media URL for a YouTube link.
func ResolveYouTubeURL(ctx context.Context, youtubeURL string) (string, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--get-url",
		"--format", "best[height<=1080][vcodec!=none]",
		"--no-playlist",
		youtubeURL,
	)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: yt-dlp: %v", ErrSourceOpen, err)
	}
	return firstURL(output)
}

// firstURL picks the first line of yt-dlp output; video and audio URLs may both be printed.
func firstURL(output []byte) (string, error) {
	raw := strings.TrimSpace(string(output))
	url, _, _ := strings.Cut(raw, "\n")
	url = strings.TrimSpace(url)
	if url == "" {
		return "", fmt.Errorf("%w: yt-dlp returned empty URL", ErrSourceOpen)
	}
	return url, nil
}
