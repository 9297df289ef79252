package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/your-org/vca/internal/analysis"
)

// ErrSourceOpen is returned when a video cannot be opened or probed.
var ErrSourceOpen = errors.New("open video source")

// FrameCallback is called for each extracted JPEG frame.
type FrameCallback func(frameData []byte) error

// FFmpegExtractor extracts JPEG frames from a video using FFmpeg.
type FFmpegExtractor struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	cmd    *exec.Cmd
}

// StartExtraction starts FFmpeg and calls the callback for each extracted JPEG
// frame. fps and width of zero keep the source rate and size. It blocks until
// the video ends, the context is cancelled or the callback returns an error.
func (f *FFmpegExtractor) StartExtraction(ctx context.Context, url string, fps int, width int, callback FrameCallback) error {
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", extractionArgs(url, fps, width)...)
	f.mu.Lock()
	f.cmd = cmd
	f.mu.Unlock()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "output", scanner.Text())
		}
	}()

	startupWait := time.Duration(0)
	if isNetworkURL(url) {
		startupWait = 5 * time.Second
	}

	if err := readJPEGFrames(ctx, stdout, startupWait, callback); err != nil {
		ctxErr := ctx.Err()
		cancel()
		_ = cmd.Wait()
		if ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("read frames: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg exited: %w", err)
	}
	return nil
}

// Stop terminates the FFmpeg process.
func (f *FFmpegExtractor) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
	}
	if f.cmd != nil && f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
	}
}

func extractionArgs(url string, fps, width int) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
	}

	switch {
	case strings.HasPrefix(url, "rtsp://") || strings.HasPrefix(url, "rtsps://"):
		args = append(args,
			"-rtsp_transport", "tcp",
			"-timeout", "5000000", // 5s (microseconds)
		)
	case strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://"):
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
			"-timeout", "10000000", // 10s (microseconds)
		)
	}

	args = append(args, "-i", url)

	var filters []string
	if fps > 0 {
		filters = append(filters, fmt.Sprintf("fps=%d", fps))
	}
	if width > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:-2", width))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	} else {
		args = append(args, "-vsync", "0")
	}

	return append(args,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)
}

func isNetworkURL(url string) bool {
	for _, prefix := range []string{"rtsp://", "rtsps://", "http://", "https://"} {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

// readJPEGFrames reads a stream of concatenated JPEG images. For live inputs
// it tolerates an initial EOF for up to startupWait while ffmpeg connects.
// A callback error ends the read and is returned as is.
func readJPEGFrames(ctx context.Context, r io.Reader, startupWait time.Duration, callback FrameCallback) error {
	reader := bufio.NewReaderSize(r, 512*1024) // 512KB buffer
	framesRead := 0
	const retryDelay = 100 * time.Millisecond
	maxStartupRetries := int(startupWait / retryDelay)
	startupRetries := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Find JPEG start marker: FF D8
		err := findJPEGStart(reader)
		if err != nil {
			if err == io.EOF {
				if framesRead == 0 && startupRetries < maxStartupRetries {
					startupRetries++
					time.Sleep(retryDelay)
					continue
				}
				if framesRead > 0 || maxStartupRetries == 0 {
					return nil // stream ended normally
				}
				return fmt.Errorf("no frames received from ffmpeg (waited %.1fs)", float64(startupRetries)*retryDelay.Seconds())
			}
			return err
		}

		// Read until JPEG end marker: FF D9
		frameData, err := readUntilJPEGEnd(reader)
		if err != nil {
			if err == io.EOF && framesRead > 0 {
				return nil // stream ended mid-frame; treat as normal end
			}
			return err
		}

		if len(frameData) > 0 {
			framesRead++
			if err := callback(frameData); err != nil {
				return err
			}
		}
	}
}

func findJPEGStart(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0xD8 {
			return nil
		}
	}
}

func readUntilJPEGEnd(r *bufio.Reader) ([]byte, error) {
	data := []byte{0xFF, 0xD8}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)

		if b == 0xFF {
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			data = append(data, next)
			if next == 0xD9 {
				return data, nil
			}
		}

		// Safety: max 10MB per frame
		if len(data) > 10*1024*1024 {
			return nil, fmt.Errorf("jpeg frame too large: %s bytes", strconv.Itoa(len(data)))
		}
	}
}

// FFmpegSource is a frame source backed by an ffmpeg process.
type FFmpegSource struct {
	url       string
	fps       int
	width     int
	info      analysis.SourceInfo
	extractor *FFmpegExtractor
}

// Open probes url and prepares a source. fps and width of zero keep the
// source rate and size. A probe failure wraps ErrSourceOpen.
func Open(ctx context.Context, url string, fps, width int) (*FFmpegSource, error) {
	info, err := Probe(ctx, url)
	if err != nil {
		return nil, err
	}
	if fps > 0 {
		if info.FPS > 0 && info.Frames > 0 {
			info.Frames = int(float64(info.Frames) * float64(fps) / info.FPS)
		}
		info.FPS = float64(fps)
	}
	if width > 0 && info.Width > 0 {
		info.Height = info.Height * width / info.Width
		info.Height -= info.Height % 2
		info.Width = width
	}

	return &FFmpegSource{
		url:       url,
		fps:       fps,
		width:     width,
		info:      info,
		extractor: &FFmpegExtractor{},
	}, nil
}

// Info returns the metadata of the decoded stream.
func (s *FFmpegSource) Info() analysis.SourceInfo {
	return s.info
}

// Frames decodes the video and calls fn for every frame in order. Frames that
// fail to decode are logged and skipped without consuming an index.
func (s *FFmpegSource) Frames(ctx context.Context, fn func(analysis.Frame) error) error {
	index := 0
	return s.extractor.StartExtraction(ctx, s.url, s.fps, s.width, func(frameData []byte) error {
		img, err := jpeg.Decode(bytes.NewReader(frameData))
		if err != nil {
			slog.Warn("decode frame", "frame", index, "error", err)
			return nil
		}
		frame := analysis.Frame{Index: index, Timestamp: frameTimestamp(index, s.info.FPS), Image: img}
		index++
		return fn(frame)
	})
}

// Stop terminates the underlying ffmpeg process.
func (s *FFmpegSource) Stop() {
	s.extractor.Stop()
}

func frameTimestamp(index int, fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(index) / fps * float64(time.Second))
}
