package ingest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/vca/internal/models"
)

func jpegBlob(payload ...byte) []byte {
	b := []byte{0xFF, 0xD8}
	b = append(b, payload...)
	return append(b, 0xFF, 0xD9)
}

func TestReadJPEGFrames(t *testing.T) {
	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0x01}) // junk before the first marker
	stream.Write(jpegBlob(0x10, 0x20))
	stream.Write(jpegBlob(0x30, 0xFF, 0x00, 0x40))

	var frames [][]byte
	err := readJPEGFrames(context.Background(), &stream, 0, func(data []byte) error {
		frames = append(frames, data)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, jpegBlob(0x10, 0x20), frames[0])
	assert.Equal(t, jpegBlob(0x30, 0xFF, 0x00, 0x40), frames[1])
}

func TestReadJPEGFramesEmptyInput(t *testing.T) {
	err := readJPEGFrames(context.Background(), bytes.NewReader(nil), 0, func([]byte) error {
		t.Fatal("no frame expected")
		return nil
	})
	assert.NoError(t, err)
}

func TestReadJPEGFramesCallbackErrorStops(t *testing.T) {
	var stream bytes.Buffer
	for i := 0; i < 3; i++ {
		stream.Write(jpegBlob(byte(i)))
	}
	stop := errors.New("stop")
	calls := 0
	err := readJPEGFrames(context.Background(), &stream, 0, func([]byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReadJPEGFramesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := readJPEGFrames(ctx, bytes.NewReader(jpegBlob(1)), 0, func([]byte) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractionArgs(t *testing.T) {
	args := extractionArgs("video.mp4", 0, 0)
	assert.Contains(t, args, "-vsync")
	assert.NotContains(t, args, "-vf")
	assert.NotContains(t, args, "-reconnect")

	args = extractionArgs("https://example.com/v.m3u8", 5, 640)
	assert.Contains(t, args, "fps=5,scale=640:-2")
	assert.Contains(t, args, "-reconnect")
	assert.Equal(t, "pipe:1", args[len(args)-1])
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"width":1280,"height":720,"avg_frame_rate":"30000/1001","r_frame_rate":"30/1","nb_frames":"900"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1280, info.Width)
	assert.Equal(t, 720, info.Height)
	assert.InDelta(t, 29.97, info.FPS, 0.01)
	assert.Equal(t, 900, info.Frames)

	info, err = parseProbe([]byte(`{"streams":[{"width":640,"height":480,"avg_frame_rate":"0/0","r_frame_rate":"25/1"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 25.0, info.FPS)
	assert.Zero(t, info.Frames)

	_, err = parseProbe([]byte(`{"streams":[]}`))
	assert.ErrorIs(t, err, ErrSourceOpen)

	_, err = parseProbe([]byte(`not json`))
	assert.ErrorIs(t, err, ErrSourceOpen)
}

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, 25.0, parseFrameRate("25"))
	assert.Equal(t, 12.5, parseFrameRate("25/2"))
	assert.Zero(t, parseFrameRate("1/0"))
	assert.Zero(t, parseFrameRate(""))
}

func TestFrameTimestamp(t *testing.T) {
	assert.Equal(t, 2*time.Second, frameTimestamp(50, 25))
	assert.Zero(t, frameTimestamp(10, 0))
}

type blockingRunner struct {
	mu      sync.Mutex
	started []models.RunCommand
	stopped chan string
}

func (r *blockingRunner) Execute(ctx context.Context, cmd models.RunCommand) error {
	r.mu.Lock()
	r.started = append(r.started, cmd)
	r.mu.Unlock()
	<-ctx.Done()
	r.stopped <- cmd.RunID
	return nil
}

func TestManagerStartStop(t *testing.T) {
	runner := &blockingRunner{stopped: make(chan string, 2)}
	m := NewManager(runner)
	ctx := context.Background()

	start := models.RunCommand{Action: "start", RunID: "r1", Mode: models.RunModeCount, URL: "video.mp4"}
	require.NoError(t, m.HandleCommand(ctx, start))
	assert.Equal(t, 1, m.ActiveCount())
	assert.Error(t, m.HandleCommand(ctx, start), "a run id cannot be started twice")

	done := m.Done("r1")
	require.NotNil(t, done)
	require.NoError(t, m.HandleCommand(ctx, models.RunCommand{Action: "stop", RunID: "r1"}))

	select {
	case id := <-runner.stopped:
		assert.Equal(t, "r1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("runner was not cancelled")
	}
	<-done
	assert.Zero(t, m.ActiveCount())
	assert.Nil(t, m.Done("r1"))

	assert.NoError(t, m.HandleCommand(ctx, models.RunCommand{Action: "stop", RunID: "unknown"}))
}

func TestManagerStopAll(t *testing.T) {
	runner := &blockingRunner{stopped: make(chan string, 2)}
	m := NewManager(runner)
	require.NoError(t, m.HandleCommand(context.Background(), models.RunCommand{Action: "start", RunID: "a"}))
	require.NoError(t, m.HandleCommand(context.Background(), models.RunCommand{Action: "start", RunID: "b"}))

	m.StopAll()
	assert.Zero(t, m.ActiveCount())
	assert.Len(t, runner.stopped, 2)
}

func TestManagerRejectsBadCommands(t *testing.T) {
	m := NewManager(&blockingRunner{stopped: make(chan string, 1)})
	assert.Error(t, m.HandleCommand(context.Background(), models.RunCommand{Action: "pause", RunID: "x"}))
	assert.Error(t, m.HandleCommand(context.Background(), models.RunCommand{Action: "start"}))
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"action":"start","run_id":"abc","mode":"emotion","url":"v.mp4","source_type":"file"}`))
	require.NoError(t, err)
	assert.Equal(t, models.RunModeEmotion, cmd.Mode)
	assert.Equal(t, models.SourceTypeFile, cmd.SourceType)

	_, err = ParseCommand([]byte(`{`))
	assert.Error(t, err)
}

func TestFirstURL(t *testing.T) {
	url, err := firstURL([]byte("https://video.example/a\nhttps://audio.example/b\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://video.example/a", url)

	_, err = firstURL([]byte("  \n"))
	assert.ErrorIs(t, err, ErrSourceOpen)
}
