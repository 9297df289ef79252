package queue

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/vca/internal/models"
	"github.com/your-org/vca/internal/traffic"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "runs.abc.progress", ProgressSubject("abc"))
	assert.Equal(t, "runs.abc.completed", CompletedSubject("abc"))

	tests := []struct {
		subject string
		runID   string
		kind    string
		ok      bool
	}{
		{"runs.abc.progress", "abc", KindProgress, true},
		{"runs.abc.completed", "abc", KindCompleted, true},
		{ControlSubject, "", "", false},
		{"runs..progress", "", "", false},
		{"runs.abc.started", "", "", false},
		{"events.abc.progress", "", "", false},
		{"runs.a.b.progress", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			runID, kind, ok := ParseSubject(tt.subject)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.runID, runID)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestDecodeEvent(t *testing.T) {
	id := uuid.New()

	data, err := json.Marshal(models.RunProgress{RunID: id, Frame: 40, Vehicles: 3})
	require.NoError(t, err)
	ev, err := DecodeEvent(ProgressSubject(id.String()), data)
	require.NoError(t, err)
	require.NotNil(t, ev.Progress)
	assert.Nil(t, ev.Completed)
	assert.Equal(t, 40, ev.Progress.Frame)
	assert.Equal(t, 3, ev.Progress.Vehicles)

	data, err = json.Marshal(models.RunCompleted{
		Run:         models.Run{ID: id, Status: models.RunStatusCompleted, Vehicles: 2},
		Transitions: []traffic.TransitionCount{{Transition: traffic.Transition{Entry: "A", Exit: "B"}, Count: 2}},
	})
	require.NoError(t, err)
	ev, err = DecodeEvent(CompletedSubject(id.String()), data)
	require.NoError(t, err)
	require.NotNil(t, ev.Completed)
	assert.Equal(t, id.String(), ev.RunID)
	assert.Equal(t, models.RunStatusCompleted, ev.Completed.Run.Status)
	assert.Equal(t, 2, traffic.FromRows(ev.Completed.Transitions).Count("A", "B"))
}

func TestDecodeEventErrors(t *testing.T) {
	_, err := DecodeEvent(ControlSubject, []byte(`{}`))
	assert.Error(t, err)

	_, err = DecodeEvent(ProgressSubject("x"), []byte(`not json`))
	assert.ErrorContains(t, err, "decode progress event")
}
