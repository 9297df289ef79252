package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/your-org/vca/internal/models"
)

const (
	RunsStreamName  = "RUNS"
	RunsSubjectBase = "runs"
	ControlSubject  = RunsSubjectBase + ".control"

	KindProgress  = "progress"
	KindCompleted = "completed"

	progressWildcard  = RunsSubjectBase + ".*." + KindProgress
	completedWildcard = RunsSubjectBase + ".*." + KindCompleted
)

func ProgressSubject(runID string) string {
	return RunsSubjectBase + "." + runID + "." + KindProgress
}

func CompletedSubject(runID string) string {
	return RunsSubjectBase + "." + runID + "." + KindCompleted
}

// ParseSubject splits runs.<id>.<kind>.
func ParseSubject(subject string) (runID, kind string, ok bool) {
	parts := strings.Split(subject, ".")
	if len(parts) != 3 || parts[0] != RunsSubjectBase || parts[1] == "" {
		return "", "", false
	}
	switch parts[2] {
	case KindProgress, KindCompleted:
		return parts[1], parts[2], true
	}
	return "", "", false
}

// Event is a decoded message of the RUNS stream. Exactly one of Progress
// and Completed is set.
type Event struct {
	RunID     string
	Kind      string
	Progress  *models.RunProgress
	Completed *models.RunCompleted
}

func DecodeEvent(subject string, data []byte) (Event, error) {
	runID, kind, ok := ParseSubject(subject)
	if !ok {
		return Event{}, fmt.Errorf("unexpected subject %q", subject)
	}
	ev := Event{RunID: runID, Kind: kind}
	var err error
	switch kind {
	case KindProgress:
		ev.Progress = &models.RunProgress{}
		err = json.Unmarshal(data, ev.Progress)
	case KindCompleted:
		ev.Completed = &models.RunCompleted{}
		err = json.Unmarshal(data, ev.Completed)
	}
	if err != nil {
		return Event{}, fmt.Errorf("decode %s event: %w", kind, err)
	}
	return ev, nil
}
