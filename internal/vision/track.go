package vision

import (
	"sort"
	"sync"
)

// Track represents one object followed across frames.
type Track struct {
	ID              int
	Label           string
	BBox            [4]float32
	FirstBBox       [4]float32 // box of the detection that created the track
	Confidence      float32
	Hits            int // number of matched detections
	TimeSinceUpdate int // frames since last detection match
}

// Confirmed reports whether the track has been matched often enough to expose its identity.
func (t *Track) Confirmed(minHits int) bool {
	return t.Hits >= minHits
}

// TrackUpdate pairs a detection of the current frame with the track it was assigned to.
type TrackUpdate struct {
	Detection Detection
	Track     *Track
	IsNew     bool
}

// Tracker implements a simple SORT-like IoU tracker. Identities are
// integers allocated from 1 and never reused within a tracker.
type Tracker struct {
	mu           sync.Mutex
	tracks       map[int]*Track
	nextID       int
	maxAge       int     // max frames without detection before track is removed
	minHits      int     // min hits before track is confirmed
	iouThreshold float32 // min IoU for a detection to continue a track
}

// NewTracker creates an empty tracker.
func NewTracker(maxAge, minHits int, iouThreshold float32) *Tracker {
	if minHits < 1 {
		minHits = 1
	}
	return &Tracker{
		tracks:       make(map[int]*Track),
		maxAge:       maxAge,
		minHits:      minHits,
		iouThreshold: iouThreshold,
	}
}

// Update matches detections to existing tracks of the same label and creates
// tracks for the rest. Updates come back in detection order.
func (t *Tracker) Update(detections []Detection) []TrackUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, track := range t.tracks {
		track.TimeSinceUpdate++
	}

	// Oldest tracks first so matching does not depend on map order.
	trackList := make([]*Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		trackList = append(trackList, tr)
	}
	sort.Slice(trackList, func(i, j int) bool { return trackList[i].ID < trackList[j].ID })

	// Highest confidence detections pick first.
	order := make([]int, len(detections))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return detections[order[i]].Confidence > detections[order[j]].Confidence
	})

	updates := make([]TrackUpdate, len(detections))
	matched := make(map[int]bool)
	detMatched := make([]bool, len(detections))

	for _, di := range order {
		det := detections[di]
		bestIoU := t.iouThreshold
		var best *Track

		for _, tr := range trackList {
			if matched[tr.ID] || tr.Label != det.Label {
				continue
			}
			if v := iou(det.BBox, tr.BBox); v > bestIoU {
				bestIoU = v
				best = tr
			}
		}
		if best == nil {
			continue
		}

		best.BBox = det.BBox
		best.Confidence = det.Confidence
		best.Hits++
		best.TimeSinceUpdate = 0
		matched[best.ID] = true
		detMatched[di] = true
		updates[di] = TrackUpdate{Detection: det, Track: best}
	}

	for di, det := range detections {
		if detMatched[di] {
			continue
		}
		t.nextID++
		tr := &Track{
			ID:         t.nextID,
			Label:      det.Label,
			BBox:       det.BBox,
			FirstBBox:  det.BBox,
			Confidence: det.Confidence,
			Hits:       1,
		}
		t.tracks[tr.ID] = tr
		updates[di] = TrackUpdate{Detection: det, Track: tr, IsNew: true}
	}

	for id, tr := range t.tracks {
		if tr.TimeSinceUpdate > t.maxAge {
			delete(t.tracks, id)
		}
	}

	return updates
}

// MinHits returns the confirmation threshold.
func (t *Tracker) MinHits() int {
	return t.minHits
}

// TrackCount returns the number of active tracks.
func (t *Tracker) TrackCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tracks)
}
