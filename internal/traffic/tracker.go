package traffic

import (
	"image"
	"sort"
)

// Observation is one tracked detection in one frame.
// ID is nil when the upstream tracker has not assigned an identity.
type Observation struct {
	ID    *int
	Label string
	Box   image.Rectangle
}

// Outcome describes what the tracker did with an observation.
type Outcome struct {
	Category Category
	Counted  bool   // identity registered in a unique set
	Zone     string // zone containing the box center, empty when outside every zone
}

// Trajectory is the entry/exit summary of one vehicle identity.
type Trajectory struct {
	EntryZone string `json:"entry_zone"`
	ExitZone  string `json:"exit_zone"`
}

// IdentifiedTrajectory pairs a trajectory with its track identity.
type IdentifiedTrajectory struct {
	ID int `json:"id"`
	Trajectory
}

// Tracker owns the per-run accumulators: trajectories, unique identity sets
// and the zone configuration. It is not safe for concurrent use; a run feeds
// it from a single goroutine in frame order.
type Tracker struct {
	zones      *ZoneSet
	categories *Categories

	vehicles     map[int]struct{}
	persons      map[int]struct{}
	trajectories map[int]*Trajectory
}

// NewTracker creates an empty tracker for one run.
func NewTracker(zones *ZoneSet, categories *Categories) *Tracker {
	if categories == nil {
		categories = DefaultCategories()
	}
	return &Tracker{
		zones:        zones,
		categories:   categories,
		vehicles:     make(map[int]struct{}),
		persons:      make(map[int]struct{}),
		trajectories: make(map[int]*Trajectory),
	}
}

// Register adds id to the unique set matching label. Other labels are ignored.
func (t *Tracker) Register(id int, label string) Category {
	cat := t.categories.Of(label)
	switch cat {
	case CategoryVehicle:
		t.vehicles[id] = struct{}{}
	case CategoryPerson:
		t.persons[id] = struct{}{}
	}
	return cat
}

// Observe records that vehicle id was seen in zone. An empty zone means the
// object is outside every zone and leaves the trajectory untouched.
func (t *Tracker) Observe(id int, label string, zone string) {
	if zone == "" || t.categories.Of(label) != CategoryVehicle {
		return
	}
	if tr, ok := t.trajectories[id]; ok {
		tr.ExitZone = zone
		return
	}
	t.trajectories[id] = &Trajectory{EntryZone: zone, ExitZone: zone}
}

// Process classifies, registers and observes one detection.
func (t *Tracker) Process(obs Observation) Outcome {
	out := Outcome{Category: t.categories.Of(obs.Label)}
	if zone, ok := t.zones.Classify(Center(obs.Box)); ok {
		out.Zone = zone
	}
	if obs.ID == nil || out.Category == CategoryOther {
		return out
	}

	id := *obs.ID
	t.Register(id, obs.Label)
	out.Counted = true
	if out.Category == CategoryVehicle {
		t.Observe(id, obs.Label, out.Zone)
	}
	return out
}

// VehicleCount returns the number of distinct vehicle identities seen.
func (t *Tracker) VehicleCount() int { return len(t.vehicles) }

// PersonCount returns the number of distinct person identities seen.
func (t *Tracker) PersonCount() int { return len(t.persons) }

// Trajectory returns the record for id, if one was created.
func (t *Tracker) Trajectory(id int) (Trajectory, bool) {
	tr, ok := t.trajectories[id]
	if !ok {
		return Trajectory{}, false
	}
	return *tr, true
}

// Trajectories returns a copy of every record, ordered by identity.
func (t *Tracker) Trajectories() []IdentifiedTrajectory {
	out := make([]IdentifiedTrajectory, 0, len(t.trajectories))
	for id, tr := range t.trajectories {
		out = append(out, IdentifiedTrajectory{ID: id, Trajectory: *tr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Zones returns the zone configuration the tracker classifies against.
func (t *Tracker) Zones() *ZoneSet { return t.zones }

// Categories returns the label mapping.
func (t *Tracker) Categories() *Categories { return t.categories }

// Summary is the end-of-run read-out of a tracker.
type Summary struct {
	Vehicles     int                    `json:"vehicles"`
	Persons      int                    `json:"persons"`
	Trajectories []IdentifiedTrajectory `json:"trajectories"`
	Matrix       Matrix                 `json:"-"`
}

// Summary aggregates the trajectories and returns the final counts.
func (t *Tracker) Summary() Summary {
	trajectories := t.Trajectories()
	return Summary{
		Vehicles:     t.VehicleCount(),
		Persons:      t.PersonCount(),
		Trajectories: trajectories,
		Matrix:       Aggregate(trajectories),
	}
}
