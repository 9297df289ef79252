package traffic

import (
	"errors"
	"fmt"
	"image"
)

// ErrInvalidZone is returned when a zone definition cannot be used for classification.
var ErrInvalidZone = errors.New("invalid zone")

// Zone is a named axis-aligned region of the frame. Bounds are inclusive on all four edges.
type Zone struct {
	Name string `yaml:"name" json:"name"`
	X1   int    `yaml:"x1" json:"x1"`
	Y1   int    `yaml:"y1" json:"y1"`
	X2   int    `yaml:"x2" json:"x2"`
	Y2   int    `yaml:"y2" json:"y2"`
}

// Contains reports whether p lies inside the zone, edges included.
func (z Zone) Contains(p image.Point) bool {
	return z.X1 <= p.X && p.X <= z.X2 && z.Y1 <= p.Y && p.Y <= z.Y2
}

// Rect returns the zone as an image.Rectangle for drawing.
func (z Zone) Rect() image.Rectangle {
	return image.Rect(z.X1, z.Y1, z.X2, z.Y2)
}

// ZoneSet is an ordered, immutable list of zones. Declaration order decides overlaps.
type ZoneSet struct {
	zones []Zone
}

// NewZoneSet validates the zones and freezes their order.
func NewZoneSet(zones []Zone) (*ZoneSet, error) {
	seen := make(map[string]bool, len(zones))
	for i, z := range zones {
		if z.Name == "" {
			return nil, fmt.Errorf("%w: zone %d has no name", ErrInvalidZone, i)
		}
		if seen[z.Name] {
			return nil, fmt.Errorf("%w: duplicate zone %q", ErrInvalidZone, z.Name)
		}
		if z.X1 > z.X2 || z.Y1 > z.Y2 {
			return nil, fmt.Errorf("%w: zone %q has inverted corners", ErrInvalidZone, z.Name)
		}
		seen[z.Name] = true
	}

	frozen := make([]Zone, len(zones))
	copy(frozen, zones)
	return &ZoneSet{zones: frozen}, nil
}

// Classify returns the name of the first zone containing p.
// The boolean is false when p lies outside every zone.
func (s *ZoneSet) Classify(p image.Point) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, z := range s.zones {
		if z.Contains(p) {
			return z.Name, true
		}
	}
	return "", false
}

// Zones returns a copy of the zones in declaration order.
func (s *ZoneSet) Zones() []Zone {
	if s == nil {
		return nil
	}
	out := make([]Zone, len(s.zones))
	copy(out, s.zones)
	return out
}

// Len returns the number of configured zones.
func (s *ZoneSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.zones)
}

// Center returns the integer midpoint of a bounding box.
func Center(box image.Rectangle) image.Point {
	return image.Pt((box.Min.X+box.Max.X)/2, (box.Min.Y+box.Max.Y)/2)
}
