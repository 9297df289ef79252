package traffic

// Category is the counting bucket a detection label falls into.
type Category int

const (
	CategoryOther Category = iota
	CategoryVehicle
	CategoryPerson
)

func (c Category) String() string {
	switch c {
	case CategoryVehicle:
		return "vehicle"
	case CategoryPerson:
		return "person"
	default:
		return "other"
	}
}

// Categories maps detector labels to counting categories and short display codes.
type Categories struct {
	vehicle map[string]bool
	person  map[string]bool
	codes   map[string]string
}

// DefaultVehicleLabels are the labels counted as vehicles and tracked through zones.
var DefaultVehicleLabels = []string{"car", "truck", "bus", "motorbike"}

// DefaultPersonLabels are the labels counted as persons.
var DefaultPersonLabels = []string{"person"}

// DefaultCodes are the overlay codes: light vehicle, heavy vehicle, pedestrian.
var DefaultCodes = map[string]string{
	"car":       "VL",
	"truck":     "PL",
	"bus":       "PL",
	"motorbike": "VL",
	"person":    "PI",
}

// NewCategories builds a label mapping. A label present in both lists counts as a vehicle.
func NewCategories(vehicles, persons []string, codes map[string]string) *Categories {
	c := &Categories{
		vehicle: make(map[string]bool, len(vehicles)),
		person:  make(map[string]bool, len(persons)),
		codes:   make(map[string]string, len(codes)),
	}
	for _, l := range vehicles {
		c.vehicle[l] = true
	}
	for _, l := range persons {
		if !c.vehicle[l] {
			c.person[l] = true
		}
	}
	for l, code := range codes {
		c.codes[l] = code
	}
	return c
}

// DefaultCategories returns the mapping used by the reference counter.
func DefaultCategories() *Categories {
	return NewCategories(DefaultVehicleLabels, DefaultPersonLabels, DefaultCodes)
}

// Of returns the category of a label.
func (c *Categories) Of(label string) Category {
	switch {
	case c.vehicle[label]:
		return CategoryVehicle
	case c.person[label]:
		return CategoryPerson
	default:
		return CategoryOther
	}
}

// Code returns the overlay code for a label, falling back to the label itself.
func (c *Categories) Code(label string) string {
	if code, ok := c.codes[label]; ok {
		return code
	}
	return label
}
