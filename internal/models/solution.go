package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/vca/internal/quadratic"
)

// Solution is a stored quadratic equation result.
type Solution struct {
	ID           uuid.UUID `json:"id" db:"id"`
	A            float64   `json:"a" db:"a"`
	B            float64   `json:"b" db:"b"`
	C            float64   `json:"c" db:"c"`
	Discriminant float64   `json:"discriminant" db:"discriminant"`
	Roots        []float64 `json:"roots" db:"roots"`
	Result       string    `json:"result" db:"result"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// NewSolution converts a solver result for storage.
func NewSolution(s quadratic.Solution) Solution {
	return Solution{
		ID:           uuid.New(),
		A:            s.A,
		B:            s.B,
		C:            s.C,
		Discriminant: s.Discriminant,
		Roots:        s.Roots,
		Result:       s.String(),
	}
}
