// Package quadratic solves a·x² + b·x + c = 0 over the reals.
package quadratic

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var ErrNotQuadratic = errors.New("coefficient a must be non-zero")

// Params are the coefficients of one equation.
type Params struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// Solution holds the real roots of an equation. With two roots,
// (-b-√Δ)/2a comes first.
type Solution struct {
	Params
	Discriminant float64   `json:"discriminant"`
	Roots        []float64 `json:"roots"`
}

// Solve returns the real roots of a·x² + b·x + c = 0.
func Solve(a, b, c float64) (Solution, error) {
	if a == 0 {
		return Solution{}, fmt.Errorf("solve %gx²+%gx+%g: %w", a, b, c, ErrNotQuadratic)
	}
	s := Solution{Params: Params{A: a, B: b, C: c}, Discriminant: b*b - 4*a*c}
	switch {
	case s.Discriminant < 0:
		s.Roots = []float64{}
	case s.Discriminant == 0:
		s.Roots = []float64{-b / (2 * a)}
	default:
		sq := math.Sqrt(s.Discriminant)
		s.Roots = []float64{(-b - sq) / (2 * a), (-b + sq) / (2 * a)}
	}
	return s, nil
}

// SolveAll solves each equation in order and stops at the first invalid one.
func SolveAll(params []Params) ([]Solution, error) {
	out := make([]Solution, 0, len(params))
	for i, p := range params {
		s, err := Solve(p.A, p.B, p.C)
		if err != nil {
			return out, fmt.Errorf("equation %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// DefaultParams is the batch solved when no coefficients are given:
// (1, n+1, n) for n = 1..10.
func DefaultParams() []Params {
	params := make([]Params, 0, 10)
	for n := 1; n <= 10; n++ {
		params = append(params, Params{A: 1, B: float64(n + 1), C: float64(n)})
	}
	return params
}

// String renders the result the way it is stored and displayed.
func (s Solution) String() string {
	switch len(s.Roots) {
	case 0:
		return "no real solution"
	case 1:
		return "one solution: x = " + formatRoot(s.Roots[0])
	default:
		return fmt.Sprintf("two solutions: x1 = %s, x2 = %s", formatRoot(s.Roots[0]), formatRoot(s.Roots[1]))
	}
}

func formatRoot(x float64) string {
	if x == 0 {
		x = 0 // normalise -0
	}
	return strconv.FormatFloat(x, 'g', -1, 64)
}
