package quadratic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolve(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c float64
		disc    float64
		roots   []float64
		text    string
	}{
		{"double root", 1, 2, 1, 0, []float64{-1}, "one solution: x = -1"},
		{"two roots", 1, 3, 2, 1, []float64{-2, -1}, "two solutions: x1 = -2, x2 = -1"},
		{"no real root", 1, 0, 1, -4, []float64{}, "no real solution"},
		{"negative a keeps formula order", -1, 0, 4, 16, []float64{2, -2}, "two solutions: x1 = 2, x2 = -2"},
		{"zero root", 1, -1, 0, 1, []float64{0, 1}, "two solutions: x1 = 0, x2 = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Solve(tt.a, tt.b, tt.c)
			require.NoError(t, err)
			assert.Equal(t, tt.disc, s.Discriminant)
			assert.InDeltaSlice(t, tt.roots, s.Roots, 1e-12)
			assert.Len(t, s.Roots, len(tt.roots))
			assert.Equal(t, tt.text, s.String())
		})
	}
}

func TestSolveRejectsLinear(t *testing.T) {
	_, err := Solve(0, 2, 1)
	assert.ErrorIs(t, err, ErrNotQuadratic)
}

func TestSolveAllDefaultBatch(t *testing.T) {
	params := DefaultParams()
	require.Len(t, params, 10)
	assert.Equal(t, Params{A: 1, B: 2, C: 1}, params[0])
	assert.Equal(t, Params{A: 1, B: 11, C: 10}, params[9])

	solutions, err := SolveAll(params)
	require.NoError(t, err)
	require.Len(t, solutions, 10)

	// (1, n+1, n) factors as (x+1)(x+n)
	assert.Equal(t, []float64{-1}, solutions[0].Roots)
	for n := 2; n <= 10; n++ {
		s := solutions[n-1]
		assert.InDeltaSlice(t, []float64{-float64(n), -1}, s.Roots, 1e-9, "n=%d", n)
	}
}

func TestSolveAllStopsAtInvalid(t *testing.T) {
	solutions, err := SolveAll([]Params{{A: 1, B: 2, C: 1}, {A: 0, B: 1}, {A: 1}})
	assert.ErrorIs(t, err, ErrNotQuadratic)
	assert.ErrorContains(t, err, "equation 1")
	assert.Len(t, solutions, 1)
}
