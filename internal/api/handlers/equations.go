package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/vca/internal/models"
	"github.com/your-org/vca/internal/quadratic"
	"github.com/your-org/vca/pkg/dto"
)

type EquationHandler struct {
	db SolutionStore
}

// NewEquationHandler builds the solver endpoints. db may be nil, in which
// case results are returned but not stored.
func NewEquationHandler(db SolutionStore) *EquationHandler {
	return &EquationHandler{db: db}
}

func (h *EquationHandler) Solve(c *gin.Context) {
	var req dto.SolveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	params := quadratic.DefaultParams()
	if len(req.Equations) > 0 {
		params = make([]quadratic.Params, 0, len(req.Equations))
		for _, eq := range req.Equations {
			params = append(params, quadratic.Params{A: eq.A, B: eq.B, C: eq.C})
		}
	}

	solved, err := quadratic.SolveAll(params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, quadratic.ErrNotQuadratic) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	stored := make([]models.Solution, 0, len(solved))
	for _, s := range solved {
		stored = append(stored, models.NewSolution(s))
	}
	if h.db != nil {
		if err := h.db.ReplaceSolutions(c.Request.Context(), stored); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, solutionList(stored))
}

func (h *EquationHandler) List(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}
	solutions, err := h.db.ListSolutions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, solutionList(solutions))
}

func solutionList(solutions []models.Solution) dto.SolutionListResponse {
	resp := dto.SolutionListResponse{Solutions: make([]dto.SolutionResponse, 0, len(solutions))}
	for _, s := range solutions {
		roots := s.Roots
		if roots == nil {
			roots = []float64{}
		}
		resp.Solutions = append(resp.Solutions, dto.SolutionResponse{
			A:            s.A,
			B:            s.B,
			C:            s.C,
			Discriminant: s.Discriminant,
			Roots:        roots,
			Result:       s.Result,
		})
	}
	resp.Total = len(resp.Solutions)
	return resp
}
