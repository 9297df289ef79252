package dto

type Equation struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// SolveRequest with no equations solves the default batch.
type SolveRequest struct {
	Equations []Equation `json:"equations" binding:"omitempty,max=1000"`
}

type SolutionResponse struct {
	A            float64   `json:"a"`
	B            float64   `json:"b"`
	C            float64   `json:"c"`
	Discriminant float64   `json:"discriminant"`
	Roots        []float64 `json:"roots"`
	Result       string    `json:"result"`
}

type SolutionListResponse struct {
	Solutions []SolutionResponse `json:"solutions"`
	Total     int                `json:"total"`
}
