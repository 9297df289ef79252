package traffic

import "sort"

// Transition is an (entry zone, exit zone) pair.
type Transition struct {
	Entry string `json:"entry"`
	Exit  string `json:"exit"`
}

// TransitionCount is one row of a matrix.
type TransitionCount struct {
	Transition
	Count int `json:"count"`
}

// Matrix counts distinct identities per transition. Pairs never observed are absent.
type Matrix map[Transition]int

// Aggregate folds trajectories into a matrix. Records missing either zone are skipped.
func Aggregate(trajectories []IdentifiedTrajectory) Matrix {
	m := make(Matrix)
	for _, tr := range trajectories {
		if tr.EntryZone == "" || tr.ExitZone == "" {
			continue
		}
		m[Transition{Entry: tr.EntryZone, Exit: tr.ExitZone}]++
	}
	return m
}

// Count returns the number of identities for a pair, zero when absent.
func (m Matrix) Count(entry, exit string) int {
	return m[Transition{Entry: entry, Exit: exit}]
}

// Total returns the sum of all pair counts.
func (m Matrix) Total() int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}

// Rows returns the pairs sorted by entry then exit.
func (m Matrix) Rows() []TransitionCount {
	rows := make([]TransitionCount, 0, len(m))
	for tr, n := range m {
		rows = append(rows, TransitionCount{Transition: tr, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Entry != rows[j].Entry {
			return rows[i].Entry < rows[j].Entry
		}
		return rows[i].Exit < rows[j].Exit
	})
	return rows
}

// Zones returns the sorted set of zone names appearing as an entry or an exit.
func (m Matrix) Zones() []string {
	set := make(map[string]struct{})
	for tr := range m {
		set[tr.Entry] = struct{}{}
		set[tr.Exit] = struct{}{}
	}
	zones := make([]string, 0, len(set))
	for z := range set {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return zones
}

// FromRows rebuilds a matrix from stored rows.
func FromRows(rows []TransitionCount) Matrix {
	m := make(Matrix, len(rows))
	for _, r := range rows {
		if r.Count > 0 {
			m[r.Transition] += r.Count
		}
	}
	return m
}
