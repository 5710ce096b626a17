package cad

import (
	"sort"

	"github.com/polyrat/nra/pkg/nra/poly"
)

// MISPolicy selects the minimal-infeasible-subset extraction heuristic
// run over a Core's conflict graph once every full-depth sample has
// falsified some constraint.
type MISPolicy int

const (
	Trivial MISPolicy = iota
	Greedy
	GreedyPre
	Hybrid
	GreedyWeighted
	HybridWeighted
)

// conflictGraph is the bipartite incidence structure of spec: rows are
// constraints, columns are failing samples; entry (c, s) is set iff
// sample s falsifies constraint c.
type conflictGraph struct {
	constraints []*poly.Constraint
	byID        map[poly.ID]*poly.Constraint
	columns     map[poly.ID]map[SampleID]bool // constraint id -> falsifying samples
}

func newConflictGraph(constraints []*poly.Constraint) *conflictGraph {
	byID := map[poly.ID]*poly.Constraint{}
	columns := map[poly.ID]map[SampleID]bool{}
	for _, c := range constraints {
		byID[c.Poly.ID()] = c
		columns[c.Poly.ID()] = map[SampleID]bool{}
	}
	return &conflictGraph{constraints: constraints, byID: byID, columns: columns}
}

func (g *conflictGraph) markFailing(c *poly.Constraint, sample SampleID) {
	g.columns[c.Poly.ID()][sample] = true
}

// allColumns returns the union of every failing-sample column across
// all rows, used as the universe a set-cover policy must hit.
func (g *conflictGraph) allColumns() map[SampleID]bool {
	universe := map[SampleID]bool{}
	for _, cols := range g.columns {
		for s := range cols {
			universe[s] = true
		}
	}
	return universe
}

// extractMIS runs policy over the graph and returns the selected
// constraint subset, in ascending id order. If the graph recorded no
// conflicts at all it returns every constraint, or nil when there are
// none.
func (g *conflictGraph) extractMIS(policy MISPolicy) []*poly.Constraint {
	universe := g.allColumns()
	if len(universe) == 0 {
		if len(g.constraints) == 0 {
			return nil
		}
		return sortedByID(g.constraints)
	}
	switch policy {
	case Trivial:
		return sortedByID(g.constraints)
	case Greedy:
		return sortedByID(g.greedyCover(universe, nil))
	case GreedyPre:
		return sortedByID(g.greedyPreCover(universe))
	case Hybrid:
		return sortedByID(g.hybridCover(universe, nil))
	case GreedyWeighted:
		return sortedByID(g.greedyCover(universe, g.weight))
	case HybridWeighted:
		return sortedByID(g.hybridCover(universe, g.weight))
	}
	return sortedByID(g.constraints)
}

func sortedByID(cs []*poly.Constraint) []*poly.Constraint {
	out := append([]*poly.Constraint{}, cs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Poly.ID() < out[j].Poly.ID() })
	return out
}

func (g *conflictGraph) weight(id poly.ID) float64 {
	c := g.byID[id]
	complexity := float64(c.Poly.Degree())
	activity := float64(len(g.columns[id]))
	return 1 + 0.5*complexity + 10/(1+activity)
}

// greedyCover repeatedly picks the row covering the most uncovered
// columns (or, with a weight function, the best coverage/weight ratio),
// breaking ties by smaller constraint id.
func (g *conflictGraph) greedyCover(universe map[SampleID]bool, weight func(poly.ID) float64) []*poly.Constraint {
	remaining := map[SampleID]bool{}
	for s := range universe {
		remaining[s] = true
	}
	var picked []*poly.Constraint
	pickedID := map[poly.ID]bool{}
	for len(remaining) > 0 {
		id, found := g.greedyStep(remaining, pickedID, weight)
		if !found {
			break // remaining columns are uncoverable by this constraint set
		}
		picked = append(picked, g.byID[id])
		pickedID[id] = true
		for s := range g.columns[id] {
			delete(remaining, s)
		}
	}
	return picked
}

// greedyStep picks the single best not-yet-excluded row to add next
// under weight (the most uncovered-column coverage, or best
// coverage/weight ratio), breaking ties by smaller constraint id.
// found is false once every remaining row covers nothing left in
// remaining.
func (g *conflictGraph) greedyStep(remaining map[SampleID]bool, excluded map[poly.ID]bool, weight func(poly.ID) float64) (poly.ID, bool) {
	ids := make([]poly.ID, 0, len(g.columns))
	for id := range g.columns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	bestID := poly.ID(0)
	bestScore := -1.0
	found := false
	for _, id := range ids {
		if excluded[id] {
			continue
		}
		coverage := 0
		for s := range g.columns[id] {
			if remaining[s] {
				coverage++
			}
		}
		if coverage == 0 {
			continue
		}
		score := float64(coverage)
		if weight != nil {
			score = float64(coverage) / weight(id)
		}
		if !found || score > bestScore {
			bestScore, bestID, found = score, id, true
		}
	}
	return bestID, found
}

// usefulRowCount counts rows not in excluded that still cover some
// column still in remaining.
func (g *conflictGraph) usefulRowCount(remaining map[SampleID]bool, excluded map[poly.ID]bool) int {
	n := 0
	for id, cols := range g.columns {
		if excluded[id] {
			continue
		}
		for s := range cols {
			if remaining[s] {
				n++
				break
			}
		}
	}
	return n
}

// greedyPreCover first selects every "essential" row — one that
// uniquely covers some column no other row covers — before falling back
// to greedyCover on what's left.
func (g *conflictGraph) greedyPreCover(universe map[SampleID]bool) []*poly.Constraint {
	coverCount := map[SampleID]int{}
	for s := range universe {
		for id := range g.columns {
			if g.columns[id][s] {
				coverCount[s]++
			}
		}
	}
	essential := map[poly.ID]bool{}
	ids := make([]poly.ID, 0, len(g.columns))
	for id := range g.columns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	remaining := map[SampleID]bool{}
	for s := range universe {
		remaining[s] = true
	}
	var picked []*poly.Constraint
	for _, id := range ids {
		for s := range g.columns[id] {
			if remaining[s] && coverCount[s] == 1 {
				essential[id] = true
			}
		}
	}
	for _, id := range ids {
		if essential[id] {
			picked = append(picked, g.byID[id])
			for s := range g.columns[id] {
				delete(remaining, s)
			}
		}
	}
	if len(remaining) == 0 {
		return picked
	}
	rest := g.greedyCoverExcluding(remaining, essential, nil)
	return append(picked, rest...)
}

func (g *conflictGraph) greedyCoverExcluding(remaining map[SampleID]bool, exclude map[poly.ID]bool, weight func(poly.ID) float64) []*poly.Constraint {
	sub := &conflictGraph{constraints: g.constraints, byID: g.byID, columns: map[poly.ID]map[SampleID]bool{}}
	for id, cols := range g.columns {
		if exclude[id] {
			continue
		}
		sub.columns[id] = cols
	}
	return sub.greedyCover(remaining, weight)
}

// hybridCover greedily residualizes the instance, one row at a time,
// until at most 6 rows still useful against what's left uncovered
// remain, then brute-forces an exhaustive minimum-cardinality cover over
// that small residual: the exhaustive step always runs, rather than
// being skipped in favor of pure greedy whenever the instance starts
// out with more than 6 useful rows, which is what makes HYBRID minimal
// regardless of how many constraints conflict.
func (g *conflictGraph) hybridCover(universe map[SampleID]bool, weight func(poly.ID) float64) []*poly.Constraint {
	remaining := map[SampleID]bool{}
	for s := range universe {
		remaining[s] = true
	}
	var picked []*poly.Constraint
	pickedID := map[poly.ID]bool{}
	for g.usefulRowCount(remaining, pickedID) > 6 {
		id, found := g.greedyStep(remaining, pickedID, weight)
		if !found {
			break
		}
		picked = append(picked, g.byID[id])
		pickedID[id] = true
		for s := range g.columns[id] {
			delete(remaining, s)
		}
	}
	var candidateIDs []poly.ID
	for id, cols := range g.columns {
		if pickedID[id] {
			continue
		}
		for s := range cols {
			if remaining[s] {
				candidateIDs = append(candidateIDs, id)
				break
			}
		}
	}
	rest := g.exhaustiveMinCover(remaining, candidateIDs)
	return append(picked, rest...)
}

// exhaustiveMinCover brute-forces the minimum-cardinality subset of
// candidateIDs whose union of columns equals universe, tie-broken by
// the lexicographically smallest sorted id list.
func (g *conflictGraph) exhaustiveMinCover(universe map[SampleID]bool, candidateIDs []poly.ID) []*poly.Constraint {
	sort.Slice(candidateIDs, func(i, j int) bool { return candidateIDs[i] < candidateIDs[j] })
	n := len(candidateIDs)
	var best []poly.ID
	for mask := 1; mask < (1 << uint(n)); mask++ {
		covered := map[SampleID]bool{}
		var subset []poly.ID
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) != 0 {
				id := candidateIDs[i]
				subset = append(subset, id)
				for s := range g.columns[id] {
					covered[s] = true
				}
			}
		}
		full := true
		for s := range universe {
			if !covered[s] {
				full = false
				break
			}
		}
		if !full {
			continue
		}
		if best == nil || len(subset) < len(best) {
			best = subset
		}
	}
	out := make([]*poly.Constraint, 0, len(best))
	for _, id := range best {
		out = append(out, g.byID[id])
	}
	return out
}
