package solver

import (
	"context"
	"time"
)

// =============================================================================
// Guided Local Search Improvement
// =============================================================================
//
// The improvement phase runs relocate, swap and 2-opt moves to a local
// optimum, then escapes it the GLS way: the arc with the highest utility
// (cost divided by one plus its penalty count) gets its penalty bumped, and
// the search continues on the augmented objective
//
//	augmented = objective + lambda * Σ penalty(arc) over arcs in use
//
// The best assignment seen under the TRUE objective is kept and returned.
// Between penalty bumps the search also retries dropped nodes, so a
// disjunction taken during construction can be undone later.
//
// The loop is bounded by the time limit and the context; both are checked
// every sweep so a cancelled solve returns promptly with the best found.
//
// References:
//   - Voudouris, C. & Tsang, E. (1999). "Guided local search and its
//     application to the traveling salesman problem"
// =============================================================================

// glsLambda weighs arc penalties against scaled distance.
const glsLambda = 20

// maxStagnation bounds penalty phases without a new best solution, so the
// search terminates deterministically on small instances instead of
// spinning on the deadline.
const maxStagnation = 50

// improver carries the search state over one Solve call.
type improver struct {
	m        *model
	deadline time.Time

	// penalties counts how often an arc was penalized, keyed by the
	// location-index pair packed into one int.
	penalties map[int]int64

	iterations int
}

func (im *improver) arcKey(from, to int) int {
	return from*len(im.m.dist) + to
}

func (im *improver) expired() bool {
	return !im.deadline.IsZero() && time.Now().After(im.deadline)
}

// improve runs GLS until the deadline or ctx fires. Returns the best
// assignment found and the number of sweeps executed.
func improve(ctx context.Context, m *model, start *assignment, deadline time.Time) (*assignment, int) {
	im := &improver{
		m:         m,
		deadline:  deadline,
		penalties: make(map[int]int64),
	}

	best := start.clone()
	bestCost := m.objective(best)
	current := start.clone()
	stagnation := 0

	for {
		if ctx.Err() != nil || im.expired() {
			break
		}
		im.iterations++

		improved := im.sweep(current)

		// Брошенные узлы пробуем вернуть после каждого прохода
		for ni, dropped := range current.unassigned {
			if dropped && tryInsertNode(m, current, ni) {
				improved = true
			}
		}
		if im.replaceDroppedPass(current) {
			improved = true
		}

		if cost := m.objective(current); cost < bestCost {
			best = current.clone()
			bestCost = cost
			stagnation = 0
		} else {
			stagnation++
			if stagnation > maxStagnation {
				break
			}
		}

		if !improved {
			// Локальный оптимум: штрафуем самую "полезную" дугу
			if !im.penalizeWorstArc(current) {
				break
			}
		}
	}

	return best, im.iterations
}

// sweep applies the first improving move found per operator pass.
// Returns true when at least one move was taken.
func (im *improver) sweep(a *assignment) bool {
	improved := false
	if im.relocatePass(a) {
		improved = true
	}
	if im.swapPass(a) {
		improved = true
	}
	if im.twoOptPass(a) {
		improved = true
	}
	return improved
}

// augmented is the GLS objective: true cost plus penalty terms of the
// arcs the assignment uses.
func (im *improver) augmented(a *assignment) int64 {
	cost := im.m.objective(a)
	if len(im.penalties) == 0 {
		return cost
	}

	for vi, route := range a.routes {
		if len(route) == 0 {
			continue
		}
		prev := im.m.vehicles[vi].startIdx
		for _, ni := range route {
			loc := im.m.nodes[ni].locIdx
			cost += glsLambda * im.penalties[im.arcKey(prev, loc)]
			prev = loc
		}
		cost += glsLambda * im.penalties[im.arcKey(prev, im.m.vehicles[vi].endIdx)]
	}
	return cost
}

// relocatePass moves single nodes between positions and routes.
func (im *improver) relocatePass(a *assignment) bool {
	base := im.augmented(a)
	improved := false

	for fromV := range a.routes {
		route := a.routes[fromV]
		for pos := 0; pos < len(route); pos++ {
			nd := route[pos]
			removed := removeAt(route, pos)
			removedEval, ok := im.m.evalRoute(&im.m.vehicles[fromV], removed)
			if !ok {
				continue
			}

			if im.tryRelocate(a, fromV, nd, removed, removedEval, base) {
				improved = true
				base = im.augmented(a)
				route = a.routes[fromV]
				pos = -1 // маршрут изменился, проходим заново
			}
		}
	}
	return improved
}

// tryRelocate attempts every target position for nd given its source route
// with the node already removed. Applies the first strictly better move.
func (im *improver) tryRelocate(a *assignment, fromV, nd int, removed []int, removedEval routeEval, base int64) bool {
	origRoute, origEval := a.routes[fromV], a.evals[fromV]

	for toV := range a.routes {
		origTarget, origTargetEval := a.routes[toV], a.evals[toV]
		target := origTarget
		if toV == fromV {
			target = removed
		}
		for pos := 0; pos <= len(target); pos++ {
			candidate := insertAt(target, nd, pos)
			ev, ok := im.m.evalRoute(&im.m.vehicles[toV], candidate)
			if !ok {
				continue
			}

			a.routes[fromV], a.evals[fromV] = removed, removedEval
			a.routes[toV], a.evals[toV] = candidate, ev

			if im.augmented(a) < base {
				return true
			}

			// Откат
			a.routes[fromV], a.evals[fromV] = origRoute, origEval
			a.routes[toV], a.evals[toV] = origTarget, origTargetEval
		}
	}
	return false
}

// swapPass exchanges node pairs across routes.
func (im *improver) swapPass(a *assignment) bool {
	base := im.augmented(a)
	improved := false

	for v1 := range a.routes {
		for p1 := 0; p1 < len(a.routes[v1]); p1++ {
			for v2 := v1; v2 < len(a.routes); v2++ {
				p2start := 0
				if v2 == v1 {
					p2start = p1 + 1
				}
				for p2 := p2start; p2 < len(a.routes[v2]); p2++ {
					if im.trySwap(a, v1, p1, v2, p2, base) {
						improved = true
						base = im.augmented(a)
					}
				}
			}
		}
	}
	return improved
}

func (im *improver) trySwap(a *assignment, v1, p1, v2, p2 int, base int64) bool {
	r1 := append([]int(nil), a.routes[v1]...)
	var r2 []int
	if v2 == v1 {
		r2 = r1
	} else {
		r2 = append([]int(nil), a.routes[v2]...)
	}
	r1[p1], r2[p2] = r2[p2], r1[p1]

	ev1, ok := im.m.evalRoute(&im.m.vehicles[v1], r1)
	if !ok {
		return false
	}
	ev2 := ev1
	if v2 != v1 {
		ev2, ok = im.m.evalRoute(&im.m.vehicles[v2], r2)
		if !ok {
			return false
		}
	}

	origR1, origE1 := a.routes[v1], a.evals[v1]
	origR2, origE2 := a.routes[v2], a.evals[v2]

	a.routes[v1], a.evals[v1] = r1, ev1
	a.routes[v2], a.evals[v2] = r2, ev2

	if im.augmented(a) < base {
		return true
	}

	a.routes[v1], a.evals[v1] = origR1, origE1
	a.routes[v2], a.evals[v2] = origR2, origE2
	return false
}

// twoOptPass reverses intra-route segments.
func (im *improver) twoOptPass(a *assignment) bool {
	improved := false

	for vi := range a.routes {
		route := a.routes[vi]
		if len(route) < 3 {
			continue
		}
		base := im.augmented(a)

		for i := 0; i < len(route)-1; i++ {
			for j := i + 1; j < len(route); j++ {
				candidate := append([]int(nil), route...)
				reverse(candidate[i : j+1])

				ev, ok := im.m.evalRoute(&im.m.vehicles[vi], candidate)
				if !ok {
					continue
				}

				origRoute, origEval := a.routes[vi], a.evals[vi]
				a.routes[vi], a.evals[vi] = candidate, ev

				if im.augmented(a) < base {
					improved = true
					base = im.augmented(a)
					route = candidate
				} else {
					a.routes[vi], a.evals[vi] = origRoute, origEval
				}
			}
		}
	}
	return improved
}

// replaceDroppedPass tries to serve a dropped node by displacing an
// assigned one. Profitable when the dropped node carries the higher drop
// penalty; the displaced node may later be reinserted elsewhere.
func (im *improver) replaceDroppedPass(a *assignment) bool {
	improved := false

	for ni, dropped := range a.unassigned {
		if !dropped {
			continue
		}
		base := im.augmented(a)

		for vi := range a.routes {
			route := a.routes[vi]
			done := false
			for pos := 0; pos < len(route) && !done; pos++ {
				victim := route[pos]
				candidate := append([]int(nil), route...)
				candidate[pos] = ni

				ev, ok := im.m.evalRoute(&im.m.vehicles[vi], candidate)
				if !ok {
					continue
				}

				origRoute, origEval := a.routes[vi], a.evals[vi]
				a.routes[vi], a.evals[vi] = candidate, ev
				a.unassigned[ni] = false
				a.unassigned[victim] = true

				if im.augmented(a) < base {
					improved = true
					done = true
					// Вытесненный узел пробуем вернуть в другое место
					tryInsertNode(im.m, a, victim)
					break
				}

				a.routes[vi], a.evals[vi] = origRoute, origEval
				a.unassigned[ni] = true
				a.unassigned[victim] = false
			}
			if done {
				break
			}
		}
	}

	return improved
}

// penalizeWorstArc bumps the penalty of the highest-utility arc in use.
// Returns false when no route carries any arc (nothing to diversify).
func (im *improver) penalizeWorstArc(a *assignment) bool {
	bestKey := -1
	var bestUtility float64

	for vi, route := range a.routes {
		if len(route) == 0 {
			continue
		}
		prev := im.m.vehicles[vi].startIdx
		walk := func(loc int) {
			key := im.arcKey(prev, loc)
			cost := float64(im.m.dist[prev][loc])
			utility := cost / float64(1+im.penalties[key])
			if bestKey == -1 || utility > bestUtility {
				bestKey = key
				bestUtility = utility
			}
			prev = loc
		}
		for _, ni := range route {
			walk(im.m.nodes[ni].locIdx)
		}
		walk(im.m.vehicles[vi].endIdx)
	}

	if bestKey == -1 {
		return false
	}
	im.penalties[bestKey]++
	return true
}

func removeAt(route []int, pos int) []int {
	out := make([]int, 0, len(route)-1)
	out = append(out, route[:pos]...)
	return append(out, route[pos+1:]...)
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
