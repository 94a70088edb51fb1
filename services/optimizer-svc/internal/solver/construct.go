package solver

import (
	"context"
	"sort"
)

// =============================================================================
// Savings Construction
// =============================================================================
//
// The initial solution is built with a Clarke-Wright savings pass followed
// by best-fit vehicle assignment and cheapest insertion of the remainder:
//
//  1. Every delivery starts as a singleton chain. For each node pair the
//     saving s(i,j) = d(depot,i) + d(j,depot) - d(i,j) measures how much
//     distance merging their chains end-to-start removes. Pairs are merged
//     in descending saving order while the combined demand still fits the
//     largest vehicle.
//  2. Chains are assigned to concrete vehicles largest-demand first, each
//     to the vehicle that serves it at the lowest scaled distance among
//     those where the full constraint set holds.
//  3. Chains with no feasible vehicle are broken up and their nodes, along
//     with any leftovers, are inserted one by one at the cheapest feasible
//     position across all routes.
//
// Ties are broken by node index so construction is deterministic.
//
// References:
//   - Clarke, G. & Wright, J.W. (1964). "Scheduling of vehicles from a
//     central depot to a number of delivery points"
// =============================================================================

type saving struct {
	i, j  int
	value int64
}

// construct builds the initial assignment. ctx is checked between phases;
// cancellation returns the partial assignment and the context error.
func construct(ctx context.Context, m *model) (*assignment, error) {
	a := newAssignment(m)
	if len(m.nodes) == 0 || len(m.vehicles) == 0 {
		return a, nil
	}

	chains := mergeBySavings(m)

	if err := ctx.Err(); err != nil {
		return a, err
	}

	leftovers := assignChains(m, a, chains)

	if err := ctx.Err(); err != nil {
		return a, err
	}

	insertCheapest(m, a, leftovers)
	return a, nil
}

// mergeBySavings runs the Clarke-Wright pass and returns node chains.
func mergeBySavings(m *model) [][]int {
	n := len(m.nodes)

	// Наибольшая вместимость и предел остановок среди машин ограничивают слияния
	var maxCapacity int64
	maxStops := 0
	for i := range m.vehicles {
		if m.vehicles[i].capacity > maxCapacity {
			maxCapacity = m.vehicles[i].capacity
		}
		vStops := m.vehicles[i].maxStops
		if vStops == 0 {
			vStops = n
		}
		if vStops > maxStops {
			maxStops = vStops
		}
	}

	savings := make([]saving, 0, n*(n-1))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			li, lj := m.nodes[i].locIdx, m.nodes[j].locIdx
			s := m.dist[li][m.depotIdx] + m.dist[m.depotIdx][lj] - m.dist[li][lj]
			if s > 0 {
				savings = append(savings, saving{i: i, j: j, value: s})
			}
		}
	}
	sort.Slice(savings, func(x, y int) bool {
		if savings[x].value != savings[y].value {
			return savings[x].value > savings[y].value
		}
		if savings[x].i != savings[y].i {
			return savings[x].i < savings[y].i
		}
		return savings[x].j < savings[y].j
	})

	// chainOf[n] - идентификатор цепочки узла; цепочки сливаются
	// только концом к началу, узел внутри цепочки не трогается
	chainOf := make([]int, n)
	chains := make(map[int][]int, n)
	demand := make(map[int]int64, n)
	for i := 0; i < n; i++ {
		chainOf[i] = i
		chains[i] = []int{i}
		demand[i] = m.nodes[i].demand
	}

	for _, s := range savings {
		ci, cj := chainOf[s.i], chainOf[s.j]
		if ci == cj {
			continue
		}
		chainI, chainJ := chains[ci], chains[cj]
		// i должен завершать свою цепочку, j - начинать свою
		if chainI[len(chainI)-1] != s.i || chainJ[0] != s.j {
			continue
		}
		if demand[ci]+demand[cj] > maxCapacity {
			continue
		}
		if len(chainI)+len(chainJ) > maxStops {
			continue
		}

		merged := append(chainI, chainJ...)
		chains[ci] = merged
		demand[ci] += demand[cj]
		delete(chains, cj)
		delete(demand, cj)
		for _, nd := range chainJ {
			chainOf[nd] = ci
		}
	}

	out := make([][]int, 0, len(chains))
	keys := make([]int, 0, len(chains))
	for k := range chains {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		out = append(out, chains[k])
	}
	return out
}

// assignChains maps chains onto vehicles best-fit and returns the nodes
// that found no feasible vehicle.
func assignChains(m *model, a *assignment, chains [][]int) []int {
	// Крупные цепочки размещаем первыми
	sort.SliceStable(chains, func(x, y int) bool {
		return chainDemand(m, chains[x]) > chainDemand(m, chains[y])
	})

	var leftovers []int
	for _, chain := range chains {
		bestVehicle := -1
		var bestEval routeEval
		var bestDist int64

		for vi := range m.vehicles {
			if len(a.routes[vi]) != 0 {
				continue
			}
			ev, ok := m.evalRoute(&m.vehicles[vi], chain)
			if !ok {
				continue
			}
			if bestVehicle == -1 || ev.distScaled < bestDist {
				bestVehicle = vi
				bestEval = ev
				bestDist = ev.distScaled
			}
		}

		if bestVehicle == -1 {
			leftovers = append(leftovers, chain...)
			continue
		}

		a.routes[bestVehicle] = append([]int(nil), chain...)
		a.evals[bestVehicle] = bestEval
		for _, nd := range chain {
			a.unassigned[nd] = false
		}
	}

	return leftovers
}

func chainDemand(m *model, chain []int) int64 {
	var d int64
	for _, nd := range chain {
		d += m.nodes[nd].demand
	}
	return d
}

// insertCheapest places each node at the cheapest feasible position over
// all routes, including empty ones. Nodes that fit nowhere stay unassigned.
func insertCheapest(m *model, a *assignment, nodes []int) {
	// Высокий приоритет размещается первым
	sort.SliceStable(nodes, func(x, y int) bool {
		if m.nodes[nodes[x]].priority != m.nodes[nodes[y]].priority {
			return m.nodes[nodes[x]].priority > m.nodes[nodes[y]].priority
		}
		return nodes[x] < nodes[y]
	})

	for _, nd := range nodes {
		if !a.unassigned[nd] {
			continue
		}
		tryInsertNode(m, a, nd)
	}
}

// tryInsertNode inserts one node at its cheapest feasible position.
// Returns false if no route can take it.
func tryInsertNode(m *model, a *assignment, nd int) bool {
	bestVehicle, bestPos := -1, -1
	var bestEval routeEval
	var bestDelta int64

	for vi := range m.vehicles {
		route := a.routes[vi]
		base := a.evals[vi].distScaled
		for pos := 0; pos <= len(route); pos++ {
			candidate := insertAt(route, nd, pos)
			ev, ok := m.evalRoute(&m.vehicles[vi], candidate)
			if !ok {
				continue
			}
			delta := ev.distScaled - base
			if bestVehicle == -1 || delta < bestDelta {
				bestVehicle, bestPos = vi, pos
				bestEval = ev
				bestDelta = delta
			}
		}
	}

	if bestVehicle == -1 {
		return false
	}

	a.routes[bestVehicle] = insertAt(a.routes[bestVehicle], nd, bestPos)
	a.evals[bestVehicle] = bestEval
	a.unassigned[nd] = false
	return true
}

// insertAt returns a new slice with nd inserted at pos.
func insertAt(route []int, nd, pos int) []int {
	out := make([]int, 0, len(route)+1)
	out = append(out, route[:pos]...)
	out = append(out, nd)
	return append(out, route[pos:]...)
}
