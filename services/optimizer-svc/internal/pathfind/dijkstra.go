// Package pathfind implements single-source shortest paths over the sparse
// adjacency graphs produced from sanitized distance matrices.
package pathfind

import (
	"container/heap"
	"context"
	"math"

	"routeopt/pkg/apperror"
)

// =============================================================================
// Dijkstra's Algorithm
// =============================================================================
//
// Label-setting shortest path over a non-negative-weight graph represented as
// node -> neighbor -> weight. Missing pairs mean "no direct edge".
//
// Time Complexity: O((V + E) log V) with binary heap
// Space Complexity: O(V)
//
// Important:
//   - Negative edge weights are rejected up front with an INVALID_GRAPH error;
//     there is no Bellman-Ford fallback because matrix sanitization guarantees
//     non-negative entries and a negative weight indicates a bug upstream.
//   - Ties are broken by node ID for deterministic results.
// =============================================================================

// Graph is an adjacency mapping: node -> neighbor -> non-negative weight.
type Graph map[string]map[string]float64

// Result holds a single shortest-path answer.
type Result struct {
	// Path is the ordered node list from src to dst, nil when unreachable.
	Path []string
	// Distance is the total path weight, +Inf when unreachable.
	Distance float64
}

type pqItem struct {
	node     string
	distance float64
	index    int
}

// priorityQueue is a min-heap on distance with tie-breaking by node ID.
type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].distance != pq[j].distance {
		return pq[i].distance < pq[j].distance
	}
	return pq[i].node < pq[j].node
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}

// validate scans all edges once and rejects negative weights.
func validate(g Graph) error {
	for from, neighbors := range g {
		for to, w := range neighbors {
			if w < 0 {
				return apperror.New(apperror.CodeNegativeWeight,
					"graph contains a negative edge weight").
					WithDetails("from", from).
					WithDetails("to", to).
					WithDetails("weight", w)
			}
		}
	}
	return nil
}

// ShortestPath returns the minimum-distance path from src to dst and its
// total weight. An unreachable dst (or an endpoint missing from the graph)
// yields (nil, +Inf, nil); callers substitute a sentinel segment.
func ShortestPath(ctx context.Context, g Graph, src, dst string) ([]string, float64, error) {
	if err := validate(g); err != nil {
		return nil, 0, err
	}
	return shortestPathUnchecked(ctx, g, src, dst)
}

// shortestPathUnchecked assumes the graph was already validated.
func shortestPathUnchecked(ctx context.Context, g Graph, src, dst string) ([]string, float64, error) {
	if _, ok := g[src]; !ok {
		return nil, math.Inf(1), nil
	}
	if src == dst {
		return []string{src}, 0, nil
	}

	dist := map[string]float64{src: 0}
	parent := make(map[string]string)
	done := make(map[string]bool)

	pq := priorityQueue{}
	heap.Init(&pq)
	heap.Push(&pq, &pqItem{node: src, distance: 0})

	const checkInterval = 100
	iterations := 0

	for pq.Len() > 0 {
		if iterations%checkInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			default:
			}
		}
		iterations++

		item := heap.Pop(&pq).(*pqItem)
		if done[item.node] {
			continue // stale entry
		}
		done[item.node] = true

		if item.node == dst {
			return reconstruct(parent, src, dst), item.distance, nil
		}

		for neighbor, weight := range g[item.node] {
			if done[neighbor] {
				continue
			}
			candidate := item.distance + weight
			if current, ok := dist[neighbor]; !ok || candidate < current {
				dist[neighbor] = candidate
				parent[neighbor] = item.node
				heap.Push(&pq, &pqItem{node: neighbor, distance: candidate})
			}
		}
	}

	return nil, math.Inf(1), nil
}

// AllPairs computes shortest paths for every ordered pair of the given nodes.
// A self pair yields ([node], 0); an unreachable pair yields (nil, +Inf).
func AllPairs(ctx context.Context, g Graph, nodes []string) (map[string]map[string]Result, error) {
	if err := validate(g); err != nil {
		return nil, err
	}

	results := make(map[string]map[string]Result, len(nodes))
	for _, from := range nodes {
		results[from] = make(map[string]Result, len(nodes))
		for _, to := range nodes {
			if from == to {
				results[from][to] = Result{Path: []string{from}, Distance: 0}
				continue
			}
			path, d, err := shortestPathUnchecked(ctx, g, from, to)
			if err != nil {
				return nil, err
			}
			results[from][to] = Result{Path: path, Distance: d}
		}
	}
	return results, nil
}

func reconstruct(parent map[string]string, src, dst string) []string {
	path := []string{dst}
	for current := dst; current != src; {
		p, ok := parent[current]
		if !ok {
			return nil
		}
		path = append(path, p)
		current = p
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
