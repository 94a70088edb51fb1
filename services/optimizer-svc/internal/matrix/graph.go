package matrix

import (
	"routeopt/pkg/domain"
	"routeopt/services/optimizer-svc/internal/pathfind"
)

// ToGraph превращает санитизированную матрицу в граф смежности для поиска
// кратчайших путей. Ячейки со значением MaxSafeDistance трактуются как
// отсутствие ребра и в граф не попадают.
func ToGraph(m [][]float64, ids []string) pathfind.Graph {
	g := make(pathfind.Graph, len(ids))
	for i, id := range ids {
		g[id] = make(map[string]float64)
		if i >= len(m) {
			continue
		}
		for j, w := range m[i] {
			if i == j || j >= len(ids) {
				continue
			}
			if w >= domain.MaxSafeDistance {
				continue
			}
			g[id][ids[j]] = w
		}
	}
	return g
}
