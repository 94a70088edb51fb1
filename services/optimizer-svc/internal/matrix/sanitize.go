// Package matrix строит, кэширует и корректирует матрицы расстояний и
// времени для решателя маршрутов.
package matrix

import (
	"routeopt/pkg/domain"
)

// Sanitize возвращает копию матрицы, пригодную для решателя:
//   - не-числа и бесконечности заменяются на MaxSafeDistance;
//   - отрицательные значения: 0 на диагонали, иначе MaxSafeDistance;
//   - значения больше MaxSafeDistance урезаются до MaxSafeDistance;
//   - диагональ принудительно обнуляется.
//
// Операция идемпотентна: повторное применение ничего не меняет.
func Sanitize(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			switch {
			case i == j:
				out[i][j] = 0
			case !domain.IsFinite(v):
				out[i][j] = domain.MaxSafeDistance
			case v < 0:
				out[i][j] = domain.MaxSafeDistance
			case v > domain.MaxSafeDistance:
				out[i][j] = domain.MaxSafeDistance
			default:
				out[i][j] = v
			}
		}
	}
	return out
}

// IsSanitized проверяет, что матрица уже прошла санитизацию
func IsSanitized(m [][]float64) bool {
	for i, row := range m {
		for j, v := range row {
			if i == j && v != 0 {
				return false
			}
			if !domain.IsFinite(v) || v < 0 || v > domain.MaxSafeDistance {
				return false
			}
		}
	}
	return true
}
