package matrix

import (
	"routeopt/pkg/domain"
)

// ApplyTraffic возвращает новую матрицу с применёнными множителями трафика.
// Множитель ограничивается диапазоном [TrafficFactorMin, TrafficFactorMax]:
// трафик не ускоряет движение и один сегмент не может доминировать.
// Исходная матрица не мутируется; пустые множители дают равную матрицу.
func ApplyTraffic(m [][]float64, factors map[domain.IndexPair]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}

	for pair, factor := range factors {
		if pair.From < 0 || pair.From >= len(out) {
			continue
		}
		row := out[pair.From]
		if pair.To < 0 || pair.To >= len(row) {
			continue
		}

		clamped := domain.Clamp(factor, domain.TrafficFactorMin, domain.TrafficFactorMax)
		v := row[pair.To] * clamped
		if v > domain.MaxSafeDistance {
			v = domain.MaxSafeDistance
		}
		row[pair.To] = v
	}

	return out
}

// BlockSegments помечает перекрытые сегменты сентинелом MaxSafeDistance в
// обоих направлениях. Возвращает новую матрицу.
func BlockSegments(m [][]float64, segments []domain.IndexPair) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}

	for _, seg := range segments {
		if seg.From < 0 || seg.From >= len(out) || seg.To < 0 || seg.To >= len(out) {
			continue
		}
		if seg.From == seg.To {
			continue
		}
		out[seg.From][seg.To] = domain.MaxSafeDistance
		out[seg.To][seg.From] = domain.MaxSafeDistance
	}

	return out
}
