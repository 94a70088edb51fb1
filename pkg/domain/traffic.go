package domain

import (
	"fmt"
	"strings"
)

// IndexPair упорядоченная пара индексов матрицы
type IndexPair struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// TrafficPair множитель трафика для пары локаций, заданной по ID
type TrafficPair struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Factor float64 `json:"factor"`
}

// TrafficData принимается в двух формах: список пар локаций либо карта
// сегментов "id_a:id_b" -> множитель. Обе нормализуются к парам индексов.
type TrafficData struct {
	LocationPairs []TrafficPair      `json:"location_pairs,omitempty"`
	Segments      map[string]float64 `json:"segments,omitempty"`
}

// IsEmpty проверяет, есть ли в данных хоть один множитель
func (t *TrafficData) IsEmpty() bool {
	return t == nil || (len(t.LocationPairs) == 0 && len(t.Segments) == 0)
}

// Normalize приводит данные трафика к карте пар индексов матрицы.
// Пары с неизвестными ID пропускаются с ошибкой в результате.
func (t *TrafficData) Normalize(ids []string) (map[IndexPair]float64, error) {
	factors := make(map[IndexPair]float64)
	if t.IsEmpty() {
		return factors, nil
	}

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	for _, p := range t.LocationPairs {
		from, okFrom := index[p.From]
		to, okTo := index[p.To]
		if !okFrom || !okTo {
			return nil, fmt.Errorf("traffic pair references unknown location %q -> %q", p.From, p.To)
		}
		factors[IndexPair{From: from, To: to}] = p.Factor
	}

	for key, factor := range t.Segments {
		parts := strings.SplitN(key, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed traffic segment key %q", key)
		}
		from, okFrom := index[parts[0]]
		to, okTo := index[parts[1]]
		if !okFrom || !okTo {
			return nil, fmt.Errorf("traffic segment references unknown location %q", key)
		}
		factors[IndexPair{From: from, To: to}] = factor
	}

	return factors, nil
}
