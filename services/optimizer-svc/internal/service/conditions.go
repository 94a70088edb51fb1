package service

import (
	"math/rand"
	"sync"
	"time"

	"routeopt/pkg/domain"
)

// ConditionsProvider поставляет внешние дорожные условия: пробки, погоду
// и перекрытия. Реального интеграционного источника нет, данные
// моделируются; в режиме testing генератор детерминирован.
type ConditionsProvider struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// testingSeed фиксирует генератор для воспроизводимых тестов
const testingSeed = 42

// maxRoadblocks ограничивает число смоделированных перекрытий
const maxRoadblocks = 3

// weatherImpact - множитель времени в пути по погоде в точке.
// Ясная и облачная погода движение не замедляют.
var weatherImpact = []struct {
	condition string
	factor    float64
}{
	{"clear", 1.0},
	{"cloudy", 1.0},
	{"rain", 1.2},
	{"snow", 1.5},
	{"thunderstorm", 1.8},
}

// NewConditionsProvider создаёт поставщика условий
func NewConditionsProvider(testing bool) *ConditionsProvider {
	seed := time.Now().UnixNano()
	if testing {
		seed = testingSeed
	}
	return &ConditionsProvider{rnd: rand.New(rand.NewSource(seed))}
}

// TrafficConditions моделирует суммарные дорожные условия для набора
// локаций: пробки, погоду и перекрытия. Погодный множитель сегмента -
// худший из двух его концов, он умножается на множитель пробок.
// Перекрытые сегменты получают максимальный множитель.
func (c *ConditionsProvider) TrafficConditions(locationIDs []string) *domain.TrafficData {
	c.mu.Lock()
	defer c.mu.Unlock()

	factors := c.trafficFactors(locationIDs)
	weather := c.weatherFactors(locationIDs)

	for i, from := range locationIDs {
		for j, to := range locationIDs {
			if i == j {
				continue
			}
			impact := domain.Max(weather[from], weather[to])
			if impact <= 1.0 {
				continue
			}
			key := from + ":" + to
			if f, ok := factors[key]; ok {
				factors[key] = f * impact
			} else {
				factors[key] = impact
			}
		}
	}

	for _, b := range c.roadblocks(locationIDs) {
		factors[b[0]+":"+b[1]] = domain.TrafficFactorMax
	}

	return &domain.TrafficData{Segments: factors}
}

// trafficFactors моделирует пробки: примерно треть сегментов получает
// множитель из [1.0, 2.0)
func (c *ConditionsProvider) trafficFactors(locationIDs []string) map[string]float64 {
	factors := make(map[string]float64)
	for i, from := range locationIDs {
		for j, to := range locationIDs {
			if i == j {
				continue
			}
			if c.rnd.Float64() > 0.3 {
				continue
			}
			factors[from+":"+to] = 1.0 + c.rnd.Float64()
		}
	}
	return factors
}

// weatherFactors разыгрывает погоду в каждой точке
func (c *ConditionsProvider) weatherFactors(locationIDs []string) map[string]float64 {
	impact := make(map[string]float64, len(locationIDs))
	for _, id := range locationIDs {
		impact[id] = weatherImpact[c.rnd.Intn(len(weatherImpact))].factor
	}
	return impact
}

// roadblocks моделирует перекрытия: около 5% сегментов, но не больше
// maxRoadblocks
func (c *ConditionsProvider) roadblocks(locationIDs []string) [][2]string {
	n := len(locationIDs)
	count := n * (n - 1) / 20
	if count > maxRoadblocks {
		count = maxRoadblocks
	}
	if n < 2 || count == 0 {
		return nil
	}

	blocks := make([][2]string, 0, count)
	for k := 0; k < count; k++ {
		from := c.rnd.Intn(n)
		to := c.rnd.Intn(n)
		if from == to {
			continue
		}
		blocks = append(blocks, [2]string{locationIDs[from], locationIDs[to]})
	}
	return blocks
}
