package solver

import (
	"math"

	"routeopt/pkg/apperror"
	"routeopt/pkg/domain"
)

// =============================================================================
// Routing Model
// =============================================================================
//
// The model converts a float-valued routing problem into an integer-scaled
// form the search operates on. Distances (km) and times (minutes) are
// multiplied by their scaling factors and rounded, so all route arithmetic
// is exact int64 math and results are reproducible across runs.
//
// Nodes are deliveries, not locations: two deliveries at the same location
// become two nodes sharing a matrix index. Vehicles carry their own start
// and end indices, resolved from StartLocationID/EndLocationID with the
// depot as the default.
// =============================================================================

// node is one delivery in the scaled model.
type node struct {
	deliveryID string
	locIdx     int
	demand     int64
	priority   int
	skills     []string

	// serviceScaled is the on-site service time, scaled.
	serviceScaled int64

	// Scaled time window bounds; hasWindow guards both.
	hasWindow        bool
	winStart, winEnd int64
}

// dropPenalty is the objective cost of leaving the node unserved.
func (n *node) dropPenalty(base int64) int64 {
	return int64(n.priority) * base
}

// vehicleInfo is one available vehicle in the scaled model.
type vehicleInfo struct {
	id        string
	capacity  int64
	startIdx  int
	endIdx    int
	costPerKm float64
	fixedCost float64

	// maxDistScaled bounds the scaled route distance, always finite.
	maxDistScaled int64
	// maxStops bounds the number of served nodes; 0 = unbounded.
	maxStops int

	skills map[string]bool
}

func (v *vehicleInfo) hasSkills(required []string) bool {
	for _, r := range required {
		if !v.skills[r] {
			return false
		}
	}
	return true
}

// model is the fully scaled problem instance.
type model struct {
	nodes    []node
	vehicles []vehicleInfo

	// dist and time are scaled square matrices over location indices.
	dist [][]int64
	time [][]int64

	depotIdx    int
	timeWindows bool

	// maxTimeScaled bounds the scaled route duration for VRPTW.
	maxTimeScaled int64

	spanCoeff       int64
	dropPenaltyBase int64
}

// scaleDistance converts km to the scaled integer form.
func scaleDistance(km float64) int64 {
	return int64(math.Round(km * domain.DistanceScalingFactor))
}

// scaleTime converts minutes to the scaled integer form.
func scaleTime(minutes float64) int64 {
	return int64(math.Round(minutes * domain.TimeScalingFactor))
}

// unscaleDistance converts a scaled distance back to km.
func unscaleDistance(v int64) float64 {
	return float64(v) / domain.DistanceScalingFactor
}

// unscaleTime converts a scaled time back to minutes.
func unscaleTime(v int64) float64 {
	return float64(v) / domain.TimeScalingFactor
}

// buildModel validates the input against the matrices and produces the
// scaled instance. Unavailable vehicles are excluded here; a problem with
// zero usable vehicles is reported as a NoVehicles error by the caller.
func buildModel(input *Input, timeWindows bool) (*model, error) {
	mats := input.Matrices
	n := len(mats.IDs)
	if n == 0 || len(mats.Distance) != n {
		return nil, apperror.New(apperror.CodeInvalidMatrix, "distance matrix does not match location ids")
	}

	m := &model{
		depotIdx:        input.DepotIndex,
		timeWindows:     timeWindows,
		maxTimeScaled:   scaleTime(domain.MaxRouteDurationMin),
		spanCoeff:       input.opts.LoadBalanceCoeff,
		dropPenaltyBase: input.opts.DropPenaltyBase,
	}
	if m.depotIdx < 0 || m.depotIdx >= n {
		return nil, apperror.New(apperror.CodeInvalidMatrix, "depot index out of matrix range")
	}

	// Масштабируем матрицы один раз
	m.dist = make([][]int64, n)
	m.time = make([][]int64, n)
	hasTime := mats.HasTime()
	for i := 0; i < n; i++ {
		m.dist[i] = make([]int64, n)
		m.time[i] = make([]int64, n)
		for j := 0; j < n; j++ {
			m.dist[i][j] = scaleDistance(mats.Distance[i][j])
			if hasTime {
				m.time[i][j] = scaleTime(mats.Time[i][j])
			} else {
				// Время выводится из расстояния и скорости по умолчанию
				m.time[i][j] = scaleTime(mats.Distance[i][j] / input.opts.DefaultSpeedKmh * 60)
			}
		}
	}

	locByID := make(map[string]*domain.Location, len(input.Locations))
	for i := range input.Locations {
		locByID[input.Locations[i].ID] = &input.Locations[i]
	}

	// Узлы-доставки
	for i := range input.Deliveries {
		d := &input.Deliveries[i]
		idx := mats.Index(d.LocationID)
		if idx < 0 {
			return nil, apperror.New(apperror.CodeUnknownLocation,
				"delivery references location missing from the matrix: "+d.LocationID)
		}

		nd := node{
			deliveryID: d.ID,
			locIdx:     idx,
			demand:     d.Demand * domain.CapacityScalingFactor,
			priority:   d.EffectivePriority(),
			skills:     d.RequiredSkills,
		}

		if loc := locByID[d.LocationID]; loc != nil {
			nd.serviceScaled = scaleTime(loc.ServiceTime)
			if timeWindows && loc.HasTimeWindow() {
				nd.hasWindow = true
				nd.winStart = scaleTime(*loc.TimeWindowStart)
				nd.winEnd = scaleTime(*loc.TimeWindowEnd)
			}
		}

		m.nodes = append(m.nodes, nd)
	}

	// Доступный транспорт
	for i := range input.Vehicles {
		v := &input.Vehicles[i]
		if !v.IsAvailable() {
			continue
		}

		vi := vehicleInfo{
			id:        v.ID,
			capacity:  v.Capacity * domain.CapacityScalingFactor,
			startIdx:  m.depotIdx,
			endIdx:    m.depotIdx,
			costPerKm: v.CostPerKm,
			fixedCost: v.FixedCost,
			maxStops:  v.MaxStops,
			skills:    make(map[string]bool, len(v.Skills)),
		}
		for _, s := range v.Skills {
			vi.skills[s] = true
		}

		maxKm := domain.MaxRouteDistanceKm
		if v.MaxDistance > 0 && v.MaxDistance < maxKm {
			maxKm = v.MaxDistance
		}
		vi.maxDistScaled = scaleDistance(maxKm)

		if v.StartLocationID != "" {
			if idx := mats.Index(v.StartLocationID); idx >= 0 {
				vi.startIdx = idx
			} else {
				return nil, apperror.New(apperror.CodeUnknownLocation,
					"vehicle start location missing from the matrix: "+v.StartLocationID)
			}
		}
		if v.EndLocationID != "" {
			if idx := mats.Index(v.EndLocationID); idx >= 0 {
				vi.endIdx = idx
			} else {
				return nil, apperror.New(apperror.CodeUnknownLocation,
					"vehicle end location missing from the matrix: "+v.EndLocationID)
			}
		}

		m.vehicles = append(m.vehicles, vi)
	}

	return m, nil
}

// routeEval is the outcome of evaluating one vehicle route.
type routeEval struct {
	distScaled int64
	timeScaled int64
	load       int64

	// arrivalsScaled holds the scaled arrival time at each served node,
	// populated only when the model tracks time windows.
	arrivalsScaled []int64
}

// evalRoute checks a node sequence against every constraint of the vehicle
// and returns the route metrics. The sequence holds indices into m.nodes.
//
// Feasibility checks, in order: skills, stop count, capacity, distance
// bound, and for VRPTW the per-node window with waiting allowed plus the
// total duration bound.
func (m *model) evalRoute(v *vehicleInfo, seq []int) (routeEval, bool) {
	var ev routeEval

	if v.maxStops > 0 && len(seq) > v.maxStops {
		return ev, false
	}

	for _, ni := range seq {
		nd := &m.nodes[ni]
		if !v.hasSkills(nd.skills) {
			return ev, false
		}
		ev.load += nd.demand
	}
	if ev.load > v.capacity {
		return ev, false
	}

	prev := v.startIdx
	var t int64
	if m.timeWindows {
		ev.arrivalsScaled = make([]int64, 0, len(seq))
	}

	for _, ni := range seq {
		nd := &m.nodes[ni]
		ev.distScaled += m.dist[prev][nd.locIdx]

		if m.timeWindows {
			t += m.time[prev][nd.locIdx]
			if nd.hasWindow {
				// Раннее прибытие допустимо: машина ждёт открытия окна
				if t < nd.winStart {
					t = nd.winStart
				}
				if t > nd.winEnd {
					return ev, false
				}
			}
			ev.arrivalsScaled = append(ev.arrivalsScaled, t)
			t += nd.serviceScaled
		}

		prev = nd.locIdx
	}

	ev.distScaled += m.dist[prev][v.endIdx]
	if ev.distScaled > v.maxDistScaled {
		return ev, false
	}

	if m.timeWindows {
		t += m.time[prev][v.endIdx]
		ev.timeScaled = t
		if t > m.maxTimeScaled {
			return ev, false
		}
	}

	return ev, true
}

// assignment is a complete candidate solution over the model.
type assignment struct {
	// routes[i] holds node indices served by vehicles[i]; may be empty.
	routes [][]int
	// evals[i] is the cached evaluation of routes[i].
	evals []routeEval
	// unassigned flags nodes not served by any route.
	unassigned []bool
}

func newAssignment(m *model) *assignment {
	a := &assignment{
		routes:     make([][]int, len(m.vehicles)),
		evals:      make([]routeEval, len(m.vehicles)),
		unassigned: make([]bool, len(m.nodes)),
	}
	for i := range a.unassigned {
		a.unassigned[i] = true
	}
	return a
}

func (a *assignment) clone() *assignment {
	c := &assignment{
		routes:     make([][]int, len(a.routes)),
		evals:      make([]routeEval, len(a.evals)),
		unassigned: make([]bool, len(a.unassigned)),
	}
	for i, r := range a.routes {
		c.routes[i] = append([]int(nil), r...)
	}
	copy(c.evals, a.evals)
	copy(c.unassigned, a.unassigned)
	return c
}

// objective is the scaled total cost of the assignment: route distances,
// the span cost balancing the longest against the shortest used route, and
// drop penalties for unserved nodes.
func (m *model) objective(a *assignment) int64 {
	var total int64
	var minRoute, maxRoute int64
	minRoute = math.MaxInt64

	used := 0
	for i, r := range a.routes {
		if len(r) == 0 {
			continue
		}
		used++
		d := a.evals[i].distScaled
		span := d
		if m.timeWindows {
			// VRPTW балансирует маршруты по времени
			span = a.evals[i].timeScaled
		}
		total += d
		if span < minRoute {
			minRoute = span
		}
		if span > maxRoute {
			maxRoute = span
		}
	}
	if used > 1 {
		total += m.spanCoeff * (maxRoute - minRoute)
	}

	for ni, drop := range a.unassigned {
		if drop {
			total += m.nodes[ni].dropPenalty(m.dropPenaltyBase)
		}
	}

	return total
}
