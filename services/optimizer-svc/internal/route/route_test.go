package route

import (
	"context"
	"os"
	"testing"
	"time"

	"routeopt/pkg/domain"
	"routeopt/pkg/logger"
	"routeopt/services/optimizer-svc/internal/pathfind"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

func TestResolveDepot(t *testing.T) {
	tests := []struct {
		name      string
		locations []domain.Location
		wantID    string
		wantIdx   int
		wantErr   bool
	}{
		{
			name: "flagged depot wins",
			locations: []domain.Location{
				{ID: "a"},
				{ID: "hub", IsDepot: true},
				{ID: "b"},
			},
			wantID:  "hub",
			wantIdx: 1,
		},
		{
			name: "first flagged depot when several",
			locations: []domain.Location{
				{ID: "h1", IsDepot: true},
				{ID: "h2", IsDepot: true},
			},
			wantID:  "h1",
			wantIdx: 0,
		},
		{
			name: "no flag falls back to first location",
			locations: []domain.Location{
				{ID: "a"},
				{ID: "b"},
			},
			wantID:  "a",
			wantIdx: 0,
		},
		{
			name:    "empty input is an error",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, idx, err := ResolveDepot(tt.locations)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveDepot() error = %v", err)
			}
			if loc.ID != tt.wantID || idx != tt.wantIdx {
				t.Errorf("got (%s, %d), want (%s, %d)", loc.ID, idx, tt.wantID, tt.wantIdx)
			}
		})
	}
}

func testGraph() pathfind.Graph {
	return pathfind.Graph{
		"depot": {"a": 10, "b": 30},
		"a":     {"depot": 10, "b": 10},
		"b":     {"a": 10, "depot": 30},
	}
}

func annotatedSolution(t *testing.T) *domain.Solution {
	t.Helper()

	sol := &domain.Solution{
		Status:             domain.StatusSuccess,
		Routes:             [][]string{{"depot", "b", "depot"}},
		AssignedVehicleIDs: []string{"v1"},
	}
	vehicles := []domain.Vehicle{{ID: "v1", Capacity: 10, CostPerKm: 2, FixedCost: 100}}
	deliveries := []domain.Delivery{{ID: "d1", LocationID: "b", Demand: 5}}

	a := NewAnnotator(50)
	err := a.Annotate(context.Background(), sol, testGraph(), nil, vehicles, deliveries)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	return sol
}

func TestAnnotate_ExpandsSegmentsThroughGraph(t *testing.T) {
	sol := annotatedSolution(t)

	if len(sol.DetailedRoutes) != 1 {
		t.Fatalf("detailed routes = %d, want 1", len(sol.DetailedRoutes))
	}
	dr := sol.DetailedRoutes[0]

	if len(dr.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(dr.Segments))
	}

	// depot -> b напрямую стоит 30, через a дешевле: 20
	seg := dr.Segments[0]
	if seg.Distance != 20 {
		t.Errorf("segment distance = %v, want 20 (via a)", seg.Distance)
	}
	want := []string{"depot", "a", "b"}
	if len(seg.Path) != 3 || seg.Path[1] != "a" {
		t.Errorf("segment path = %v, want %v", seg.Path, want)
	}

	if dr.TotalDistance != 40 {
		t.Errorf("total distance = %v, want 40", dr.TotalDistance)
	}
	// 40 км при 50 км/ч = 48 минут
	if dr.TotalTime != 48 {
		t.Errorf("total time = %v, want 48", dr.TotalTime)
	}
	if dr.CapacityUtilization != 0.5 {
		t.Errorf("capacity utilization = %v, want 0.5", dr.CapacityUtilization)
	}
}

func TestAnnotate_CumulativeValuesGrow(t *testing.T) {
	sol := annotatedSolution(t)
	dr := sol.DetailedRoutes[0]

	if len(dr.Stops) != 3 {
		t.Fatalf("stops = %d, want 3", len(dr.Stops))
	}
	if dr.Stops[0].CumulativeDistance != 0 {
		t.Errorf("first stop cumulative distance = %v, want 0", dr.Stops[0].CumulativeDistance)
	}
	if dr.Stops[1].CumulativeDistance != 20 {
		t.Errorf("second stop cumulative distance = %v, want 20", dr.Stops[1].CumulativeDistance)
	}
	if dr.Stops[2].CumulativeDistance != 40 {
		t.Errorf("last stop cumulative distance = %v, want 40", dr.Stops[2].CumulativeDistance)
	}
}

func TestAnnotate_UnreachablePairGetsPlaceholder(t *testing.T) {
	g := pathfind.Graph{
		"depot":  {"a": 10},
		"a":      {"depot": 10},
		"island": {},
	}
	sol := &domain.Solution{
		Status:             domain.StatusSuccess,
		Routes:             [][]string{{"depot", "island", "depot"}},
		AssignedVehicleIDs: []string{"v1"},
	}

	a := NewAnnotator(50)
	err := a.Annotate(context.Background(), sol, g, nil, []domain.Vehicle{{ID: "v1", Capacity: 1}}, nil)
	if err != nil {
		t.Fatalf("unreachable pair must not fail the solve: %v", err)
	}

	seg := sol.DetailedRoutes[0].Segments[0]
	if seg.Distance != domain.MaxSafeDistance {
		t.Errorf("placeholder distance = %v, want sentinel", seg.Distance)
	}
	if len(seg.Path) != 2 || seg.Path[0] != "depot" || seg.Path[1] != "island" {
		t.Errorf("placeholder path = %v, want [depot island]", seg.Path)
	}
}

func TestAnnotate_PreservesArrivalEstimates(t *testing.T) {
	arrival := 42.0
	sol := &domain.Solution{
		Status:             domain.StatusSuccess,
		Routes:             [][]string{{"depot", "a", "depot"}},
		AssignedVehicleIDs: []string{"v1"},
		DetailedRoutes: []domain.DetailedRoute{
			{
				VehicleID: "v1",
				Stops: []domain.Stop{
					{LocationID: "depot"},
					{LocationID: "a", EstimatedArrivalMinutes: &arrival},
					{LocationID: "depot"},
				},
			},
		},
	}

	a := NewAnnotator(50)
	err := a.Annotate(context.Background(), sol, testGraph(), nil, []domain.Vehicle{{ID: "v1", Capacity: 1}}, nil)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	got := sol.DetailedRoutes[0].Stops[1].EstimatedArrivalMinutes
	if got == nil || *got != arrival {
		t.Errorf("arrival estimate = %v, want %v", got, arrival)
	}
}

func TestAnnotate_TimeMatrixPreferred(t *testing.T) {
	mats := &domain.Matrices{
		IDs: []string{"depot", "a"},
		Distance: [][]float64{
			{0, 10},
			{10, 0},
		},
		Time: [][]float64{
			{0, 99},
			{99, 0},
		},
	}
	g := pathfind.Graph{
		"depot": {"a": 10},
		"a":     {"depot": 10},
	}
	sol := &domain.Solution{
		Status:             domain.StatusSuccess,
		Routes:             [][]string{{"depot", "a", "depot"}},
		AssignedVehicleIDs: []string{"v1"},
	}

	a := NewAnnotator(50)
	if err := a.Annotate(context.Background(), sol, g, mats, []domain.Vehicle{{ID: "v1", Capacity: 1}}, nil); err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	if got := sol.DetailedRoutes[0].Segments[0].Time; got != 99 {
		t.Errorf("segment time = %v, want 99 from time matrix", got)
	}
}

func TestAggregateStats(t *testing.T) {
	sol := annotatedSolution(t)
	vehicles := []domain.Vehicle{{ID: "v1", Capacity: 10, CostPerKm: 2, FixedCost: 100}}
	deliveries := []domain.Delivery{{ID: "d1", LocationID: "b", Demand: 5}}

	AggregateStats(sol, vehicles, deliveries, 50*time.Millisecond)

	// 100 фикс + 40 км x 2
	if sol.TotalCost != 180 {
		t.Errorf("total cost = %v, want 180", sol.TotalCost)
	}
	if sol.TotalDistance != 40 {
		t.Errorf("total distance = %v, want 40", sol.TotalDistance)
	}

	st := sol.Statistics
	if st.TotalStops != 1 {
		t.Errorf("total stops = %d, want 1", st.TotalStops)
	}
	if st.VehiclesUsed != 1 || st.VehiclesUnused != 0 {
		t.Errorf("vehicles used/unused = %d/%d, want 1/0", st.VehiclesUsed, st.VehiclesUnused)
	}
	if st.DeliveriesAssigned != 1 || st.DeliveriesUnassigned != 0 {
		t.Errorf("deliveries assigned/unassigned = %d/%d, want 1/0", st.DeliveriesAssigned, st.DeliveriesUnassigned)
	}
	if st.AvgDistancePerStop != 40 {
		t.Errorf("avg distance per stop = %v, want 40", st.AvgDistancePerStop)
	}
	if st.ComputationTimeMs != 50 {
		t.Errorf("computation time = %v ms, want 50", st.ComputationTimeMs)
	}

	vc, ok := st.VehicleCosts["v1"]
	if !ok {
		t.Fatal("vehicle costs must include v1")
	}
	if vc.Cost != 180 || vc.Distance != 40 || vc.Stops != 1 {
		t.Errorf("vehicle cost = %+v, want {40 180 1}", vc)
	}
}

func TestAggregateStats_Idempotent(t *testing.T) {
	sol := annotatedSolution(t)
	vehicles := []domain.Vehicle{{ID: "v1", Capacity: 10, CostPerKm: 2, FixedCost: 100}}
	deliveries := []domain.Delivery{{ID: "d1", LocationID: "b", Demand: 5}}

	AggregateStats(sol, vehicles, deliveries, 50*time.Millisecond)
	first := sol.Statistics

	AggregateStats(sol, vehicles, deliveries, 50*time.Millisecond)

	if sol.Statistics.TotalCost != first.TotalCost ||
		sol.Statistics.TotalDistance != first.TotalDistance ||
		sol.Statistics.TotalStops != first.TotalStops {
		t.Errorf("repeated aggregation changed totals: %+v -> %+v", first, sol.Statistics)
	}
}

func TestAggregateStats_PreservesPipelineFields(t *testing.T) {
	sol := annotatedSolution(t)
	sol.Statistics.CacheHit = true
	sol.Statistics.ReroutingInfo = &domain.ReroutingInfo{Reason: domain.RerouteTraffic}

	AggregateStats(sol, nil, nil, time.Millisecond)

	if !sol.Statistics.CacheHit {
		t.Error("cache_hit must survive aggregation")
	}
	if sol.Statistics.ReroutingInfo == nil || sol.Statistics.ReroutingInfo.Reason != domain.RerouteTraffic {
		t.Error("rerouting_info must survive aggregation")
	}
}

func TestAggregateStats_CountsUnusedVehicles(t *testing.T) {
	sol := annotatedSolution(t)
	unavailable := false
	vehicles := []domain.Vehicle{
		{ID: "v1", Capacity: 10},
		{ID: "v2", Capacity: 10},
		{ID: "v3", Capacity: 10, Available: &unavailable},
	}

	AggregateStats(sol, vehicles, nil, time.Millisecond)

	// из двух доступных машин работает одна
	if sol.Statistics.VehiclesUnused != 1 {
		t.Errorf("vehicles unused = %d, want 1", sol.Statistics.VehiclesUnused)
	}
}
