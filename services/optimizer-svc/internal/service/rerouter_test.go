package service

import (
	"context"
	"testing"

	"routeopt/pkg/domain"
)

func testRerouter() (*Rerouter, *stubBuilder) {
	builder := &stubBuilder{mats: testMatrices()}
	return NewRerouter(newTestOptimizer(builder, nil)), builder
}

func rerouteRequest(rtype string) *domain.RerouteRequest {
	base := testRequest()
	return &domain.RerouteRequest{
		RerouteType:        rtype,
		Locations:          base.Locations,
		Vehicles:           base.Vehicles,
		OriginalDeliveries: base.Deliveries,
		CurrentSolution: &domain.Solution{
			Status:             domain.StatusSuccess,
			TotalDistance:      45,
			Routes:             [][]string{{"depot", "a", "b", "depot"}},
			AssignedVehicleIDs: []string{"v1"},
		},
	}
}

func TestReroute_UnknownTypeRejected(t *testing.T) {
	r, _ := testRerouter()

	req := rerouteRequest("earthquake")
	if _, err := r.Reroute(context.Background(), req); err == nil {
		t.Fatal("unknown reroute type must be rejected")
	}
}

func TestReroute_MissingSolutionRejected(t *testing.T) {
	r, _ := testRerouter()

	req := rerouteRequest(domain.RerouteTraffic)
	req.CurrentSolution = nil
	if _, err := r.Reroute(context.Background(), req); err == nil {
		t.Fatal("reroute without current solution must be rejected")
	}
}

func TestRerouteForTraffic_StampsInfo(t *testing.T) {
	r, _ := testRerouter()

	req := rerouteRequest(domain.RerouteTraffic)
	req.TrafficData = &domain.TrafficData{
		LocationPairs: []domain.TrafficPair{
			{From: "depot", To: "a", Factor: 2},
			{From: "a", To: "b", Factor: 3},
		},
	}

	sol, err := r.Reroute(context.Background(), req)
	if err != nil {
		t.Fatalf("Reroute() error = %v", err)
	}

	info := sol.Statistics.ReroutingInfo
	if info == nil {
		t.Fatal("solution must carry rerouting info")
	}
	if info.Reason != domain.RerouteTraffic {
		t.Errorf("reason = %s, want traffic", info.Reason)
	}
	if info.TrafficPairCount != 2 {
		t.Errorf("traffic pair count = %d, want 2", info.TrafficPairCount)
	}
	if info.OriginalTotalDistance != 45 {
		t.Errorf("original distance = %v, want 45", info.OriginalTotalDistance)
	}
	if info.NewTotalDistance != sol.TotalDistance {
		t.Errorf("new distance = %v, want %v", info.NewTotalDistance, sol.TotalDistance)
	}
}

func TestRerouteForDelay_CountsAndWindows(t *testing.T) {
	r, _ := testRerouter()

	req := rerouteRequest(domain.RerouteDelay)
	req.DelayMinutes = 30
	req.DelayedLocationIDs = []string{"a"}

	sol, err := r.Reroute(context.Background(), req)
	if err != nil {
		t.Fatalf("Reroute() error = %v", err)
	}

	info := sol.Statistics.ReroutingInfo
	if info == nil {
		t.Fatal("solution must carry rerouting info")
	}
	if info.DelayMinutes != 30 {
		t.Errorf("delay = %v, want 30", info.DelayMinutes)
	}
	if len(info.DelayedLocationIDs) != 1 || info.DelayedLocationIDs[0] != "a" {
		t.Errorf("delayed ids = %v, want [a]", info.DelayedLocationIDs)
	}
	// задержка переводит запрос во временной режим
	for _, dr := range sol.DetailedRoutes {
		for _, stop := range dr.Stops {
			if stop.LocationID != "depot" && stop.EstimatedArrivalMinutes == nil {
				t.Errorf("stop %s must carry arrival estimate", stop.LocationID)
			}
		}
	}
}

func TestRerouteForDelay_DoesNotReuseCachedResult(t *testing.T) {
	builder := &stubBuilder{mats: testMatrices()}
	o := newTestOptimizer(builder, newResultCache())
	r := NewRerouter(o)

	initial := testRequest()
	initial.ConsiderTimeWindows = true
	if _, err := o.Optimize(context.Background(), initial); err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}

	// задержка меняет только ServiceTime локации: ключ кэша обязан
	// измениться, иначе перестроение получит решение до задержки
	req := rerouteRequest(domain.RerouteDelay)
	req.ConsiderTimeWindows = true
	req.DelayMinutes = 120
	req.DelayedLocationIDs = []string{"a"}

	sol, err := r.Reroute(context.Background(), req)
	if err != nil {
		t.Fatalf("Reroute() error = %v", err)
	}
	if sol.Statistics.CacheHit {
		t.Error("delay reroute must not be served the pre-delay cached solution")
	}
	if builder.calls != 2 {
		t.Errorf("builder calls = %d, want 2 (reroute must re-solve)", builder.calls)
	}
}

func TestRerouteForRoadblock_BlocksSegments(t *testing.T) {
	r, _ := testRerouter()

	req := rerouteRequest(domain.RerouteRoadblock)
	// перекрываем depot<->a в обе стороны
	req.BlockedSegments = []domain.IndexPair{{From: 0, To: 1}, {From: 1, To: 0}}

	sol, err := r.Reroute(context.Background(), req)
	if err != nil {
		t.Fatalf("Reroute() error = %v", err)
	}

	info := sol.Statistics.ReroutingInfo
	if info == nil {
		t.Fatal("solution must carry rerouting info")
	}
	if len(info.BlockedSegments) != 2 {
		t.Errorf("blocked segments = %v, want 2 entries", info.BlockedSegments)
	}
	for _, route := range sol.Routes {
		for i := 0; i+1 < len(route); i++ {
			if route[i] == "depot" && route[i+1] == "a" {
				t.Error("route traverses a blocked segment")
			}
		}
	}
}

func TestReroute_ExcludesCompletedDeliveries(t *testing.T) {
	r, _ := testRerouter()

	req := rerouteRequest(domain.RerouteTraffic)
	req.CompletedDeliveryIDs = []string{"d1"}

	sol, err := r.Reroute(context.Background(), req)
	if err != nil {
		t.Fatalf("Reroute() error = %v", err)
	}

	for _, route := range sol.Routes {
		for _, id := range route {
			if id == "a" {
				t.Error("completed delivery location must not be revisited")
			}
		}
	}
	info := sol.Statistics.ReroutingInfo
	if info.CompletedDeliveries != 1 {
		t.Errorf("completed = %d, want 1", info.CompletedDeliveries)
	}
	if info.ReroutedDeliveries != 1 {
		t.Errorf("rerouted = %d, want 1", info.ReroutedDeliveries)
	}
}

func TestAdvanceVehicles_MidRoute(t *testing.T) {
	req := rerouteRequest(domain.RerouteTraffic)
	req.CompletedDeliveryIDs = []string{"d1"} // d1 @ a

	vehicles := advanceVehicles(req)
	if vehicles[0].StartLocationID != "b" {
		t.Errorf("start = %q, want b (stop after last completed)", vehicles[0].StartLocationID)
	}
}

func TestAdvanceVehicles_RouteFullyDone(t *testing.T) {
	req := rerouteRequest(domain.RerouteTraffic)
	req.CompletedDeliveryIDs = []string{"d1", "d2"}
	// финальная остановка b вместо depot: машина ещё не вернулась
	req.CurrentSolution.Routes[0] = []string{"depot", "a", "b"}

	vehicles := advanceVehicles(req)
	if vehicles[0].StartLocationID != "b" {
		t.Errorf("start = %q, want final stop b", vehicles[0].StartLocationID)
	}
}

func TestAdvanceVehicles_NothingCompleted(t *testing.T) {
	req := rerouteRequest(domain.RerouteTraffic)

	vehicles := advanceVehicles(req)
	if vehicles[0].StartLocationID != "" {
		t.Errorf("start = %q, want unchanged", vehicles[0].StartLocationID)
	}
}

func TestRemainingDeliveries(t *testing.T) {
	req := rerouteRequest(domain.RerouteTraffic)
	req.CompletedDeliveryIDs = []string{"d2"}

	remaining := remainingDeliveries(req)
	if len(remaining) != 1 || remaining[0].ID != "d1" {
		t.Errorf("remaining = %v, want [d1]", remaining)
	}
}
