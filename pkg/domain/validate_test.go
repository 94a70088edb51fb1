package domain

import (
	"strings"
	"testing"

	"routeopt/pkg/apperror"
)

func validRequest() *OptimizeRequest {
	return &OptimizeRequest{
		Locations: []Location{
			{ID: "depot", Latitude: 0, Longitude: 0, IsDepot: true},
			{ID: "a", Latitude: 0, Longitude: 1},
		},
		Vehicles:   []Vehicle{{ID: "v1", Capacity: 10}},
		Deliveries: []Delivery{{ID: "d1", LocationID: "a", Demand: 5}},
	}
}

func TestValidateOptimizeRequest_Valid(t *testing.T) {
	verrs := ValidateOptimizeRequest(validRequest())
	if !verrs.IsValid() {
		t.Fatalf("expected valid request, got errors: %v", verrs.ErrorMessages())
	}
}

func TestValidateOptimizeRequest_Nil(t *testing.T) {
	verrs := ValidateOptimizeRequest(nil)
	if verrs.IsValid() {
		t.Fatal("nil request must be invalid")
	}
}

func TestValidateOptimizeRequest(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*OptimizeRequest)
		wantCode  apperror.ErrorCode
		wantField string
	}{
		{
			name:     "no locations",
			mutate:   func(r *OptimizeRequest) { r.Locations = nil },
			wantCode: apperror.CodeInvalidInput,
		},
		{
			name:     "no vehicles",
			mutate:   func(r *OptimizeRequest) { r.Vehicles = nil },
			wantCode: apperror.CodeInvalidInput,
		},
		{
			name:      "bad latitude",
			mutate:    func(r *OptimizeRequest) { r.Locations[1].Latitude = 91 },
			wantCode:  apperror.CodeInvalidLocation,
			wantField: "locations[1].latitude",
		},
		{
			name:      "bad longitude",
			mutate:    func(r *OptimizeRequest) { r.Locations[1].Longitude = -181 },
			wantCode:  apperror.CodeInvalidLocation,
			wantField: "locations[1].longitude",
		},
		{
			name: "inverted time window",
			mutate: func(r *OptimizeRequest) {
				r.Locations[1].TimeWindowStart = f64(60)
				r.Locations[1].TimeWindowEnd = f64(30)
			},
			wantCode: apperror.CodeInvalidTimeWindow,
		},
		{
			name: "half time window",
			mutate: func(r *OptimizeRequest) {
				r.Locations[1].TimeWindowStart = f64(60)
			},
			wantCode: apperror.CodeInvalidTimeWindow,
		},
		{
			name:     "duplicate location id",
			mutate:   func(r *OptimizeRequest) { r.Locations[1].ID = "depot" },
			wantCode: apperror.CodeDuplicateID,
		},
		{
			name:      "negative capacity",
			mutate:    func(r *OptimizeRequest) { r.Vehicles[0].Capacity = -1 },
			wantCode:  apperror.CodeInvalidVehicle,
			wantField: "vehicles[0].capacity",
		},
		{
			name:     "unknown vehicle start",
			mutate:   func(r *OptimizeRequest) { r.Vehicles[0].StartLocationID = "nowhere" },
			wantCode: apperror.CodeUnknownLocation,
		},
		{
			name:     "unknown vehicle end",
			mutate:   func(r *OptimizeRequest) { r.Vehicles[0].EndLocationID = "nowhere" },
			wantCode: apperror.CodeUnknownLocation,
		},
		{
			name:     "unknown delivery location",
			mutate:   func(r *OptimizeRequest) { r.Deliveries[0].LocationID = "nowhere" },
			wantCode: apperror.CodeUnknownLocation,
		},
		{
			name:     "delivery at depot",
			mutate:   func(r *OptimizeRequest) { r.Deliveries[0].LocationID = "depot" },
			wantCode: apperror.CodeInvalidDelivery,
		},
		{
			name:     "negative demand",
			mutate:   func(r *OptimizeRequest) { r.Deliveries[0].Demand = -3 },
			wantCode: apperror.CodeInvalidDelivery,
		},
		{
			name:     "negative time limit",
			mutate:   func(r *OptimizeRequest) { r.TimeLimitSeconds = -1 },
			wantCode: apperror.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			verrs := ValidateOptimizeRequest(req)
			if verrs.IsValid() {
				t.Fatal("expected validation errors")
			}

			found := false
			for _, e := range verrs.Errors {
				if e.Code == tt.wantCode {
					found = true
					if tt.wantField != "" && !strings.Contains(e.Field, tt.wantField) {
						t.Errorf("field = %q, want %q", e.Field, tt.wantField)
					}
				}
			}
			if !found {
				t.Errorf("expected error code %s, got %v", tt.wantCode, verrs.ErrorMessages())
			}
		})
	}
}

func TestValidateRerouteRequest(t *testing.T) {
	base := validRequest()
	req := &RerouteRequest{
		RerouteType:        RerouteTraffic,
		CurrentSolution:    &Solution{Status: StatusSuccess},
		Locations:          base.Locations,
		Vehicles:           base.Vehicles,
		OriginalDeliveries: base.Deliveries,
	}

	if verrs := ValidateRerouteRequest(req); !verrs.IsValid() {
		t.Fatalf("expected valid reroute request, got %v", verrs.ErrorMessages())
	}

	req.RerouteType = "earthquake"
	if verrs := ValidateRerouteRequest(req); verrs.IsValid() {
		t.Error("unknown reroute type must be invalid")
	}

	req.RerouteType = RerouteRoadblock
	req.BlockedSegments = []IndexPair{{From: 0, To: 99}}
	if verrs := ValidateRerouteRequest(req); verrs.IsValid() {
		t.Error("out-of-range blocked segment must be invalid")
	}

	req.BlockedSegments = nil
	req.CurrentSolution = nil
	if verrs := ValidateRerouteRequest(req); verrs.IsValid() {
		t.Error("missing current_solution must be invalid")
	}
}
