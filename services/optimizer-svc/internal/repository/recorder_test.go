package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"routeopt/pkg/domain"
)

type captureRepo struct {
	stored chan *Solve
	err    error
}

func newCaptureRepo() *captureRepo {
	return &captureRepo{stored: make(chan *Solve, 1)}
}

func (r *captureRepo) Create(_ context.Context, solve *Solve) error {
	if r.err != nil {
		return r.err
	}
	r.stored <- solve
	return nil
}

func (r *captureRepo) GetByID(context.Context, string) (*Solve, error) {
	return nil, ErrSolveNotFound
}

func (r *captureRepo) Delete(context.Context, string) error { return nil }

func (r *captureRepo) List(context.Context, *ListOptions) ([]*SolveSummary, int64, error) {
	return nil, 0, nil
}

func successSolution() *domain.Solution {
	return &domain.Solution{
		Status:                domain.StatusSuccess,
		Routes:                [][]string{{"depot", "a", "depot"}},
		TotalDistance:         42.5,
		TotalCost:             100,
		AssignedVehicleIDs:    []string{"v1"},
		UnassignedDeliveryIDs: []string{"d9"},
		Statistics: domain.Statistics{
			VehiclesUsed:       1,
			DeliveriesAssigned: 3,
			ComputationTimeMs:  12.5,
		},
	}
}

func TestRecorder_RecordOptimize(t *testing.T) {
	repo := newCaptureRepo()
	rec := NewRecorder(repo)

	req := &domain.OptimizeRequest{
		Locations: []domain.Location{{ID: "depot", IsDepot: true}},
	}
	rec.RecordOptimize("test solve", req, successSolution(), []string{"env:test"})

	select {
	case solve := <-repo.stored:
		if solve.Kind != KindOptimize {
			t.Errorf("kind = %s, want optimize", solve.Kind)
		}
		if solve.Status != "success" {
			t.Errorf("status = %s, want success", solve.Status)
		}
		if solve.TotalDistance != 42.5 {
			t.Errorf("distance = %v, want 42.5", solve.TotalDistance)
		}
		if solve.VehiclesUsed != 1 || solve.DeliveriesAssigned != 3 {
			t.Errorf("stats = %d/%d, want 1/3", solve.VehiclesUsed, solve.DeliveriesAssigned)
		}
		if solve.DeliveriesUnassigned != 1 {
			t.Errorf("unassigned = %d, want 1", solve.DeliveriesUnassigned)
		}
		if len(solve.RequestData) == 0 || len(solve.ResponseData) == 0 {
			t.Error("request and response payloads must be stored")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recorder never stored the solve")
	}
}

func TestRecorder_RecordReroute(t *testing.T) {
	repo := newCaptureRepo()
	rec := NewRecorder(repo)

	req := &domain.RerouteRequest{RerouteType: domain.RerouteTraffic}
	rec.RecordReroute("traffic event", req, successSolution(), nil)

	select {
	case solve := <-repo.stored:
		if solve.Kind != KindReroute {
			t.Errorf("kind = %s, want reroute", solve.Kind)
		}
		if len(solve.RequestData) == 0 {
			t.Error("reroute request payload must be stored")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recorder never stored the solve")
	}
}

func TestRecorder_DisabledWithoutRepo(t *testing.T) {
	rec := NewRecorder(nil)
	if rec.Enabled() {
		t.Error("recorder without repo must be disabled")
	}
	// не должно паниковать
	rec.RecordOptimize("noop", &domain.OptimizeRequest{}, successSolution(), nil)
}

func TestRecorder_StoreFailureIsSwallowed(t *testing.T) {
	repo := newCaptureRepo()
	repo.err = errors.New("db down")
	rec := NewRecorder(repo)

	// отказ хранилища не должен влиять на вызывающего
	rec.RecordOptimize("doomed", &domain.OptimizeRequest{}, successSolution(), nil)
	time.Sleep(50 * time.Millisecond)
}
