package solver

import (
	"context"

	"routeopt/pkg/domain"
)

// Pool bounds the number of simultaneous solves.
//
// Route searches are CPU-bound and hold the whole scaled model in memory,
// so an uncapped burst of requests degrades every solve at once. The pool
// is a plain counting semaphore; a slot is held for the full duration of
// one solve.
type Pool struct {
	solver  *Solver
	workers chan struct{}
}

// NewPool wraps solver with a concurrency cap.
// maxConcurrency <= 0 defaults to 10.
func NewPool(solver *Solver, maxConcurrency int) *Pool {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Pool{
		solver:  solver,
		workers: make(chan struct{}, maxConcurrency),
	}
}

// Acquire obtains a worker slot, blocking until one is free or ctx fires.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.workers <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a worker slot. Must follow each successful Acquire.
func (p *Pool) Release() {
	<-p.workers
}

// Solve runs a CVRP solve under the concurrency cap.
func (p *Pool) Solve(ctx context.Context, input *Input) (*domain.Solution, error) {
	if err := p.Acquire(ctx); err != nil {
		return nil, err
	}
	defer p.Release()
	return p.solver.Solve(ctx, input)
}

// SolveWithTimeWindows runs a VRPTW solve under the concurrency cap.
func (p *Pool) SolveWithTimeWindows(ctx context.Context, input *Input) (*domain.Solution, error) {
	if err := p.Acquire(ctx); err != nil {
		return nil, err
	}
	defer p.Release()
	return p.solver.SolveWithTimeWindows(ctx, input)
}
