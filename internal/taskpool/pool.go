// Package taskpool bounds concurrent leaf work for one site run.
package taskpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/panjf2000/ants/v2"
)

// ErrReleased is returned when work is submitted after Release.
var ErrReleased = errors.New("task pool released")

// Pool runs blocking leaf tasks on a fixed number of workers. Callers that
// fork and join subtasks must do so outside the pool so a waiting parent
// never occupies a worker.
type Pool struct {
	pool *ants.Pool
}

// New creates a pool with size workers. A non-positive size uses GOMAXPROCS.
func New(size int) (*Pool, error) {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create task pool: %w", err)
	}
	return &Pool{pool: p}, nil
}

// Do runs fn on a worker and blocks until it returns. fn is skipped when ctx
// is done before a worker picks it up.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}
	done := make(chan error, 1)
	err := p.pool.Submit(func() {
		if ctx.Err() != nil {
			done <- context.Cause(ctx)
			return
		}
		done <- fn(ctx)
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrReleased
		}
		return fmt.Errorf("submit task: %w", err)
	}
	return <-done
}

// Cap returns the number of workers.
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Running returns the number of busy workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops the workers. In-flight tasks finish.
func (p *Pool) Release() {
	p.pool.Release()
}
