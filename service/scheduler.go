package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"hyperbench/global"
)

const DefaultWorkers = 8

// Task is one unit of a fan-out. Name identifies it in the combined error.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler runs independent tasks on a bounded pool. Every task is launched
// and Run returns only when all of them finished.
type Scheduler struct {
	workers int
}

func NewScheduler(workers int) *Scheduler {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Scheduler{workers: workers}
}

func (s *Scheduler) Workers() int {
	return s.workers
}

// Run executes tasks and combines their failures, each prefixed by the task
// name. A failing task does not stop its siblings.
func (s *Scheduler) Run(ctx context.Context, tasks ...Task) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
		sem  = make(chan struct{}, s.workers)
	)

	for _, t := range tasks {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				errs = multierr.Append(errs, errors.WithMessage(ctx.Err(), t.Name))
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			if err := t.Run(ctx); err != nil {
				global.Logger.Error("task failed", zap.String("task", t.Name), zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, errors.WithMessage(err, t.Name))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errs
}
