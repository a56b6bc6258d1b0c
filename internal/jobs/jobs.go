// Package jobs runs the store's background loops on fixed intervals.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
)

type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner drives each registered job in its own goroutine. A failed or
// panicking iteration is logged and the loop keeps going.
type Runner struct {
	jobs []Job
	wg   sync.WaitGroup
}

func NewRunner(jobs ...Job) *Runner {
	return &Runner{jobs: jobs}
}

func (r *Runner) Add(job Job) {
	r.jobs = append(r.jobs, job)
}

func (r *Runner) Start(ctx context.Context) {
	for _, job := range r.jobs {
		if job.Interval <= 0 {
			logger.Infof("job %s disabled", job.Name)
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
}

// Wait blocks until all job loops have observed ctx cancellation.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()
	logger.Infof("job %s started, interval %s", job.Name, job.Interval)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("job %s stopped", job.Name)
			return
		case <-ticker.C:
			r.runOnce(ctx, job)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("job %s panicked: %v", job.Name, rec)
		}
	}()
	if err := job.Run(ctx); err != nil {
		logger.Errorf("job %s: %v", job.Name, err)
	}
}
