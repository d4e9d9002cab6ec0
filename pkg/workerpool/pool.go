// Package workerpool provides bounded fan-out for batches of independent
// work. The scheduling engine uses it to register a record's occurrences
// concurrently while still awaiting every outcome before returning.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of work.
type Task struct {
	ID  string
	Run func(ctx context.Context) error
}

// Result is the outcome of one task.
type Result struct {
	TaskID string
	Err    error
}

// Config holds pool configuration.
type Config struct {
	// Workers bounds concurrency for one batch.
	Workers int
	// MaxRetries re-runs a failed task this many additional times.
	MaxRetries int
	// RetryDelay is the base backoff between attempts.
	RetryDelay time.Duration
}

// DefaultConfig returns defaults sized for reminder registration batches.
func DefaultConfig() Config {
	return Config{
		Workers:    8,
		MaxRetries: 2,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Pool runs task batches with bounded concurrency.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a pool.
func New(cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	return &Pool{config: cfg, logger: logger}
}

// RunAll executes every task and blocks until all have finished. Results are
// returned in task order; a nil Err means the task (eventually) succeeded.
func (p *Pool) RunAll(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	sem := make(chan struct{}, p.config.Workers)
	var wg sync.WaitGroup

	for i := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = Result{
				TaskID: tasks[i].ID,
				Err:    p.runWithRetry(ctx, &tasks[i]),
			}
		}(i)
	}

	wg.Wait()
	return results
}

func (p *Pool) runWithRetry(ctx context.Context, task *Task) error {
	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = task.Run(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.config.MaxRetries {
			break
		}
		p.logger.Debug("retrying task",
			zap.String("task_id", task.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.config.RetryDelay * time.Duration(attempt+1)):
		}
	}
	return fmt.Errorf("task %s failed after %d retries: %w", task.ID, p.config.MaxRetries, lastErr)
}
