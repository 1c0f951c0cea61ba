// Package task follows a remote OCR job until it reaches a terminal state.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shibinsp/ocrapillm/internal/api"
	"github.com/shibinsp/ocrapillm/internal/clock"
	"github.com/shibinsp/ocrapillm/internal/logging"
	"github.com/shibinsp/ocrapillm/internal/metrics"
	"github.com/shibinsp/ocrapillm/internal/model"
)

const (
	DefaultInterval       = 2 * time.Second
	DefaultMaxAttempts    = 150
	DefaultMaxFetchErrors = 3
)

var (
	ErrTimeout        = errors.New("task did not finish in time")
	ErrAlreadyPolling = errors.New("task is already being polled")
)

// FailedError is a task the server reported as failed.
type FailedError struct {
	TaskID string
	Reason string
}

func (e *FailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("task %s failed", e.TaskID)
	}
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Reason)
}

// StatusFetcher returns one observation of a task. *api.Client satisfies it.
type StatusFetcher interface {
	TaskStatus(ctx context.Context, taskID string) (*model.Task, error)
}

// ProgressFunc receives every successfully fetched observation.
type ProgressFunc func(t *model.Task)

// Poller polls task status at a fixed interval.
type Poller struct {
	fetcher StatusFetcher
	clock   clock.Clock
	log     *zerolog.Logger

	Interval       time.Duration
	MaxAttempts    int
	MaxFetchErrors int

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewPoller returns a poller with default interval and limits.
func NewPoller(f StatusFetcher, clk clock.Clock, log *zerolog.Logger) *Poller {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Poller{
		fetcher:        f,
		clock:          clk,
		log:            log,
		Interval:       DefaultInterval,
		MaxAttempts:    DefaultMaxAttempts,
		MaxFetchErrors: DefaultMaxFetchErrors,
		active:         make(map[string]context.CancelFunc),
	}
}

// Poll blocks until the task completes, fails, times out or is cancelled.
// Requests are strictly sequential and onProgress is never called after
// Poll returns.
func (p *Poller) Poll(ctx context.Context, taskID string, onProgress ProgressFunc) (*model.TaskResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := p.acquire(taskID, cancel); err != nil {
		return nil, err
	}
	defer p.release(taskID)

	log := logging.With(logging.WithTaskID(ctx, taskID), p.log)
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	fetchErrors := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := p.fetcher.TaskStatus(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !api.IsTransport(err) || api.IsNotFound(err) {
				metrics.IncTaskPoll("error")
				return nil, fmt.Errorf("poll task %s: %w", taskID, err)
			}
			fetchErrors++
			metrics.IncTaskPoll("transport_error")
			if fetchErrors > p.MaxFetchErrors {
				return nil, fmt.Errorf("poll task %s: %w", taskID, err)
			}
			log.Warn().Err(err).Int("attempt", attempt).Msg("status fetch failed, will retry")
		} else {
			fetchErrors = 0
			metrics.IncTaskPoll(string(t.Status))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if onProgress != nil {
				onProgress(t)
			}
			switch t.Status {
			case model.TaskCompleted:
				if t.Result == nil {
					return &model.TaskResult{}, nil
				}
				log.Debug().Str("document_id", t.Result.DocumentID).Msg("task completed")
				return t.Result, nil
			case model.TaskFailed:
				reason := t.Error
				if reason == "" {
					reason = t.Message
				}
				return nil, &FailedError{TaskID: taskID, Reason: reason}
			}
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.clock.After(p.Interval):
		}
	}
	log.Warn().Int("attempts", maxAttempts).Msg("task polling timed out")
	return nil, ErrTimeout
}

// Cancel stops an in-flight poll for taskID. It reports whether one existed.
func (p *Poller) Cancel(taskID string) bool {
	p.mu.Lock()
	cancel, ok := p.active[taskID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (p *Poller) acquire(taskID string, cancel context.CancelFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		p.active = make(map[string]context.CancelFunc)
	}
	if _, busy := p.active[taskID]; busy {
		return ErrAlreadyPolling
	}
	p.active[taskID] = cancel
	return nil
}

func (p *Poller) release(taskID string) {
	p.mu.Lock()
	delete(p.active, taskID)
	p.mu.Unlock()
}
