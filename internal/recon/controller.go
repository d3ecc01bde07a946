// Package recon implements the reconciliation core: the decision
// engine, the adaptive concurrency controller, the remote update
// executor and the per-site run orchestration.
package recon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stocksync/internal/config"

	"github.com/rs/zerolog"
)

// ItemFunc executes one outbound unit of work.
type ItemFunc func(ctx context.Context, index int) error

// ItemError pairs an item index with its final error after
// controller-level retries are exhausted.
type ItemError struct {
	Index int
	Err   error
}

// cleanSlicesToGrow is the success streak required before the window
// grows back and the inter-slice delay shrinks.
const cleanSlicesToGrow = 2

const transientAttempts = 3

// Controller bounds parallel outbound calls with a self-tuning
// window: a slice of items is processed with fan-out/fan-in, then the
// window shrinks and the inter-slice delay grows on a sustained
// rate-limit/error rate, and recovers on consecutive clean slices.
// All bounds come from ControllerConfig. Not safe for concurrent use;
// one controller serves one task execution.
type Controller struct {
	cfg         config.ControllerConfig
	window      int
	delay       time.Duration
	cleanStreak int
	isTransient func(error) bool
	sleep       func(context.Context, time.Duration)
	logger      zerolog.Logger
}

// NewController builds a controller starting at the configured
// initial window and delay. isTransient classifies remote errors that
// deserve backoff (rate limit, 5xx, timeout); it may be nil.
func NewController(cfg config.ControllerConfig, isTransient func(error) bool, logger *zerolog.Logger) *Controller {
	if isTransient == nil {
		isTransient = func(error) bool { return false }
	}
	return &Controller{
		cfg:         cfg,
		window:      cfg.InitialWindow,
		delay:       cfg.InitialDelay,
		isTransient: isTransient,
		sleep:       sleepCtx,
		logger:      logger.With().Str("component", "concurrency-controller").Logger(),
	}
}

// Window returns the current in-flight window size.
func (c *Controller) Window() int { return c.window }

// Delay returns the current inter-slice delay.
func (c *Controller) Delay() time.Duration { return c.delay }

// Run processes total items through fn, slice by slice. It returns
// the errors of items that failed after retries; an item absent from
// the result succeeded. Run stops early when ctx is cancelled and
// leaves the remaining items untouched.
func (c *Controller) Run(ctx context.Context, total int, fn ItemFunc) []ItemError {
	var failures []ItemError

	for start := 0; start < total; {
		if ctx.Err() != nil {
			return failures
		}

		end := start + c.window
		if end > total {
			end = total
		}

		sliceFailures, transientCount := c.runSlice(ctx, start, end, fn)
		failures = append(failures, sliceFailures...)

		// adjust mutates the window; the next slice must start where
		// this one ended, not at the new window's stride.
		c.adjust(end-start, transientCount)
		start = end

		if end < total && c.delay > 0 {
			c.sleep(ctx, c.delay)
		}
	}
	return failures
}

// runSlice fans out one window of items and joins the results.
// Transient errors are retried in place with the current delay before
// being reported.
func (c *Controller) runSlice(ctx context.Context, start, end int, fn ItemFunc) ([]ItemError, int) {
	var wg sync.WaitGroup
	results := make([]error, end-start)
	transient := make([]bool, end-start)

	for i := start; i < end; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			// A panicking item must not take down its siblings.
			defer func() {
				if rec := recover(); rec != nil {
					results[index-start] = fmt.Errorf("item %d panicked: %v", index, rec)
				}
			}()
			err := c.callWithRetry(ctx, index, fn)
			results[index-start] = err
			if err != nil && c.isTransient(err) {
				transient[index-start] = true
			}
		}(i)
	}
	wg.Wait()

	var failures []ItemError
	transientCount := 0
	for offset, err := range results {
		if err == nil {
			continue
		}
		failures = append(failures, ItemError{Index: start + offset, Err: err})
		if transient[offset] {
			transientCount++
		}
	}
	return failures, transientCount
}

func (c *Controller) callWithRetry(ctx context.Context, index int, fn ItemFunc) error {
	var err error
	for attempt := 1; attempt <= transientAttempts; attempt++ {
		err = fn(ctx, index)
		if err == nil || !c.isTransient(err) {
			return err
		}
		if attempt < transientAttempts {
			c.sleep(ctx, c.delay*time.Duration(attempt))
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// adjust tunes window and delay from the slice outcome. Any transient
// failure in a slice counts as pressure; growth requires a clean
// streak.
func (c *Controller) adjust(sliceSize, transientCount int) {
	if transientCount > 0 {
		c.cleanStreak = 0
		c.window = clampInt(c.window-2, c.cfg.MinWindow, c.cfg.MaxWindow)
		c.delay = clampDuration(c.delay*2, c.cfg.MinDelay, c.cfg.MaxDelay)
		c.logger.Debug().
			Int("window", c.window).
			Dur("delay", c.delay).
			Int("transient", transientCount).
			Int("slice", sliceSize).
			Msg("window shrunk after transient errors")
		return
	}

	c.cleanStreak++
	if c.cleanStreak >= cleanSlicesToGrow {
		c.cleanStreak = 0
		c.window = clampInt(c.window+2, c.cfg.MinWindow, c.cfg.MaxWindow)
		c.delay = clampDuration(c.delay/2, c.cfg.MinDelay, c.cfg.MaxDelay)
		c.logger.Debug().
			Int("window", c.window).
			Dur("delay", c.delay).
			Msg("window grown after clean streak")
	}
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampDuration(v, min, max time.Duration) time.Duration {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
