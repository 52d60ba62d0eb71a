// Package governor runs per-item work on a fixed number of workers and pauses
// all of them for a cooldown after every checkpoint of completed items.
package governor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options configures a Governor.
type Options struct {
	// Width is the number of concurrent workers. Default 8.
	Width int
	// Checkpoint is the completed-item interval between pauses. Zero or
	// negative disables pausing.
	Checkpoint int
	// Cooldown is how long a pause lasts.
	Cooldown time.Duration
	// Name labels progress logs.
	Name string
	// Fatal reports errors that must stop the whole run instead of being
	// counted as skipped. Nil treats every item error as skippable.
	Fatal func(error) bool
}

// Stats summarises a run.
type Stats struct {
	Processed int64 `json:"processed"`
	Skipped   int64 `json:"skipped"`
	Pauses    int64 `json:"pauses"`
}

// Governor bounds concurrency and paces throughput for upstream hosts that
// throttle bursts.
type Governor struct {
	opts Options
}

// New creates a Governor.
func New(opts Options) *Governor {
	if opts.Width <= 0 {
		opts.Width = 8
	}
	if opts.Name == "" {
		opts.Name = "governor"
	}
	return &Governor{opts: opts}
}

// Run calls fn once for each index in [0, n). An error from fn is logged and
// counted as skipped; it does not stop the run unless Options.Fatal matches
// it, in which case the remaining items are abandoned and the error is
// returned. Otherwise Run returns an error only when ctx is cancelled.
func (g *Governor) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) (Stats, error) {
	log := zap.L().With(zap.String("component", "governor"), zap.String("run", g.opts.Name))

	var (
		completed, skipped, pauses atomic.Int64
		gate                       gate
	)

	idx := make(chan int)
	eg, gctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer close(idx)
		for i := range n {
			select {
			case idx <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range g.opts.Width {
		eg.Go(func() error {
			for {
				var i int
				var ok bool
				select {
				case i, ok = <-idx:
					if !ok {
						return nil
					}
				case <-gctx.Done():
					return gctx.Err()
				}

				if err := gate.wait(gctx); err != nil {
					return err
				}

				if err := fn(gctx, i); err != nil {
					if g.opts.Fatal != nil && g.opts.Fatal(err) {
						log.Error("item failed fatally, stopping run", zap.Int("index", i), zap.Error(err))
						return &fatalError{err: err}
					}
					skipped.Add(1)
					log.Warn("item failed, skipping", zap.Int("index", i), zap.Error(err))
				}

				done := completed.Add(1)
				if g.opts.Checkpoint <= 0 || done%int64(g.opts.Checkpoint) != 0 {
					continue
				}

				pauses.Add(1)
				gate.pause()
				log.Info("checkpoint reached, cooling down",
					zap.Int64("completed", done),
					zap.Int("total", n),
					zap.Int64("skipped", skipped.Load()),
					zap.Duration("cooldown", g.opts.Cooldown),
				)
				err := sleep(gctx, g.opts.Cooldown)
				gate.release()
				if err != nil {
					return err
				}
			}
		})
	}

	err := eg.Wait()
	stats := Stats{
		Processed: completed.Load(),
		Skipped:   skipped.Load(),
		Pauses:    pauses.Load(),
	}
	log.Info("run complete",
		zap.Int64("completed", stats.Processed),
		zap.Int("total", n),
		zap.Int64("skipped", stats.Skipped),
	)
	var fatal *fatalError
	if errors.As(err, &fatal) {
		return stats, eris.Wrap(fatal.err, "governor: fatal item error")
	}
	if err != nil {
		return stats, eris.Wrap(err, "governor: run interrupted")
	}
	return stats, nil
}

// fatalError carries an item error matched by Options.Fatal out of the
// worker group.
type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// ForEach runs fn over items through g.
func ForEach[T any](ctx context.Context, g *Governor, items []T, fn func(ctx context.Context, item T) error) (Stats, error) {
	return g.Run(ctx, len(items), func(ctx context.Context, i int) error {
		return fn(ctx, items[i])
	})
}

// gate blocks workers while at least one pause is held.
type gate struct {
	mu     sync.Mutex
	held   int
	resume chan struct{}
}

func (g *gate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == 0 {
		g.resume = make(chan struct{})
	}
	g.held++
}

func (g *gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held--
	if g.held == 0 {
		close(g.resume)
		g.resume = nil
	}
}

func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.resume
	g.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
