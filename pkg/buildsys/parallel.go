package buildsys

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ForEachOptions configures ForEach.
type ForEachOptions struct {
	// Degree is the maximum number of concurrent calls. Values below 1 mean 1.
	Degree int
	// CompleteOnFailure makes ForEach call fn for every item even after a failure.
	// All errors are combined into the returned error.
	CompleteOnFailure bool
	// Done is called after each item, regardless of the outcome.
	Done func(item string, err error)
}

// ForEach calls fn for every item with bounded concurrency.
//
// Without CompleteOnFailure the first error cancels the context passed to the remaining calls and
// items that haven't started yet are not attempted.
func ForEach(ctx context.Context, items []string, opts ForEachOptions, fn func(ctx context.Context, item string) error) error {
	degree := opts.Degree
	if degree < 1 {
		degree = 1
	}

	done := opts.Done
	if done == nil {
		done = func(string, error) {}
	}

	if !opts.CompleteOnFailure {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(degree)

		for _, item := range items {
			item := item
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}

				err := fn(gctx, item)
				done(item, err)
				return err
			})
		}

		return g.Wait()
	}

	var (
		g    errgroup.Group
		lock sync.Mutex
		errs error
	)
	g.SetLimit(degree)

	for _, item := range items {
		item := item
		g.Go(func() error {
			err := fn(ctx, item)
			done(item, err)

			if err != nil {
				lock.Lock()
				errs = multierr.Append(errs, err)
				lock.Unlock()
			}

			// failures are collected in errs
			return nil
		})
	}

	_ = g.Wait()
	return errs
}
