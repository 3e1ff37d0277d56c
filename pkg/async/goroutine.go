package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/observability"
)

// SafeGo runs fn in a goroutine bounded by timeout. Panics are recovered
// and errors are logged; neither reaches the caller.
//
// Example:
//
//	SafeGo(ctx, logger, 30*time.Second, "expired token purge", func(ctx context.Context) error {
//	    return job.Run(ctx)
//	})
func SafeGo(parentCtx context.Context, logger logrus.FieldLogger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()
		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}

// Batch applies fn to every item with at most workers running at once and
// waits for all of them. Each call gets its own timeout. The returned
// errors are in no particular order; a panicking call becomes an error.
//
// Example:
//
//	errs := Batch(ctx, messages, 4, "invite email", 10*time.Second, func(ctx context.Context, m Message) error {
//	    return sender.Send(ctx, m)
//	})
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {
	if workers <= 0 {
		workers = 1
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
		sem  = make(chan struct{}, workers)
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			record(fmt.Errorf("%s: %w", taskName, err))
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			record(fmt.Errorf("%s: %w", taskName, ctx.Err()))
			wg.Wait()
			return errs
		}

		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					record(fmt.Errorf("%s: panic: %v", taskName, r))
				}
			}()

			taskCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := fn(taskCtx, item); err != nil {
				record(err)
			}
		}(item)
	}

	wg.Wait()
	return errs
}
