package watcher

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/slnstrip/slnstrip/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// SafeGroup is an errgroup.Group that turns a panicking goroutine into an
// error instead of crashing the watch process
type SafeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a SafeGroup whose context is cancelled when any
// goroutine fails
func NewSafeGroup(ctx context.Context, log logger.Logger) (*SafeGroup, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &SafeGroup{
		group:  g,
		logger: log,
	}, ctx
}

// Go runs fn in a new goroutine with panic recovery
func (sg *SafeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				sg.logger.Error("Goroutine panic recovered",
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(debug.Stack())))
				err = fmt.Errorf("goroutine panic: %v", r)
			}
		}()

		return fn()
	})
}

// Wait blocks until all goroutines have returned and reports the first error
func (sg *SafeGroup) Wait() error {
	return sg.group.Wait()
}
