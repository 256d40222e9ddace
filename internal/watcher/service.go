package watcher

import (
	"context"
	"errors"
	"os"

	"github.com/slnstrip/slnstrip/pkg/cleaner"
	"github.com/slnstrip/slnstrip/pkg/lock"
	"github.com/slnstrip/slnstrip/pkg/logger"
	"github.com/slnstrip/slnstrip/pkg/solution"
	"github.com/slnstrip/slnstrip/pkg/tracing"
)

// Stripper strips a solution immediately; *cleaner.Cleaner in production
type Stripper interface {
	StripNow(ctx context.Context, path string) (*cleaner.Result, error)
}

// Service runs the file watcher and the strip worker together
type Service struct {
	watcher  *FileWatcher
	stripper Stripper
	marker   *solution.Stripper
	logger   logger.Logger
}

// NewService creates a watch service. marker decides whether a changed file
// still needs stripping, so the service's own rewrites are ignored.
func NewService(w *FileWatcher, stripper Stripper, marker *solution.Stripper, log logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		watcher:  w,
		stripper: stripper,
		marker:   marker,
		logger:   log.WithComponent("watch"),
	}
}

// Run blocks until ctx is done or the watcher fails
func (s *Service) Run(ctx context.Context) error {
	g, gctx := NewSafeGroup(ctx, s.logger)

	g.Go(func() error {
		return s.watcher.Run(gctx)
	})
	g.Go(func() error {
		return s.work(gctx)
	})

	s.logger.Info("Watching solution", logger.WithField("target", s.watcher.Target()))
	return g.Wait()
}

func (s *Service) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-s.watcher.Changes():
			s.handle(tracing.Enrich(ctx, "strip"), path)
		}
	}
}

func (s *Service) handle(ctx context.Context, path string) {
	log := logger.WithContext(ctx, s.logger)

	dirty, err := solution.FileContainsMarker(path, s.marker)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug("Solution removed before it settled", logger.WithField("target", path))
		} else {
			log.Warn("Failed to inspect solution", logger.WithError(err))
		}
		return
	}
	if !dirty {
		log.Debug("Solution already clean", logger.WithField("target", path))
		return
	}

	result, err := s.stripper.StripNow(ctx, path)
	switch {
	case errors.Is(err, lock.ErrAlreadyLocked):
		log.Info("Another cleaner is active; leaving the solution to it")
	case err != nil:
		log.Error("Failed to strip solution", logger.WithError(err))
	default:
		log.Debug("Strip finished", logger.WithField("outcome", string(result.Outcome)))
	}
}
