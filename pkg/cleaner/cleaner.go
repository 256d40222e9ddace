// Package cleaner implements the background half of slnstrip: it takes the
// run-lock, waits a bounded time for the generated solution to appear and
// strips the ALL_BUILD project blocks from it.
package cleaner

//go:generate mockgen -destination=../mocks/mock_cleaner.go -package=mocks github.com/slnstrip/slnstrip/pkg/cleaner Notifier,Sleeper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slnstrip/slnstrip/pkg/config"
	"github.com/slnstrip/slnstrip/pkg/lock"
	"github.com/slnstrip/slnstrip/pkg/logger"
	"github.com/slnstrip/slnstrip/pkg/solution"
	"github.com/slnstrip/slnstrip/pkg/tracing"
)

// State is a step of a cleaner run
type State string

const (
	StateAcquiringLock  State = "acquiring_lock"
	StateWaitingForFile State = "waiting_for_file"
	StateNotFound       State = "not_found"
	StateRewriting      State = "rewriting"
	StateReleasingLock  State = "releasing_lock"
	StateDone           State = "done"
)

// Outcome summarizes how a run ended
type Outcome string

const (
	OutcomeStripped Outcome = "stripped"
	OutcomeNotFound Outcome = "not_found"
	OutcomeLocked   Outcome = "locked"
	OutcomeFailed   Outcome = "failed"
)

// Notifier is told about runs that changed, or failed to change, the solution
type Notifier interface {
	NotifyStripped(path string, removed int)
	NotifyFailed(path string, err error)
}

// Sleeper blocks for d or until ctx is done
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer
type TimerSleeper struct{}

// Sleep implements Sleeper
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Result describes a finished run
type Result struct {
	Target   string
	Outcome  Outcome
	States   []State
	Attempts int
	Blocks   int
	Removed  int
}

func (r *Result) enter(s State) {
	r.States = append(r.States, s)
}

// Cleaner strips one solution file under the run-lock
type Cleaner struct {
	wait     config.WaitConfig
	lockPath string
	stripper *solution.Stripper
	logger   logger.Logger
	notifier Notifier
	sleeper  Sleeper
}

// New creates a cleaner. A relative lockFile is resolved against root, the
// directory the cleaner process runs in. Nil notifier and sleeper fall back
// to no notifications and a real timer.
func New(cfg *config.Config, root string, log logger.Logger, notifier Notifier, sleeper Sleeper) *Cleaner {
	if log == nil {
		log = logger.Discard()
	}
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}

	lockPath := cfg.LockFile
	if !filepath.IsAbs(lockPath) {
		lockPath = filepath.Join(root, lockPath)
	}

	return &Cleaner{
		wait:     cfg.Wait,
		lockPath: lockPath,
		stripper: solution.NewStripper(cfg.Marker, cfg.BlockLength),
		logger:   log.WithComponent("cleaner"),
		notifier: notifier,
		sleeper:  sleeper,
	}
}

// LockPath returns the resolved run-lock path
func (c *Cleaner) LockPath() string {
	return c.lockPath
}

// Run performs a full cleaner pass on target: lock, bounded wait, rewrite,
// release. A held lock yields OutcomeLocked and an ErrAlreadyLocked error; a
// target that never appears yields OutcomeNotFound and no error.
func (c *Cleaner) Run(ctx context.Context, target string) (*Result, error) {
	return c.run(ctx, target, true)
}

// StripNow is Run without the wait window. A missing target is OutcomeNotFound.
func (c *Cleaner) StripNow(ctx context.Context, target string) (*Result, error) {
	return c.run(ctx, target, false)
}

func (c *Cleaner) run(ctx context.Context, target string, wait bool) (*Result, error) {
	log := logger.WithContext(ctx, c.logger)
	result := &Result{Target: target}

	result.enter(StateAcquiringLock)
	var held bool
	var runErr error
	err := lock.With(c.lockPath, func() error {
		held = true
		defer result.enter(StateReleasingLock)
		runErr = c.locked(ctx, log, target, wait, result)
		return runErr
	})

	if !held {
		if errors.Is(err, lock.ErrAlreadyLocked) {
			result.Outcome = OutcomeLocked
			log.Warn("Already running", logger.WithField("lock", c.lockPath))
		} else {
			result.Outcome = OutcomeFailed
			log.Error("Failed to acquire run-lock", logger.WithError(err))
		}
		return result, err
	}

	if err != runErr {
		log.Error("Failed to release run-lock", logger.WithError(err))
	}
	result.enter(StateDone)
	return result, err
}

// locked is the part of a run that happens while the run-lock is held
func (c *Cleaner) locked(ctx context.Context, log logger.Logger, target string, wait bool, result *Result) error {
	var found bool
	var err error
	if wait {
		result.enter(StateWaitingForFile)
		found, err = c.waitForFile(ctx, target, result)
	} else {
		result.Attempts = 1
		found, err = exists(target)
	}
	if err != nil {
		result.Outcome = OutcomeFailed
		return err
	}

	if !found {
		result.enter(StateNotFound)
		result.Outcome = OutcomeNotFound
		log.Debug("Solution never appeared", logger.WithField("target", target),
			logger.WithField("attempts", result.Attempts))
		return nil
	}

	result.enter(StateRewriting)
	stripped, err := solution.RewriteFile(target, c.stripper)
	if err != nil {
		result.Outcome = OutcomeFailed
		log.Error("Failed to rewrite solution", logger.WithField("target", target), logger.WithError(err))
		if c.notifier != nil {
			c.notifier.NotifyFailed(target, err)
		}
		return err
	}

	result.Outcome = OutcomeStripped
	result.Blocks = stripped.Blocks
	result.Removed = stripped.Removed
	log.Success("Solution cleaned",
		logger.WithField("target", target),
		logger.WithField("blocks", stripped.Blocks),
		logger.WithField("removed", stripped.Removed))
	if c.notifier != nil {
		c.notifier.NotifyStripped(target, stripped.Removed)
	}
	return nil
}

// waitForFile sleeps the initial delay, then checks up to MaxRetries times
// with RetryDelay between failed checks, then checks once more.
func (c *Cleaner) waitForFile(ctx context.Context, target string, result *Result) (bool, error) {
	log := logger.WithContext(tracing.WithOperation(ctx, "wait"), c.logger)

	if err := c.sleeper.Sleep(ctx, c.wait.InitialDelayDuration()); err != nil {
		return false, fmt.Errorf("wait interrupted: %w", err)
	}

	for i := 0; i < c.wait.MaxRetries; i++ {
		result.Attempts++
		found, err := exists(target)
		if err != nil || found {
			return found, err
		}
		log.Debug("Solution not there yet", logger.WithField("attempt", result.Attempts))
		if err := c.sleeper.Sleep(ctx, c.wait.RetryDelayDuration()); err != nil {
			return false, fmt.Errorf("wait interrupted: %w", err)
		}
	}

	result.Attempts++
	return exists(target)
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}
