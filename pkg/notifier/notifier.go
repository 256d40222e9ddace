// Package notifier sends desktop notifications about cleaner outcomes.
// A detached cleaner has no console, so this is how the user learns that
// the solution was stripped.
package notifier

import (
	"fmt"
	"path/filepath"

	"github.com/gen2brain/beeep"
	"github.com/slnstrip/slnstrip/pkg/logger"
)

// NotifyFunc delivers a notification; beeep.Notify in production
type NotifyFunc func(title, message, appIcon string) error

// Notifier handles cleaner notifications
type Notifier struct {
	enabled bool
	send    NotifyFunc
	logger  logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled bool
}

// New creates a notifier backed by beeep
func New(config Config, log logger.Logger) *Notifier {
	return NewWithSender(config, log, beeep.Notify)
}

// NewWithSender creates a notifier with a custom delivery function (for testing)
func NewWithSender(config Config, log logger.Logger, send NotifyFunc) *Notifier {
	if log == nil {
		log = logger.Discard()
	}
	return &Notifier{
		enabled: config.Enabled,
		send:    send,
		logger:  log,
	}
}

// NotifyStripped reports a successful rewrite
func (n *Notifier) NotifyStripped(path string, removed int) {
	if !n.enabled {
		return
	}

	title := "✅ Solution cleaned"
	message := fmt.Sprintf("%s: removed %d line(s)", filepath.Base(path), removed)
	n.sendNotification(title, message)
}

// NotifyFailed reports a rewrite that could not complete
func (n *Notifier) NotifyFailed(path string, err error) {
	if !n.enabled {
		return
	}

	title := "❌ Solution cleanup failed"
	message := fmt.Sprintf("%s: %v", filepath.Base(path), err)
	n.sendNotification(title, message)
}

func (n *Notifier) sendNotification(title, message string) {
	if err := n.send(title, message, ""); err != nil {
		// Headless machines have no notification daemon; fall back to the log
		n.logger.Debug("Failed to send notification", logger.WithError(err))
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
	}
}
