// Package process spawns the detached cleaner and manages the lifecycle of
// long-running slnstrip commands.
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/slnstrip/slnstrip/pkg/logger"
)

// Manager runs shutdown handlers when the process receives a termination
// signal or its context ends
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	stop             chan struct{}
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
	shutdownOnce     sync.Once
}

// NewManager creates a new process manager
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		logger:           log.WithComponent("process"),
		shutdownHandlers: make([]func(), 0),
	}
}

// RegisterShutdownHandler adds a shutdown handler. Handlers run once, in
// reverse registration order.
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// Start listens for SIGINT, SIGTERM and SIGHUP until ctx is done or Stop is called
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer signal.Stop(sigChan)

		select {
		case <-ctx.Done():
			m.handleShutdown()
		case sig := <-sigChan:
			m.logger.Info("Received signal", logger.WithField("signal", sig))
			m.handleShutdown()
		case <-stop:
		}
	}()
}

// Stop stops listening for signals without running the shutdown handlers
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.running {
		m.running = false
		close(m.stop)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// IsRunning checks if the process manager is listening for signals
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Shutdown runs the shutdown handlers now
func (m *Manager) Shutdown() {
	m.handleShutdown()
}

func (m *Manager) handleShutdown() {
	m.shutdownOnce.Do(func() {
		m.logger.Info("Initiating graceful shutdown...")

		m.mu.Lock()
		handlers := make([]func(), len(m.shutdownHandlers))
		copy(handlers, m.shutdownHandlers)
		m.mu.Unlock()

		for i := len(handlers) - 1; i >= 0; i-- {
			handlers[i]()
		}
	})
}
