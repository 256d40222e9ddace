package process_test

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/slnstrip/slnstrip/pkg/process"
)

func TestManager_ContextCancelRunsHandlersInReverse(t *testing.T) {
	m := process.NewManager(nil)

	var mu sync.Mutex
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		m.RegisterShutdownHandler(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	if !m.IsRunning() {
		t.Fatal("manager should be running after Start")
	}

	cancel()
	m.Stop()

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(order, []int{3, 2, 1}) {
		t.Errorf("expected handlers in reverse order, got %v", order)
	}
	if m.IsRunning() {
		t.Error("manager should not be running after Stop")
	}
}

func TestManager_StopSkipsHandlers(t *testing.T) {
	m := process.NewManager(nil)
	called := false
	m.RegisterShutdownHandler(func() { called = true })

	m.Start(context.Background())
	m.Stop()

	if called {
		t.Error("Stop must not run shutdown handlers")
	}
}

func TestManager_ShutdownRunsOnce(t *testing.T) {
	m := process.NewManager(nil)
	calls := 0
	m.RegisterShutdownHandler(func() { calls++ })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	m.Start(ctx)

	m.Shutdown()
	<-ctx.Done()
	m.Stop()

	if calls != 1 {
		t.Errorf("expected handlers to run once, got %d", calls)
	}
}
