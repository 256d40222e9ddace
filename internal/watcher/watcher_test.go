package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/slnstrip/slnstrip/pkg/cleaner"
	"github.com/slnstrip/slnstrip/pkg/config"
	"github.com/slnstrip/slnstrip/pkg/logger"
	"github.com/slnstrip/slnstrip/pkg/solution"
)

const dirty = "Header\nALL_BUILD\n1\n2\n3\n4\nGlobal\n"

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestFileWatcher_SettlesBurst(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "Game.sln")

	w, err := NewFileWatcher(target, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		os.WriteFile(target, []byte(dirty), 0644)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case got := <-w.Changes():
		if got != w.Target() {
			t.Errorf("expected %s, got %s", w.Target(), got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no settled change delivered")
	}

	select {
	case <-w.Changes():
		t.Error("a burst of writes should settle into one change")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	w, err := NewFileWatcher(filepath.Join(root, "Game.sln"), 10*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	os.WriteFile(filepath.Join(root, "Other.sln"), []byte(dirty), 0644)

	select {
	case <-w.Changes():
		t.Error("changes to other files must be ignored")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFileWatcher_MissingDirectory(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "out", "nested", "Game.sln")

	w, err := NewFileWatcher(target, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	os.WriteFile(target, []byte(dirty), 0644)

	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("target created under a new directory was not seen")
	}
}

func TestFileWatcher_OutputDirectoryRecreated(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	target := filepath.Join(out, "Game.sln")
	if err := os.MkdirAll(out, 0755); err != nil {
		t.Fatal(err)
	}

	w, err := NewFileWatcher(target, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	for round := 1; round <= 2; round++ {
		if err := os.RemoveAll(out); err != nil {
			t.Fatal(err)
		}
		eventually(t, func() bool { return !w.isWatched(out) }, "removed directory is still marked as watched")

		if err := os.MkdirAll(out, 0755); err != nil {
			t.Fatal(err)
		}
		eventually(t, func() bool { return w.isWatched(out) }, "recreated directory was not watched again")
		if err := os.WriteFile(target, []byte(dirty), 0644); err != nil {
			t.Fatal(err)
		}

		select {
		case <-w.Changes():
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: no change delivered after the output directory was recreated", round)
		}
	}
}

func TestIsAncestor(t *testing.T) {
	sep := string(filepath.Separator)
	tests := []struct {
		dir, path string
		want      bool
	}{
		{sep + "a", sep + filepath.Join("a", "b", "c.sln"), true},
		{sep + filepath.Join("a", "b"), sep + filepath.Join("a", "b", "c.sln"), true},
		{sep + filepath.Join("a", "x"), sep + filepath.Join("a", "b", "c.sln"), false},
		{sep + filepath.Join("a", "b", "c.sln"), sep + filepath.Join("a", "b", "c.sln"), false},
	}
	for _, tt := range tests {
		if got := isAncestor(tt.dir, tt.path); got != tt.want {
			t.Errorf("isAncestor(%s, %s) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

type countingStripper struct {
	mu    sync.Mutex
	calls int
	next  Stripper
}

func (c *countingStripper) StripNow(ctx context.Context, path string) (*cleaner.Result, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.next.StripNow(ctx, path)
}

func (c *countingStripper) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestService_StripsDirtySolution(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "out", "Game.sln")

	cfg := config.Default()
	log := logger.Discard()
	stripper := &countingStripper{next: cleaner.New(cfg, root, log, nil, nil)}

	w, err := NewFileWatcher(target, 20*time.Millisecond, log)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	svc := NewService(w, stripper, solution.NewStripper(cfg.Marker, cfg.BlockLength), log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	os.MkdirAll(filepath.Dir(target), 0755)
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(target, []byte(dirty), 0644); err != nil {
		t.Fatal(err)
	}

	eventually(t, func() bool {
		data, err := os.ReadFile(target)
		return err == nil && string(data) == "Header\nGlobal\n"
	}, "solution was not stripped")

	// Our own rewrite settles too but must not strip again
	time.Sleep(200 * time.Millisecond)
	if n := stripper.count(); n != 1 {
		t.Errorf("expected exactly one strip, got %d", n)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestService_StripsExistingSolutionOnStart(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "Game.sln")
	os.WriteFile(target, []byte(dirty), 0644)

	cfg := config.Default()
	w, err := NewFileWatcher(target, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	svc := NewService(w, cleaner.New(cfg, root, nil, nil, nil), solution.NewStripper("", 0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	eventually(t, func() bool {
		data, _ := os.ReadFile(target)
		return string(data) == "Header\nGlobal\n"
	}, "existing solution was not stripped")
}

func TestSafeGroup_RecoversPanic(t *testing.T) {
	g, _ := NewSafeGroup(context.Background(), logger.Discard())
	g.Go(func() error {
		panic("boom")
	})

	err := g.Wait()
	if err == nil {
		t.Fatal("expected panic converted to error")
	}
}

func TestSafeGroup_FirstError(t *testing.T) {
	boom := errors.New("boom")
	g, ctx := NewSafeGroup(context.Background(), logger.Discard())
	g.Go(func() error { return boom })
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	if err := g.Wait(); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}
