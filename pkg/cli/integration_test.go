package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/slnstrip/slnstrip/pkg/cli"
	"github.com/slnstrip/slnstrip/pkg/launcher"
	"github.com/slnstrip/slnstrip/pkg/process"
)

// TestEndToEnd launches, lets the generator write the solution late and
// checks that the cleaner started by the launcher strips it
func TestEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "CMakeLists.txt"), []byte("cmake_minimum_required(VERSION 3.20)\nproject(AdventureGamer VERSION 1.0)\n"), 0644)
	os.WriteFile(filepath.Join(root, "slnstrip.config.yaml"), []byte(`notifications:
  enabled: false
wait:
  initialDelay: 50
  retryDelay: 50
  maxRetries: 40
`), 0644)

	done := make(chan error, 1)
	spawner := launcher.SpawnerFunc(func(spec process.Spec) (int, error) {
		// Run the cleaner in-process instead of as a detached child
		go func() {
			var out bytes.Buffer
			child := cli.NewCLIWithOutput(cli.NewConfig(), &out, &out)
			done <- child.Execute(spec.Args)
		}()
		return 1, nil
	})

	var out bytes.Buffer
	c := cli.NewCLIWithOutput(cli.NewConfig(), &out, &out)
	c.SetSpawner(spawner, "/opt/slnstrip")
	if err := c.Execute([]string{"--root", root}); err != nil {
		t.Fatalf("launch failed: %v", err)
	}

	// The generator writes the solution after the launcher returned
	time.Sleep(150 * time.Millisecond)
	target := filepath.Join(root, "out", "AdventureGamer.sln")
	os.MkdirAll(filepath.Dir(target), 0755)
	if err := os.WriteFile(target, []byte(dirtySolution), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cleaner failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("cleaner did not finish")
	}

	data, _ := os.ReadFile(target)
	if string(data) != "Header\nGlobal\n" {
		t.Errorf("unexpected solution %q", data)
	}
	if _, err := os.Stat(filepath.Join(root, ".cmake_config_fix.lock")); !os.IsNotExist(err) {
		t.Error("lock must be released")
	}
}
