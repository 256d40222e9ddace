package process

import (
	"fmt"
	"os"
	"os/exec"
)

// Spec describes a child process to start detached
type Spec struct {
	Path string
	Args []string
	Dir  string
	Env  []string

	// LogFile receives the child's stdout and stderr. Empty discards them.
	LogFile string
}

// SpawnDetached starts the child in its own session (process group on
// Windows) and returns its PID without waiting for it. The child keeps
// running after the caller exits.
func SpawnDetached(spec Spec) (int, error) {
	if spec.Path == "" {
		return 0, fmt.Errorf("spawn: executable path is required")
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = detachedAttr()

	var logFile *os.File
	if spec.LogFile != "" {
		f, err := os.OpenFile(spec.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return 0, fmt.Errorf("start %s: %w", spec.Path, err)
	}

	// The child holds its own descriptor
	if logFile != nil {
		logFile.Close()
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release process %d: %w", pid, err)
	}
	return pid, nil
}
