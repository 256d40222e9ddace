// Package revision writes the C++ header that embeds the current git revision
package revision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/slnstrip/slnstrip/pkg/logger"
)

// ErrEmptyRevision indicates git produced no revision
var ErrEmptyRevision = errors.New("empty git revision")

const headerTemplate = `#ifndef __GITINFO_H__
#define __GITINFO_H__

#include <string>

const std::string GIT_VERSION_INFO = "%s";

#endif // __GITINFO_H__`

// Runner runs a command in dir and returns its standard output
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// Stamper writes the revision header
type Stamper struct {
	root   string
	header string
	length int
	runner Runner
	logger logger.Logger
}

// NewStamper creates a stamper. A relative header path is resolved against root.
func NewStamper(root, header string, length int, runner Runner, log logger.Logger) *Stamper {
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = logger.Discard()
	}
	if !filepath.IsAbs(header) {
		header = filepath.Join(root, header)
	}
	return &Stamper{
		root:   root,
		header: header,
		length: length,
		runner: runner,
		logger: log.WithComponent("revision"),
	}
}

// HeaderPath returns the resolved header path
func (s *Stamper) HeaderPath() string {
	return s.header
}

// Revision returns the abbreviated HEAD revision
func (s *Stamper) Revision(ctx context.Context) (string, error) {
	out, err := s.runner.Run(ctx, s.root, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to read git revision: %w", err)
	}

	rev := strings.TrimSpace(string(out))
	if rev == "" {
		return "", ErrEmptyRevision
	}
	if s.length > 0 && len(rev) > s.length {
		rev = rev[:s.length]
	}
	return rev, nil
}

// Render returns the header text for rev, without a trailing newline
func Render(rev string) string {
	return fmt.Sprintf(headerTemplate, rev)
}

// Stamp writes the header for the current revision and returns the revision
func (s *Stamper) Stamp(ctx context.Context) (string, error) {
	rev, err := s.Revision(ctx)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(s.header), 0755); err != nil {
		return "", fmt.Errorf("failed to create header directory: %w", err)
	}
	if err := os.WriteFile(s.header, []byte(Render(rev)), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", s.header, err)
	}

	s.logger.Success("Revision header written",
		logger.WithField("revision", rev),
		logger.WithField("path", s.header))
	return rev, nil
}
