package solution

import (
	"fmt"
	"os"
	"strings"
)

// Document is a text file held in memory as ordered lines. Each line keeps its
// own terminator ("\n" or "\r\n"), so joining the lines reproduces the file
// byte for byte.
type Document struct {
	Path  string
	Lines []string
	mode  os.FileMode
}

// SplitLines splits content after every "\n". The final line has no
// terminator when the content does not end with one.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// ReadDocument reads the entire file at path
func ReadDocument(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Document{
		Path:  path,
		Lines: SplitLines(string(data)),
		mode:  info.Mode().Perm(),
	}, nil
}

// String returns the document content
func (d *Document) String() string {
	return strings.Join(d.Lines, "")
}

// Write truncates the file and writes the current lines, keeping the file's
// original permissions.
func (d *Document) Write() error {
	mode := d.mode
	if mode == 0 {
		mode = 0644
	}
	return os.WriteFile(d.Path, []byte(d.String()), mode)
}

// RewriteFile reads path, strips every marker block and writes the result back
// in place. The file is rewritten even when nothing was removed.
func RewriteFile(path string, s *Stripper) (StripResult, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return StripResult{}, fmt.Errorf("failed to read solution: %w", err)
	}

	result := s.Strip(doc.Lines)
	doc.Lines = result.Lines

	if err := doc.Write(); err != nil {
		return result, fmt.Errorf("failed to write solution: %w", err)
	}
	return result, nil
}

// FileContainsMarker reports whether the file at path has at least one marker line
func FileContainsMarker(path string, s *Stripper) (bool, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return false, err
	}
	return s.Contains(doc.Lines), nil
}
