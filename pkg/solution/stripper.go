// Package solution rewrites generated solution files line by line.
//
// The rewrite knows nothing about the solution format. It drops every block
// of a fixed number of lines that starts with a line containing the marker,
// which matches the fixed shape CMake emits for its ALL_BUILD target.
package solution

import "strings"

// DefaultMarker is the target name CMake's Visual Studio generator adds
const DefaultMarker = "ALL_BUILD"

// DefaultBlockLength is the marker line plus the four lines that follow it
const DefaultBlockLength = 5

// ScanState is the state of the line-skipping machine
type ScanState int

const (
	// Scanning keeps lines until one contains the marker
	Scanning ScanState = iota
	// Skipping drops lines unconditionally until the block is consumed
	Skipping
)

// String implements fmt.Stringer
func (s ScanState) String() string {
	switch s {
	case Scanning:
		return "SCANNING"
	case Skipping:
		return "SKIPPING"
	default:
		return "UNKNOWN"
	}
}

// Stripper removes marker blocks from a sequence of lines
type Stripper struct {
	marker      string
	blockLength int
}

// NewStripper creates a stripper. An empty marker or a block length below one
// falls back to the defaults.
func NewStripper(marker string, blockLength int) *Stripper {
	if marker == "" {
		marker = DefaultMarker
	}
	if blockLength < 1 {
		blockLength = DefaultBlockLength
	}
	return &Stripper{
		marker:      marker,
		blockLength: blockLength,
	}
}

// Marker returns the substring that starts a block
func (s *Stripper) Marker() string {
	return s.marker
}

// BlockLength returns the number of lines dropped per marker line
func (s *Stripper) BlockLength() int {
	return s.blockLength
}

// StripResult describes one pass over a document
type StripResult struct {
	Lines []string
	// Blocks is the number of marker lines that started a block
	Blocks int
	// Removed is the total number of dropped lines
	Removed int
}

// Strip applies a single top-to-bottom pass. Lines inside a block are dropped
// without being checked for the marker, and a block cut short by the end of
// input simply ends there.
func (s *Stripper) Strip(lines []string) StripResult {
	result := StripResult{Lines: make([]string, 0, len(lines))}

	state := Scanning
	remaining := 0
	for _, line := range lines {
		switch state {
		case Scanning:
			if !strings.Contains(line, s.marker) {
				result.Lines = append(result.Lines, line)
				continue
			}
			result.Blocks++
			result.Removed++
			remaining = s.blockLength - 1
			if remaining > 0 {
				state = Skipping
			}
		case Skipping:
			result.Removed++
			remaining--
			if remaining == 0 {
				state = Scanning
			}
		}
	}

	return result
}

// Contains reports whether any line would start a block
func (s *Stripper) Contains(lines []string) bool {
	for _, line := range lines {
		if strings.Contains(line, s.marker) {
			return true
		}
	}
	return false
}
