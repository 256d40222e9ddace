package solution_test

import (
	"reflect"
	"testing"

	"github.com/slnstrip/slnstrip/pkg/solution"
)

func TestStripper_Example(t *testing.T) {
	s := solution.NewStripper("", 0)

	result := s.Strip([]string{"A", "B", "ALL_BUILD_CFG", "X1", "X2", "X3", "X4", "C"})

	want := []string{"A", "B", "C"}
	if !reflect.DeepEqual(result.Lines, want) {
		t.Errorf("expected %v, got %v", want, result.Lines)
	}
	if result.Blocks != 1 || result.Removed != 5 {
		t.Errorf("expected 1 block / 5 lines removed, got %d / %d", result.Blocks, result.Removed)
	}
}

func TestStripper_Cases(t *testing.T) {
	tests := []struct {
		name        string
		marker      string
		blockLength int
		input       []string
		want        []string
		removed     int
	}{
		{
			name:  "no marker",
			input: []string{"a", "b", "c"},
			want:  []string{"a", "b", "c"},
		},
		{
			name:    "marker on first line",
			input:   []string{"ALL_BUILD", "1", "2", "3", "4", "keep"},
			want:    []string{"keep"},
			removed: 5,
		},
		{
			name:    "truncated tail",
			input:   []string{"a", "ALL_BUILD", "1", "2"},
			want:    []string{"a"},
			removed: 3,
		},
		{
			name:    "marker is last line",
			input:   []string{"a", "b", "ALL_BUILD"},
			want:    []string{"a", "b"},
			removed: 1,
		},
		{
			name:    "marker inside a block is not re-checked",
			input:   []string{"ALL_BUILD", "1", "ALL_BUILD again", "3", "4", "after"},
			want:    []string{"after"},
			removed: 5,
		},
		{
			name:    "adjacent blocks",
			input:   []string{"ALL_BUILD", "1", "2", "3", "4", "ALL_BUILD", "5", "6", "7", "8", "end"},
			want:    []string{"end"},
			removed: 10,
		},
		{
			name:    "marker right after a block starts a new one",
			input:   []string{"x", "ALL_BUILD", "1", "2", "3", "4", "ALL_BUILD", "5"},
			want:    []string{"x"},
			removed: 7,
		},
		{
			name:        "block length one drops only marker lines",
			blockLength: 1,
			input:       []string{"a", "ALL_BUILD", "b", "ALL_BUILD", "c"},
			want:        []string{"a", "b", "c"},
			removed:     2,
		},
		{
			name:        "custom marker and length",
			marker:      "ZERO_CHECK",
			blockLength: 2,
			input:       []string{"ALL_BUILD", "ZERO_CHECK", "cfg", "tail"},
			want:        []string{"ALL_BUILD", "tail"},
			removed:     2,
		},
		{
			name:  "marker is case-sensitive",
			input: []string{"all_build", "x"},
			want:  []string{"all_build", "x"},
		},
		{
			name:  "empty input",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := solution.NewStripper(tt.marker, tt.blockLength)
			result := s.Strip(tt.input)

			if !reflect.DeepEqual(result.Lines, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, result.Lines)
			}
			if result.Removed != tt.removed {
				t.Errorf("expected %d removed lines, got %d", tt.removed, result.Removed)
			}
		})
	}
}

func TestStripper_BlockSizeInvariant(t *testing.T) {
	s := solution.NewStripper(solution.DefaultMarker, solution.DefaultBlockLength)

	before := []string{"p1", "p2", "p3"}
	after := []string{"s1", "s2"}
	for pos := 0; pos <= len(before); pos++ {
		input := append([]string{}, before[:pos]...)
		input = append(input, "Project(\"ALL_BUILD\")", "b1", "b2", "b3", "b4")
		input = append(input, after...)

		result := s.Strip(input)

		want := append(append([]string{}, before[:pos]...), after...)
		if !reflect.DeepEqual(result.Lines, want) {
			t.Errorf("pos %d: expected %v, got %v", pos, want, result.Lines)
		}
		if len(input)-len(result.Lines) != 5 {
			t.Errorf("pos %d: expected exactly 5 lines removed", pos)
		}
	}
}

func TestStripper_Idempotent(t *testing.T) {
	s := solution.NewStripper("", 0)
	input := []string{"A", "ALL_BUILD", "1", "2", "3", "4", "B", "ALL_BUILD", "x"}

	first := s.Strip(input)
	second := s.Strip(first.Lines)

	if !reflect.DeepEqual(first.Lines, second.Lines) {
		t.Errorf("second pass changed output: %v -> %v", first.Lines, second.Lines)
	}
	if second.Removed != 0 || second.Blocks != 0 {
		t.Errorf("second pass removed %d lines", second.Removed)
	}
	if s.Contains(first.Lines) {
		t.Error("stripped output should not contain the marker")
	}
}

func TestStripper_Defaults(t *testing.T) {
	s := solution.NewStripper("", -3)
	if s.Marker() != "ALL_BUILD" || s.BlockLength() != 5 {
		t.Errorf("expected defaults, got %s/%d", s.Marker(), s.BlockLength())
	}
}

func TestScanState_String(t *testing.T) {
	if solution.Scanning.String() != "SCANNING" || solution.Skipping.String() != "SKIPPING" {
		t.Error("unexpected state names")
	}
}
