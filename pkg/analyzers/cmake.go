// Package analyzers reads build-system project definitions
package analyzers

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrProjectFileNotFound indicates the build-configuration file is absent
	ErrProjectFileNotFound = errors.New("project file not found")

	// ErrMalformedProject indicates a project declaration that could not be parsed
	ErrMalformedProject = errors.New("malformed project declaration")

	// ErrNoProjectDeclaration indicates the file has no project() line at all
	ErrNoProjectDeclaration = errors.New("no project declaration found")
)

// projectMarker is matched case-insensitively, as CMake commands are
const projectMarker = "project("

// CMakeAnalyzer analyzes CMake project definitions
type CMakeAnalyzer struct {
	projectRoot string
	projectFile string
}

// NewCMakeAnalyzer creates a new CMake analyzer. projectFile is the file name
// to look for in projectRoot, usually CMakeLists.txt.
func NewCMakeAnalyzer(projectRoot, projectFile string) *CMakeAnalyzer {
	if projectFile == "" {
		projectFile = "CMakeLists.txt"
	}
	return &CMakeAnalyzer{
		projectRoot: projectRoot,
		projectFile: projectFile,
	}
}

// CMakeProject represents the parsed project declaration
type CMakeProject struct {
	Name string
	// Line is the 1-based line number of the declaration
	Line int
	// Path is the file the declaration was read from
	Path string
}

// SolutionPath returns <outputDir>/<name><extension>
func (p *CMakeProject) SolutionPath(outputDir, extension string) string {
	return filepath.Join(outputDir, p.Name+extension)
}

// FindProjectFile locates the project file in the project root. An exact match
// wins; otherwise the first directory entry whose name matches case-insensitively
// is used, so CMakelists.txt is still found on case-sensitive filesystems.
func (a *CMakeAnalyzer) FindProjectFile() (string, error) {
	exact := filepath.Join(a.projectRoot, a.projectFile)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		return exact, nil
	}

	entries, err := os.ReadDir(a.projectRoot)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrProjectFileNotFound, exact)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), a.projectFile) {
			return filepath.Join(a.projectRoot, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrProjectFileNotFound, exact)
}

// AnalyzeProject reads the first project declaration from the project file
func (a *CMakeAnalyzer) AnalyzeProject() (*CMakeProject, error) {
	path, err := a.FindProjectFile()
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		// Skip comments
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		if !strings.Contains(strings.ToLower(line), projectMarker) {
			continue
		}

		name, err := ParseProjectName(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		return &CMakeProject{Name: name, Line: lineNo, Path: path}, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return nil, fmt.Errorf("%w in %s", ErrNoProjectDeclaration, path)
}

// ParseProjectName extracts the project name from a declaration line such as
// `project(Game VERSION 1.2 LANGUAGES CXX)`. The name is the first argument
// between the opening parenthesis of the marker and the next closing one. A
// quoted first argument may contain spaces.
func ParseProjectName(line string) (string, error) {
	idx := strings.Index(strings.ToLower(line), projectMarker)
	if idx < 0 {
		return "", fmt.Errorf("%w: %q has no %s", ErrMalformedProject, strings.TrimSpace(line), projectMarker)
	}

	rest := line[idx+len(projectMarker):]
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return "", fmt.Errorf("%w: missing ')' in %q", ErrMalformedProject, strings.TrimSpace(line))
	}

	args := strings.TrimSpace(rest[:end])
	var name string
	if strings.HasPrefix(args, `"`) {
		closing := strings.IndexByte(args[1:], '"')
		if closing < 0 {
			return "", fmt.Errorf("%w: unterminated quote in %q", ErrMalformedProject, strings.TrimSpace(line))
		}
		name = args[1 : 1+closing]
	} else if fields := strings.Fields(args); len(fields) > 0 {
		name = fields[0]
	}

	if name == "" {
		return "", fmt.Errorf("%w: empty project name in %q", ErrMalformedProject, strings.TrimSpace(line))
	}
	return name, nil
}

// SolutionPath analyzes the project and returns the expected solution path
func (a *CMakeAnalyzer) SolutionPath(outputDir, extension string) (string, error) {
	project, err := a.AnalyzeProject()
	if err != nil {
		return "", err
	}
	return project.SolutionPath(outputDir, extension), nil
}
