package scenario

import (
	"fmt"
	"os"
	"path/filepath"
)

// Unit is a loaded scenario document together with its resolved
// subroutines. Aliases are scoped to the including document.
type Unit struct {
	// Doc is the parsed document.
	Doc *Document

	// Path is the absolute path the document was loaded from.
	Path string

	// Subs maps a subroutine alias to its loaded unit.
	Subs map[string]*Unit
}

// Loader reads scenario files and their subroutine closures from disk.
//
// A subroutine path is resolved against the directory of the file that
// references it, then against each search path entry in order. Include
// cycles are rejected.
type Loader struct {
	searchPath []string
}

// NewLoader creates a loader with the given search path entries.
func NewLoader(searchPath ...string) *Loader {
	return &Loader{searchPath: searchPath}
}

// Load reads the scenario at path and recursively loads every subroutine
// it references.
func (l *Loader) Load(path string) (*Unit, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}
	return l.load(abs, nil)
}

// load reads one file; stack holds the absolute paths of files currently
// being loaded, for include-cycle detection.
func (l *Loader) load(abs string, stack []string) (*Unit, error) {
	for _, open := range stack {
		if open == abs {
			return nil, fmt.Errorf("subroutine include cycle: %s", formatCycle(stack, abs))
		}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}

	unit := &Unit{Doc: doc, Path: abs, Subs: make(map[string]*Unit, len(doc.Subroutines))}
	stack = append(stack, abs)

	for _, ref := range doc.Subroutines {
		subPath, err := l.resolve(ref.Load, filepath.Dir(abs))
		if err != nil {
			return nil, fmt.Errorf("%s: subroutine %q: %w", abs, ref.As, err)
		}
		sub, err := l.load(subPath, stack)
		if err != nil {
			return nil, err
		}
		unit.Subs[ref.As] = sub
	}

	return unit, nil
}

// resolve finds a subroutine file: relative to the including file first,
// then along the search path.
func (l *Loader) resolve(ref, includingDir string) (string, error) {
	if filepath.IsAbs(ref) {
		if fileExists(ref) {
			return ref, nil
		}
		return "", fmt.Errorf("scenario file not found: %s", ref)
	}

	candidates := make([]string, 0, len(l.searchPath)+1)
	candidates = append(candidates, filepath.Join(includingDir, ref))
	for _, dir := range l.searchPath {
		candidates = append(candidates, filepath.Join(dir, ref))
	}

	for _, candidate := range candidates {
		if fileExists(candidate) {
			return filepath.Abs(candidate)
		}
	}
	return "", fmt.Errorf("scenario file %q not found in %d search location(s)", ref, len(candidates))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func formatCycle(stack []string, repeat string) string {
	out := ""
	for _, p := range stack {
		out += filepath.Base(p) + " -> "
	}
	return out + filepath.Base(repeat)
}
