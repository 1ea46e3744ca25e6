package filesets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Fileset is an ordered list of file specifications controlling which files
// migrate from one lifecycle area to the next. Entries name files or
// directories relative to the area root; entries prefixed with "-" exclude
// instead of include. An empty include list means everything.
type Fileset struct {
	entries []string
}

// New creates a fileset from raw specification entries.
func New(entries []string) Fileset {
	return Fileset{entries: append([]string(nil), entries...)}
}

// Entries returns the raw specification entries.
func (f Fileset) Entries() []string {
	return append([]string(nil), f.entries...)
}

// Includes returns the inclusion entries, defaulting to everything.
func (f Fileset) Includes() []string {
	var out []string
	for _, entry := range f.entries {
		if !strings.HasPrefix(entry, "-") {
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}

// Excludes returns the exclusion entries with their leading dash stripped.
func (f Fileset) Excludes() []string {
	var out []string
	for _, entry := range f.entries {
		if strings.HasPrefix(entry, "-") {
			out = append(out, entry[1:])
		}
	}
	return out
}

// Validate rejects malformed entries.
func (f Fileset) Validate() error {
	for _, entry := range f.entries {
		trimmed := strings.TrimPrefix(entry, "-")
		if trimmed == "" {
			return fmt.Errorf("fileset entry %q is empty", entry)
		}
		if filepath.IsAbs(trimmed) {
			return fmt.Errorf("fileset entry %q must be relative", entry)
		}
		if trimmed == ".." || strings.HasPrefix(trimmed, "../") {
			return fmt.Errorf("fileset entry %q escapes the area root", entry)
		}
	}
	return nil
}

// Matches reports whether the relative path is selected by this fileset.
func (f Fileset) Matches(rel string) bool {
	if !matchesAny(f.Includes(), rel) {
		return false
	}
	return !matchesAny(f.Excludes(), rel)
}

// MigratableFiles walks root and returns the relative file and directory
// paths selected by the fileset, sorted for deterministic migration order.
func (f Fileset) MigratableFiles(root string) (files, dirs []string, err error) {
	dirSet := map[string]struct{}{}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) && path == root {
				return filepath.SkipAll
			}
			return walkErr
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if !f.Matches(rel) {
			return nil
		}
		if d.IsDir() {
			dirSet[rel] = struct{}{}
			return nil
		}
		files = append(files, rel)
		for parent := filepath.Dir(rel); parent != "."; parent = filepath.Dir(parent) {
			dirSet[parent] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for dir := range dirSet {
		dirs = append(dirs, dir)
	}
	sort.Strings(files)
	sort.Strings(dirs)
	return files, dirs, nil
}

// IsSupersetOf reports whether this fileset selects at least every file the
// other fileset selects, judged at the specification level: the include set
// must contain every include of the other, and no exclusion may be added.
// This is the additive predicate backing UPDATE classification for stage and
// prime filesets.
func (f Fileset) IsSupersetOf(other Fileset) bool {
	includes := toSet(f.Includes())
	for _, entry := range other.Includes() {
		if _, ok := includes[entry]; !ok {
			return false
		}
	}

	otherExcludes := toSet(other.Excludes())
	for _, entry := range f.Excludes() {
		if _, ok := otherExcludes[entry]; !ok {
			return false
		}
	}
	return true
}

func matchesAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if matchPattern(pattern, rel) {
			return true
		}
	}
	return false
}

// matchPattern matches a fileset entry against a relative path. An entry
// selects the named path itself and everything below it; shell glob syntax
// is honored on the final path element.
func matchPattern(pattern, rel string) bool {
	pattern = strings.TrimSuffix(pattern, "/")
	if pattern == "*" || pattern == rel {
		return true
	}
	if strings.HasPrefix(rel, pattern+"/") {
		return true
	}
	if ok, err := filepath.Match(pattern, rel); err == nil && ok {
		return true
	}
	// a glob matching a parent directory selects the subtree
	for parent := filepath.Dir(rel); parent != "."; parent = filepath.Dir(parent) {
		if ok, err := filepath.Match(pattern, parent); err == nil && ok {
			return true
		}
	}
	return false
}

func toSet(entries []string) map[string]struct{} {
	out := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		out[entry] = struct{}{}
	}
	return out
}
