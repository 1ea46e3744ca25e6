package parts

import "path/filepath"

// Dirs derives the work tree layout from a single toplevel directory.
//
// Layout:
//
//	<work>/parts/<name>/{src,build,install,run}
//	<work>/stage
//	<work>/prime
//	<work>/state
type Dirs struct {
	workDir string
}

// NewDirs creates the directory layout rooted at workDir.
func NewDirs(workDir string) Dirs {
	if workDir == "" {
		workDir = "."
	}
	return Dirs{workDir: workDir}
}

// WorkDir returns the toplevel work directory.
func (d Dirs) WorkDir() string {
	return d.workDir
}

// PartsDir returns the directory containing per-part work files.
func (d Dirs) PartsDir() string {
	return filepath.Join(d.workDir, "parts")
}

// StageDir returns the shared staging area.
func (d Dirs) StageDir() string {
	return filepath.Join(d.workDir, "stage")
}

// PrimeDir returns the final prime tree.
func (d Dirs) PrimeDir() string {
	return filepath.Join(d.workDir, "prime")
}

// StateDir returns the directory persisted step state is kept in.
func (d Dirs) StateDir() string {
	return filepath.Join(d.workDir, "state")
}
