package parts

import (
	"path/filepath"
	"sort"

	"github.com/partforge/partforge/internal/steps"
)

// Spec holds the build-relevant properties declared for a part in the
// project specification. It is immutable for the duration of a lifecycle run.
type Spec struct {
	Plugin         string            `yaml:"plugin" validate:"required,part_name"`
	Source         string            `yaml:"source,omitempty"`
	SourceType     string            `yaml:"source-type,omitempty" validate:"omitempty,oneof=local git tar"`
	SourceChecksum string            `yaml:"source-checksum,omitempty"`
	SourceBranch   string            `yaml:"source-branch,omitempty"`
	SourceTag      string            `yaml:"source-tag,omitempty"`
	SourceCommit   string            `yaml:"source-commit,omitempty"`
	SourceSubdir   string            `yaml:"source-subdir,omitempty"`
	After          []string          `yaml:"after,omitempty" validate:"omitempty,dive,part_name"`
	BuildEnv       map[string]string `yaml:"build-environment,omitempty"`
	BuildParams    []string          `yaml:"build-parameters,omitempty"`
	Organize       map[string]string `yaml:"organize,omitempty"`
	Stage          []string          `yaml:"stage,omitempty"`
	Prime          []string          `yaml:"prime,omitempty"`
	OverridePull   string            `yaml:"override-pull,omitempty"`
	OverrideBuild  string            `yaml:"override-build,omitempty"`
	OverrideStage  string            `yaml:"override-stage,omitempty"`
	OverridePrime  string            `yaml:"override-prime,omitempty"`
}

// Scriptlet returns the override scriptlet declared for the given step, if any.
func (s Spec) Scriptlet(step steps.Step) string {
	switch step {
	case steps.PULL:
		return s.OverridePull
	case steps.BUILD:
		return s.OverrideBuild
	case steps.STAGE:
		return s.OverrideStage
	case steps.PRIME:
		return s.OverridePrime
	}
	return ""
}

// StageFileset returns the declared stage fileset, defaulting to everything.
func (s Spec) StageFileset() []string {
	if len(s.Stage) == 0 {
		return []string{"*"}
	}
	return s.Stage
}

// PrimeFileset returns the declared prime fileset, defaulting to everything.
func (s Spec) PrimeFileset() []string {
	if len(s.Prime) == 0 {
		return []string{"*"}
	}
	return s.Prime
}

// PropertiesForStep returns the subset of properties a step's outcome depends
// on. The snapshot is persisted with the step state and diffed against the
// current specification on later runs to detect staleness.
func (s Spec) PropertiesForStep(step steps.Step) map[string]any {
	props := map[string]any{}
	switch step {
	case steps.PULL:
		props["source"] = s.Source
		props["source-type"] = s.SourceType
		props["source-checksum"] = s.SourceChecksum
		props["source-branch"] = s.SourceBranch
		props["source-tag"] = s.SourceTag
		props["source-commit"] = s.SourceCommit
		props["source-subdir"] = s.SourceSubdir
		props["override-pull"] = s.OverridePull
	case steps.BUILD:
		props["plugin"] = s.Plugin
		props["build-environment"] = copyStringMap(s.BuildEnv)
		props["build-parameters"] = append([]string(nil), s.BuildParams...)
		props["organize"] = copyStringMap(s.Organize)
		props["override-build"] = s.OverrideBuild
	case steps.STAGE:
		props["stage"] = append([]string(nil), s.StageFileset()...)
		props["override-stage"] = s.OverrideStage
	case steps.PRIME:
		props["prime"] = append([]string(nil), s.PrimeFileset()...)
		props["override-prime"] = s.OverridePrime
	}
	return props
}

// Part is a named, independently buildable unit with declared dependencies
// and build properties. Parts are constructed once from the loaded project
// specification and never mutated during a run.
type Part struct {
	Name string
	Spec Spec

	dirs Dirs
}

// New creates a part rooted at the given project directories.
func New(name string, spec Spec, dirs Dirs) *Part {
	return &Part{Name: name, Spec: spec, dirs: dirs}
}

// Dependencies returns the names of the parts this part builds after.
func (p *Part) Dependencies() []string {
	return p.Spec.After
}

// PartDir returns the directory holding all work files for this part.
func (p *Part) PartDir() string {
	return filepath.Join(p.dirs.PartsDir(), p.Name)
}

// SrcDir returns the area sources are pulled into.
func (p *Part) SrcDir() string {
	return filepath.Join(p.PartDir(), "src")
}

// SrcWorkDir returns the source subtree the build operates on.
func (p *Part) SrcWorkDir() string {
	return filepath.Join(p.SrcDir(), p.Spec.SourceSubdir)
}

// BuildDir returns the part build area.
func (p *Part) BuildDir() string {
	return filepath.Join(p.PartDir(), "build")
}

// InstallDir returns the area build artifacts are installed into before
// staging.
func (p *Part) InstallDir() string {
	return filepath.Join(p.PartDir(), "install")
}

// RunDir returns the directory scriptlets execute from.
func (p *Part) RunDir() string {
	return filepath.Join(p.PartDir(), "run")
}

// StageDir returns the staging area shared by all parts.
func (p *Part) StageDir() string {
	return p.dirs.StageDir()
}

// PrimeDir returns the prime tree shared by all parts.
func (p *Part) PrimeDir() string {
	return p.dirs.PrimeDir()
}

// Sort orders parts by name so planning is deterministic between runs.
func Sort(list []*Part) []*Part {
	sorted := append([]*Part(nil), list...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted
}

func copyStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
