package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/partforge/partforge/internal/filesets"
	"github.com/partforge/partforge/internal/parts"
	"github.com/partforge/partforge/internal/steps"
)

// Base provides the standard behavior shared by all built-in backends:
// pull delegates to the part's source resolver, stage and prime migrate the
// declared filesets into the shared areas, and organize renames install
// paths after build. Embedding backends override Build.
type Base struct{}

// Validate accepts any part. Backends with property requirements override it.
func (Base) Validate(*parts.Part) error {
	return nil
}

// RunStep dispatches to the per-step handlers.
func (b Base) RunStep(ctx context.Context, sc StepContext) (*Result, error) {
	switch sc.Step {
	case steps.PULL:
		return nil, b.Pull(ctx, sc)
	case steps.BUILD:
		return nil, nil
	case steps.STAGE:
		return b.Stage(sc)
	case steps.PRIME:
		return b.Prime(sc)
	}
	return nil, fmt.Errorf("no handler for step %s", sc.Step)
}

// Pull materializes the part source into its source area.
func (Base) Pull(ctx context.Context, sc StepContext) error {
	return sc.Resolver.Pull(ctx, sc.Part.SrcDir())
}

// Stage migrates the part's stage fileset from the install area into the
// shared staging area and reports the migrated paths.
func (Base) Stage(sc StepContext) (*Result, error) {
	fs := filesets.New(sc.Part.Spec.StageFileset())
	return migrate(fs, sc.Part.InstallDir(), sc.Part.StageDir())
}

// Prime migrates the part's prime fileset from its own staged files into the
// prime tree. Only files this part staged are candidates, so one part never
// primes another part's output.
func (Base) Prime(sc StepContext) (*Result, error) {
	stageSet := filesets.New(sc.Part.Spec.StageFileset())
	stageFiles, _, err := stageSet.MigratableFiles(sc.Part.InstallDir())
	if err != nil {
		return nil, err
	}

	primeSet := filesets.New(sc.Part.Spec.PrimeFileset())
	var files []string
	dirSet := map[string]struct{}{}
	for _, file := range stageFiles {
		if !primeSet.Matches(file) {
			continue
		}
		files = append(files, file)
		for parent := filepath.Dir(file); parent != "."; parent = filepath.Dir(parent) {
			dirSet[parent] = struct{}{}
		}
	}

	dirs := make([]string, 0, len(dirSet))
	for dir := range dirSet {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	if err := filesets.Migrate(files, dirs, sc.Part.StageDir(), sc.Part.PrimeDir()); err != nil {
		return nil, err
	}
	return &Result{Files: files, Directories: dirs}, nil
}

// Organize applies the part's organize mapping inside the install area,
// moving build output to its staging layout.
func (Base) Organize(part *parts.Part) error {
	root := part.InstallDir()
	for src, dst := range part.Spec.Organize {
		from := filepath.Join(root, src)
		to := filepath.Join(root, dst)
		if _, err := os.Lstat(from); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return err
		}
		if err := os.Rename(from, to); err != nil {
			return err
		}
	}
	return nil
}

func migrate(fs filesets.Fileset, srcRoot, dstRoot string) (*Result, error) {
	files, dirs, err := fs.MigratableFiles(srcRoot)
	if err != nil {
		return nil, err
	}
	if err := filesets.Migrate(files, dirs, srcRoot, dstRoot); err != nil {
		return nil, err
	}
	return &Result{Files: files, Directories: dirs}, nil
}
