// Package dump provides a backend that installs the pulled source verbatim.
// The build step copies the source work tree into the install area and
// applies the part's organize mapping; stage and prime then migrate the
// declared filesets as usual.
package dump

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/partforge/partforge/internal/backend"
	"github.com/partforge/partforge/internal/filesets"
	"github.com/partforge/partforge/internal/steps"
)

type dumpBackend struct {
	backend.Base
}

// New creates the dump backend.
func New() backend.Backend {
	return &dumpBackend{}
}

var (
	_ backend.Backend = (*dumpBackend)(nil)
	_ backend.Updater = (*dumpBackend)(nil)
)

func (*dumpBackend) Name() string {
	return "dump"
}

// RunStep overrides the build step; everything else is inherited.
func (d *dumpBackend) RunStep(ctx context.Context, sc backend.StepContext) (*backend.Result, error) {
	if sc.Step != steps.BUILD {
		return d.Base.RunStep(ctx, sc)
	}

	if err := copyTree(sc.Part.SrcWorkDir(), sc.Part.InstallDir()); err != nil {
		return nil, err
	}
	return nil, d.Organize(sc.Part)
}

// CanUpdate reports stage and prime fileset extensions as additive. Any
// other property change invalidates the copied tree and forces a rerun.
func (*dumpBackend) CanUpdate(step steps.Step, old, current map[string]any) bool {
	var key string
	switch step {
	case steps.STAGE:
		key = "stage"
	case steps.PRIME:
		key = "prime"
	default:
		return false
	}

	oldSet, ok := filesetProperty(old, key)
	if !ok {
		return false
	}
	currentSet, ok := filesetProperty(current, key)
	if !ok {
		return false
	}

	for k, v := range current {
		if k == key {
			continue
		}
		if !propertyEqual(old[k], v) {
			return false
		}
	}

	return filesets.New(currentSet).IsSupersetOf(filesets.New(oldSet))
}

func filesetProperty(props map[string]any, key string) ([]string, bool) {
	switch v := props[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			s, ok := entry.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func propertyEqual(a, b any) bool {
	aEnc, aErr := yaml.Marshal(a)
	bEnc, bErr := yaml.Marshal(b)
	if aErr != nil || bErr != nil {
		return false
	}
	return string(aEnc) == string(bEnc)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) && path == src {
				return filepath.SkipAll
			}
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			return err
		}
		return os.Symlink(target, dst)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
