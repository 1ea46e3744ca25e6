package state

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/partforge/partforge/internal/steps"
)

// FileStore persists step state as one YAML document per part and step under
// a state directory:
//
//	<root>/<part>/<step>.yaml
//
// Reloading the same directory after a process restart reproduces identical
// classification.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at the given directory. The directory
// is created lazily on first write.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

var _ Store = (*FileStore)(nil)

func (f *FileStore) statePath(part string, step steps.Step) string {
	return filepath.Join(f.root, part, step.String()+".yaml")
}

// Get implements Store.
func (f *FileStore) Get(part string, step steps.Step) (*StepState, error) {
	data, err := os.ReadFile(f.statePath(part, step))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read state for %s:%s: %w", part, step, err)
	}

	var st StepState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("cannot decode state for %s:%s: %w", part, step, err)
	}
	return &st, nil
}

// Put implements Store.
func (f *FileStore) Put(part string, step steps.Step, st *StepState) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("cannot encode state for %s:%s: %w", part, step, err)
	}

	path := f.statePath(part, step)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// write-then-rename so a crash never leaves a half-written record
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Clear implements Store.
func (f *FileStore) Clear(part string, step steps.Step) error {
	for _, s := range append([]steps.Step{step}, step.NextSteps()...) {
		if err := os.Remove(f.statePath(part, s)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
