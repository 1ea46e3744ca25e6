// Package lifecycle wires the project file, part graph, state store,
// backends, and sources into one engine callers drive through Plan and Run.
package lifecycle

import (
	"context"
	"os"

	"github.com/partforge/partforge/internal/backend"
	"github.com/partforge/partforge/internal/backends/dump"
	"github.com/partforge/partforge/internal/backends/makebackend"
	"github.com/partforge/partforge/internal/backends/nilbackend"
	"github.com/partforge/partforge/internal/executor"
	"github.com/partforge/partforge/internal/filesets"
	"github.com/partforge/partforge/internal/graph"
	"github.com/partforge/partforge/internal/logger"
	"github.com/partforge/partforge/internal/parts"
	"github.com/partforge/partforge/internal/project"
	"github.com/partforge/partforge/internal/sequencer"
	"github.com/partforge/partforge/internal/source"
	"github.com/partforge/partforge/internal/state"
	"github.com/partforge/partforge/internal/steps"
)

// Options configure a Manager.
type Options struct {
	// ProjectFile is the path of the project definition.
	ProjectFile string

	// WorkDir is the root under which part, stage, prime, and state
	// directories are kept. Defaults to the current directory.
	WorkDir string

	// Force reruns the requested step of explicitly named parts even when
	// their state is current.
	Force bool

	// Callbacks are invoked around every executed step.
	Callbacks executor.Callbacks

	Logger *logger.Logger
}

// Manager owns one project's lifecycle.
type Manager struct {
	project   *project.Project
	graph     *graph.Graph
	dirs      parts.Dirs
	store     state.Store
	registry  *backend.Registry
	resolvers map[string]source.Resolver
	sequencer *sequencer.Sequencer
	executor  *executor.Executor
	force     bool
	log       *logger.Logger
}

// New loads and validates the project file and assembles the engine. Every
// part's plugin must resolve to a registered backend and pass its
// validation before any planning happens.
func New(opts Options) (*Manager, error) {
	p, err := project.Load(opts.ProjectFile)
	if err != nil {
		return nil, err
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = "."
	}
	dirs := parts.NewDirs(workDir)

	g, err := graph.New(p.PartList(dirs))
	if err != nil {
		return nil, err
	}

	registry := backend.NewRegistry()
	for _, b := range []backend.Backend{nilbackend.New(), dump.New(), makebackend.New()} {
		if err := registry.Register(b); err != nil {
			return nil, err
		}
	}

	resolvers := map[string]source.Resolver{}
	for _, part := range g.Parts() {
		b, err := registry.Get(part.Spec.Plugin)
		if err != nil {
			return nil, err
		}
		if err := b.Validate(part); err != nil {
			return nil, err
		}

		resolver, err := source.NewResolver(part)
		if err != nil {
			return nil, err
		}
		resolvers[part.Name] = resolver
	}

	store := state.NewFileStore(dirs.StateDir())

	m := &Manager{
		project:   p,
		graph:     g,
		dirs:      dirs,
		store:     store,
		registry:  registry,
		resolvers: resolvers,
		force:     opts.Force,
		log:       opts.Logger,
	}
	m.sequencer = sequencer.New(g, store, registry, resolvers, opts.Logger)
	m.executor = executor.New(g, store, registry, resolvers, opts.Callbacks, opts.Logger)
	return m, nil
}

// Parts returns the project's parts in name order.
func (m *Manager) Parts() []*parts.Part {
	return m.graph.Parts()
}

// Plan classifies the work needed to bring the named parts, or all parts,
// up to targetStep.
func (m *Manager) Plan(targetStep steps.Step, partNames []string) ([]sequencer.Action, error) {
	return m.sequencer.Plan(targetStep, partNames, sequencer.Options{Force: m.force})
}

// Run executes a previously computed action list.
func (m *Manager) Run(ctx context.Context, actions []sequencer.Action) error {
	return m.executor.Run(ctx, actions)
}

// Execute plans and immediately runs in one call.
func (m *Manager) Execute(ctx context.Context, targetStep steps.Step, partNames []string) ([]sequencer.Action, error) {
	actions, err := m.Plan(targetStep, partNames)
	if err != nil {
		return nil, err
	}
	if err := m.Run(ctx, actions); err != nil {
		return actions, err
	}
	return actions, nil
}

// Clean discards persisted state and outputs from step onward for the named
// parts, or for every part. Cleaning every part from the pull step also
// removes the shared work trees wholesale.
func (m *Manager) Clean(step steps.Step, partNames []string) error {
	names := partNames
	if len(names) == 0 {
		for _, part := range m.graph.Parts() {
			names = append(names, part.Name)
		}
	}

	for _, name := range names {
		part, err := m.graph.Part(name)
		if err != nil {
			return err
		}
		if err := m.cleanPart(part, step); err != nil {
			return err
		}
	}

	if len(partNames) == 0 && step == steps.PULL {
		for _, dir := range []string{m.dirs.PartsDir(), m.dirs.StageDir(), m.dirs.PrimeDir(), m.dirs.StateDir()} {
			if err := os.RemoveAll(dir); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) cleanPart(part *parts.Part, step steps.Step) error {
	// later steps first so shared areas are unmigrated before their inputs go
	for _, cleaned := range []steps.Step{steps.PRIME, steps.STAGE, steps.BUILD, steps.PULL} {
		if cleaned < step {
			continue
		}
		if err := m.discardOutput(part, cleaned); err != nil {
			return err
		}
	}
	return m.store.Clear(part.Name, step)
}

func (m *Manager) discardOutput(part *parts.Part, step steps.Step) error {
	switch step {
	case steps.PULL:
		return os.RemoveAll(part.SrcDir())
	case steps.BUILD:
		if err := os.RemoveAll(part.BuildDir()); err != nil {
			return err
		}
		return os.RemoveAll(part.InstallDir())
	case steps.STAGE:
		return m.unmigrate(part, steps.STAGE, part.StageDir())
	case steps.PRIME:
		return m.unmigrate(part, steps.PRIME, part.PrimeDir())
	}
	return nil
}

func (m *Manager) unmigrate(part *parts.Part, step steps.Step, area string) error {
	st, err := m.store.Get(part.Name, step)
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}
	return filesets.Unmigrate(st.Files, st.Directories, area)
}
