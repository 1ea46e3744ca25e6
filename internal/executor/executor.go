package executor

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/partforge/partforge/internal/backend"
	"github.com/partforge/partforge/internal/filesets"
	"github.com/partforge/partforge/internal/graph"
	"github.com/partforge/partforge/internal/logger"
	"github.com/partforge/partforge/internal/parts"
	"github.com/partforge/partforge/internal/sequencer"
	"github.com/partforge/partforge/internal/source"
	"github.com/partforge/partforge/internal/state"
	"github.com/partforge/partforge/internal/steps"
	partforgeerrors "github.com/partforge/partforge/pkg/errors"
)

// Callbacks are user-supplied hooks invoked immediately before and after
// each executed step. They are injected values, never global registrations.
// A hook error aborts the run at that action.
type Callbacks struct {
	PreStep  func(ctx context.Context, part *parts.Part, step steps.Step) error
	PostStep func(ctx context.Context, part *parts.Part, step steps.Step) error
}

// Executor carries out an ordered action list, invoking build backends and
// scriptlets and keeping persisted state consistent. State is written only
// here and only after a step succeeds; a failure aborts the remaining
// actions so a later run resumes exactly at the failed or untried steps.
type Executor struct {
	graph     *graph.Graph
	store     state.Store
	registry  *backend.Registry
	resolvers map[string]source.Resolver
	callbacks Callbacks
	log       *logger.Logger
}

// New creates an executor sharing the sequencer's collaborators.
func New(g *graph.Graph, store state.Store, registry *backend.Registry, resolvers map[string]source.Resolver, callbacks Callbacks, log *logger.Logger) *Executor {
	return &Executor{
		graph:     g,
		store:     store,
		registry:  registry,
		resolvers: resolvers,
		callbacks: callbacks,
		log:       log,
	}
}

// Run executes the actions strictly in the order supplied. It stops at the
// first failure or at context cancellation between actions.
func (e *Executor) Run(ctx context.Context, actions []sequencer.Action) error {
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.runAction(ctx, action); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runAction(ctx context.Context, action sequencer.Action) error {
	log := e.log.WithPart(action.Part, action.Step.String())

	if action.Type == sequencer.Skip {
		log.Debug(fmt.Sprintf("skip (%s)", action.Reason))
		return nil
	}

	part, err := e.graph.Part(action.Part)
	if err != nil {
		return err
	}

	b, err := e.registry.Get(part.Spec.Plugin)
	if err != nil {
		return partforgeerrors.NewInvalidPartDefinitionError(part.Name, err.Error(), err)
	}

	if action.Type == sequencer.Rerun {
		if err := e.discard(part, action.Step); err != nil {
			return err
		}
	}

	if e.callbacks.PreStep != nil {
		if err := e.callbacks.PreStep(ctx, part, action.Step); err != nil {
			return partforgeerrors.NewScriptletRunError(part.Name, action.Step.String(), err)
		}
	}

	msg := action.Type.String()
	if action.Reason != "" {
		msg = fmt.Sprintf("%s (%s)", action.Type, action.Reason)
	}
	log.Info(msg)

	result, err := e.execute(ctx, part, b, action)
	if err != nil {
		return err
	}

	if err := e.persist(part, action, b.Name(), result); err != nil {
		return err
	}

	if e.callbacks.PostStep != nil {
		if err := e.callbacks.PostStep(ctx, part, action.Step); err != nil {
			return partforgeerrors.NewScriptletRunError(part.Name, action.Step.String(), err)
		}
	}

	return nil
}

// execute runs the part's override scriptlet for the step when one is
// declared; otherwise the backend handles it.
func (e *Executor) execute(ctx context.Context, part *parts.Part, b backend.Backend, action sequencer.Action) (*backend.Result, error) {
	sc := backend.StepContext{
		Part:     part,
		Step:     action.Step,
		Update:   action.Type == sequencer.Update,
		Resolver: e.resolvers[part.Name],
		Logger:   e.log,
	}

	if scriptlet := part.Spec.Scriptlet(action.Step); scriptlet != "" {
		if err := runScriptlet(ctx, part, action.Step, scriptlet, e.log); err != nil {
			return nil, err
		}
		// stage and prime still migrate filesets after the scriptlet so
		// the shared areas and recorded file lists stay consistent
		if action.Step == steps.STAGE || action.Step == steps.PRIME {
			result, err := b.RunStep(ctx, sc)
			if err != nil {
				return nil, partforgeerrors.NewBackendBuildError(part.Name, action.Step.String(), b.Name(), err)
			}
			return result, nil
		}
		return nil, nil
	}

	result, err := b.RunStep(ctx, sc)
	if err != nil {
		return nil, partforgeerrors.NewBackendBuildError(part.Name, action.Step.String(), b.Name(), err)
	}
	return result, nil
}

// persist writes the step state after a successful execution. The
// fingerprint must be recomputed from persisted prerequisite state, which
// exists by now because actions run in dependency order.
func (e *Executor) persist(part *parts.Part, action sequencer.Action, backendName string, result *backend.Result) error {
	prevFP := ""
	if prev := action.Step.Previous(); prev != 0 {
		prevState, err := e.store.Get(part.Name, prev)
		if err != nil {
			return err
		}
		if prevState == nil {
			return partforgeerrors.NewInternalError(
				"%s:%s completed before its previous step was persisted", part.Name, action.Step)
		}
		prevFP = prevState.Fingerprint
	}

	depFPs := map[string]string{}
	if action.Step.DependencyPrerequisite() != 0 {
		for _, dep := range part.Dependencies() {
			depState, err := e.store.Get(dep, steps.STAGE)
			if err != nil {
				return err
			}
			if depState == nil {
				return partforgeerrors.NewInternalError(
					"%s:%s completed before dependency %q was staged", part.Name, action.Step, dep)
			}
			depFPs[dep] = depState.Fingerprint
		}
	}

	sourceID := ""
	if action.Step == steps.PULL {
		resolver, ok := e.resolvers[part.Name]
		if !ok {
			return partforgeerrors.NewInternalError("no source resolver for part %q", part.Name)
		}
		var err error
		sourceID, err = resolver.Identity()
		if err != nil {
			return err
		}
	}

	props := part.Spec.PropertiesForStep(action.Step)
	fp, err := state.Fingerprint(state.FingerprintInputs{
		Part:         part.Name,
		Step:         action.Step,
		Backend:      backendName,
		Properties:   props,
		SourceID:     sourceID,
		PreviousStep: prevFP,
		Dependencies: depFPs,
	})
	if err != nil {
		return err
	}

	st := &state.StepState{
		Fingerprint: fp,
		Properties:  props,
		SourceID:    sourceID,
	}
	if result != nil {
		st.Files = result.Files
		st.Directories = result.Directories
	}

	if action.Type == sequencer.Update {
		if err := e.mergeMigrated(part.Name, action.Step, st); err != nil {
			return err
		}
	}

	return e.store.Put(part.Name, action.Step, st)
}

// mergeMigrated folds the previously recorded migrated paths into the new
// state so an update pass still owns everything earlier passes migrated.
func (e *Executor) mergeMigrated(part string, step steps.Step, st *state.StepState) error {
	prior, err := e.store.Get(part, step)
	if err != nil {
		return err
	}
	if prior == nil {
		return nil
	}
	st.Files = mergeSorted(prior.Files, st.Files)
	st.Directories = mergeSorted(prior.Directories, st.Directories)
	return nil
}

// discard removes a step's prior contribution before a rerun: persisted
// state for the step and everything after it, the step's work area, and any
// files it migrated into the shared areas.
func (e *Executor) discard(part *parts.Part, step steps.Step) error {
	for _, later := range []steps.Step{steps.PRIME, steps.STAGE, steps.BUILD, steps.PULL} {
		if later < step {
			continue
		}
		if err := e.discardOutput(part, later); err != nil {
			return err
		}
	}
	return e.store.Clear(part.Name, step)
}

func (e *Executor) discardOutput(part *parts.Part, step steps.Step) error {
	switch step {
	case steps.PULL:
		return removeAll(part.SrcDir())
	case steps.BUILD:
		if err := removeAll(part.BuildDir()); err != nil {
			return err
		}
		return removeAll(part.InstallDir())
	case steps.STAGE:
		return e.unmigrate(part, steps.STAGE, part.StageDir())
	case steps.PRIME:
		return e.unmigrate(part, steps.PRIME, part.PrimeDir())
	}
	return nil
}

func (e *Executor) unmigrate(part *parts.Part, step steps.Step, area string) error {
	st, err := e.store.Get(part.Name, step)
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}
	return filesets.Unmigrate(st.Files, st.Directories, area)
}

func removeAll(path string) error {
	if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func mergeSorted(old, current []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, entry := range append(append([]string(nil), old...), current...) {
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}
	sort.Strings(out)
	return out
}
