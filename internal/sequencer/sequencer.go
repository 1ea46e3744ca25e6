package sequencer

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/partforge/partforge/internal/backend"
	"github.com/partforge/partforge/internal/graph"
	"github.com/partforge/partforge/internal/logger"
	"github.com/partforge/partforge/internal/parts"
	"github.com/partforge/partforge/internal/source"
	"github.com/partforge/partforge/internal/state"
	"github.com/partforge/partforge/internal/steps"
	partforgeerrors "github.com/partforge/partforge/pkg/errors"
)

// Sequencer classifies every part/step pair in a requested scope into the
// action required to bring it up to date, consulting persisted state and
// propagating invalidation through the step chain and the dependency graph.
// Planning never mutates the store, so re-planning against unchanged state
// and properties yields the same action list.
type Sequencer struct {
	graph     *graph.Graph
	store     state.Store
	registry  *backend.Registry
	resolvers map[string]source.Resolver
	log       *logger.Logger
}

// New creates a sequencer over a validated part graph.
func New(g *graph.Graph, store state.Store, registry *backend.Registry, resolvers map[string]source.Resolver, log *logger.Logger) *Sequencer {
	return &Sequencer{
		graph:     g,
		store:     store,
		registry:  registry,
		resolvers: resolvers,
		log:       log,
	}
}

// Options adjust planning behavior.
type Options struct {
	// Force reruns the target step even when persisted state is current.
	// It applies to the named parts, or to every part when none are named.
	Force bool
}

// plannedStep tracks the outcome of one classified part/step while later
// classifications are still being decided.
type plannedStep struct {
	fingerprint string
	changed     bool
}

// Plan walks the requested scope in dependency order, steps ascending within
// each part, and returns the ordered action list. Passing no part names
// plans every part through targetStep; naming parts plans those parts
// through targetStep and their transitive dependencies through the stage
// step their dependents consume.
func (s *Sequencer) Plan(targetStep steps.Step, partNames []string, opts Options) ([]Action, error) {
	if !targetStep.IsValid() {
		return nil, partforgeerrors.NewInternalError("cannot plan for invalid step %d", int(targetStep))
	}

	limits, err := s.scope(targetStep, partNames)
	if err != nil {
		return nil, err
	}

	scopeNames := make([]string, 0, len(limits))
	for name := range limits {
		scopeNames = append(scopeNames, name)
	}
	order, err := s.graph.Order(scopeNames)
	if err != nil {
		return nil, err
	}

	requested := map[string]bool{}
	if len(partNames) == 0 {
		for _, name := range scopeNames {
			requested[name] = true
		}
	} else {
		for _, name := range partNames {
			requested[name] = true
		}
	}

	planned := map[string]map[steps.Step]*plannedStep{}
	var actions []Action

	for _, name := range order {
		part, err := s.graph.Part(name)
		if err != nil {
			return nil, err
		}
		planned[name] = map[steps.Step]*plannedStep{}

		for _, step := range steps.All() {
			if step > limits[name] {
				break
			}

			action, fp, err := s.classify(part, step, planned)
			if err != nil {
				return nil, err
			}

			if opts.Force && requested[name] && step == targetStep && action.Type == Skip {
				action = Action{Part: name, Step: step, Type: Rerun, Reason: "requested step"}
			}

			s.log.WithPart(name, step.String()).Debug(fmt.Sprintf("classified %s", action.Type))

			planned[name][step] = &plannedStep{fingerprint: fp, changed: action.Type != Skip}
			actions = append(actions, action)
		}
	}

	return actions, nil
}

// scope returns the set of parts to plan and the last step to plan for each.
// Dependencies of a requested part are planned through the stage step when
// the requested step consumes staged artifacts; a pull-only request needs
// nothing from dependencies.
func (s *Sequencer) scope(targetStep steps.Step, partNames []string) (map[string]steps.Step, error) {
	limits := map[string]steps.Step{}

	if len(partNames) == 0 {
		for _, part := range s.graph.Parts() {
			limits[part.Name] = targetStep
		}
	} else {
		for _, name := range partNames {
			if _, err := s.graph.Part(name); err != nil {
				return nil, err
			}
			if limits[name] < targetStep {
				limits[name] = targetStep
			}
		}
	}

	// any part planned past pull needs its transitive dependencies staged
	for name, limit := range limits {
		if prereq := limit.DependencyPrerequisite(); prereq != 0 {
			deps, err := s.graph.DependenciesOf(name)
			if err != nil {
				return nil, err
			}
			for _, dep := range deps {
				if limits[dep] < prereq {
					limits[dep] = prereq
				}
			}
		}
	}

	return limits, nil
}

// classify decides the action for one part/step pair. Prerequisite steps --
// the part's previous step and the stage step of each dependency -- must
// already be classified; their decided outcome stands in for state that will
// only exist once the executor runs.
func (s *Sequencer) classify(part *parts.Part, step steps.Step, planned map[string]map[steps.Step]*plannedStep) (Action, string, error) {
	name := part.Name

	prevFP := ""
	prevChanged := false
	if prev := step.Previous(); prev != 0 {
		prevPlan := planned[name][prev]
		if prevPlan == nil {
			return Action{}, "", partforgeerrors.NewInternalError(
				"classifying %s:%s before its previous step", name, step)
		}
		prevFP = prevPlan.fingerprint
		prevChanged = prevPlan.changed
	}

	depFPs := map[string]string{}
	var changedDeps []string
	if step.DependencyPrerequisite() != 0 {
		for _, dep := range part.Dependencies() {
			depPlan := planned[dep][steps.STAGE]
			if depPlan == nil {
				return Action{}, "", partforgeerrors.NewInternalError(
					"classifying %s:%s before dependency %q was staged", name, step, dep)
			}
			depFPs[dep] = depPlan.fingerprint
			if depPlan.changed {
				changedDeps = append(changedDeps, dep)
			}
		}
	}

	b, err := s.registry.Get(part.Spec.Plugin)
	if err != nil {
		return Action{}, "", partforgeerrors.NewInvalidPartDefinitionError(name, err.Error(), err)
	}

	sourceID := ""
	if step == steps.PULL {
		resolver, ok := s.resolvers[name]
		if !ok {
			return Action{}, "", partforgeerrors.NewInternalError("no source resolver for part %q", name)
		}
		sourceID, err = resolver.Identity()
		if err != nil {
			return Action{}, "", err
		}
	}

	currentProps := part.Spec.PropertiesForStep(step)
	fp, err := state.Fingerprint(state.FingerprintInputs{
		Part:         name,
		Step:         step,
		Backend:      b.Name(),
		Properties:   currentProps,
		SourceID:     sourceID,
		PreviousStep: prevFP,
		Dependencies: depFPs,
	})
	if err != nil {
		return Action{}, "", partforgeerrors.NewInvalidPartDefinitionError(name, err.Error(), err)
	}

	persisted, err := s.store.Get(name, step)
	if err != nil {
		return Action{}, "", err
	}

	// never ran
	if persisted == nil {
		return Action{Part: name, Step: step, Type: Run}, fp, nil
	}

	// a prerequisite will change, so this step's inputs will too
	if prevChanged {
		reason := fmt.Sprintf("%q step changed", step.Previous().String())
		return Action{Part: name, Step: step, Type: Rerun, Reason: reason}, fp, nil
	}
	if len(changedDeps) > 0 {
		sort.Strings(changedDeps)
		reason := fmt.Sprintf("dependency %q re-staged", strings.Join(changedDeps, ", "))
		return Action{Part: name, Step: step, Type: Rerun, Reason: reason}, fp, nil
	}

	// inputs unchanged since the recorded run
	if fp == persisted.Fingerprint {
		return Action{Part: name, Step: step, Type: Skip, Reason: "already ran"}, fp, nil
	}

	if sourceID != persisted.SourceID {
		return Action{Part: name, Step: step, Type: Rerun, Reason: "source changed"}, fp, nil
	}

	dirty := diffProperties(persisted.Properties, currentProps)
	if len(dirty) > 0 {
		reason := propertyReason(dirty)
		if updater, ok := b.(backend.Updater); ok && updater.CanUpdate(step, persisted.Properties, currentProps) {
			return Action{Part: name, Step: step, Type: Update, Reason: reason}, fp, nil
		}
		return Action{Part: name, Step: step, Type: Rerun, Reason: reason}, fp, nil
	}

	// the fingerprint scheme or an upstream fingerprint moved without a
	// visible property change
	return Action{Part: name, Step: step, Type: Rerun, Reason: "stale state"}, fp, nil
}

// diffProperties returns the sorted keys whose values differ between the
// persisted snapshot and the current specification. Values are compared by
// canonical encoding because the persisted side comes back from YAML with
// loose types.
func diffProperties(old, current map[string]any) []string {
	var dirty []string
	for key, value := range current {
		if !encodedEqual(old[key], value) {
			dirty = append(dirty, key)
		}
	}
	for key := range old {
		if _, ok := current[key]; !ok {
			dirty = append(dirty, key)
		}
	}
	sort.Strings(dirty)
	return dirty
}

func propertyReason(dirty []string) string {
	quoted := make([]string, 0, len(dirty))
	for _, key := range dirty {
		quoted = append(quoted, fmt.Sprintf("%q", key))
	}
	if len(quoted) == 1 {
		return fmt.Sprintf("%s property changed", quoted[0])
	}
	return fmt.Sprintf("%s properties changed", strings.Join(quoted, ", "))
}

func encodedEqual(a, b any) bool {
	aEnc, aErr := yaml.Marshal(normalize(a))
	bEnc, bErr := yaml.Marshal(normalize(b))
	if aErr != nil || bErr != nil {
		return false
	}
	return string(aEnc) == string(bEnc)
}

// normalize maps empty collections and nil to a common value so a property
// that was absent compares equal to one that is present but empty.
func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
	case []string:
		if len(t) == 0 {
			return nil
		}
	case []any:
		if len(t) == 0 {
			return nil
		}
	case map[string]string:
		if len(t) == 0 {
			return nil
		}
	case map[string]any:
		if len(t) == 0 {
			return nil
		}
	}
	return v
}
