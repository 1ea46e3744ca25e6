package backend

import (
	"context"

	"github.com/partforge/partforge/internal/logger"
	"github.com/partforge/partforge/internal/parts"
	"github.com/partforge/partforge/internal/source"
	"github.com/partforge/partforge/internal/steps"
)

// StepContext carries everything a backend needs to run one step of one
// part: the resolved part properties, the filesystem areas relevant to the
// step, and the part's source resolver for pull.
type StepContext struct {
	Part *parts.Part
	Step steps.Step

	// Update marks an incremental pass over an already-completed step: the
	// backend must add what is missing without discarding existing output.
	Update bool

	Resolver source.Resolver
	Logger   *logger.Logger
}

// Result reports what a step produced. Files and Directories list the paths
// a stage or prime step migrated into the shared area, relative to it; they
// are persisted so a rerun can remove exactly those paths. Other steps may
// return a nil result.
type Result struct {
	Files       []string
	Directories []string
}

// Backend turns a part's source into artifacts. One backend serves all four
// lifecycle steps; implementations embed Base to inherit the standard pull
// and fileset-migration behavior and override only the build mechanics.
//
// RunStep must be idempotent for identical fingerprint inputs: invoking it
// again with the same part properties and source identity must produce the
// same outcome.
type Backend interface {
	// Name returns the plugin identifier parts select this backend with.
	Name() string

	// Validate rejects part properties this backend cannot work with.
	// It runs at lifecycle construction, before any planning.
	Validate(part *parts.Part) error

	// RunStep executes one lifecycle step.
	RunStep(ctx context.Context, sc StepContext) (*Result, error)
}

// Updater is an optional backend capability deciding whether a property
// change is additive. When the sequencer sees a step whose only change the
// backend reports as additive, it classifies the step UPDATE instead of
// RERUN and existing output is kept.
//
// The predicate receives the persisted and current step-relevant property
// snapshots. Backends that do not implement Updater always get RERUN.
type Updater interface {
	CanUpdate(step steps.Step, old, current map[string]any) bool
}
