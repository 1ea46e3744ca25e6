package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/partforge/partforge/internal/steps"
)

// StepState records what a step's last successful execution was based on.
// A StepState exists for a part/step exactly when that step completed
// successfully; absence means the step never ran.
type StepState struct {
	// Fingerprint digests every input that determined the execution: the
	// step-relevant properties, the resolved source identity, and the
	// fingerprints of the prerequisite steps.
	Fingerprint string `yaml:"fingerprint"`

	// Properties is the step-relevant property snapshot, kept for diffing
	// on the next run so reasons can name what changed.
	Properties map[string]any `yaml:"properties,omitempty"`

	// SourceID is the resolved source identity at pull time.
	SourceID string `yaml:"source-id,omitempty"`

	// Files and Directories list what a stage or prime step migrated into
	// the shared area, so a rerun can remove exactly those paths.
	Files       []string `yaml:"files,omitempty"`
	Directories []string `yaml:"directories,omitempty"`
}

// Store persists step state per part and step. Writes happen only through
// the executor after an action succeeds.
type Store interface {
	// Get returns the persisted state for the part and step, or nil when
	// the step has never completed.
	Get(part string, step steps.Step) (*StepState, error)

	// Put records the state for the part and step, replacing any prior
	// entry.
	Put(part string, step steps.Step, st *StepState) error

	// Clear invalidates the state for the part and step and for all of the
	// part's later steps, whose inputs included the cleared step's outcome.
	Clear(part string, step steps.Step) error
}

// FingerprintInputs collects everything a step's outcome depends on.
type FingerprintInputs struct {
	Part       string
	Step       steps.Step
	Backend    string
	Properties map[string]any
	// SourceID is set for PULL only.
	SourceID string
	// PreviousStep is the fingerprint of the part's preceding step.
	PreviousStep string
	// Dependencies maps dependency part names to the fingerprint of their
	// stage step.
	Dependencies map[string]string
}

// Fingerprint computes a deterministic digest of the inputs. Equal inputs
// always produce an equal fingerprint, which is what makes re-running the
// classification idempotent.
func Fingerprint(in FingerprintInputs) (string, error) {
	doc := map[string]any{
		"part":    in.Part,
		"step":    in.Step.String(),
		"backend": in.Backend,
	}
	if in.SourceID != "" {
		doc["source-id"] = in.SourceID
	}
	if in.PreviousStep != "" {
		doc["previous-step"] = in.PreviousStep
	}
	if len(in.Dependencies) > 0 {
		doc["dependencies"] = sortedPairs(in.Dependencies)
	}
	if len(in.Properties) > 0 {
		doc["properties"] = canonicalProperties(in.Properties)
	}

	encoded, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("cannot encode fingerprint inputs: %w", err)
	}

	digest := sha256.Sum256(encoded)
	return hex.EncodeToString(digest[:]), nil
}

// sortedPairs renders a map as a key-ordered list so encoding is stable.
func sortedPairs(m map[string]string) []map[string]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]map[string]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, map[string]string{k: m[k]})
	}
	return out
}

func canonicalProperties(props map[string]any) []map[string]any {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, map[string]any{k: props[k]})
	}
	return out
}
