package steps

import (
	"fmt"
	"strings"
)

// Step is one of the four ordered phases a part goes through to turn its
// source into deployable output. The numeric values define the lifecycle
// order and are used in ordering comparisons.
type Step int

const (
	// PULL retrieves the part source into its source area.
	PULL Step = iota + 1
	// BUILD processes the source and installs artifacts into the part
	// install area.
	BUILD
	// STAGE migrates install artifacts into the shared staging area.
	STAGE
	// PRIME migrates staged files into the final prime tree.
	PRIME
)

// All lists the lifecycle steps in execution order.
func All() []Step {
	return []Step{PULL, BUILD, STAGE, PRIME}
}

func (s Step) String() string {
	switch s {
	case PULL:
		return "pull"
	case BUILD:
		return "build"
	case STAGE:
		return "stage"
	case PRIME:
		return "prime"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// IsValid reports whether s is one of the defined lifecycle steps.
func (s Step) IsValid() bool {
	return s >= PULL && s <= PRIME
}

// Previous returns the step immediately before s, or zero if s is the first.
func (s Step) Previous() Step {
	if s <= PULL {
		return 0
	}
	return s - 1
}

// Next returns the step immediately after s, or zero if s is the last.
func (s Step) Next() Step {
	if s >= PRIME || s < PULL {
		return 0
	}
	return s + 1
}

// PreviousSteps returns all steps before s in lifecycle order.
func (s Step) PreviousSteps() []Step {
	var out []Step
	for _, step := range All() {
		if step < s {
			out = append(out, step)
		}
	}
	return out
}

// NextSteps returns all steps after s in lifecycle order.
func (s Step) NextSteps() []Step {
	var out []Step
	for _, step := range All() {
		if step > s {
			out = append(out, step)
		}
	}
	return out
}

// DependencyPrerequisite returns the step a part's dependencies must have
// reached before s can run, or zero if dependencies impose no requirement.
// Pulling a part needs nothing from its dependencies; building and anything
// after it consumes the dependencies' staged artifacts.
func (s Step) DependencyPrerequisite() Step {
	if s >= BUILD {
		return STAGE
	}
	return 0
}

// Parse converts a step name into a Step.
func Parse(name string) (Step, error) {
	switch strings.ToLower(name) {
	case "pull":
		return PULL, nil
	case "build":
		return BUILD, nil
	case "stage":
		return STAGE, nil
	case "prime":
		return PRIME, nil
	}
	return 0, fmt.Errorf("unknown step name %q", name)
}
