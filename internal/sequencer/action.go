package sequencer

import (
	"fmt"

	"github.com/partforge/partforge/internal/steps"
)

// ActionType says how an action is to be carried out. RUN executes the step
// normally, RERUN discards existing data and state before executing, UPDATE
// continues an existing step's work incrementally, and SKIP executes nothing.
type ActionType int

const (
	Run ActionType = iota
	Rerun
	Skip
	Update
)

func (t ActionType) String() string {
	switch t {
	case Run:
		return "run"
	case Rerun:
		return "rerun"
	case Skip:
		return "skip"
	case Update:
		return "update"
	}
	return fmt.Sprintf("actiontype(%d)", int(t))
}

// Action is one decision the sequencer makes: which step of which part to
// execute, how, and why. Actions are immutable values consumed in order by
// the executor.
type Action struct {
	Part   string
	Step   steps.Step
	Type   ActionType
	Reason string
}

func (a Action) String() string {
	if a.Reason != "" {
		return fmt.Sprintf("%s:%s(%s; %s)", a.Part, a.Step, a.Type, a.Reason)
	}
	return fmt.Sprintf("%s:%s(%s)", a.Part, a.Step, a.Type)
}
