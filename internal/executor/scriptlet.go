package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/partforge/partforge/internal/logger"
	"github.com/partforge/partforge/internal/parts"
	"github.com/partforge/partforge/internal/steps"
	partforgeerrors "github.com/partforge/partforge/pkg/errors"
)

// runScriptlet executes an override scriptlet through the shell. The
// scriptlet runs in the step's working area with the part's build
// environment plus PARTFORGE_* variables naming the relevant directories.
func runScriptlet(ctx context.Context, part *parts.Part, step steps.Step, scriptlet string, log *logger.Logger) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", scriptlet)
	cmd.Dir = scriptletDir(part, step)

	if err := os.MkdirAll(cmd.Dir, 0o755); err != nil {
		return partforgeerrors.NewScriptletRunError(part.Name, step.String(), err)
	}

	cmd.Env = scriptletEnv(part, step)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		if output.Len() > 0 {
			log.Error(err, fmt.Sprintf("scriptlet output:\n%s", output.String()))
		}
		return partforgeerrors.NewScriptletRunError(part.Name, step.String(), err)
	}
	return nil
}

func scriptletDir(part *parts.Part, step steps.Step) string {
	switch step {
	case steps.PULL:
		return part.SrcDir()
	case steps.BUILD:
		return part.SrcWorkDir()
	case steps.STAGE:
		return part.InstallDir()
	case steps.PRIME:
		return part.StageDir()
	}
	return part.PartDir()
}

func scriptletEnv(part *parts.Part, step steps.Step) []string {
	env := os.Environ()

	keys := make([]string, 0, len(part.Spec.BuildEnv))
	for key := range part.Spec.BuildEnv {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+part.Spec.BuildEnv[key])
	}

	return append(env,
		"PARTFORGE_PART_NAME="+part.Name,
		"PARTFORGE_STEP="+step.String(),
		"PARTFORGE_PART_SRC="+part.SrcDir(),
		"PARTFORGE_PART_BUILD="+part.BuildDir(),
		"PARTFORGE_PART_INSTALL="+part.InstallDir(),
		"PARTFORGE_STAGE="+part.StageDir(),
		"PARTFORGE_PRIME="+part.PrimeDir(),
	)
}
