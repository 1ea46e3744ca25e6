// Package makebackend provides a backend that builds parts with make. The
// build step runs make in the source work tree followed by make install with
// DESTDIR pointing at the part install area.
package makebackend

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/partforge/partforge/internal/backend"
	"github.com/partforge/partforge/internal/parts"
	"github.com/partforge/partforge/internal/steps"
)

type makeBackend struct {
	backend.Base
}

// New creates the make backend.
func New() backend.Backend {
	return &makeBackend{}
}

var _ backend.Backend = (*makeBackend)(nil)

func (*makeBackend) Name() string {
	return "make"
}

// Validate requires a source to build from.
func (*makeBackend) Validate(part *parts.Part) error {
	if part.Spec.Source == "" {
		return fmt.Errorf("part %q uses the make plugin but declares no source", part.Name)
	}
	return nil
}

// RunStep overrides the build step; everything else is inherited.
func (m *makeBackend) RunStep(ctx context.Context, sc backend.StepContext) (*backend.Result, error) {
	if sc.Step != steps.BUILD {
		return m.Base.RunStep(ctx, sc)
	}

	if err := os.MkdirAll(sc.Part.InstallDir(), 0o755); err != nil {
		return nil, err
	}

	buildArgs := append([]string(nil), sc.Part.Spec.BuildParams...)
	if err := m.run(ctx, sc, buildArgs); err != nil {
		return nil, err
	}

	installArgs := append([]string{"install", "DESTDIR=" + sc.Part.InstallDir()}, sc.Part.Spec.BuildParams...)
	if err := m.run(ctx, sc, installArgs); err != nil {
		return nil, err
	}

	return nil, m.Organize(sc.Part)
}

func (*makeBackend) run(ctx context.Context, sc backend.StepContext, args []string) error {
	cmd := exec.CommandContext(ctx, "make", args...)
	cmd.Dir = sc.Part.SrcWorkDir()
	cmd.Env = os.Environ()
	for k, v := range sc.Part.Spec.BuildEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("make %v failed: %w\n%s", args, err, output)
	}
	if sc.Logger != nil {
		sc.Logger.Debug(fmt.Sprintf("make %v completed for part %s", args, sc.Part.Name))
	}
	return nil
}
