package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/partforge/partforge/internal/sequencer"
	"github.com/partforge/partforge/internal/steps"
)

// writeTree creates the files under root, keyed by relative path.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newManager(t *testing.T, workDir string) *Manager {
	t.Helper()

	libSrc := filepath.Join(workDir, "src-lib")
	appSrc := filepath.Join(workDir, "src-app")
	if _, err := os.Stat(libSrc); os.IsNotExist(err) {
		writeTree(t, libSrc, map[string]string{
			"bin/tool":  "tool v1",
			"share/doc": "internal notes",
		})
		writeTree(t, appSrc, map[string]string{"bin/app": "app v1"})
	}

	projectFile := filepath.Join(workDir, "partforge.yaml")
	doc := fmt.Sprintf(`
parts:
  lib:
    plugin: dump
    source: %s
    stage:
      - bin
  app:
    plugin: dump
    source: %s
    after:
      - lib
`, libSrc, appSrc)
	require.NoError(t, os.WriteFile(projectFile, []byte(doc), 0o644))

	m, err := New(Options{ProjectFile: projectFile, WorkDir: workDir})
	require.NoError(t, err)
	return m
}

func TestManagerPrimesProject(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	m := newManager(t, workDir)

	actions, err := m.Execute(context.Background(), steps.PRIME, nil)
	require.NoError(t, err)
	require.Len(t, actions, 8)
	for _, action := range actions {
		require.Equal(t, sequencer.Run, action.Type, "%s", action)
	}

	primed := filepath.Join(workDir, "prime")
	require.FileExists(t, filepath.Join(primed, "bin", "tool"))
	require.FileExists(t, filepath.Join(primed, "bin", "app"))

	// the lib part staged only its bin fileset
	require.NoFileExists(t, filepath.Join(workDir, "stage", "share", "doc"))
	require.NoFileExists(t, filepath.Join(primed, "share", "doc"))

	// persisted state survives for the next invocation
	require.FileExists(t, filepath.Join(workDir, "state", "lib", "prime.yaml"))
	require.FileExists(t, filepath.Join(workDir, "state", "app", "pull.yaml"))
}

func TestManagerSecondRunSkipsEverything(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	m := newManager(t, workDir)

	_, err := m.Execute(context.Background(), steps.PRIME, nil)
	require.NoError(t, err)

	// a fresh manager over the same work directory sees the same state
	m = newManager(t, workDir)
	actions, err := m.Plan(steps.PRIME, nil)
	require.NoError(t, err)
	require.Len(t, actions, 8)
	for _, action := range actions {
		require.Equal(t, sequencer.Skip, action.Type, "%s", action)
	}
}

func TestManagerSourceChangeCascades(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	m := newManager(t, workDir)

	_, err := m.Execute(context.Background(), steps.PRIME, nil)
	require.NoError(t, err)

	// grow the tool so both content and source identity change
	writeTree(t, filepath.Join(workDir, "src-lib"), map[string]string{
		"bin/tool": "tool v2 with more content",
	})

	m = newManager(t, workDir)
	actions, err := m.Plan(steps.PRIME, nil)
	require.NoError(t, err)

	byKey := map[string]sequencer.ActionType{}
	for _, action := range actions {
		byKey[action.Part+":"+action.Step.String()] = action.Type
	}
	require.Equal(t, sequencer.Rerun, byKey["lib:pull"])
	require.Equal(t, sequencer.Rerun, byKey["lib:prime"])
	require.Equal(t, sequencer.Skip, byKey["app:pull"])
	require.Equal(t, sequencer.Rerun, byKey["app:build"])
	require.Equal(t, sequencer.Rerun, byKey["app:prime"])

	require.NoError(t, m.Run(context.Background(), actions))

	rebuilt, err := os.ReadFile(filepath.Join(workDir, "prime", "bin", "tool"))
	require.NoError(t, err)
	require.Equal(t, "tool v2 with more content", string(rebuilt))
}

func TestManagerWidenedFilesetUpdatesIncrementally(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	libSrc := filepath.Join(workDir, "src-lib")
	writeTree(t, libSrc, map[string]string{
		"bin/tool":  "tool v1",
		"share/doc": "internal notes",
	})

	projectFile := filepath.Join(workDir, "partforge.yaml")
	writeProject := func(stage string) {
		doc := fmt.Sprintf("parts:\n  lib:\n    plugin: dump\n    source: %s\n    stage: [%s]\n", libSrc, stage)
		require.NoError(t, os.WriteFile(projectFile, []byte(doc), 0o644))
	}

	writeProject("bin")
	m, err := New(Options{ProjectFile: projectFile, WorkDir: workDir})
	require.NoError(t, err)
	_, err = m.Execute(context.Background(), steps.PRIME, nil)
	require.NoError(t, err)

	// patch the staged file in place to prove the update leaves it alone
	stagedTool := filepath.Join(workDir, "stage", "bin", "tool")
	require.NoError(t, os.WriteFile(stagedTool, []byte("tool v1 patched"), 0o644))

	writeProject("bin, share")
	m, err = New(Options{ProjectFile: projectFile, WorkDir: workDir})
	require.NoError(t, err)

	actions, err := m.Plan(steps.PRIME, nil)
	require.NoError(t, err)

	byKey := map[string]sequencer.ActionType{}
	for _, action := range actions {
		byKey[action.Part+":"+action.Step.String()] = action.Type
	}
	require.Equal(t, sequencer.Skip, byKey["lib:pull"])
	require.Equal(t, sequencer.Skip, byKey["lib:build"])
	require.Equal(t, sequencer.Update, byKey["lib:stage"])
	require.Equal(t, sequencer.Rerun, byKey["lib:prime"])

	require.NoError(t, m.Run(context.Background(), actions))

	// the earlier pass's file is untouched and the widened fileset adds to it
	patched, err := os.ReadFile(stagedTool)
	require.NoError(t, err)
	require.Equal(t, "tool v1 patched", string(patched))
	require.FileExists(t, filepath.Join(workDir, "stage", "share", "doc"))

	// the recorded stage state owns files from both passes
	require.NoError(t, m.Clean(steps.STAGE, []string{"lib"}))
	require.NoFileExists(t, stagedTool)
	require.NoFileExists(t, filepath.Join(workDir, "stage", "share", "doc"))
}

func TestManagerCleanRemovesStateAndOutputs(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	m := newManager(t, workDir)

	_, err := m.Execute(context.Background(), steps.PRIME, nil)
	require.NoError(t, err)

	require.NoError(t, m.Clean(steps.PULL, nil))

	require.NoDirExists(t, filepath.Join(workDir, "parts"))
	require.NoDirExists(t, filepath.Join(workDir, "stage"))
	require.NoDirExists(t, filepath.Join(workDir, "prime"))
	require.NoDirExists(t, filepath.Join(workDir, "state"))

	m = newManager(t, workDir)
	actions, err := m.Plan(steps.PRIME, nil)
	require.NoError(t, err)
	for _, action := range actions {
		require.Equal(t, sequencer.Run, action.Type, "%s", action)
	}
}

func TestManagerCleanSingleStepKeepsEarlierState(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	m := newManager(t, workDir)

	_, err := m.Execute(context.Background(), steps.PRIME, nil)
	require.NoError(t, err)

	require.NoError(t, m.Clean(steps.PRIME, []string{"lib"}))

	require.NoFileExists(t, filepath.Join(workDir, "state", "lib", "prime.yaml"))
	require.FileExists(t, filepath.Join(workDir, "state", "lib", "stage.yaml"))
	require.NoFileExists(t, filepath.Join(workDir, "prime", "bin", "tool"))
	require.FileExists(t, filepath.Join(workDir, "prime", "bin", "app"))

	actions, err := m.Plan(steps.PRIME, nil)
	require.NoError(t, err)

	byKey := map[string]sequencer.ActionType{}
	for _, action := range actions {
		byKey[action.Part+":"+action.Step.String()] = action.Type
	}
	require.Equal(t, sequencer.Run, byKey["lib:prime"])
	require.Equal(t, sequencer.Skip, byKey["lib:stage"])
	require.Equal(t, sequencer.Skip, byKey["app:prime"])
}

func TestManagerRejectsBrokenProject(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	projectFile := filepath.Join(workDir, "partforge.yaml")
	require.NoError(t, os.WriteFile(projectFile, []byte("parts:\n  app:\n    plugin: dump\n    after: [ghost]\n"), 0o644))

	_, err := New(Options{ProjectFile: projectFile, WorkDir: workDir})
	require.Error(t, err)
}
