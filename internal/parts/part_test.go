package parts

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/partforge/partforge/internal/steps"
)

func TestPartDirectories(t *testing.T) {
	t.Parallel()

	dirs := NewDirs("/work")
	p := New("lib", Spec{Plugin: "dump", SourceSubdir: "sub"}, dirs)

	require.Equal(t, filepath.Join("/work", "parts", "lib"), p.PartDir())
	require.Equal(t, filepath.Join("/work", "parts", "lib", "src"), p.SrcDir())
	require.Equal(t, filepath.Join("/work", "parts", "lib", "src", "sub"), p.SrcWorkDir())
	require.Equal(t, filepath.Join("/work", "parts", "lib", "build"), p.BuildDir())
	require.Equal(t, filepath.Join("/work", "parts", "lib", "install"), p.InstallDir())
	require.Equal(t, filepath.Join("/work", "stage"), p.StageDir())
	require.Equal(t, filepath.Join("/work", "prime"), p.PrimeDir())
	require.Equal(t, filepath.Join("/work", "state"), dirs.StateDir())
}

func TestFilesetDefaults(t *testing.T) {
	t.Parallel()

	spec := Spec{Plugin: "nil"}
	require.Equal(t, []string{"*"}, spec.StageFileset())
	require.Equal(t, []string{"*"}, spec.PrimeFileset())

	spec.Stage = []string{"bin/", "-bin/test"}
	require.Equal(t, []string{"bin/", "-bin/test"}, spec.StageFileset())
}

func TestPropertiesForStep(t *testing.T) {
	t.Parallel()

	spec := Spec{
		Plugin:      "make",
		Source:      "./src",
		SourceType:  "local",
		BuildParams: []string{"-j4"},
		Stage:       []string{"usr/"},
	}

	pull := spec.PropertiesForStep(steps.PULL)
	require.Equal(t, "./src", pull["source"])
	require.NotContains(t, pull, "stage")

	build := spec.PropertiesForStep(steps.BUILD)
	require.Equal(t, "make", build["plugin"])
	require.Equal(t, []string{"-j4"}, build["build-parameters"])

	stage := spec.PropertiesForStep(steps.STAGE)
	require.Equal(t, []string{"usr/"}, stage["stage"])
	require.NotContains(t, stage, "plugin")
}

func TestScriptletSelection(t *testing.T) {
	t.Parallel()

	spec := Spec{OverrideBuild: "make -j1", OverridePrime: "true"}
	require.Empty(t, spec.Scriptlet(steps.PULL))
	require.Equal(t, "make -j1", spec.Scriptlet(steps.BUILD))
	require.Empty(t, spec.Scriptlet(steps.STAGE))
	require.Equal(t, "true", spec.Scriptlet(steps.PRIME))
}

func TestSortIsStableByName(t *testing.T) {
	t.Parallel()

	dirs := NewDirs(t.TempDir())
	list := []*Part{
		New("zlib", Spec{}, dirs),
		New("app", Spec{}, dirs),
		New("lib", Spec{}, dirs),
	}

	sorted := Sort(list)
	require.Equal(t, "app", sorted[0].Name)
	require.Equal(t, "lib", sorted[1].Name)
	require.Equal(t, "zlib", sorted[2].Name)
	// input untouched
	require.Equal(t, "zlib", list[0].Name)
}
