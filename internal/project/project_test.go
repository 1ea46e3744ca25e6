package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/partforge/partforge/internal/parts"
	partforgeerrors "github.com/partforge/partforge/pkg/errors"
)

const validProject = `
name: demo
parts:
  lib:
    plugin: dump
    source: lib/
    stage:
      - bin
  app:
    plugin: make
    source: app/
    after:
      - lib
    build-environment:
      CC: gcc
`

func TestLoadValidProject(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validProject), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "demo", p.Name)
	require.Len(t, p.Parts, 2)

	app := p.Parts["app"]
	require.Equal(t, "make", app.Plugin)
	require.Equal(t, []string{"lib"}, app.After)
	require.Equal(t, "gcc", app.BuildEnv["CC"])

	lib := p.Parts["lib"]
	require.Equal(t, []string{"bin"}, lib.Stage)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	var schemaErr *partforgeerrors.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("parts: [\n"), "broken.yaml")

	var schemaErr *partforgeerrors.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
}

func TestParseRejectsEmptyParts(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("parts: {}\n"), "empty.yaml")

	var schemaErr *partforgeerrors.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
}

func TestParseRejectsBadPartName(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("parts:\n  \"Bad Name\":\n    plugin: dump\n"), "names.yaml")

	var schemaErr *partforgeerrors.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
}

func TestParseRejectsMissingPlugin(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("parts:\n  lib:\n    source: lib/\n"), "plugin.yaml")

	var schemaErr *partforgeerrors.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
}

func TestParseRejectsUnknownSourceType(t *testing.T) {
	t.Parallel()

	doc := "parts:\n  lib:\n    plugin: dump\n    source: lib/\n    source-type: svn\n"
	_, err := Parse([]byte(doc), "sourcetype.yaml")

	var schemaErr *partforgeerrors.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	t.Parallel()

	doc := "parts:\n  app:\n    plugin: dump\n    after: [ghost]\n"
	_, err := Parse([]byte(doc), "deps.yaml")

	var schemaErr *partforgeerrors.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "parts.app.after", schemaErr.Field)
}

func TestValidateRejectsSelfDependency(t *testing.T) {
	t.Parallel()

	doc := "parts:\n  app:\n    plugin: dump\n    after: [app]\n"
	_, err := Parse([]byte(doc), "deps.yaml")

	var schemaErr *partforgeerrors.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
}

func TestPartListIsDeterministic(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(validProject), "partforge.yaml")
	require.NoError(t, err)

	list := p.PartList(parts.NewDirs(t.TempDir()))
	require.Len(t, list, 2)
	require.Equal(t, "app", list[0].Name)
	require.Equal(t, "lib", list[1].Name)
}
