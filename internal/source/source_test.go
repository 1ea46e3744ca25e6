package source

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/partforge/partforge/internal/parts"
	partforgeerrors "github.com/partforge/partforge/pkg/errors"
)

func newPart(t *testing.T, spec parts.Spec) *parts.Part {
	t.Helper()
	return parts.New("p", spec, parts.NewDirs(t.TempDir()))
}

func TestNewResolverSelection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		spec parts.Spec
		want any
	}{
		{"empty source", parts.Spec{}, emptySource{}},
		{"explicit local", parts.Spec{Source: "./src", SourceType: "local"}, &localSource{}},
		{"detected git", parts.Spec{Source: "https://example.com/repo.git"}, &gitSource{}},
		{"detected tar", parts.Spec{Source: "src.tar.gz"}, &tarSource{}},
		{"detected local", parts.Spec{Source: "./plain"}, &localSource{}},
	}

	for _, tc := range cases {
		resolver, err := NewResolver(newPart(t, tc.spec))
		require.NoError(t, err, tc.name)
		require.IsType(t, tc.want, resolver, tc.name)
	}
}

func TestNewResolverRejectsUnknownType(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(newPart(t, parts.Spec{Source: "x", SourceType: "svn"}))
	require.Error(t, err)

	var defErr *partforgeerrors.InvalidPartDefinitionError
	require.ErrorAs(t, err, &defErr)
}

func TestEmptySource(t *testing.T) {
	t.Parallel()

	id, err := emptySource{}.Identity()
	require.NoError(t, err)
	require.Empty(t, id)
	require.NoError(t, emptySource{}.Pull(context.Background(), t.TempDir()))
}

func TestLocalSourcePullCopiesTree(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.c"), []byte("int main(){}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "util.c"), []byte("// util"), 0o644))

	s := &localSource{part: "p", path: src}
	dst := t.TempDir()
	require.NoError(t, s.Pull(context.Background(), dst))

	require.FileExists(t, filepath.Join(dst, "main.c"))
	require.FileExists(t, filepath.Join(dst, "sub", "util.c"))
}

func TestLocalSourceIdentityTracksChanges(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	file := filepath.Join(src, "main.c")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))

	s := &localSource{part: "p", path: src}
	first, err := s.Identity()
	require.NoError(t, err)

	again, err := s.Identity()
	require.NoError(t, err)
	require.Equal(t, first, again)

	require.NoError(t, os.WriteFile(file, []byte("v2 more"), 0o644))
	require.NoError(t, os.Chtimes(file, time.Now(), time.Now().Add(time.Second)))

	changed, err := s.Identity()
	require.NoError(t, err)
	require.NotEqual(t, first, changed)
}

func TestLocalSourceExplicitChecksumWins(t *testing.T) {
	t.Parallel()

	s := &localSource{part: "p", path: "/does/not/matter", checksum: "deadbeef"}
	id, err := s.Identity()
	require.NoError(t, err)
	require.Equal(t, "local:deadbeef", id)
}

func TestLocalSourceMissingPath(t *testing.T) {
	t.Parallel()

	s := &localSource{part: "p", path: filepath.Join(t.TempDir(), "missing")}
	_, err := s.Identity()
	require.Error(t, err)

	var srcErr *partforgeerrors.SourceRetrievalError
	require.ErrorAs(t, err, &srcErr)
	require.Equal(t, "p", srcErr.Part)
}

func TestGitSourceIdentity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		src  gitSource
		want string
	}{
		{gitSource{url: "u.git", commit: "abc"}, "git:u.git@abc"},
		{gitSource{url: "u.git", tag: "v1", commit: "abc"}, "git:u.git@abc"},
		{gitSource{url: "u.git", tag: "v1"}, "git:u.git@refs/tags/v1"},
		{gitSource{url: "u.git", branch: "main"}, "git:u.git@refs/heads/main"},
		{gitSource{url: "u.git"}, "git:u.git"},
	}

	for _, tc := range cases {
		id, err := tc.src.Identity()
		require.NoError(t, err)
		require.Equal(t, tc.want, id)
	}
}

func writeTarArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	tw := tar.NewWriter(f)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
}

func TestTarSourcePull(t *testing.T) {
	t.Parallel()

	archive := filepath.Join(t.TempDir(), "src.tar")
	writeTarArchive(t, archive, map[string]string{
		"main.c":     "int main(){}",
		"sub/util.c": "// util",
	})

	s := &tarSource{part: "p", path: archive}
	dst := t.TempDir()
	require.NoError(t, s.Pull(context.Background(), dst))

	require.FileExists(t, filepath.Join(dst, "main.c"))
	require.FileExists(t, filepath.Join(dst, "sub", "util.c"))

	id, err := s.Identity()
	require.NoError(t, err)
	require.Contains(t, id, "tar:")
}

func TestTarSourceChecksumMismatch(t *testing.T) {
	t.Parallel()

	archive := filepath.Join(t.TempDir(), "src.tar")
	writeTarArchive(t, archive, map[string]string{"f": "data"})

	s := &tarSource{part: "p", path: archive, checksum: "0000"}
	_, err := s.Identity()
	require.Error(t, err)

	var srcErr *partforgeerrors.SourceRetrievalError
	require.ErrorAs(t, err, &srcErr)
}

func TestTarSourceRejectsEscapingEntries(t *testing.T) {
	t.Parallel()

	archive := filepath.Join(t.TempDir(), "evil.tar")
	writeTarArchive(t, archive, map[string]string{"../escape": "nope"})

	s := &tarSource{part: "p", path: archive}
	err := s.Pull(context.Background(), t.TempDir())
	require.Error(t, err)
}
