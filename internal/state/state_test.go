package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/partforge/partforge/internal/steps"
)

func TestFingerprintIsDeterministic(t *testing.T) {
	t.Parallel()

	in := FingerprintInputs{
		Part:    "lib",
		Step:    steps.BUILD,
		Backend: "make",
		Properties: map[string]any{
			"plugin":           "make",
			"build-parameters": []string{"-j4"},
		},
		PreviousStep: "abc123",
		Dependencies: map[string]string{"base": "def456", "tools": "789"},
	}

	first, err := Fingerprint(in)
	require.NoError(t, err)
	require.Len(t, first, 64)

	for range 20 {
		again, err := Fingerprint(in)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestFingerprintChangesWithInputs(t *testing.T) {
	t.Parallel()

	base := FingerprintInputs{
		Part:       "lib",
		Step:       steps.PULL,
		Backend:    "dump",
		Properties: map[string]any{"source": "v1"},
		SourceID:   "local:v1",
	}

	original, err := Fingerprint(base)
	require.NoError(t, err)

	cases := map[string]FingerprintInputs{
		"properties":   {Part: "lib", Step: steps.PULL, Backend: "dump", Properties: map[string]any{"source": "v2"}, SourceID: "local:v1"},
		"source":       {Part: "lib", Step: steps.PULL, Backend: "dump", Properties: map[string]any{"source": "v1"}, SourceID: "local:v2"},
		"backend":      {Part: "lib", Step: steps.PULL, Backend: "nil", Properties: map[string]any{"source": "v1"}, SourceID: "local:v1"},
		"step":         {Part: "lib", Step: steps.BUILD, Backend: "dump", Properties: map[string]any{"source": "v1"}, SourceID: "local:v1"},
		"previous":     {Part: "lib", Step: steps.PULL, Backend: "dump", Properties: map[string]any{"source": "v1"}, SourceID: "local:v1", PreviousStep: "x"},
		"dependencies": {Part: "lib", Step: steps.PULL, Backend: "dump", Properties: map[string]any{"source": "v1"}, SourceID: "local:v1", Dependencies: map[string]string{"base": "y"}},
	}

	for name, in := range cases {
		fp, err := Fingerprint(in)
		require.NoError(t, err, name)
		require.NotEqual(t, original, fp, name)
	}
}

func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("get missing returns nil", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)

		st, err := store.Get("lib", steps.PULL)
		require.NoError(t, err)
		require.Nil(t, st)
	})

	t.Run("put then get round trips", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)

		in := &StepState{
			Fingerprint: "fp1",
			Properties:  map[string]any{"source": "v1"},
			SourceID:    "local:v1",
			Files:       []string{"bin/tool"},
			Directories: []string{"bin"},
		}
		require.NoError(t, store.Put("lib", steps.STAGE, in))

		out, err := store.Get("lib", steps.STAGE)
		require.NoError(t, err)
		require.NotNil(t, out)
		require.Equal(t, "fp1", out.Fingerprint)
		require.Equal(t, "v1", out.Properties["source"])
		require.Equal(t, []string{"bin/tool"}, out.Files)
		require.Equal(t, []string{"bin"}, out.Directories)
	})

	t.Run("put overwrites", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)

		require.NoError(t, store.Put("lib", steps.PULL, &StepState{Fingerprint: "old"}))
		require.NoError(t, store.Put("lib", steps.PULL, &StepState{Fingerprint: "new"}))

		out, err := store.Get("lib", steps.PULL)
		require.NoError(t, err)
		require.Equal(t, "new", out.Fingerprint)
	})

	t.Run("clear cascades to later steps", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)

		for _, step := range steps.All() {
			require.NoError(t, store.Put("lib", step, &StepState{Fingerprint: step.String()}))
		}
		require.NoError(t, store.Put("app", steps.PULL, &StepState{Fingerprint: "keep"}))

		require.NoError(t, store.Clear("lib", steps.BUILD))

		pull, err := store.Get("lib", steps.PULL)
		require.NoError(t, err)
		require.NotNil(t, pull)

		for _, step := range []steps.Step{steps.BUILD, steps.STAGE, steps.PRIME} {
			st, err := store.Get("lib", step)
			require.NoError(t, err)
			require.Nil(t, st, step.String())
		}

		other, err := store.Get("app", steps.PULL)
		require.NoError(t, err)
		require.NotNil(t, other)
	})

	t.Run("clear missing is a no-op", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)
		require.NoError(t, store.Clear("ghost", steps.PULL))
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	runStoreTests(t, func(t *testing.T) Store {
		return NewFileStore(t.TempDir())
	})
}

func TestFileStoreSurvivesReload(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	first := NewFileStore(root)
	require.NoError(t, first.Put("lib", steps.PRIME, &StepState{Fingerprint: "persist"}))

	second := NewFileStore(root)
	st, err := second.Get("lib", steps.PRIME)
	require.NoError(t, err)
	require.NotNil(t, st)
	require.Equal(t, "persist", st.Fingerprint)
}
