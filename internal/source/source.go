package source

import (
	"context"
	"strings"

	"github.com/partforge/partforge/internal/parts"
	partforgeerrors "github.com/partforge/partforge/pkg/errors"
)

// Resolver supplies a stable identity for a part's source and materializes
// it into the part's pull area.
type Resolver interface {
	// Identity returns a stable identifier for the source contents. It
	// feeds the pull step fingerprint: when the identity changes, the pull
	// step is reclassified.
	Identity() (string, error)

	// Pull materializes the source into dst.
	Pull(ctx context.Context, dst string) error
}

// NewResolver selects a resolver for the part based on its source
// properties. Parts without a source get a resolver that pulls nothing.
func NewResolver(part *parts.Part) (Resolver, error) {
	spec := part.Spec
	if spec.Source == "" {
		return emptySource{}, nil
	}

	sourceType := spec.SourceType
	if sourceType == "" {
		sourceType = detectType(spec.Source)
	}

	switch sourceType {
	case "local":
		return &localSource{part: part.Name, path: spec.Source, checksum: spec.SourceChecksum}, nil
	case "git":
		return &gitSource{
			part:   part.Name,
			url:    spec.Source,
			branch: spec.SourceBranch,
			tag:    spec.SourceTag,
			commit: spec.SourceCommit,
		}, nil
	case "tar":
		return &tarSource{part: part.Name, path: spec.Source, checksum: spec.SourceChecksum}, nil
	}

	return nil, partforgeerrors.NewInvalidPartDefinitionError(
		part.Name, "unsupported source type "+strings.Trim(sourceType, " "), nil)
}

func detectType(source string) string {
	switch {
	case strings.HasSuffix(source, ".git"),
		strings.HasPrefix(source, "git@"),
		strings.HasPrefix(source, "git://"):
		return "git"
	case strings.HasSuffix(source, ".tar"),
		strings.HasSuffix(source, ".tar.gz"),
		strings.HasSuffix(source, ".tgz"):
		return "tar"
	default:
		return "local"
	}
}

// emptySource backs parts that declare no source at all.
type emptySource struct{}

func (emptySource) Identity() (string, error) {
	return "", nil
}

func (emptySource) Pull(context.Context, string) error {
	return nil
}
