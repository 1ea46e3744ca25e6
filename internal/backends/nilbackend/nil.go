// Package nilbackend provides a backend with no build step at all. It is
// useful for parts that exist only to pull a source tree or to anchor
// dependency ordering.
package nilbackend

import (
	"github.com/partforge/partforge/internal/backend"
)

type nilBackend struct {
	backend.Base
}

// New creates the nil backend.
func New() backend.Backend {
	return &nilBackend{}
}

var _ backend.Backend = (*nilBackend)(nil)

func (*nilBackend) Name() string {
	return "nil"
}
