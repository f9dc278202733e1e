// Package renderer provides renderers that need no graphics device. They are
// used for headless regression runs and for exercising dumps without a GPU.
package renderer

import (
	"fmt"
	"sort"

	"github.com/sarchlab/gsreplay/gs"
)

var factories = map[string]func() gs.Renderer{
	"null":   func() gs.Renderer { return NewNull() },
	"digest": func() gs.Renderer { return NewDigest(NewNull()) },
}

// Kinds lists the names New accepts.
func Kinds() []string {
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}

	sort.Strings(kinds)

	return kinds
}

// New creates a renderer by name.
func New(kind string) (gs.Renderer, error) {
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown renderer %q, want one of %v", kind, Kinds())
	}

	return f(), nil
}
