// Package shaders maps source material shaders to the optimized shaders the
// combined atlas materials render with.
package shaders

import (
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/arbor/internal/logger"
)

// Built-in optimized shaders used when a source shader has no optimized
// counterpart.
const (
	DefaultOpaque = "Hidden/Arbor/Bark Optimized"
	DefaultCutout = "Hidden/Arbor/Leaves Optimized"
)

const (
	hiddenPrefix    = "Hidden/"
	optimizedSuffix = " Optimized"
)

// Resolver looks optimized shaders up in a set of known shader names.
type Resolver struct {
	known map[string]bool
}

// NewResolver creates a resolver that knows the built-in shaders plus names.
func NewResolver(names ...string) *Resolver {
	r := &Resolver{known: make(map[string]bool)}
	r.Register(DefaultOpaque, DefaultCutout)
	r.Register(names...)
	return r
}

// Register adds shader names.
func (r *Resolver) Register(names ...string) {
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			r.known[n] = true
		}
	}
}

// Known returns the registered names in sorted order.
func (r *Resolver) Known() []string {
	names := make([]string, 0, len(r.known))
	for n := range r.known {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Candidates lists the optimized names tried for source, in order.
func Candidates(source string) []string {
	name := strings.TrimPrefix(strings.TrimSpace(source), hiddenPrefix)
	if name == "" {
		return nil
	}
	name = strings.TrimSuffix(name, optimizedSuffix)
	return []string{
		hiddenPrefix + name + optimizedSuffix,
		name + optimizedSuffix,
	}
}

// Resolve returns the optimized shader for source. Unknown shaders fall back
// to the built-in default of the slot.
func (r *Resolver) Resolve(source string, cutout bool) string {
	for _, c := range Candidates(source) {
		if r.known[c] {
			return c
		}
	}
	fallback := DefaultOpaque
	if cutout {
		fallback = DefaultCutout
	}
	if source != "" {
		logger.Debug("no optimized shader, using default",
			zap.String("shader", source),
			zap.String("default", fallback))
	}
	return fallback
}
