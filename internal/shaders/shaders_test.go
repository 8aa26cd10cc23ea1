package shaders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{"Hidden/Nature/Bark Optimized", "Nature/Bark Optimized"}, Candidates("Nature/Bark"))
	assert.Equal(t, []string{"Hidden/Bark Optimized", "Bark Optimized"}, Candidates("Hidden/Bark Optimized"))
	assert.Nil(t, Candidates("  "))
}

func TestResolve(t *testing.T) {
	r := NewResolver("Hidden/Nature/Bark Optimized", "Nature/Leaves Optimized")

	tests := []struct {
		name   string
		source string
		cutout bool
		want   string
	}{
		{"hidden preferred", "Nature/Bark", false, "Hidden/Nature/Bark Optimized"},
		{"plain name", "Nature/Leaves", true, "Nature/Leaves Optimized"},
		{"unknown opaque", "Custom/Trunk", false, DefaultOpaque},
		{"unknown cutout", "Custom/Fronds", true, DefaultCutout},
		{"empty", "", true, DefaultCutout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.source, tt.cutout))
		})
	}
}

func TestKnown(t *testing.T) {
	r := NewResolver("B Optimized", "", "A Optimized")
	assert.Equal(t, []string{"A Optimized", "B Optimized", DefaultOpaque, DefaultCutout}, r.Known())
}
