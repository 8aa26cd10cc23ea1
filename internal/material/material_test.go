package material

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLibrary(t *testing.T) {
	lib := Library{}
	bark := New("bark")
	bark.Tiling = true
	lib.Add(bark)
	lib.Add(New("leaf"))
	lib.Add(New("cap"))

	assert.Same(t, bark, lib.Get("bark"))
	assert.Nil(t, lib.Get("moss"))
	assert.Nil(t, lib.Get(""))
	assert.Nil(t, Library(nil).Get("bark"))
	assert.Equal(t, []string{"bark", "cap", "leaf"}, lib.Names())
}

func TestClone(t *testing.T) {
	m := New("leaf")
	m.Textures[SlotDiffuse] = "leaf.png"

	c := m.Clone()
	c.Textures[SlotDiffuse] = "other.png"
	c.Color[0] = 0.5

	assert.Equal(t, "leaf.png", m.Textures[SlotDiffuse])
	assert.Equal(t, float32(1), m.Color[0])
	assert.Nil(t, (*Material)(nil).Clone())
}
