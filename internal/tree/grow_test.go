package tree

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestGrowDeterministic(t *testing.T) {
	tr, ids := sample(t)
	tr.Groups[ids["trunk"]].Branch.BreakChance = 0.5
	tr.Groups[ids["limb"]].Distribution.Frequency = 4

	tr.Grow(newRand(7))
	first := append([]Node(nil), tr.Nodes...)
	tr.Grow(newRand(7))

	require.Len(t, tr.Nodes, len(first))
	for i := range first {
		assert.Equal(t, first[i].Position, tr.Nodes[i].Position, "node %d", i)
		assert.Equal(t, first[i].Rotation, tr.Nodes[i].Rotation, "node %d", i)
		assert.Equal(t, first[i].BreakOffset, tr.Nodes[i].BreakOffset, "node %d", i)
		assert.Equal(t, first[i].Seed, tr.Nodes[i].Seed, "node %d", i)
	}

	tr.Grow(newRand(8))
	assert.NotEqual(t, first[1].Seed, tr.Nodes[1].Seed)
}

func TestGrowCounts(t *testing.T) {
	tr, ids := sample(t)
	tr.Groups[ids["limb"]].Distribution.Frequency = 3
	tr.Groups[ids["leaves"]].Distribution.Frequency = 5
	tr.Groups[ids["twigs"]].Distribution.Frequency = 2

	tr.Grow(newRand(3))

	count := map[int]int{}
	for _, n := range tr.Nodes {
		count[n.Group]++
	}
	assert.Equal(t, 1, count[0])
	assert.Equal(t, 1, count[ids["trunk"]])
	assert.Equal(t, 3, count[ids["limb"]])
	assert.Equal(t, 15, count[ids["leaves"]])
	assert.Equal(t, 2, count[ids["twigs"]])

	for i, n := range tr.Nodes {
		if n.Parent == None {
			continue
		}
		assert.Less(t, n.Parent, i, "parents grow before children")
		assert.Equal(t, tr.Groups[n.Group].Parent, tr.Nodes[n.Parent].Group)
	}
	assert.NoError(t, tr.Validate())
}

func TestGrowBranchNodes(t *testing.T) {
	tr, ids := sample(t)
	tr.Grow(newRand(11))

	for _, n := range tr.Nodes {
		g := tr.Groups[n.Group]
		switch g.Kind {
		case KindBranch:
			require.NotNil(t, n.Curve)
			assert.GreaterOrEqual(t, n.Curve.Len(), 4)
			assert.InDelta(t, n.Length, n.Curve.Length(), n.Length*0.01+1e-4)
			assert.Equal(t, g.Branch.CapSmoothing, n.CapRange)
			assert.Equal(t, float32(1), n.BreakOffset)
		case KindLeaf:
			assert.Nil(t, n.Curve)
			assert.Greater(t, n.Scale, float32(0))
		}
	}

	limb := tr.Nodes[2]
	require.Equal(t, ids["limb"], limb.Group)
	parent := tr.Nodes[limb.Parent]
	assert.LessOrEqual(t, limb.Radius, tr.RadiusAt(&parent, limb.Offset))
}

func TestGrowBreak(t *testing.T) {
	tr, ids := sample(t)
	b := tr.Groups[ids["trunk"]].Branch
	b.BreakChance = 1
	b.BreakLocation = [2]float32{0.4, 0.4}
	tr.Groups[ids["limb"]].Distribution.Frequency = 6

	tr.Grow(newRand(5))

	trunk := tr.Nodes[1]
	assert.True(t, trunk.Broken())
	assert.InDelta(t, 0.4, trunk.BreakOffset, 1e-6)
	for _, n := range tr.Nodes {
		if n.Group == ids["limb"] {
			assert.LessOrEqual(t, n.Offset, float32(0.4), "children stay below the break")
		}
	}
}

func TestGrowHiddenGroup(t *testing.T) {
	tr, ids := sample(t)
	tr.Groups[ids["limb"]].Visible = false

	tr.Grow(newRand(2))
	for _, n := range tr.Nodes {
		if n.Group == ids["limb"] || n.Group == ids["leaves"] {
			assert.False(t, n.Visible)
		}
	}
}

func TestDistribute(t *testing.T) {
	d := DefaultDistribution()
	d.Frequency = 4
	rng := newRand(1)

	d.Mode = DistOpposite
	o0, a0 := distribute(d, 0, 1, rng)
	o1, a1 := distribute(d, 1, 1, rng)
	assert.Equal(t, o0, o1)
	assert.InDelta(t, 180, a1-a0, 1e-5)

	d.Mode = DistWhorled
	d.Whorl = 4
	var offsets []float32
	for k := 0; k < 4; k++ {
		o, a := distribute(d, k, 1, rng)
		offsets = append(offsets, o)
		assert.InDelta(t, float32(90*k), a, 1e-4)
	}
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, offsets)

	d.Mode = DistAlternate
	o, _ := distribute(d, 3, 0.5, rng)
	assert.LessOrEqual(t, o, float32(0.5))

	d.Mode = DistRandom
	for k := 0; k < 20; k++ {
		o, a := distribute(d, k, 1, rng)
		assert.GreaterOrEqual(t, o, float32(0))
		assert.LessOrEqual(t, o, float32(1))
		assert.Less(t, a, float32(360))
	}
}
