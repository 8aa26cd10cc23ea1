package tree

import "sort"

// Key is a control point of a Curve1D.
type Key struct {
	T, V float32
}

// Curve1D is a piecewise-linear profile over [0,1].
type Curve1D struct {
	Keys []Key
}

// Linear returns a straight profile from a to b.
func Linear(a, b float32) Curve1D {
	return Curve1D{Keys: []Key{{0, a}, {1, b}}}
}

// Eval returns the profile value at t, or def when the curve has no keys.
func (c Curve1D) Eval(t, def float32) float32 {
	n := len(c.Keys)
	switch {
	case n == 0:
		return def
	case t <= c.Keys[0].T:
		return c.Keys[0].V
	case t >= c.Keys[n-1].T:
		return c.Keys[n-1].V
	}
	i := sort.Search(n, func(k int) bool { return c.Keys[k].T > t }) - 1
	a, b := c.Keys[i], c.Keys[i+1]
	if b.T <= a.T {
		return a.V
	}
	return a.V + (b.V-a.V)*(t-a.T)/(b.T-a.T)
}

// Clone returns a copy with its own key slice.
func (c Curve1D) Clone() Curve1D {
	return Curve1D{Keys: append([]Key(nil), c.Keys...)}
}
