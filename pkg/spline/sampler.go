package spline

import (
	"slices"

	"github.com/chewxy/math32"

	"github.com/Faultbox/arbor/pkg/math"
)

// MaxSubdivisions bounds the number of midpoints inserted by adaptive
// subdivision so sampling always terminates.
const MaxSubdivisions = 200

// dedupeEpsilon collapses sample times closer than this.
const dedupeEpsilon = 1e-6

// SampleParams controls AdaptiveSamples.
type SampleParams struct {
	// CapRange is the fraction of the tail that gets a smoothed cap.
	CapRange float32
	// BreakOffset truncates the curve; values >= 1 mean unbroken.
	BreakOffset float32
	// Radius returns the branch radius at t. Nil means constant radius.
	Radius func(t float32) float32
	// RadiusScale is the reference radius the radius thresholds scale with:
	// the branch radius for branch groups, 1 otherwise.
	RadiusScale float32
	// Quality in [0,1] trades fidelity for polygon count.
	Quality float32
}

func (p SampleParams) radius(t float32) float32 {
	if p.Radius == nil {
		return 0
	}
	return p.Radius(t)
}

// thresholds returns the frame dot threshold, the radius delta threshold and
// the collinearity threshold for the configured quality.
func (p SampleParams) thresholds() (dot, radius, collinear float32) {
	q := math.Clamp32(p.Quality, 0, 1)
	r := p.RadiusScale
	if r <= 0 {
		r = 1
	}
	return math.Lerp32(0.5, 0.985, q),
		math.Lerp32(0.3*r, 0.1*r, q),
		math.Lerp32(0.999, 0.99999, q)
}

// AdaptiveSamples returns the sorted, duplicate-free sample times for c.
//
// Sampling starts from the control point times (truncated at BreakOffset or
// at the start of the cap range, whichever the scan meets first), subdivides
// spans whose frames or radii differ too much, drops nearly collinear
// midpoints, adds cap points and finally pins the end to exactly 1 when the
// curve is unbroken. The result depends only on the inputs.
func AdaptiveSamples(c *Curve, p SampleParams) []float32 {
	n := c.Len()
	if n == 0 {
		return nil
	}

	capStart := 1 - p.CapRange
	seeds := make([]float32, 0, n)
	for _, pt := range c.Points {
		if pt.Time > p.BreakOffset {
			seeds = append(seeds, p.BreakOffset)
			break
		}
		if pt.Time > capStart {
			seeds = append(seeds, capStart)
			break
		}
		seeds = append(seeds, pt.Time)
	}
	slices.Sort(seeds)
	if len(seeds) < 2 {
		return seeds
	}
	return Refine(c, seeds, p)
}

// Refine runs subdivision, reduction, capping and end pinning on an existing
// sorted sample list. AdaptiveSamples is Refine applied to the seed points.
func Refine(c *Curve, seeds []float32, p SampleParams) []float32 {
	samples := dedupe(slices.Clone(seeds))
	if len(samples) < 2 {
		return samples
	}

	dotThreshold, radiusThreshold, collinearThreshold := p.thresholds()

	samples = subdivide(c, samples, p, dotThreshold, radiusThreshold)
	samples = reduce(c, samples, p, collinearThreshold, radiusThreshold)

	if p.CapRange > 0 {
		capStart := 1 - p.CapRange
		segments := 1 + int(math32.Ceil(p.CapRange*16*math.Clamp32(p.Quality, 0, 1)))
		for i := 0; i < segments; i++ {
			theta := float32(i+1) / float32(segments) * math32.Pi / 2
			t := capStart + p.CapRange*math32.Sin(theta)
			if t >= p.BreakOffset {
				continue
			}
			samples = append(samples, t)
		}
		slices.Sort(samples)
		samples = dedupe(samples)
	}

	if p.BreakOffset >= 1 {
		last := len(samples) - 1
		switch {
		case samples[last] >= 1:
			samples[last] = 1
		case 1-samples[last] < 1e-5:
			samples[last] = 1
		default:
			samples = append(samples, 1)
		}
	}
	return samples
}

func subdivide(c *Curve, samples []float32, p SampleParams, dotThreshold, radiusThreshold float32) []float32 {
	remaining := MaxSubdivisions
	first := 0
	for first < len(samples)-1 && remaining > 0 {
		split := false
		for i := first; i < len(samples)-1; i++ {
			a, b := samples[i], samples[i+1]
			if needsSplit(c, p, a, b, dotThreshold, radiusThreshold) {
				samples = slices.Insert(samples, i+1, (a+b)*0.5)
				remaining--
				split = true
				break
			}
			first = i + 1
		}
		if !split {
			break
		}
	}
	return samples
}

func needsSplit(c *Curve, p SampleParams, a, b, dotThreshold, radiusThreshold float32) bool {
	ra, rb := c.RotationAt(a), c.RotationAt(b)
	if ra.Up().Dot(rb.Up()) < dotThreshold ||
		ra.Right().Dot(rb.Right()) < dotThreshold ||
		ra.Forward().Dot(rb.Forward()) < dotThreshold {
		return true
	}
	return math32.Abs(p.radius(a)-p.radius(b)) > radiusThreshold
}

func reduce(c *Curve, samples []float32, p SampleParams, collinearThreshold, radiusThreshold float32) []float32 {
	for i := 0; i < len(samples)-2; {
		ta, tb, tc := samples[i], samples[i+1], samples[i+2]
		pa, pb, pc := c.PositionAt(ta), c.PositionAt(tb), c.PositionAt(tc)
		ab := pb.Sub(pa).Normalize()
		ac := pc.Sub(pa).Normalize()
		ra, rb, rc := p.radius(ta), p.radius(tb), p.radius(tc)

		if ab.Dot(ac) >= collinearThreshold &&
			math32.Abs(ra-rb) <= radiusThreshold &&
			math32.Abs(rb-rc) <= radiusThreshold {
			samples = slices.Delete(samples, i+1, i+2)
			continue
		}
		i++
	}
	return samples
}

// dedupe removes neighbours closer than dedupeEpsilon from a sorted slice.
func dedupe(s []float32) []float32 {
	if len(s) < 2 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v-out[len(out)-1] > dedupeEpsilon {
			out = append(out, v)
		}
	}
	return out
}
