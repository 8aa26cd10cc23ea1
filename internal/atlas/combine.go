package atlas

import (
	"fmt"
	"image"
	"image/color"

	"go.uber.org/zap"

	"github.com/Faultbox/arbor/internal/logger"
	"github.com/Faultbox/arbor/internal/material"
)

// Channel is one combined output texture.
type Channel int

const (
	// ChannelDiffuse holds colour in RGB and opacity in A.
	ChannelDiffuse Channel = iota
	// ChannelNormal holds the normal map in RGB and specular in A.
	ChannelNormal
	// ChannelTranslucency holds translucency in RGB and gloss in A.
	ChannelTranslucency
	// ChannelShadow holds the shadow offset map.
	ChannelShadow
	ChannelCount
)

var channelNames = [ChannelCount]string{"diffuse", "normal", "translucency", "shadow"}

func (c Channel) String() string {
	if c >= 0 && c < ChannelCount {
		return channelNames[c]
	}
	return "unknown"
}

// Default fills for channels a material does not provide.
var (
	DefaultDiffuse      = color.NRGBA{255, 255, 255, 255}
	DefaultNormal       = color.NRGBA{128, 128, 255, 0}
	DefaultTranslucency = color.NRGBA{0, 0, 0, 255}
	DefaultShadow       = color.NRGBA{0, 0, 0, 255}
)

// Textures loads source textures.
type Textures interface {
	Load(path string) (image.Image, error)
	Read(path string) ([]byte, error)
}

// RenderState is the global render state a compositor may change. It must
// be identical before and after Combine.
type RenderState struct {
	Framebuffer uint32
	Viewport    image.Rectangle
	Fog         bool
	SRGBWrite   bool
	Scissor     bool
}

// Layer is one entry's contribution to a channel.
type Layer struct {
	// Rect is the destination cell without padding.
	Rect image.Rectangle
	// Source is nil when the entry only contributes Fill.
	Source image.Image
	Fill   color.NRGBA
	Tiling bool
	// Repeat is the number of vertical repeats of a tiling column.
	Repeat int
}

// Request describes one channel composite.
type Request struct {
	Channel Channel
	Width   int
	Height  int
	Padding int
	Layers  []Layer
}

// Compositor renders layers into an atlas texture.
type Compositor interface {
	State() RenderState
	Restore(RenderState)
	Composite(req Request) (*image.NRGBA, error)
}

// Combine renders the four channel textures of a packed atlas. The
// compositor's render state is restored before returning, on success and
// on failure.
func Combine(c Compositor, a *Atlas, tex Textures) ([ChannelCount]*image.NRGBA, error) {
	var out [ChannelCount]*image.NRGBA

	saved := c.State()
	defer c.Restore(saved)

	for ch := Channel(0); ch < ChannelCount; ch++ {
		img, err := c.Composite(Request{
			Channel: ch,
			Width:   a.Width,
			Height:  a.Height,
			Padding: a.Padding,
			Layers:  a.Layers(ch, tex),
		})
		if err != nil {
			return [ChannelCount]*image.NRGBA{}, fmt.Errorf("compositing %s: %w", ch, err)
		}
		out[ch] = img
	}
	return out, nil
}

// Layers builds the per-entry layers of channel ch.
func (a *Atlas) Layers(ch Channel, tex Textures) []Layer {
	layers := make([]Layer, 0, len(a.Entries))
	for _, e := range a.Entries {
		if e.Rect.Empty() {
			continue
		}
		l := Layer{Rect: e.Rect, Tiling: e.Tiling, Repeat: max(e.VerticalTiling, 1)}
		l.Source, l.Fill = e.channelSource(ch, tex)
		layers = append(layers, l)
	}
	return layers
}

// channelSource merges the entry's textures for ch. It returns a nil image
// and the fill colour when the entry has no texture for the channel.
func (e *Entry) channelSource(ch Channel, tex Textures) (image.Image, color.NRGBA) {
	load := func(slot int) image.Image {
		path := e.Textures[slot]
		if path == "" || tex == nil {
			return nil
		}
		img, err := tex.Load(path)
		if err != nil {
			logger.Warn("texture unavailable, using default",
				zap.String("material", e.Name),
				zap.String("slot", material.SlotNames[slot]),
				zap.Error(err))
			return nil
		}
		return img
	}

	switch ch {
	case ChannelDiffuse:
		fill := tint(DefaultDiffuse, e.Color)
		src := load(material.SlotDiffuse)
		if src == nil {
			return nil, fill
		}
		return merge(src, nil, DefaultDiffuse, e.Color, -1), fill
	case ChannelNormal:
		spec := int(e.Shininess*255 + 0.5)
		fill := DefaultNormal
		fill.A = uint8(spec)
		src := load(material.SlotNormal)
		if src == nil {
			return nil, fill
		}
		return merge(src, nil, DefaultNormal, white, spec), fill
	case ChannelTranslucency:
		rgb, gloss := load(material.SlotTranslucency), load(material.SlotGloss)
		if rgb == nil && gloss == nil {
			return nil, DefaultTranslucency
		}
		return merge(rgb, gloss, DefaultTranslucency, white, -1), DefaultTranslucency
	case ChannelShadow:
		src := load(material.SlotShadowOffset)
		if src == nil {
			return nil, DefaultShadow
		}
		return merge(src, nil, DefaultShadow, white, -1), DefaultShadow
	}
	return nil, color.NRGBA{}
}

var white = [4]float32{1, 1, 1, 1}

func tint(c color.NRGBA, t [4]float32) color.NRGBA {
	return color.NRGBA{
		R: scale8(c.R, t[0]),
		G: scale8(c.G, t[1]),
		B: scale8(c.B, t[2]),
		A: scale8(c.A, t[3]),
	}
}

func scale8(v uint8, f float32) uint8 {
	x := float32(v)*f + 0.5
	switch {
	case x <= 0:
		return 0
	case x >= 255:
		return 255
	}
	return uint8(x)
}

// merge builds an NRGBA image from rgb and alpha sources. RGB comes from rgb
// (or def), alpha from the red channel of alpha, else from rgb, else from
// def. fixedAlpha >= 0 overrides the alpha. The result is tinted by t.
func merge(rgb, alpha image.Image, def color.NRGBA, t [4]float32, fixedAlpha int) *image.NRGBA {
	var bounds image.Rectangle
	switch {
	case rgb != nil:
		bounds = rgb.Bounds()
	case alpha != nil:
		bounds = alpha.Bounds()
	default:
		return nil
	}

	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			c := def
			if rgb != nil {
				p := color.NRGBAModel.Convert(rgb.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
				c.R, c.G, c.B, c.A = p.R, p.G, p.B, p.A
			}
			if alpha != nil {
				ab := alpha.Bounds()
				// sample the alpha source at the same relative position
				ax := ab.Min.X + x*ab.Dx()/bounds.Dx()
				ay := ab.Min.Y + y*ab.Dy()/bounds.Dy()
				c.A = color.NRGBAModel.Convert(alpha.At(ax, ay)).(color.NRGBA).R
			}
			if fixedAlpha >= 0 {
				c.A = uint8(min(fixedAlpha, 255))
			}
			out.SetNRGBA(x, y, tint(c, t))
		}
	}
	return out
}
