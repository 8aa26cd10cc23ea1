package gpu

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	xdraw "golang.org/x/image/draw"

	"github.com/Faultbox/arbor/internal/atlas"
	"github.com/Faultbox/arbor/internal/gpu/shaders"
)

// Compositor blits atlas layers into an offscreen framebuffer. It needs a
// current GL context, see NewContext.
type Compositor struct {
	program uint32

	locTexture    int32
	locFill       int32
	locUseTexture int32

	vao uint32
	vbo uint32

	// fog mirrors the host's fog toggle. The core profile has no fixed
	// function fog, so shaders read it as a uniform.
	fog bool
}

var _ atlas.Compositor = (*Compositor)(nil)

// NewCompositor compiles the blit program.
func NewCompositor() (*Compositor, error) {
	defer saveBindings().restore()

	program, err := compileProgram(shaders.BlitVertexShader, shaders.BlitFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("blit shader: %w", err)
	}
	c := &Compositor{program: program, fog: true}
	c.locTexture = uniform(program, "uTexture")
	c.locFill = uniform(program, "uFill")
	c.locUseTexture = uniform(program, "uUseTexture")

	gl.GenVertexArrays(1, &c.vao)
	gl.BindVertexArray(c.vao)
	gl.GenBuffers(1, &c.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, c.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, 6*4*4, nil, gl.DYNAMIC_DRAW)

	// Position attribute (location 0)
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, 4*4, 0)
	gl.EnableVertexAttribArray(0)
	// TexCoord attribute (location 1)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, 4*4, 2*4)
	gl.EnableVertexAttribArray(1)
	gl.BindVertexArray(0)

	return c, nil
}

// SetFog sets the host fog toggle.
func (c *Compositor) SetFog(on bool) { c.fog = on }

// State reads the current GL render state.
func (c *Compositor) State() atlas.RenderState {
	var fbo int32
	var vp [4]int32
	gl.GetIntegerv(gl.FRAMEBUFFER_BINDING, &fbo)
	gl.GetIntegerv(gl.VIEWPORT, &vp[0])
	return atlas.RenderState{
		Framebuffer: uint32(fbo),
		Viewport:    image.Rect(int(vp[0]), int(vp[1]), int(vp[0]+vp[2]), int(vp[1]+vp[3])),
		Fog:         c.fog,
		SRGBWrite:   gl.IsEnabled(gl.FRAMEBUFFER_SRGB),
		Scissor:     gl.IsEnabled(gl.SCISSOR_TEST),
	}
}

// Restore applies a state returned by State.
func (c *Compositor) Restore(s atlas.RenderState) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, s.Framebuffer)
	gl.Viewport(int32(s.Viewport.Min.X), int32(s.Viewport.Min.Y), int32(s.Viewport.Dx()), int32(s.Viewport.Dy()))
	setCap(gl.FRAMEBUFFER_SRGB, s.SRGBWrite)
	setCap(gl.SCISSOR_TEST, s.Scissor)
	c.fog = s.Fog
}

// Composite renders one channel. Diffuse is written through an sRGB target;
// the data channels stay linear.
func (c *Compositor) Composite(req atlas.Request) (*image.NRGBA, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("invalid atlas size %dx%d", req.Width, req.Height)
	}
	srgb := req.Channel == atlas.ChannelDiffuse
	format := int32(gl.RGBA8)
	if srgb {
		format = gl.SRGB8_ALPHA8
	}

	defer saveBindings().restore()

	fb, err := NewFramebuffer(int32(req.Width), int32(req.Height), format)
	if err != nil {
		return nil, err
	}
	defer fb.Destroy()

	fb.Bind()
	c.fog = false
	setCap(gl.FRAMEBUFFER_SRGB, srgb)
	gl.Disable(gl.SCISSOR_TEST)
	gl.Disable(gl.BLEND)
	gl.Disable(gl.DEPTH_TEST)
	fb.Clear(0, 0, 0, 0)

	gl.UseProgram(c.program)
	gl.Uniform1i(c.locTexture, 0)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindVertexArray(c.vao)

	bounds := image.Rect(0, 0, req.Width, req.Height)
	for _, l := range req.Layers {
		if l.Rect.Empty() || !l.Rect.In(bounds) {
			return nil, fmt.Errorf("layer %v outside atlas %v", l.Rect, bounds)
		}
		c.drawLayer(l, req, format)
	}
	if code := gl.GetError(); code != gl.NO_ERROR {
		return nil, fmt.Errorf("GL error 0x%x compositing %s", code, req.Channel)
	}
	return fb.Image(), nil
}

func (c *Compositor) drawLayer(l atlas.Layer, req atlas.Request, format int32) {
	verts := layerQuad(l, req.Width, req.Height, req.Padding)
	gl.BindBuffer(gl.ARRAY_BUFFER, c.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(verts)*4, unsafe.Pointer(&verts[0]))

	if l.Source == nil {
		gl.Uniform1i(c.locUseTexture, 0)
		gl.Uniform4f(c.locFill,
			float32(l.Fill.R)/255, float32(l.Fill.G)/255, float32(l.Fill.B)/255, float32(l.Fill.A)/255)
		gl.DrawArrays(gl.TRIANGLES, 0, 6)
		return
	}

	tex := uploadTexture(l.Source, format, l.Tiling)
	defer gl.DeleteTextures(1, &tex)

	gl.Uniform1i(c.locUseTexture, 1)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
}

// uploadTexture creates a texture from img. Edges clamp, except that tiling
// sources wrap vertically.
func uploadTexture(img image.Image, format int32, tiling bool) uint32 {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Stride != b.Dx()*4 {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(nrgba, nrgba.Bounds(), img, b.Min, xdraw.Src)
	}

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, format, int32(b.Dx()), int32(b.Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(nrgba.Pix))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	wrapT := int32(gl.CLAMP_TO_EDGE)
	if tiling {
		wrapT = gl.REPEAT
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrapT)
	return tex
}

// Destroy releases the program and buffers.
func (c *Compositor) Destroy() {
	if c.vao != 0 {
		gl.DeleteVertexArrays(1, &c.vao)
		c.vao = 0
	}
	if c.vbo != 0 {
		gl.DeleteBuffers(1, &c.vbo)
		c.vbo = 0
	}
	if c.program != 0 {
		gl.DeleteProgram(c.program)
		c.program = 0
	}
}

func setCap(capability uint32, on bool) {
	if on {
		gl.Enable(capability)
	} else {
		gl.Disable(capability)
	}
}
