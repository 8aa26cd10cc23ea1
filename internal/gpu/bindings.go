package gpu

import "github.com/go-gl/gl/v4.1-core/gl"

// bindings is the GL state Composite touches beyond atlas.RenderState.
// The host's framebuffer, viewport, sRGB and scissor state go through
// State and Restore; everything else is saved here and put back on return.
type bindings struct {
	blend     bool
	depthTest bool

	program       int32
	vertexArray   int32
	arrayBuffer   int32
	activeTexture int32
	// texture is the 2D binding of texture unit 0, the only unit used.
	texture         int32
	unpackAlignment int32
}

func saveBindings() bindings {
	var b bindings
	b.blend = gl.IsEnabled(gl.BLEND)
	b.depthTest = gl.IsEnabled(gl.DEPTH_TEST)
	gl.GetIntegerv(gl.CURRENT_PROGRAM, &b.program)
	gl.GetIntegerv(gl.VERTEX_ARRAY_BINDING, &b.vertexArray)
	gl.GetIntegerv(gl.ARRAY_BUFFER_BINDING, &b.arrayBuffer)
	gl.GetIntegerv(gl.ACTIVE_TEXTURE, &b.activeTexture)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.GetIntegerv(gl.TEXTURE_BINDING_2D, &b.texture)
	gl.ActiveTexture(uint32(b.activeTexture))
	gl.GetIntegerv(gl.UNPACK_ALIGNMENT, &b.unpackAlignment)
	return b
}

func (b bindings) restore() {
	setCap(gl.BLEND, b.blend)
	setCap(gl.DEPTH_TEST, b.depthTest)
	gl.UseProgram(uint32(b.program))
	gl.BindVertexArray(uint32(b.vertexArray))
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b.arrayBuffer))
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, uint32(b.texture))
	gl.ActiveTexture(uint32(b.activeTexture))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, b.unpackAlignment)
}
