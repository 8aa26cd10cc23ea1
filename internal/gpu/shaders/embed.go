// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// BlitVertexShader places a layer quad in atlas space.
//
//go:embed blit.vert
var BlitVertexShader string

// BlitFragmentShader samples the layer texture or writes the fill colour.
//
//go:embed blit.frag
var BlitFragmentShader string
