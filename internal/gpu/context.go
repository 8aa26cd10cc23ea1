// Package gpu composites texture atlases on the GPU through an offscreen
// OpenGL context.
package gpu

import (
	"fmt"
	"runtime"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/arbor/internal/logger"
)

func init() {
	// OpenGL calls must be made from the main thread
	runtime.LockOSThread()
}

// Context is a hidden SDL2 window that owns an OpenGL 4.1 core context.
type Context struct {
	sdlWindow *sdl.Window
	glContext sdl.GLContext
}

// NewContext creates the hidden window and initializes the GL bindings.
func NewContext() (*Context, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("SDL_Init failed: %w", err)
	}

	// OpenGL 4.1 Core Profile (max supported on macOS)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MAJOR_VERSION, 4)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MINOR_VERSION, 1)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE)
	sdl.GLSetAttribute(sdl.GL_FRAMEBUFFER_SRGB_CAPABLE, 1)

	c := &Context{}
	var err error
	c.sdlWindow, err = sdl.CreateWindow("arbor", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		1, 1, sdl.WINDOW_OPENGL|sdl.WINDOW_HIDDEN)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("SDL_CreateWindow failed: %w", err)
	}

	c.glContext, err = c.sdlWindow.GLCreateContext()
	if err != nil {
		c.sdlWindow.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("SDL_GL_CreateContext failed: %w", err)
	}

	if err := gl.Init(); err != nil {
		c.Close()
		return nil, fmt.Errorf("gl.Init failed: %w", err)
	}

	logger.Info("offscreen GL context created",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))
	return c, nil
}

// Close destroys the context and shuts SDL down.
func (c *Context) Close() {
	if c.glContext != nil {
		sdl.GLDeleteContext(c.glContext)
		c.glContext = nil
	}
	if c.sdlWindow != nil {
		c.sdlWindow.Destroy()
		c.sdlWindow = nil
	}
	sdl.Quit()
}
