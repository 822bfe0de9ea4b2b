package window

import "github.com/go-gl/glfw/v3.3/glfw"

// Key codes delivered to the key callbacks.
const (
	KeyLeft  = uint32(glfw.KeyLeft)
	KeyRight = uint32(glfw.KeyRight)
	KeyUp    = uint32(glfw.KeyUp)
	KeyDown  = uint32(glfw.KeyDown)
	KeyA     = uint32(glfw.KeyA)
	KeyD     = uint32(glfw.KeyD)
	KeyW     = uint32(glfw.KeyW)
	KeyS     = uint32(glfw.KeyS)
	KeyE     = uint32(glfw.KeyE)
	KeyZ     = uint32(glfw.KeyZ)
	KeyX     = uint32(glfw.KeyX)
	KeyM     = uint32(glfw.KeyM)
	KeyP     = uint32(glfw.KeyP)
	KeySpace = uint32(glfw.KeySpace)
)
