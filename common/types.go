// package common contains plain types and helpers used throughout this engine.
package common

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
type TextureStagingData struct {
	// Pixels is the RGBA pixel data, 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// Valid reports whether the pixel slice matches the declared dimensions.
func (t TextureStagingData) Valid() bool {
	return t.Width > 0 && t.Height > 0 && len(t.Pixels) == int(t.Width*t.Height*4)
}

// ByteRange is a half-open byte interval [Offset, Offset+Size) inside a buffer.
type ByteRange struct {
	Offset uint64
	Size   uint64
}

// End returns the exclusive end offset of the range.
func (r ByteRange) End() uint64 {
	return r.Offset + r.Size
}
