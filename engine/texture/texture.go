// Package texture decodes raw image files into RGBA pixel data ready for device upload.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-skin/common"
	"github.com/Carmen-Shannon/oxy-skin/engine/logger"
	_ "github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/bmp"
)

// ErrEmptyImage reports an image with zero width or height.
var ErrEmptyImage = errors.New("texture: empty image")

// Set maps asset keys to decoded textures. A key missing from the set renders untextured.
type Set map[string]common.TextureStagingData

// Decode reads any registered image format (png, jpeg, bmp, tga) into RGBA pixel data.
//
// Parameters:
//   - r: the encoded image
//
// Returns:
//   - common.TextureStagingData: the decoded pixels
//   - error: error if the data cannot be decoded
func Decode(r io.Reader) (common.TextureStagingData, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("texture: decode: %w", err)
	}
	return FromImage(img)
}

// DecodeBytes decodes an in-memory encoded image.
//
// Parameters:
//   - data: the encoded image bytes
//
// Returns:
//   - common.TextureStagingData: the decoded pixels
//   - error: error if the data cannot be decoded
func DecodeBytes(data []byte) (common.TextureStagingData, error) {
	return Decode(bytes.NewReader(data))
}

// LoadFile decodes the image file at path.
//
// Parameters:
//   - path: the image file path
//
// Returns:
//   - common.TextureStagingData: the decoded pixels
//   - error: error if the file cannot be read or decoded
func LoadFile(path string) (common.TextureStagingData, error) {
	f, err := os.Open(path)
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("texture: open %s: %w", path, err)
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// FromImage converts any image to straight RGBA staging data.
//
// Parameters:
//   - img: the source image
//
// Returns:
//   - common.TextureStagingData: the pixels
//   - error: ErrEmptyImage for a zero-sized image
func FromImage(img image.Image) (common.TextureStagingData, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return common.TextureStagingData{}, ErrEmptyImage
	}
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != b.Dx()*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return common.TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
	}, nil
}

// LoadSet decodes every file of a key to path map. Files that fail are logged and left out of the
// set so their materials degrade to untextured rendering.
//
// Parameters:
//   - paths: asset key to file path
//
// Returns:
//   - Set: the decoded textures
func LoadSet(paths map[string]string) Set {
	log := logger.For("texture")
	set := make(Set, len(paths))
	for key, path := range paths {
		t, err := LoadFile(path)
		if err != nil {
			log.Warn("texture decode failed, material renders untextured", "key", key, "err", err)
			continue
		}
		set[key] = t
	}
	return set
}
