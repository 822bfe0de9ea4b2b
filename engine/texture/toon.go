package texture

import (
	"image"
	"image/color"

	"github.com/Carmen-Shannon/oxy-skin/common"
)

// ToonGradient builds the default toon lookup: a vertical ramp from white (lit, v = 0) to a
// shadow tone (v = 1), split into the given number of hard bands.
//
// Parameters:
//   - height: texel rows (minimum 2)
//   - bands: number of discrete shades (minimum 2)
//   - shadow: RGB of the darkest band
//
// Returns:
//   - common.TextureStagingData: a 1 texel wide ramp
func ToonGradient(height, bands int, shadow [3]uint8) common.TextureStagingData {
	height = max(height, 2)
	bands = max(bands, 2)
	img := image.NewRGBA(image.Rect(0, 0, 1, height))
	for y := 0; y < height; y++ {
		band := y * bands / height
		t := float32(band) / float32(bands-1)
		img.SetRGBA(0, y, color.RGBA{
			R: lerp8(255, shadow[0], t),
			G: lerp8(255, shadow[1], t),
			B: lerp8(255, shadow[2], t),
			A: 255,
		})
	}
	t, _ := FromImage(img)
	return t
}

// White returns a 1x1 opaque white texture, the stand-in for an unbound slot.
func White() common.TextureStagingData {
	return common.TextureStagingData{Pixels: []byte{255, 255, 255, 255}, Width: 1, Height: 1}
}

func lerp8(a, b uint8, t float32) uint8 {
	return uint8(float32(a) + (float32(b)-float32(a))*t + 0.5)
}
