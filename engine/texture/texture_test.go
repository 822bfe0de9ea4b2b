package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func checker() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 1, color.NRGBA{B: 255, A: 255})
	return img
}

func TestDecodePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, checker()))

	tex, err := DecodeBytes(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, tex.Valid())
	assert.Equal(t, []byte{255, 0, 0, 255}, tex.Pixels[:4])
}

func TestDecodeBMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, checker()))

	tex, err := DecodeBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tex.Width)
	assert.Equal(t, []byte{0, 0, 255, 255}, tex.Pixels[12:16])
}

func TestDecodeGarbageFails(t *testing.T) {
	_, err := DecodeBytes([]byte("not an image"))
	assert.Error(t, err)
}

func TestLoadSetSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	f, err := os.Create(good)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, checker()))
	require.NoError(t, f.Close())

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte{1, 2, 3}, 0o644))

	set := LoadSet(map[string]string{"good": good, "bad": bad, "missing": filepath.Join(dir, "nope.tga")})
	assert.Contains(t, set, "good")
	assert.NotContains(t, set, "bad")
	assert.NotContains(t, set, "missing")
}

func TestToonGradientBands(t *testing.T) {
	tex := ToonGradient(8, 2, [3]uint8{100, 100, 100})
	require.True(t, tex.Valid())
	assert.Equal(t, uint8(255), tex.Pixels[0])
	assert.Equal(t, uint8(100), tex.Pixels[7*4])
}
