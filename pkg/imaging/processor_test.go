package imaging_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filekit/pkg/imaging"
)

// testJPEG renders a solid-color JPEG of the given size.
func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// testPNGWithAlpha renders a PNG with a transparent region.
func testPNGWithAlpha(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			a := uint8(255)
			if x < width/2 {
				a = 0
			}
			img.Set(x, y, color.NRGBA{R: 10, G: 120, B: 240, A: a})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcess_DefaultVariants(t *testing.T) {
	t.Parallel()

	variants, err := imaging.Process(context.Background(), testJPEG(t, 1200, 800), imaging.Options{})
	require.NoError(t, err)

	require.Contains(t, variants, "original")
	assert.Equal(t, 1200, variants["original"].Width)
	assert.Equal(t, 800, variants["original"].Height)
	assert.Equal(t, "jpeg", variants["original"].Format)
	assert.Equal(t, imaging.DefaultQuality, variants["original"].Quality)

	for _, size := range []int{150, 300, 600} {
		name := "thumb_" + strconv.Itoa(size)
		require.Contains(t, variants, name)
		assert.Equal(t, size, variants[name].Width)
		assert.Equal(t, size, variants[name].Height)
	}

	// Responsive variants exist only strictly below the source width.
	for _, width := range []int{320, 640, 768, 1024} {
		name := "w" + strconv.Itoa(width)
		require.Contains(t, variants, name)
		assert.Equal(t, width, variants[name].Width)
	}
	assert.NotContains(t, variants, "w1200")
	assert.NotContains(t, variants, "w1366")
	assert.NotContains(t, variants, "w1920")
}

func TestProcess_NeverUpscales(t *testing.T) {
	t.Parallel()

	variants, err := imaging.Process(context.Background(), testJPEG(t, 500, 400), imaging.Options{
		ThumbnailSizes: []int{},
	})
	require.NoError(t, err)

	for name, v := range variants {
		if name == "original" {
			continue
		}
		assert.Less(t, v.Width, 500, "variant %s must be narrower than source", name)
	}
}

func TestProcess_AlphaEncodesToPNG(t *testing.T) {
	t.Parallel()

	variants, err := imaging.Process(context.Background(), testPNGWithAlpha(t, 400, 300), imaging.Options{
		ThumbnailSizes:   []int{150},
		ResponsiveWidths: []int{},
	})
	require.NoError(t, err)

	assert.Equal(t, "png", variants["original"].Format)
	assert.Equal(t, "png", variants["thumb_150"].Format)
}

func TestProcess_BoundResize(t *testing.T) {
	t.Parallel()

	variants, err := imaging.Process(context.Background(), testJPEG(t, 2000, 1000), imaging.Options{
		MaxWidth:         800,
		ThumbnailSizes:   []int{},
		ResponsiveWidths: []int{},
	})
	require.NoError(t, err)

	assert.Equal(t, 800, variants["original"].Width)
	assert.Equal(t, 400, variants["original"].Height)
}

func TestProcess_WebPVariants(t *testing.T) {
	t.Parallel()

	variants, err := imaging.Process(context.Background(), testJPEG(t, 400, 300), imaging.Options{
		ThumbnailSizes:   []int{150},
		ResponsiveWidths: []int{},
		WebP:             true,
	})
	require.NoError(t, err)

	require.Contains(t, variants, "original_webp")
	assert.Equal(t, "webp", variants["original_webp"].Format)
	require.Contains(t, variants, "thumb_150_webp")
	assert.Equal(t, 150, variants["thumb_150_webp"].Width)
}

func TestProcess_InvalidInput(t *testing.T) {
	t.Parallel()

	_, err := imaging.Process(context.Background(), nil, imaging.Options{})
	assert.ErrorIs(t, err, imaging.ErrEmptyContent)

	_, err = imaging.Process(context.Background(), []byte("not an image"), imaging.Options{})
	assert.ErrorIs(t, err, imaging.ErrDecodeFailed)
}

func TestExtractInfo(t *testing.T) {
	t.Parallel()

	t.Run("jpeg", func(t *testing.T) {
		t.Parallel()

		info, err := imaging.ExtractInfo(testJPEG(t, 320, 240))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", info.Format)
		assert.Equal(t, 320, info.Width)
		assert.Equal(t, 240, info.Height)
		assert.False(t, info.HasTransparency)
		assert.NotEmpty(t, info.DominantColors)
	})

	t.Run("png with alpha", func(t *testing.T) {
		t.Parallel()

		info, err := imaging.ExtractInfo(testPNGWithAlpha(t, 100, 100))
		require.NoError(t, err)
		assert.Equal(t, "png", info.Format)
		assert.True(t, info.HasTransparency)
	})

	t.Run("input not mutated", func(t *testing.T) {
		t.Parallel()

		content := testJPEG(t, 64, 64)
		before := bytes.Clone(content)
		_, err := imaging.ExtractInfo(content)
		require.NoError(t, err)
		assert.Equal(t, before, content)
	})
}
