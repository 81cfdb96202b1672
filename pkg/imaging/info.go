package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sort"
)

// Info describes a decoded image without mutating it.
type Info struct {
	Format          string
	Width           int
	Height          int
	ColorMode       string
	HasTransparency bool
	BitDepth        int
	DominantColors  []string
}

// ExtractInfo decodes content and reports dimensions, color mode,
// transparency, approximate bit depth, and a dominant-color summary.
func ExtractInfo(content []byte) (Info, error) {
	if len(content) == 0 {
		return Info{}, ErrEmptyContent
	}

	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return Info{}, errors.Join(ErrDecodeFailed, err)
	}

	b := img.Bounds()
	info := Info{
		Format:          format,
		Width:           b.Dx(),
		Height:          b.Dy(),
		HasTransparency: hasAlpha(img),
	}
	info.ColorMode, info.BitDepth = colorMode(img)
	info.DominantColors = dominantColors(img, 3)
	return info, nil
}

func colorMode(img image.Image) (string, int) {
	switch img.(type) {
	case *image.Gray:
		return "grayscale", 8
	case *image.Gray16:
		return "grayscale", 16
	case *image.Paletted:
		return "indexed", 8
	case *image.CMYK:
		return "cmyk", 8
	case *image.RGBA64, *image.NRGBA64:
		return "rgba", 16
	case *image.RGBA, *image.NRGBA:
		return "rgba", 8
	case *image.YCbCr:
		return "ycbcr", 8
	default:
		return "rgb", 8
	}
}

// dominantColors buckets sampled pixels into a coarse color cube and returns
// the top n bucket centers as hex strings.
func dominantColors(img image.Image, n int) []string {
	const buckets = 4 // per channel, 64 cells total

	counts := make(map[[3]uint8]int)
	b := img.Bounds()
	stepX := max(1, b.Dx()/48)
	stepY := max(1, b.Dy()/48)

	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			cell := uint32(256 / buckets)
			key := [3]uint8{
				uint8((r >> 8) / cell),
				uint8((g >> 8) / cell),
				uint8((bl >> 8) / cell),
			}
			counts[key]++
		}
	}

	type bucket struct {
		key   [3]uint8
		count int
	}
	ranked := make([]bucket, 0, len(counts))
	for k, c := range counts {
		ranked = append(ranked, bucket{k, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].key[0] < ranked[j].key[0]
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, 0, len(ranked))
	cell := 256 / buckets
	for _, bk := range ranked {
		out = append(out, fmt.Sprintf("#%02x%02x%02x",
			int(bk.key[0])*cell+cell/2,
			int(bk.key[1])*cell+cell/2,
			int(bk.key[2])*cell+cell/2,
		))
	}
	return out
}
