package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sync"

	_ "image/gif"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// DefaultQuality is the JPEG quality used when options leave it unset.
const DefaultQuality = 85

var (
	defaultThumbnailSizes   = []int{150, 300, 600}
	defaultResponsiveWidths = []int{320, 640, 768, 1024, 1366, 1920}
)

// Variant is one derived rendition of a source image.
type Variant struct {
	Name    string
	Format  string
	Width   int
	Height  int
	Quality int
	Data    []byte
}

// Options controls variant derivation.
type Options struct {
	// MaxWidth and MaxHeight bound the base image before derivation.
	// Zero means no bound.
	MaxWidth  int
	MaxHeight int

	// StripMetadata rebuilds the pixel buffer so container metadata
	// (EXIF, XMP, GPS) cannot survive. Re-encoding always strips it
	// anyway; this forces a buffer copy even for the base variant.
	StripMetadata bool

	// ThumbnailSizes are square crop-to-fill sizes. Nil means the
	// default 150/300/600 set; an empty non-nil slice disables them.
	ThumbnailSizes []int

	// ResponsiveWidths are aspect-preserving target widths. Widths at or
	// above the source width are skipped. Nil means the default set.
	ResponsiveWidths []int

	// WebP additionally derives a WebP copy of the base variant and each
	// thumbnail, in parallel.
	WebP bool

	// Quality applies to lossy output. Zero means DefaultQuality.
	Quality int
}

func (o Options) quality() int {
	if o.Quality <= 0 || o.Quality > 100 {
		return DefaultQuality
	}
	return o.Quality
}

func (o Options) thumbnailSizes() []int {
	if o.ThumbnailSizes == nil {
		return defaultThumbnailSizes
	}
	return o.ThumbnailSizes
}

func (o Options) responsiveWidths() []int {
	if o.ResponsiveWidths == nil {
		return defaultResponsiveWidths
	}
	return o.ResponsiveWidths
}

// Process decodes content and derives the configured variant set. The result
// always contains an "original" variant; thumbnails are named "thumb_<size>",
// responsive variants "w<width>", and WebP copies get a "_webp" suffix.
func Process(ctx context.Context, content []byte, opts Options) (map[string]Variant, error) {
	if len(content) == 0 {
		return nil, ErrEmptyContent
	}

	src, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Join(ErrDecodeFailed, err)
	}

	base := src
	if opts.MaxWidth > 0 || opts.MaxHeight > 0 {
		base = boundResize(base, opts.MaxWidth, opts.MaxHeight)
	}
	if opts.StripMetadata && base == src {
		base = rebuildPixels(base)
	}

	quality := opts.quality()
	alpha := hasAlpha(base)

	variants := make(map[string]Variant)
	var mu sync.Mutex
	add := func(v Variant) {
		mu.Lock()
		variants[v.Name] = v
		mu.Unlock()
	}

	baseVariant, err := encodeVariant("original", base, alpha, quality)
	if err != nil {
		return nil, err
	}
	add(baseVariant)

	srcWidth := base.Bounds().Dx()

	g, ctx := errgroup.WithContext(ctx)

	for _, size := range opts.thumbnailSizes() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			thumb := cropToFill(base, size, size)
			v, err := encodeVariant(fmt.Sprintf("thumb_%d", size), thumb, alpha, quality)
			if err != nil {
				return err
			}
			add(v)
			if opts.WebP {
				wv, err := encodeWebP(fmt.Sprintf("thumb_%d_webp", size), thumb)
				if err != nil {
					return err
				}
				add(wv)
			}
			return nil
		})
	}

	for _, width := range opts.responsiveWidths() {
		if width >= srcWidth {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			resized := resizeToWidth(base, width)
			v, err := encodeVariant(fmt.Sprintf("w%d", width), resized, alpha, quality)
			if err != nil {
				return err
			}
			add(v)
			return nil
		})
	}

	if opts.WebP {
		g.Go(func() error {
			v, err := encodeWebP("original_webp", base)
			if err != nil {
				return err
			}
			add(v)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return variants, nil
}

// encodeVariant renders img to PNG when alpha is present, JPEG otherwise.
func encodeVariant(name string, img image.Image, alpha bool, quality int) (Variant, error) {
	var buf bytes.Buffer
	v := Variant{
		Name:   name,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}

	if alpha {
		v.Format = "png"
		if err := png.Encode(&buf, img); err != nil {
			return Variant{}, errors.Join(ErrEncodeFailed, err)
		}
	} else {
		v.Format = "jpeg"
		v.Quality = quality
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return Variant{}, errors.Join(ErrEncodeFailed, err)
		}
	}

	v.Data = buf.Bytes()
	return v, nil
}

func encodeWebP(name string, img image.Image) (Variant, error) {
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return Variant{}, errors.Join(ErrEncodeFailed, err)
	}
	return Variant{
		Name:   name,
		Format: "webp",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		Data:   buf.Bytes(),
	}, nil
}

// boundResize shrinks img to fit within maxW x maxH, preserving aspect.
// Images already within bounds are returned unchanged.
func boundResize(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && h > maxH {
		if s := float64(maxH) / float64(h); s < scale {
			scale = s
		}
	}
	if scale >= 1.0 {
		return img
	}
	return scaleTo(img, int(float64(w)*scale), int(float64(h)*scale))
}

// resizeToWidth scales img to the target width, preserving aspect.
func resizeToWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	height := int(float64(b.Dy()) * float64(width) / float64(b.Dx()))
	if height < 1 {
		height = 1
	}
	return scaleTo(img, width, height)
}

// cropToFill scales img so the target is fully covered, then center-crops.
func cropToFill(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	scaleW := float64(width) / float64(srcW)
	scaleH := float64(height) / float64(srcH)
	scale := max(scaleW, scaleH)

	scaledW := int(float64(srcW)*scale + 0.5)
	scaledH := int(float64(srcH)*scale + 0.5)
	scaled := scaleTo(img, scaledW, scaledH)

	x := (scaledW - width) / 2
	y := (scaledH - height) / 2

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Copy(dst, image.Point{}, scaled, image.Rect(x, y, x+width, y+height), draw.Src, nil)
	return dst
}

func scaleTo(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// rebuildPixels copies pixels into a fresh buffer, dropping everything but
// raw pixel data.
func rebuildPixels(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
	return dst
}

// hasAlpha reports whether any pixel is not fully opaque. Sampled on a grid
// to keep cost bounded for large images.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}

	b := img.Bounds()
	stepX := max(1, b.Dx()/64)
	stepY := max(1, b.Dy()/64)
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}
