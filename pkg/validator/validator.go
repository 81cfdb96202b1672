package validator

import (
	"bytes"
	"fmt"
	"image"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	// Registered so image.DecodeConfig can read dimensions of uploaded images.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Result accumulates validation findings. IsValid is false when Errors is
// non-empty; Warnings never invalidate a file on their own.
type Result struct {
	IsValid           bool
	Errors            []string
	Warnings          []string
	DetectedMIME      string
	SanitizedFilename string
	Metadata          map[string]any
}

// Default per-category size ceilings in bytes.
var defaultSizeCeilings = map[string]int64{
	"image":    20 << 20,  // 20 MiB
	"document": 50 << 20,  // 50 MiB
	"video":    500 << 20, // 500 MiB
	"audio":    100 << 20, // 100 MiB
	"archive":  100 << 20, // 100 MiB
}

// DefaultSizeCeiling applies to categories without an explicit ceiling.
const DefaultSizeCeiling int64 = 50 << 20

// DefaultMaxImageDimension bounds width and height of accepted images.
const DefaultMaxImageDimension = 10000

// Validator checks uploaded content. The zero value is not usable; construct
// with New.
type Validator struct {
	sizeCeilings      map[string]int64
	defaultCeiling    int64
	ratioLimit        float64
	maxImageDimension int
}

// Option configures a Validator.
type Option func(*Validator)

// WithSizeCeiling overrides the byte ceiling for one category.
func WithSizeCeiling(category string, maxBytes int64) Option {
	return func(v *Validator) { v.sizeCeilings[category] = maxBytes }
}

// WithDefaultSizeCeiling overrides the fallback ceiling.
func WithDefaultSizeCeiling(maxBytes int64) Option {
	return func(v *Validator) { v.defaultCeiling = maxBytes }
}

// WithCompressionRatioLimit overrides the decompression-bomb threshold.
func WithCompressionRatioLimit(limit float64) Option {
	return func(v *Validator) {
		if limit > 0 {
			v.ratioLimit = limit
		}
	}
}

// WithMaxImageDimension overrides the accepted image dimension bound.
func WithMaxImageDimension(px int) Option {
	return func(v *Validator) {
		if px > 0 {
			v.maxImageDimension = px
		}
	}
}

// New creates a Validator with default limits.
func New(opts ...Option) *Validator {
	v := &Validator{
		sizeCeilings:      make(map[string]int64, len(defaultSizeCeilings)),
		defaultCeiling:    DefaultSizeCeiling,
		ratioLimit:        DefaultCompressionRatioLimit,
		maxImageDimension: DefaultMaxImageDimension,
	}
	for category, ceiling := range defaultSizeCeilings {
		v.sizeCeilings[category] = ceiling
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the full check sequence: filename, size, MIME, magic number,
// category-specific content checks, and embedded-executable detection.
func (v *Validator) Validate(content []byte, filename, category string) Result {
	res := Result{
		SanitizedFilename: Sanitize(filename),
		Metadata:          make(map[string]any),
	}

	checkFilename(filename, &res)

	ceiling, ok := v.sizeCeilings[category]
	if !ok {
		ceiling = v.defaultCeiling
	}
	if len(content) == 0 {
		res.Errors = append(res.Errors, "file is empty")
	} else if int64(len(content)) > ceiling {
		res.Errors = append(res.Errors,
			fmt.Sprintf("file size %d exceeds %d byte limit for category %q", len(content), ceiling, category))
	}
	res.Metadata["size"] = int64(len(content))

	res.DetectedMIME = detectMIME(content)
	ext := lowerExt(filename)
	if declared := mime.TypeByExtension(ext); declared != "" {
		if base := normalizeMIME(declared); base != normalizeMIME(res.DetectedMIME) &&
			normalizeMIME(res.DetectedMIME) != "application/octet-stream" {
			// Mismatch is only advisory: text formats in particular sniff
			// inconsistently across platforms.
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("detected MIME %q does not match extension-derived %q", res.DetectedMIME, base))
		}
	}

	if len(content) > 0 && !headerMatchesExtension(content, ext) {
		res.Warnings = append(res.Warnings, "file header does not match extension "+ext)
	}

	// Embedded native executables are a hard failure regardless of the
	// declared category or extension.
	if isExecutable(content) {
		res.Errors = append(res.Errors, "content is a native executable (PE/ELF/Mach-O)")
	}

	switch category {
	case "image":
		v.checkImage(content, &res)
	case "document":
		checkDocument(content, &res)
	case "archive":
		v.checkArchive(content, ext, &res)
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

func (v *Validator) checkImage(content []byte, res *Result) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		if strings.HasPrefix(res.DetectedMIME, "image/svg") || bytes.Contains(content[:min(len(content), 512)], []byte("<svg")) {
			checkSVG(content, res)
			return
		}
		res.Errors = append(res.Errors, "image could not be decoded")
		return
	}

	res.Metadata["image_width"] = cfg.Width
	res.Metadata["image_height"] = cfg.Height
	res.Metadata["image_format"] = format

	if cfg.Width <= 0 || cfg.Height <= 0 {
		res.Errors = append(res.Errors, "image has invalid dimensions")
		return
	}
	if cfg.Width > v.maxImageDimension || cfg.Height > v.maxImageDimension {
		res.Errors = append(res.Errors,
			fmt.Sprintf("image dimensions %dx%d exceed %d px limit", cfg.Width, cfg.Height, v.maxImageDimension))
	}

	// Pixel-count sanity against the encoded size: a tiny file declaring an
	// enormous canvas behaves like a decompression bomb when rasterized.
	pixels := int64(cfg.Width) * int64(cfg.Height)
	if len(content) > 0 && pixels/int64(len(content)) > 2000 {
		res.Errors = append(res.Errors, "image pixel density suggests a decompression bomb")
	}
}

func checkSVG(content []byte, res *Result) {
	lowered := bytes.ToLower(content)
	if bytes.Contains(lowered, []byte("<script")) {
		res.Errors = append(res.Errors, "svg contains script element")
	}
	if bytes.Contains(lowered, []byte("javascript:")) || bytes.Contains(lowered, []byte("onload=")) {
		res.Errors = append(res.Errors, "svg contains active content")
	}
	res.Metadata["image_format"] = "svg"
}

// macro and script indicators in office and PDF documents.
var documentIndicators = []struct {
	marker  []byte
	finding string
	fatal   bool
}{
	{[]byte("vbaProject.bin"), "document contains VBA macros", false},
	{[]byte("macrosheets"), "document contains Excel 4.0 macro sheets", false},
	{[]byte("/JavaScript"), "pdf contains embedded JavaScript", false},
	{[]byte("/OpenAction"), "pdf contains automatic open action", false},
	{[]byte("/Launch"), "pdf contains launch action", true},
	{[]byte("/EmbeddedFile"), "pdf contains embedded files", false},
}

func checkDocument(content []byte, res *Result) {
	for _, ind := range documentIndicators {
		if bytes.Contains(content, ind.marker) {
			if ind.fatal {
				res.Errors = append(res.Errors, ind.finding)
			} else {
				res.Warnings = append(res.Warnings, ind.finding)
			}
		}
	}
}

func (v *Validator) checkArchive(content []byte, ext string, res *Result) {
	switch {
	case bytes.HasPrefix(content, []byte{0x50, 0x4B}):
		checkZipArchive(content, v.ratioLimit, res)
	case bytes.HasPrefix(content, []byte{0x1F, 0x8B}):
		checkGzipArchive(content, v.ratioLimit, res)
	case ext == ".zip" || ext == ".gz":
		res.Errors = append(res.Errors, "archive header does not match extension "+ext)
	default:
		res.Warnings = append(res.Warnings, "unsupported archive format, content not inspected")
	}
}

// detectMIME sniffs content type from the first 512 bytes.
func detectMIME(content []byte) string {
	if len(content) > 512 {
		content = content[:512]
	}
	return http.DetectContentType(content)
}

// normalizeMIME strips parameters like charset and lowercases the type.
func normalizeMIME(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.TrimSpace(strings.ToLower(mimeType))
}

func lowerExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
