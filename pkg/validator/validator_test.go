package validator_test

import (
	"archive/zip"
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filekit/pkg/validator"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func TestSanitize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"report.pdf",
		"../../../etc/passwd",
		"C:\\Windows\\system32\\evil.txt",
		"weird  name!!@#$.jpg",
		"..hidden..file..png",
		"",
		".",
		"..",
		"CON",
		"\x00\x01control.txt",
		"---.doc",
		"файл.txt",
	}

	for _, in := range inputs {
		once := validator.Sanitize(in)
		twice := validator.Sanitize(once)
		assert.Equal(t, once, twice, "Sanitize should be idempotent for %q", in)
		assert.NotEmpty(t, once)
		assert.NotContains(t, once, "/")
		assert.NotContains(t, once, "\\")
	}
}

func TestSanitize_Examples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../../etc/passwd", "passwd"},
		{"my file (1).png", "my-file-1.png"},
		{"", "unnamed"},
		{"CON.txt", "unnamed.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validator.Sanitize(tt.in), "input %q", tt.in)
	}
}

func TestSanitize_LengthCapPreservesExtension(t *testing.T) {
	t.Parallel()

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'a'
	}
	out := validator.Sanitize(string(long) + ".jpeg")
	assert.LessOrEqual(t, len(out), validator.MaxFilenameLength)
	assert.Contains(t, out, ".jpeg")
}

func TestValidate_CleanTextFile(t *testing.T) {
	t.Parallel()

	v := validator.New()
	res := v.Validate([]byte("hello world\n"), "notes.txt", "document")

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "notes.txt", res.SanitizedFilename)
	assert.Contains(t, res.DetectedMIME, "text/plain")
}

func TestValidate_EmptyContent(t *testing.T) {
	t.Parallel()

	v := validator.New()
	res := v.Validate(nil, "empty.txt", "document")
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "file is empty")
}

func TestValidate_DangerousExtension(t *testing.T) {
	t.Parallel()

	v := validator.New()
	res := v.Validate([]byte("echo hi"), "script.bat", "document")
	assert.False(t, res.IsValid)
}

func TestValidate_ExecutableAlwaysRejected(t *testing.T) {
	t.Parallel()

	v := validator.New()

	// MZ stub followed by a PE header pointer.
	pe := make([]byte, 128)
	copy(pe, "MZ")
	pe[0x3C] = 0x40
	copy(pe[0x40:], []byte{'P', 'E', 0, 0})

	elf := append([]byte{0x7F, 'E', 'L', 'F'}, make([]byte, 60)...)

	for _, tt := range []struct {
		name     string
		content  []byte
		filename string
		category string
	}{
		{"pe as image", pe, "photo.jpg", "image"},
		{"pe as document", pe, "report.pdf", "document"},
		{"elf as text", elf, "notes.txt", "document"},
		{"macho as audio", append([]byte{0xFE, 0xED, 0xFA, 0xCE}, make([]byte, 16)...), "song.mp3", "audio"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := v.Validate(tt.content, tt.filename, tt.category)
			assert.False(t, res.IsValid, "executable content must always be rejected")
		})
	}
}

func TestValidate_SizeCeilingPerCategory(t *testing.T) {
	t.Parallel()

	v := validator.New(validator.WithSizeCeiling("document", 10))
	res := v.Validate([]byte("0123456789ABC"), "big.txt", "document")
	assert.False(t, res.IsValid)

	res = v.Validate([]byte("0123456789"), "ok.txt", "document")
	assert.True(t, res.IsValid)
}

func TestValidate_MIMEMismatchIsWarningOnly(t *testing.T) {
	t.Parallel()

	v := validator.New()
	// PNG bytes with a .txt name: valid, but warned about.
	res := v.Validate(pngBytes(t, 4, 4), "image.txt", "document")
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, res.Warnings)
}

func TestValidate_ImageDimensions(t *testing.T) {
	t.Parallel()

	v := validator.New(validator.WithMaxImageDimension(100))

	res := v.Validate(pngBytes(t, 50, 40), "ok.png", "image")
	assert.True(t, res.IsValid)
	assert.Equal(t, 50, res.Metadata["image_width"])
	assert.Equal(t, 40, res.Metadata["image_height"])

	res = v.Validate(pngBytes(t, 150, 20), "wide.png", "image")
	assert.False(t, res.IsValid)
}

func TestValidate_UndecodableImage(t *testing.T) {
	t.Parallel()

	v := validator.New()
	res := v.Validate([]byte("definitely not an image"), "broken.png", "image")
	assert.False(t, res.IsValid)
}

func TestValidate_SVGScriptRejected(t *testing.T) {
	t.Parallel()

	v := validator.New()
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)
	res := v.Validate(svg, "logo.svg", "image")
	assert.False(t, res.IsValid)
}

func TestValidate_ZipBomb(t *testing.T) {
	t.Parallel()

	// Highly compressible payload: 2 MiB of zeros compresses far beyond 100:1.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("zeros.bin")
	require.NoError(t, err)
	_, err = w.Write(make([]byte, 2<<20))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	v := validator.New()
	res := v.Validate(buf.Bytes(), "bomb.zip", "archive")
	assert.False(t, res.IsValid)
	assert.Greater(t, res.Metadata["archive_compression_ratio"].(float64), 100.0)
}

func TestValidate_RegularZipPasses(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("just some text that does not compress suspiciously"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	v := validator.New()
	res := v.Validate(buf.Bytes(), "files.zip", "archive")
	assert.True(t, res.IsValid)
	assert.Equal(t, 1, res.Metadata["archive_entries"])
}

func TestValidate_DocumentMacroIndicator(t *testing.T) {
	t.Parallel()

	v := validator.New()
	doc := append([]byte("%PDF-1.7 "), []byte("/JavaScript (app.alert(1))")...)
	res := v.Validate(doc, "form.pdf", "document")
	assert.True(t, res.IsValid, "macro indicators warn, they do not block")
	assert.NotEmpty(t, res.Warnings)

	launch := append([]byte("%PDF-1.7 "), []byte("/Launch (cmd.exe)")...)
	res = v.Validate(launch, "evil.pdf", "document")
	assert.False(t, res.IsValid, "launch actions block")
}

func TestValidate_NeverPanicsOnGarbage(t *testing.T) {
	t.Parallel()

	v := validator.New()
	garbage := [][]byte{
		nil,
		{0x00},
		{0xFF, 0xFE},
		bytes.Repeat([]byte{0xAB}, 3),
		[]byte("PK\x03\x04 not really a zip"),
	}
	for _, g := range garbage {
		assert.NotPanics(t, func() {
			v.Validate(g, "anything.zip", "archive")
			v.Validate(g, "anything.png", "image")
			v.Validate(g, "anything.pdf", "document")
		})
	}
}
