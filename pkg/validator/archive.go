package validator

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// DefaultCompressionRatioLimit is the decompression-bomb threshold: archives
// whose declared expansion exceeds 100:1 are rejected.
const DefaultCompressionRatioLimit = 100

// checkZipArchive inspects a zip without extracting it, using the central
// directory's declared sizes. Encrypted entries and nested archives produce
// warnings; a bomb-like compression ratio is an error.
func checkZipArchive(content []byte, ratioLimit float64, res *Result) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		res.Errors = append(res.Errors, "archive is corrupt or not a valid zip")
		return
	}

	var compressed, uncompressed uint64
	nested, encrypted := 0, 0
	for _, f := range reader.File {
		compressed += f.CompressedSize64
		uncompressed += f.UncompressedSize64

		if f.Flags&0x1 != 0 { // general purpose bit 0: entry is encrypted
			encrypted++
		}
		switch lowerExt(f.Name) {
		case ".zip", ".gz", ".rar", ".7z":
			nested++
		}
	}

	if encrypted > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("archive contains %d encrypted entries", encrypted))
	}
	if nested > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("archive contains %d nested archives", nested))
	}

	res.Metadata["archive_entries"] = len(reader.File)
	res.Metadata["archive_uncompressed_bytes"] = uncompressed

	if compressed == 0 {
		compressed = 1
	}
	ratio := float64(uncompressed) / float64(compressed)
	res.Metadata["archive_compression_ratio"] = ratio
	if ratio > ratioLimit {
		res.Errors = append(res.Errors,
			fmt.Sprintf("archive compression ratio %.0f:1 exceeds %.0f:1 limit", ratio, ratioLimit))
	}
}

// checkGzipArchive measures actual expansion by decompressing up to the
// ratio-limited byte budget. Gzip headers declare no trustworthy size, so the
// stream is read until the budget is exhausted or it ends.
func checkGzipArchive(content []byte, ratioLimit float64, res *Result) {
	gz, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		res.Errors = append(res.Errors, "archive is corrupt or not a valid gzip")
		return
	}
	defer func() { _ = gz.Close() }()

	budget := int64(float64(len(content)) * ratioLimit)
	n, err := io.Copy(io.Discard, io.LimitReader(gz, budget+1))
	if err != nil && err != io.ErrUnexpectedEOF {
		res.Warnings = append(res.Warnings, "gzip stream could not be fully read")
	}

	res.Metadata["archive_uncompressed_bytes"] = uint64(n)
	if n > budget {
		res.Errors = append(res.Errors,
			fmt.Sprintf("gzip expansion exceeds %.0f:1 limit", ratioLimit))
	}
}
