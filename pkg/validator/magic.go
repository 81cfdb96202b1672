package validator

import (
	"bytes"
	"encoding/binary"
)

// executable header signatures: PE (via MZ stub), ELF, Mach-O.
var (
	sigMZ  = []byte{0x4D, 0x5A}
	sigPE  = []byte{0x50, 0x45, 0x00, 0x00}
	sigELF = []byte{0x7F, 0x45, 0x4C, 0x46}

	machOSignatures = [][]byte{
		{0xFE, 0xED, 0xFA, 0xCE}, // 32-bit
		{0xFE, 0xED, 0xFA, 0xCF}, // 64-bit
		{0xCE, 0xFA, 0xED, 0xFE}, // 32-bit, byte-swapped
		{0xCF, 0xFA, 0xED, 0xFE}, // 64-bit, byte-swapped
	}
)

// magic-number prefixes per extension family used to confirm the container
// header matches the declared type.
var magicPrefixes = map[string][][]byte{
	".jpg":  {{0xFF, 0xD8, 0xFF}},
	".jpeg": {{0xFF, 0xD8, 0xFF}},
	".png":  {{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	".gif":  {[]byte("GIF87a"), []byte("GIF89a")},
	".webp": {[]byte("RIFF")},
	".pdf":  {[]byte("%PDF-")},
	".zip":  {{0x50, 0x4B, 0x03, 0x04}, {0x50, 0x4B, 0x05, 0x06}},
	".docx": {{0x50, 0x4B, 0x03, 0x04}},
	".xlsx": {{0x50, 0x4B, 0x03, 0x04}},
	".pptx": {{0x50, 0x4B, 0x03, 0x04}},
	".gz":   {{0x1F, 0x8B}},
	".bmp":  {[]byte("BM")},
	".tiff": {{0x49, 0x49, 0x2A, 0x00}, {0x4D, 0x4D, 0x00, 0x2A}},
	".mp3":  {[]byte("ID3"), {0xFF, 0xFB}, {0xFF, 0xF3}, {0xFF, 0xF2}},
	".mp4":  {}, // ftyp box sits at offset 4, checked separately
}

// isExecutable reports whether content starts with a known native executable
// header. A leading MZ stub is treated as executable even without a PE
// section: DOS executables are just as unwelcome.
func isExecutable(content []byte) bool {
	if len(content) < 4 {
		return false
	}

	if bytes.HasPrefix(content, sigMZ) {
		// Follow e_lfanew to the PE header when the stub is long enough.
		if len(content) >= 0x40 {
			off := binary.LittleEndian.Uint32(content[0x3C:0x40])
			if int(off)+4 <= len(content) && bytes.Equal(content[off:off+4], sigPE) {
				return true
			}
		}
		return true
	}

	if bytes.HasPrefix(content, sigELF) {
		return true
	}

	for _, sig := range machOSignatures {
		if bytes.HasPrefix(content, sig) {
			return true
		}
	}
	return false
}

// headerMatchesExtension checks the container magic number against the
// extension-derived expectation. Unknown extensions pass: the MIME sniff
// already covers them.
func headerMatchesExtension(content []byte, ext string) bool {
	prefixes, ok := magicPrefixes[ext]
	if !ok || len(prefixes) == 0 {
		if ext == ".mp4" || ext == ".mov" || ext == ".m4a" {
			return len(content) >= 8 && bytes.Equal(content[4:8], []byte("ftyp"))
		}
		return true
	}
	for _, p := range prefixes {
		if bytes.HasPrefix(content, p) {
			return true
		}
	}
	return false
}
