package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
)

// buildStoragePath composes the backend object key:
// {category}/{year}/{month}/{stem}_{timestamp}_{random}{ext}. The tenant
// namespace is the blob-store namespace argument, so it always prefixes the
// final object location.
func buildStoragePath(category, sanitizedFilename string, now time.Time) string {
	ext := path.Ext(sanitizedFilename)
	stem := strings.TrimSuffix(sanitizedFilename, ext)

	random := make([]byte, 4)
	_, _ = rand.Read(random)

	return fmt.Sprintf("%s/%04d/%02d/%s_%d_%s%s",
		category,
		now.Year(), int(now.Month()),
		stem,
		now.Unix(),
		hex.EncodeToString(random),
		strings.ToLower(ext),
	)
}

// variantPath places a derived variant next to its source object.
func variantPath(storagePath, variantName, format string) string {
	ext := path.Ext(storagePath)
	return strings.TrimSuffix(storagePath, ext) + "_" + variantName + "." + format
}

// quarantinePath isolates infected content under a reserved prefix.
func quarantinePath(storagePath string) string {
	return "quarantine/" + storagePath
}
