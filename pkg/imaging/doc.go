// Package imaging derives delivery variants from uploaded images: bounded
// resizes, crop-to-fill thumbnails, responsive width sets, and alternate
// WebP copies, plus a metadata strip that rebuilds the pixel buffer so no
// container metadata can survive re-encoding.
//
// Format rule: sources with an alpha channel encode to PNG, everything else
// to baseline JPEG at the configured quality. Responsive variants are only
// generated for widths strictly smaller than the source; images are never
// upscaled.
package imaging
