// Package cdn builds transformation-aware delivery URLs: sorted transform
// parameters, a cache directive derived from a named cache level, a tenant
// marker, and an HMAC-SHA256 signature with expiry when a signing key is
// configured.
//
// URL building never fails the caller: any construction problem falls back
// to the unsigned, untransformed base URL. Built URLs are cached in-process
// for five minutes, keyed by path, transformation, and cache level.
package cdn
