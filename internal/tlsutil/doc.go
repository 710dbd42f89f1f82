// Package tlsutil centralizes the TLS and HTTP client settings used for
// provider traffic (TLS 1.2+, AEAD-only cipher suites).
package tlsutil
