// Package canon implements the Canonicalizer (spec.md §4.1): canonical
// request strings and the four URI-encoding profiles S3 signing requires.
// Grounded on original_source/ECSUtil/UriUtils.cpp/.h — no Go repository in
// the retrieval pack implements a signing canonicalizer of its own, since
// none of them hand-roll S3 request signing; this package is therefore new
// code written directly against spec.md's wire contract.
package canon

import (
	"strings"
)

// Profile selects which characters are left unescaped by Encode.
type Profile int

const (
	// Standard: alphanumerics plus "- _ . /".
	Standard Profile = iota
	// AllSafe: alphanumerics plus "/" only (S3 listing query values).
	AllSafe
	// V4Auth: alphanumerics plus "- . / _ ~".
	V4Auth
	// V4AuthSlash: V4Auth minus "/" (the "/" is encoded too).
	V4AuthSlash
)

func isAlnum(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func safe(p Profile, c byte) bool {
	if isAlnum(c) {
		return true
	}
	switch p {
	case Standard:
		return c == '-' || c == '_' || c == '.' || c == '/'
	case AllSafe:
		return c == '/'
	case V4Auth:
		return c == '-' || c == '.' || c == '/' || c == '_' || c == '~'
	case V4AuthSlash:
		return c == '-' || c == '.' || c == '_' || c == '~'
	}
	return false
}

const hexDigits = "0123456789ABCDEF"

// Encode percent-encodes s according to profile p, leaving only that
// profile's safe characters untouched. Input is taken as UTF-8 bytes, each
// non-safe byte producing its own %XX triplet (so multi-byte runes become
// multiple triplets, matching S3's documented encoding behavior).
func Encode(p Profile, s string) string {
	var sb strings.Builder
	needsEscape := false
	for i := 0; i < len(s); i++ {
		if !safe(p, s[i]) {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return s
	}
	sb.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if safe(p, c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0xf])
	}
	return sb.String()
}

// EncodePath encodes each "/"-separated path segment independently with
// profile p, always leaving the separating "/" itself untouched — the shape
// S3 resource paths require even under V4AuthSlash (whose single-segment
// encoding would otherwise also escape "/").
func EncodePath(p Profile, path string) string {
	segs := strings.Split(path, "/")
	for i, seg := range segs {
		segs[i] = Encode(p, seg)
	}
	return strings.Join(segs, "/")
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// Decode percent-decodes s, tolerating percent sequences of arbitrary casing.
// A malformed trailing "%" or "%X" sequence is passed through verbatim rather
// than erroring, matching the tolerant behavior spec.md §4.1 describes.
func Decode(s string) string {
	if !strings.ContainsRune(s, '%') {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' || i+2 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		hi, okHi := hexVal(s[i+1])
		lo, okLo := hexVal(s[i+2])
		if !okHi || !okLo {
			sb.WriteByte(s[i])
			continue
		}
		sb.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return sb.String()
}
