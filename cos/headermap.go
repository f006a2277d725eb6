// Package cos provides low-level shared types and utilities used by every
// other package in this module: header handling, the closed S3 error
// taxonomy, checksum helpers, and small synchronization primitives.
package cos

import (
	"sort"
	"strings"
)

// entry is one stored header: the display-cased name as it should be sent on
// the wire, and its value.
type entry struct {
	display string
	value   string
}

// HeaderMap is an ordered mapping from lowercased header name to
// (display-cased name, value). Re-inserting a lowercased key with override
// replaces the value; without override the existing value is preserved.
// SortedNames() and ForEach always yield entries in lowercased-name order, which is
// what both signing schemes require for their canonical header block.
type HeaderMap struct {
	m map[string]entry
}

// NewHeaderMap returns an empty HeaderMap ready to use.
func NewHeaderMap() *HeaderMap {
	return &HeaderMap{m: make(map[string]entry, 16)}
}

// Set inserts name=value, overriding any existing value for name.
func (h *HeaderMap) Set(name, value string) {
	h.set(name, value, true)
}

// SetIfAbsent inserts name=value only if name is not already present.
func (h *HeaderMap) SetIfAbsent(name, value string) {
	h.set(name, value, false)
}

func (h *HeaderMap) set(name, value string, override bool) {
	if h.m == nil {
		h.m = make(map[string]entry, 16)
	}
	key := strings.ToLower(name)
	if !override {
		if _, ok := h.m[key]; ok {
			return
		}
	}
	h.m[key] = entry{display: name, value: value}
}

// Get returns the value stored for name, case-insensitively.
func (h *HeaderMap) Get(name string) (string, bool) {
	if h.m == nil {
		return "", false
	}
	e, ok := h.m[strings.ToLower(name)]
	return e.value, ok
}

// Del removes name, case-insensitively.
func (h *HeaderMap) Del(name string) {
	if h.m == nil {
		return
	}
	delete(h.m, strings.ToLower(name))
}

// Len reports the number of distinct header names stored.
func (h *HeaderMap) Len() int { return len(h.m) }

// SortedNames returns every lowercased header name, sorted.
func (h *HeaderMap) SortedNames() []string {
	names := make([]string, 0, len(h.m))
	for k := range h.m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// CanonicalBlock renders headers whose lowercased name matches one of
// prefixes (or, if prefixes is empty, every header) as a canonical block:
// sorted by lowercased name, "name:value\n" per line, with internal
// whitespace runs in the value collapsed to a single space and outer
// whitespace trimmed. This is the shared primitive behind both v2's
// x-amz/x-emc header block and v4's canonical headers.
func (h *HeaderMap) CanonicalBlock(prefixes ...string) string {
	names := h.SortedNames()
	var sb strings.Builder
	for _, name := range names {
		if len(prefixes) > 0 && !hasAnyPrefix(name, prefixes) {
			continue
		}
		e := h.m[name]
		sb.WriteString(name)
		sb.WriteByte(':')
		sb.WriteString(collapseWhitespace(e.value))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// SignedHeaderNames returns the semicolon-joined, sorted lowercased header
// names matching prefixes (or all, if prefixes is empty) — the v4
// "SignedHeaders" list.
func (h *HeaderMap) SignedHeaderNames(prefixes ...string) string {
	names := h.SortedNames()
	kept := names[:0:0]
	for _, name := range names {
		if len(prefixes) == 0 || hasAnyPrefix(name, prefixes) {
			kept = append(kept, name)
		}
	}
	return strings.Join(kept, ";")
}

// ForEach calls fn for every (display name, value) pair in lowercased-name
// order.
func (h *HeaderMap) ForEach(fn func(display, value string)) {
	for _, name := range h.SortedNames() {
		e := h.m[name]
		fn(e.display, e.value)
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func collapseWhitespace(s string) string {
	s = strings.TrimSpace(s)
	var sb strings.Builder
	prevSpace := false
	for _, r := range s {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if isSpace {
			if !prevSpace {
				sb.WriteByte(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}
