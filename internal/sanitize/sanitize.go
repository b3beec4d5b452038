// internal/sanitize/sanitize.go
//
// Package sanitize holds the pure transforms used by the validators. Each
// function returns a new value and never mutates its input. Sanitizing and
// rejecting are distinct: values that must be refused outright (dangerous
// commands, traversal paths) are detected by the validators and never routed
// through a cleaning transform.

package sanitize

import (
	"html"
	"path"
	"strings"
)

// StripNullBytes removes embedded NUL characters.
func StripNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

// HasNullBytes reports whether s contains an embedded NUL.
func HasNullBytes(s string) bool {
	return strings.ContainsRune(s, '\x00')
}

// EncodeHTML entity-encodes markup so stored labels render inert.
func EncodeHTML(s string) string {
	return html.EscapeString(s)
}

// shellMeta are the characters stripped from free-text values that may later
// be interpolated near a shell. Commands themselves are rejected, not cleaned.
const shellMeta = ";|&`$<>(){}!\\\"'\n\r"

// StripShellMeta removes shell metacharacters from a free-text value.
func StripShellMeta(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(shellMeta, r) {
			return -1
		}
		return r
	}, s)
}

// HasTraversal reports whether p contains a ".." segment under either
// separator convention.
func HasTraversal(p string) bool {
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// RemoveTraversal drops ".." segments from a path. Only used for values where
// cleaning is acceptable; request paths with traversal are rejected instead.
func RemoveTraversal(p string) string {
	segs := strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	kept := segs[:0]
	for _, seg := range segs {
		if seg != ".." {
			kept = append(kept, seg)
		}
	}
	out := strings.Join(kept, "/")
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		out = "/" + out
	}
	return out
}

// NormalizeRemotePath converts a path to the remote (forward-slash) form and
// collapses duplicate separators.
func NormalizeRemotePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return p
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// TrimControl removes ASCII control characters other than tab.
func TrimControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, s)
}
