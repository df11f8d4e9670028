package pathutil

import "strings"

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// ValidRel reports whether p is a relative key safe to join under a prefix:
// non-empty, no leading or trailing slash, no empty or dot segments.
func ValidRel(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
		return false
	}
	if strings.Contains(p, "//") || strings.ContainsRune(p, 0) {
		return false
	}
	return !HasDotSegments(p)
}
