package urlutil

import (
	"net/url"
	"sort"
	"strings"
)

// Canonicalize applies a deterministic normalization to a URL, producing a
// canonical form. It maps equivalent URL spellings to a single canonical
// representation.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//   - Duplicate slashes in the path are collapsed
//   - Unreserved percent-escapes (ALPHA / DIGIT / "-" / "." / "_" / "~") are decoded
//   - Trailing slashes are removed, except for the root path
//   - Fragments are removed
//   - Query parameters on denyParams are dropped, the rest sorted lexicographically by key
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(u, d), d) == Canonicalize(u, d)
//   - Context-free: does not depend on crawl history
func Canonicalize(sourceUrl url.URL, denyParams map[string]struct{}) url.URL {
	canonical := sourceUrl

	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	escaped := decodeUnreservedEscapes(canonical.EscapedPath())
	escaped = collapseDuplicateSlashes(escaped)
	if len(escaped) > 1 {
		escaped = stripTrailingSlash(escaped)
	}
	if p, err := url.PathUnescape(escaped); err == nil {
		canonical.Path = p
		canonical.RawPath = escaped
	}

	canonical.Fragment = ""
	canonical.RawFragment = ""

	canonical.RawQuery = sortedQuery(canonical.Query(), denyParams)
	canonical.ForceQuery = canonical.RawQuery != ""

	return canonical
}

// sortedQuery drops deny-listed keys and renders the remainder with keys in
// lexicographic order, so two URLs differing only in parameter order or in
// the presence of tracking parameters hash identically.
func sortedQuery(values url.Values, denyParams map[string]struct{}) string {
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if _, denied := denyParams[k]; denied {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for j, v := range vs {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// collapseDuplicateSlashes turns "//" runs in a path into a single "/",
// leaving the leading slash of an absolute path intact.
func collapseDuplicateSlashes(path string) string {
	if !strings.Contains(path, "//") {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// decodeUnreservedEscapes decodes percent-escapes for the RFC 3986 unreserved
// character set only, leaving every other escape (including "%2F") intact so
// the path's segment structure is never altered by decoding.
func decodeUnreservedEscapes(path string) string {
	if !strings.Contains(path, "%") {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	for i := 0; i < len(path); i++ {
		if path[i] == '%' && i+2 < len(path) {
			if hi, ok := hexVal(path[i+1]); ok {
				if lo, ok := hexVal(path[i+2]); ok {
					decoded := byte(hi<<4 | lo)
					if isUnreserved(decoded) {
						b.WriteByte(decoded)
						i += 2
						continue
					}
				}
			}
		}
		b.WriteByte(path[i])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	default:
		return false
	}
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// lowerASCII converts ASCII characters to lowercase without allocating.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}

// FilterByHost keeps only the URLs whose host matches currentHost exactly.
func FilterByHost(currentHost string, urls []url.URL) []url.URL {
	filtered := make([]url.URL, 0, len(urls))
	for _, u := range urls {
		if strings.EqualFold(u.Host, currentHost) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// Resolve turns a possibly-relative URL into an absolute one against the
// given default scheme and host.
func Resolve(ref url.URL, defaultScheme, defaultHost string) url.URL {
	resolved := ref
	if resolved.Scheme == "" {
		resolved.Scheme = defaultScheme
	}
	if resolved.Host == "" {
		resolved.Host = defaultHost
	}
	return resolved
}
