package classify

import (
	"path"
	"slices"
	"strings"
)

// Schemes the host uses for derived resources. They map back to file:.
var (
	snapshotModelSchemes = []string{"chat-editing-snapshot-text-model", "chat-editing-text-model"}
	gitSchemes           = []string{"git", "gitlens", "scm-history-item"}
	timelineSchemes      = []string{"vscode-local-history", "timeline"}
)

// Scheme returns the lower-cased scheme of uri, or "" if there is none.
func Scheme(uri string) string {
	idx := strings.Index(uri, ":")
	if idx <= 0 {
		return ""
	}
	scheme := uri[:idx]
	for _, r := range scheme {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return ""
		}
	}
	return strings.ToLower(scheme)
}

// splitLocator separates a locator into scheme, authority and path, dropping
// query and fragment.
func splitLocator(uri string) (scheme, authority, p string) {
	scheme = Scheme(uri)
	rest := uri
	if scheme != "" {
		rest = uri[len(scheme)+1:]
	}
	if idx := strings.IndexAny(rest, "?#"); idx >= 0 {
		rest = rest[:idx]
	}
	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		if idx := strings.Index(rest, "/"); idx >= 0 {
			authority = rest[:idx]
			rest = rest[idx:]
		} else {
			authority = rest
			rest = ""
		}
	}
	return scheme, authority, rest
}

// Path returns the path component of uri.
func Path(uri string) string {
	_, _, p := splitLocator(uri)
	return p
}

// IsSpecialScheme reports whether the scheme is a derived-resource scheme
// that normalises back to file:.
func IsSpecialScheme(scheme string) bool {
	return slices.Contains(snapshotModelSchemes, scheme) || slices.Contains(gitSchemes, scheme) || slices.Contains(timelineSchemes, scheme)
}

// NormalizeLocator maps derived-resource locators (snapshot models, git,
// local history) to their plain file: equivalent and strips query and
// fragment. Other schemes keep their scheme. Returns "" for empty input.
func NormalizeLocator(uri string) string {
	if strings.TrimSpace(uri) == "" {
		return ""
	}
	scheme, authority, p := splitLocator(uri)
	switch {
	case scheme == "":
		if p == "" {
			return ""
		}
		return "file://" + p
	case scheme == "file" || IsSpecialScheme(scheme):
		return "file://" + authority + p
	default:
		if authority != "" {
			return scheme + "://" + authority + p
		}
		return scheme + ":" + p
	}
}

// SamePath reports whether two locators point at the same file once derived
// schemes are normalised away.
func SamePath(a, b string) bool {
	return NormalizeLocator(a) == NormalizeLocator(b)
}

// BaseName returns the last path element of uri.
func BaseName(uri string) string {
	p := Path(uri)
	if p == "" {
		return ""
	}
	base := path.Base(p)
	if base == "/" || base == "." {
		return ""
	}
	return base
}
