package obs

import "strings"

// CanonicalPath collapses resource identifiers so metric labels stay at a
// bounded cardinality.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if rest, ok := strings.CutPrefix(path, "/v1/identities/"); ok && rest != "" {
		switch {
		case strings.HasSuffix(rest, "/content"):
			return "/v1/identities/:id/content"
		case strings.HasSuffix(rest, "/verification"):
			return "/v1/identities/:id/verification"
		case strings.HasSuffix(rest, "/reputation"):
			return "/v1/identities/:id/reputation"
		case strings.HasSuffix(rest, "/interactions"):
			return "/v1/identities/:id/interactions"
		case !strings.Contains(rest, "/"):
			return "/v1/identities/:id"
		}
	}
	if rest, ok := strings.CutPrefix(path, "/v1/owners/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/v1/owners/:owner"
	}
	return path
}
