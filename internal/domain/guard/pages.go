package guard

import (
	"path"
	"strings"
)

// PageSet is the set of surfaces that require an authenticated session.
type PageSet struct {
	pages []string
}

// NewPageSet builds a PageSet from page names such as "admin.html".
// Blank entries are ignored.
func NewPageSet(pages ...string) PageSet {
	ps := PageSet{pages: make([]string, 0, len(pages))}
	for _, p := range pages {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p != "" {
			ps.pages = append(ps.pages, p)
		}
	}
	return ps
}

// Contains reports whether pagePath names a protected page. A path matches an
// entry when it equals the entry or ends with "/" followed by the entry, so
// "/panel/admin.html" matches "admin.html" but "/superadmin.html" does not.
func (ps PageSet) Contains(pagePath string) bool {
	if pagePath == "" {
		return false
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+pagePath), "/")
	for _, p := range ps.pages {
		if cleaned == p || strings.HasSuffix(cleaned, "/"+p) {
			return true
		}
	}
	return false
}

// Pages returns a copy of the configured entries.
func (ps PageSet) Pages() []string {
	out := make([]string, len(ps.pages))
	copy(out, ps.pages)
	return out
}
