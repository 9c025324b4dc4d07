// Package resolve turns stored resource paths (book covers, PDFs) into
// absolute URLs the dashboard can fetch.
package resolve

import (
	"net/url"
	"regexp"
	"strings"
)

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// Resolver maps raw paths onto the public storage area of the API host.
// It is safe for concurrent use.
type Resolver struct {
	origin string
}

// New builds a Resolver. Paths resolve against the origin of apiBase when
// it is an absolute URL, and against pageOrigin otherwise.
func New(apiBase, pageOrigin string) *Resolver {
	return &Resolver{origin: pickOrigin(apiBase, pageOrigin)}
}

// Origin returns the scheme://host prefix resolved paths are built on.
func (r *Resolver) Origin() string { return r.origin }

// Resolve returns p unchanged when it is already an absolute http(s) URL,
// "" when p is blank, and otherwise <origin>/storage/<path>.
func (r *Resolver) Resolve(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if absoluteURL.MatchString(p) {
		return p
	}
	return r.origin + storagePath(p)
}

// storagePath strips "./", "/" and "public/" prefixes until none remain and
// roots the result under /storage/.
func storagePath(p string) string {
	for {
		switch {
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case strings.HasPrefix(p, "/"):
			p = p[1:]
		case len(p) >= 7 && strings.EqualFold(p[:7], "public/"):
			p = p[7:]
		default:
			if strings.HasPrefix(p, "storage/") {
				return "/" + p
			}
			return "/storage/" + p
		}
	}
}

func pickOrigin(apiBase, pageOrigin string) string {
	fallback := originOf(pageOrigin)
	u, err := url.Parse(strings.TrimSpace(apiBase))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fallback
	}
	return u.Scheme + "://" + u.Host
}

// originOf trims pageOrigin to scheme://host, leaving it as-is when it
// does not parse as an absolute URL.
func originOf(pageOrigin string) string {
	s := strings.TrimRight(strings.TrimSpace(pageOrigin), "/")
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return s
	}
	return u.Scheme + "://" + u.Host
}
