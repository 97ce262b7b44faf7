package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

var fileExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {}, ".svg": {}, ".webp": {}, ".ico": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".zip": {}, ".rar": {}, ".gz": {}, ".tar": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".exe": {},
	".css": {}, ".js": {}, ".xml": {},
}

// NormalizeURL lowercases the scheme and host, removes default ports, and
// drops the fragment and any empty trailing "?".
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	normalize(u)
	return u.String(), nil
}

func normalize(u *url.URL) {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.ForceQuery = false
}

// HostKey returns the host used to compare sites: lowercase, without "www.".
func HostKey(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// PagePath returns the host-relative path stored for a page.
func PagePath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		return "/"
	}
	return p
}

// IsFileResource reports whether the path names a non-HTML resource.
func IsFileResource(p string) bool {
	_, ok := fileExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

// scope decides which links belong to a crawl.
type scope struct {
	hostKey    string
	pathPrefix string
}

func newScope(root *url.URL) scope {
	return scope{
		hostKey:    HostKey(root.Host),
		pathPrefix: strings.TrimSuffix(root.EscapedPath(), "/"),
	}
}

type link struct {
	url  string
	path string
}

// accept resolves href against base and returns the link when it stays in
// scope: same host, under the root path, not a file, no fragment, no query.
func (s scope) accept(base *url.URL, href string) (link, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.Contains(href, "#") {
		return link{}, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return link{}, false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return link{}, false
	}
	normalize(abs)
	if abs.RawQuery != "" {
		return link{}, false
	}
	if HostKey(abs.Host) != s.hostKey {
		return link{}, false
	}
	p := PagePath(abs)
	if s.pathPrefix != "" && p != s.pathPrefix && !strings.HasPrefix(p, s.pathPrefix+"/") {
		return link{}, false
	}
	if IsFileResource(p) {
		return link{}, false
	}
	return link{url: abs.String(), path: p}, true
}
