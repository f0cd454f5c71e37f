package sites

import (
	"net/http"
	"strings"
)

type pageRequest struct {
	// Path is the escaped request path with one trailing slash removed.
	Path string
	// FullPath is Path plus "?" and the raw query, when there is one.
	FullPath string
	Key      CacheKey
}

func newPageRequest(r *http.Request) pageRequest {
	path := r.URL.EscapedPath()
	if path == "" {
		path = "/"
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	fullPath := path
	if r.URL.RawQuery != "" {
		fullPath += "?" + r.URL.RawQuery
	}
	return pageRequest{
		Path:     path,
		FullPath: fullPath,
		Key:      EncodeCacheKey(fullPath),
	}
}

type route uint8

const (
	routePage route = iota
	routeStylesheet
	routeImage
	routeInert
)

func (r route) String() string {
	switch r {
	case routePage:
		return "page"
	case routeStylesheet:
		return "stylesheet"
	case routeImage:
		return "image"
	case routeInert:
		return "inert"
	}
	return "unknown"
}

func (c Config) classify(path string) route {
	if path == c.StylesheetPath {
		return routeStylesheet
	}
	if strings.Contains(path, ".jpg") || strings.Contains(path, ".png") {
		return routeImage
	}
	if strings.Contains(path, ".") {
		for _, ext := range c.PageExtensions {
			if strings.Contains(path, ext) {
				return routePage
			}
		}
		return routeInert
	}
	return routePage
}
