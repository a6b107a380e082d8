package scraper

import (
	"net/url"
	"strings"
)

// Kind says which extraction strategy applies to a link.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindVideo
	KindPage
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindPage:
		return "page"
	default:
		return "unrecognized"
	}
}

// Target is a classified link: the video id for KindVideo, the absolute
// page URL for KindPage, nothing for KindUnrecognized.
type Target struct {
	Kind    Kind
	VideoID string
	URL     string
}

var videoHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
}

// path prefixes that carry the id as the next segment
var videoPathPrefixes = []string{"/shorts/", "/embed/", "/live/"}

// Classify picks the extraction strategy for link. It is resolved once per
// entry; a link with a video id never falls back to page extraction.
func Classify(link string) Target {
	link = strings.TrimSpace(link)
	if link == "" {
		return Target{}
	}

	abs, ok := normalizeURL(link)
	if !ok {
		return Target{}
	}
	u, err := url.Parse(abs)
	if err != nil || u.Host == "" {
		return Target{}
	}

	host := strings.ToLower(u.Hostname())
	var id string
	switch {
	case host == "youtu.be":
		id = firstSegment(u.Path)
	case videoHosts[host]:
		id = videoIDFromPath(u)
	}
	if id != "" {
		return Target{Kind: KindVideo, VideoID: id}
	}

	// channel pages, playlists and other id-less video host links are plain pages
	return Target{Kind: KindPage, URL: abs}
}

// normalizeURL makes link an absolute http(s) URL: "//host/p" and "host/p"
// get an http scheme, other schemes are rejected.
func normalizeURL(link string) (string, bool) {
	switch {
	case strings.HasPrefix(link, "//"):
		return "http:" + link, true
	case hasScheme(link, "http"), hasScheme(link, "https"):
		return link, true
	case strings.Contains(link, "://"), strings.HasPrefix(strings.ToLower(link), "mailto:"),
		strings.HasPrefix(strings.ToLower(link), "javascript:"), strings.HasPrefix(link, "/"):
		return "", false
	}
	return "http://" + link, true
}

func hasScheme(link, scheme string) bool {
	return len(link) > len(scheme)+3 && strings.EqualFold(link[:len(scheme)+3], scheme+"://")
}

func videoIDFromPath(u *url.URL) string {
	if u.Path == "/watch" || u.Path == "/watch/" {
		return strings.TrimSpace(u.Query().Get("v"))
	}
	for _, prefix := range videoPathPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			return firstSegment(strings.TrimPrefix(u.Path, prefix))
		}
	}
	return ""
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return strings.TrimSpace(p)
}
