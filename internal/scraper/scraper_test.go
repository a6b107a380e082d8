package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deusflow/feeddigest/internal/rss"
)

type fakeTranscripts struct {
	segments []string
	err      error
	calls    atomic.Int64
	lastID   atomic.Value
}

func (f *fakeTranscripts) Transcript(_ context.Context, id string) ([]string, error) {
	f.calls.Add(1)
	f.lastID.Store(id)
	return f.segments, f.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		link string
		want Target
	}{
		{"https://youtu.be/abc123", Target{Kind: KindVideo, VideoID: "abc123"}},
		{"https://youtu.be/abc123?t=42", Target{Kind: KindVideo, VideoID: "abc123"}},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=x", Target{Kind: KindVideo, VideoID: "dQw4w9WgXcQ"}},
		{"https://youtube.com/watch?v=xyz", Target{Kind: KindVideo, VideoID: "xyz"}},
		{"https://m.youtube.com/watch?v=mob", Target{Kind: KindVideo, VideoID: "mob"}},
		{"https://www.youtube.com/shorts/short1", Target{Kind: KindVideo, VideoID: "short1"}},
		{"https://www.youtube.com/embed/emb1?autoplay=1", Target{Kind: KindVideo, VideoID: "emb1"}},
		{"https://WWW.YOUTUBE.COM/watch?v=upper", Target{Kind: KindVideo, VideoID: "upper"}},
		{"https://www.youtube.com/@somechannel", Target{Kind: KindPage, URL: "https://www.youtube.com/@somechannel"}},
		{"https://www.youtube.com/channel/UC123", Target{Kind: KindPage, URL: "https://www.youtube.com/channel/UC123"}},
		{"https://www.youtube.com/watch", Target{Kind: KindPage, URL: "https://www.youtube.com/watch"}},
		{"https://www.youtube.com/shorts/", Target{Kind: KindPage, URL: "https://www.youtube.com/shorts/"}},
		{"https://youtu.be/", Target{Kind: KindPage, URL: "https://youtu.be/"}},
		{"youtube.com/playlist?list=PL1", Target{Kind: KindPage, URL: "http://youtube.com/playlist?list=PL1"}},
		{"https://example.com/post/1", Target{Kind: KindPage, URL: "https://example.com/post/1"}},
		{"http://example.com/post/1", Target{Kind: KindPage, URL: "http://example.com/post/1"}},
		{"//cdn.example.com/a", Target{Kind: KindPage, URL: "http://cdn.example.com/a"}},
		{"example.com/a", Target{Kind: KindPage, URL: "http://example.com/a"}},
		{"  https://example.com/trim  ", Target{Kind: KindPage, URL: "https://example.com/trim"}},
		{"", Target{}},
		{"mailto:someone@example.com", Target{}},
		{"ftp://example.com/file", Target{}},
		{"/relative/path", Target{}},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.link))
		})
	}
}

func TestExtractVideoJoinsTranscript(t *testing.T) {
	tr := &fakeTranscripts{segments: []string{"hello", "world"}}
	x := NewExtractor(time.Second, "", tr)

	got, err := x.Extract(context.Background(), rss.Entry{Title: "clip", Link: "https://youtu.be/abc123"})
	require.NoError(t, err)
	require.Equal(t, "hello world", got.Body)
	require.Equal(t, "clip", got.Title)
	require.Equal(t, "abc123", tr.lastID.Load())
}

// countingTransport records any page request made by the extractor.
type countingTransport struct{ calls atomic.Int64 }

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, errors.New("unexpected page request to " + r.URL.String())
}

func TestExtractVideoFailureDoesNotFallBackToPage(t *testing.T) {
	tr := &fakeTranscripts{err: errors.New("transcripts disabled")}
	rt := &countingTransport{}
	x := NewExtractor(time.Second, "", tr)
	x.client.Transport = rt

	for _, link := range []string{"https://www.youtube.com/watch?v=private1", "https://youtu.be/gone"} {
		_, err := x.Extract(context.Background(), rss.Entry{Link: link})

		var xerr *ExtractionError
		require.True(t, errors.As(err, &xerr))
		require.Equal(t, KindVideo, xerr.Kind)
	}
	require.Equal(t, int64(2), tr.calls.Load())
	require.Zero(t, rt.calls.Load())
}

func TestExtractVideoEmptyTranscript(t *testing.T) {
	x := NewExtractor(time.Second, "", &fakeTranscripts{segments: []string{" ", ""}})
	_, err := x.Extract(context.Background(), rss.Entry{Link: "https://youtu.be/blank"})
	require.ErrorIs(t, err, ErrEmptyContent)
}

func TestExtractPage(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.UserAgent())
		switch r.URL.Path {
		case "/post":
			_, _ = w.Write([]byte(`<html><body><nav>menu</nav>
<article><h1>Headline</h1><p>First paragraph.</p><script>var x = 1;</script><p>Second.</p></article>
<article>second article</article></body></html>`))
		case "/no-article":
			_, _ = w.Write([]byte(`<html><body><div>plain page</div></body></html>`))
		case "/empty-article":
			_, _ = w.Write([]byte(`<html><body><article>  </article></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	x := NewExtractor(time.Second, "feeddigest-test", nil)

	got, err := x.Extract(context.Background(), rss.Entry{Link: srv.URL + "/post"})
	require.NoError(t, err)
	require.Equal(t, "feeddigest-test", ua.Load())
	require.Contains(t, got.Body, "Headline")
	require.Contains(t, got.Body, "First paragraph.")
	require.Contains(t, got.Body, "Second.")
	require.NotContains(t, got.Body, "menu")
	require.NotContains(t, got.Body, "var x")
	require.NotContains(t, got.Body, "second article")

	_, err = x.Extract(context.Background(), rss.Entry{Link: srv.URL + "/no-article"})
	require.ErrorIs(t, err, ErrNoArticle)

	_, err = x.Extract(context.Background(), rss.Entry{Link: srv.URL + "/empty-article"})
	require.ErrorIs(t, err, ErrEmptyContent)

	_, err = x.Extract(context.Background(), rss.Entry{Link: srv.URL + "/missing"})
	var xerr *ExtractionError
	require.True(t, errors.As(err, &xerr))
	require.Equal(t, KindPage, xerr.Kind)
	require.True(t, strings.Contains(err.Error(), "404"), err.Error())
}

func TestExtractSchemeLessLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<article>scheme-less body</article>`))
	}))
	t.Cleanup(srv.Close)

	x := NewExtractor(time.Second, "", nil)
	host := strings.TrimPrefix(srv.URL, "http://")

	got, err := x.Extract(context.Background(), rss.Entry{Link: host + "/x"})
	require.NoError(t, err)
	require.Equal(t, "scheme-less body", got.Body)

	got, err = x.Extract(context.Background(), rss.Entry{Link: "//" + host + "/y"})
	require.NoError(t, err)
	require.Equal(t, "scheme-less body", got.Body)
}

func TestExtractPageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	x := NewExtractor(100*time.Millisecond, "", nil)
	start := time.Now()
	_, err := x.Extract(context.Background(), rss.Entry{Link: srv.URL})
	require.Error(t, err)
	require.Less(t, time.Since(start), 3*time.Second)
}

func TestExtractUnrecognized(t *testing.T) {
	x := NewExtractor(time.Second, "", nil)
	_, err := x.Extract(context.Background(), rss.Entry{Link: "mailto:a@example.com"})
	require.ErrorIs(t, err, ErrUnrecognizedLink)
}

// redirectTransport sends every request to target, keeping the original host
// for inspection.
type redirectTransport struct {
	target string
	hosts  chan string
}

func (rt *redirectTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	rt.hosts <- r.URL.Host + r.URL.Path
	out := r.Clone(r.Context())
	out.URL.Scheme = "http"
	out.URL.Host = strings.TrimPrefix(rt.target, "http://")
	return http.DefaultTransport.RoundTrip(out)
}

func TestExtractVideoHostWithoutIDFetchesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><article>channel about page</article></body></html>`))
	}))
	t.Cleanup(srv.Close)

	tr := &fakeTranscripts{segments: []string{"unused"}}
	rt := &redirectTransport{target: srv.URL, hosts: make(chan string, 1)}
	x := NewExtractor(time.Second, "", tr)
	x.client.Transport = rt

	got, err := x.Extract(context.Background(), rss.Entry{Link: "https://www.youtube.com/channel/UC123"})
	require.NoError(t, err)
	require.Equal(t, "channel about page", got.Body)
	require.Equal(t, "www.youtube.com/channel/UC123", <-rt.hosts)
	require.Zero(t, tr.calls.Load())
}
