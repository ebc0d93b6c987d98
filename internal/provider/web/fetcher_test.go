package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!doctype html>
<html><head>
<title>Fallback title</title>
<meta property="og:title" content="Kernel hardening in 2024">
<script>var tracking = "should not appear";</script>
</head>
<body>
<nav>Home | About</nav>
<article>
<h1>Kernel hardening in 2024</h1>
<p>The kernel self-protection project continued to land features that make exploitation harder.</p>
<p>Control-flow integrity is now enabled by default on several architectures, closing whole bug classes.</p>
</article>
<footer>Copyright</footer>
</body></html>`

func TestGetFullContentExtractsArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "go-feed")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), 0)
	fc, err := f.GetFullContent(context.Background(), srv.URL+"/post")
	require.NoError(t, err)

	assert.Equal(t, "Kernel hardening in 2024", fc.Title)
	assert.Contains(t, fc.Text, "Control-flow integrity is now enabled by default")
	assert.NotContains(t, fc.Text, "should not appear")
}

func TestGetFullContentTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	fc, err := NewFetcher(srv.Client(), 20).GetFullContent(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, []rune(fc.Text), 20)
}

func TestGetFullContentErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/empty") {
			_, _ = w.Write([]byte(`<html><body><script>x()</script></body></html>`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), 0)
	_, err := f.GetFullContent(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)

	_, err = f.GetFullContent(context.Background(), srv.URL+"/empty")
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = f.GetFullContent(context.Background(), "ftp://example.com/file")
	assert.Error(t, err)
}
