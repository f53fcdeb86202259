package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewriteResolvesRelativeAssets(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><head>
<link rel="stylesheet" href="/css/site.css">
<script src="js/app.js"></script>
</head><body><img src="/a.png"></body></html>`)

	out, err := New().Rewrite(raw, "https://ex.com")
	require.NoError(t, err)
	require.Contains(t, out, `href="https://ex.com/css/site.css"`)
	require.Contains(t, out, `src="https://ex.com/js/app.js"`)
	require.Contains(t, out, `<img src="https://ex.com/a.png"`)
}

func TestRewriteLeavesAbsoluteAndDataURIs(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body>
<img src="https://cdn.other.com/pic.jpg">
<img src="data:image/gif;base64,R0lGOD">
</body></html>`)

	out, err := New().Rewrite(raw, "https://ex.com/landing/")
	require.NoError(t, err)
	require.Contains(t, out, `src="https://cdn.other.com/pic.jpg"`)
	require.Contains(t, out, `src="data:image/gif;base64,R0lGOD"`)
}

func TestRewriteStripsTrackingScripts(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><head>
<script src="https://www.google-analytics.com/analytics.js"></script>
<script src="https://www.googletagmanager.com/gtm.js?id=GTM-X"></script>
<script src="https://connect.facebook.net/en_US/fbevents.js"></script>
<script src="/js/keep-me.js"></script>
</head><body></body></html>`)

	out, err := New().Rewrite(raw, "https://ex.com")
	require.NoError(t, err)
	require.NotContains(t, out, "google-analytics.com")
	require.NotContains(t, out, "googletagmanager.com")
	require.NotContains(t, out, "connect.facebook.net")
	require.Contains(t, out, `src="https://ex.com/js/keep-me.js"`)
}

func TestRewriteKeepsNonStylesheetLinks(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><head><link rel="canonical" href="/landing"></head><body></body></html>`)

	out, err := New().Rewrite(raw, "https://ex.com")
	require.NoError(t, err)
	require.Contains(t, out, `href="/landing"`)
}

func TestRewriteSurvivesMalformedInput(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body><div><img src="/a.png"><p>unclosed`)

	out, err := New().Rewrite(raw, "https://ex.com")
	require.NoError(t, err)
	require.Contains(t, out, `src="https://ex.com/a.png"`)
}

func TestRewriteIsIdempotent(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body><img src="/a.png"><script src="app.js"></script></body></html>`)

	once, err := New().Rewrite(raw, "https://ex.com")
	require.NoError(t, err)
	twice, err := New().Rewrite([]byte(once), "https://ex.com")
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestRewriteRelativeBasePath(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body><img src="img/hero.webp"></body></html>`)

	out, err := New().Rewrite(raw, "https://ex.com/offers/page.html")
	require.NoError(t, err)
	require.Contains(t, out, `src="https://ex.com/offers/img/hero.webp"`)
}
