package overlay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/presellkit/presell-engine/internal/presell"
)

func baseConfig() presell.OverlayConfig {
	return presell.OverlayConfig{
		Title:           "Before you continue",
		Message:         "We use cookies to improve your experience.",
		AcceptLabel:     "Accept",
		CloseLabel:      "Close",
		AcceptPosition:  presell.PositionBottomRight,
		ClosePosition:   presell.PositionTopRight,
		AcceptShadow:    true,
		ShadowIntensity: 2,
		BackgroundColor: "#ffffff",
		BorderColor:     "#dddddd",
		RedirectURL:     "https://offer.example.com/go",
	}
}

func TestInjectIntoCloneSplicesBeforeBody(t *testing.T) {
	t.Parallel()

	doc := `<html><head></head><body><p>landing</p></body></html>`
	out, err := New().InjectIntoClone(doc, "camp-1", baseConfig())
	require.NoError(t, err)

	overlayIdx := strings.Index(out, `id="psk-overlay"`)
	bodyIdx := strings.LastIndex(out, "</body>")
	require.Greater(t, overlayIdx, 0)
	require.Less(t, overlayIdx, bodyIdx)
	require.Contains(t, out, "<p>landing</p>")
}

func TestInjectIntoCloneWithoutBodyTagAppends(t *testing.T) {
	t.Parallel()

	out, err := New().InjectIntoClone("<p>bare fragment</p>", "camp-1", baseConfig())
	require.NoError(t, err)
	require.Contains(t, out, "bare fragment")
	require.Contains(t, out, `id="psk-overlay"`)
}

func TestOverlayConsentTheater(t *testing.T) {
	t.Parallel()

	out, err := New().InjectIntoClone("<html><body></body></html>", "camp-9", baseConfig())
	require.NoError(t, err)

	// Both controls route through the same leave() handler: one redirect
	// target, one tracking URL, regardless of which control fired.
	require.Contains(t, out, `"/campaigns/camp-9/click"`)
	require.Contains(t, out, `"https://offer.example.com/go"`)
	require.Equal(t, 1, strings.Count(out, "window.location.href = redirect"))
	require.Contains(t, out, "leave('accept')")
	require.Equal(t, 2, strings.Count(out, "leave('close')"))
}

func TestOverlayEscapesUntrustedText(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Title = `<script>alert("x")</script>`
	out, err := New().InjectIntoClone("<html><body></body></html>", "camp-1", cfg)
	require.NoError(t, err)
	require.NotContains(t, out, `<script>alert`)
}

func TestOverlayHighContrastBackgroundFlipsText(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.BackgroundColor = "#000000"
	out, err := New().InjectIntoClone("<html><body></body></html>", "camp-1", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "color:#ffffff;text-shadow:")

	cfg.BackgroundColor = "#ffffff"
	out, err = New().InjectIntoClone("<html><body></body></html>", "camp-1", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "color:#333333;")
	require.NotContains(t, out, "text-shadow:")
}

func TestOverlayButtonPositions(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.AcceptPosition = presell.PositionBottomLeft
	cfg.ClosePosition = presell.PositionTopRight
	out, err := New().InjectIntoClone("<html><body></body></html>", "camp-1", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "left:16px;bottom:16px;")
	require.Contains(t, out, "right:16px;top:16px;")
}

func TestOverlayRejectsUnsafeColors(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.BackgroundColor = `red;}</style><script>`
	out, err := New().InjectIntoClone("<html><body></body></html>", "camp-1", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "background:#ffffff")
}

func TestRenderScreenshotPage(t *testing.T) {
	t.Parallel()

	index := map[int]string{
		1024: "campaign-camp-2/screenshot_1024.jpeg",
		824:  "campaign-camp-2/screenshot_824.jpeg",
		624:  "campaign-camp-2/screenshot_624.jpeg",
	}
	out, err := New().RenderScreenshotPage(index, "camp-2", baseConfig())
	require.NoError(t, err)

	// Initial image is the widest capture; the swap script owns the rest.
	require.Contains(t, out, `src="/screenshots/campaign-camp-2/screenshot_1024.jpeg"`)
	require.Contains(t, out, "var widths = [1024,824,624]")
	require.Contains(t, out, `"824":"campaign-camp-2/screenshot_824.jpeg"`)
	require.Contains(t, out, `id="psk-overlay"`)
	require.Contains(t, out, "window.addEventListener('resize', swap)")
}

func TestRenderScreenshotPageEmptyIndexFails(t *testing.T) {
	t.Parallel()

	_, err := New().RenderScreenshotPage(nil, "camp-2", baseConfig())
	require.Error(t, err)
}
