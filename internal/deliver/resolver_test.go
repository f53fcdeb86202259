package deliver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/presellkit/presell-engine/internal/metrics"
	"github.com/presellkit/presell-engine/internal/overlay"
	"github.com/presellkit/presell-engine/internal/presell"
	storemem "github.com/presellkit/presell-engine/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newResolver(t *testing.T) (*Resolver, *storemem.CampaignStore) {
	t.Helper()
	metrics.Init()
	store := storemem.NewCampaignStore()
	r := New(store, overlay.New(),
		fixedClock{t: time.Unix(1700000000, 0).UTC()},
		Config{PlaceholderReload: 5}, zap.NewNop())
	return r, store
}

func TestResolveServesOverlaidClone(t *testing.T) {
	r, store := newResolver(t)
	ctx := context.Background()

	require.NoError(t, store.CreateCampaign(ctx, presell.Campaign{
		ID:     "c-1",
		Status: presell.StatusPending,
		Overlay: presell.OverlayConfig{
			Title:       "One more step",
			AcceptLabel: "Continue",
			CloseLabel:  "No thanks",
			RedirectURL: "https://dest.example.com",
		},
	}))
	require.NoError(t, store.SaveCampaignStatus(ctx, "c-1", presell.StatusSuccess,
		presell.Artifact{ClonedDocument: "<html><body><p>offer</p></body></html>"}))

	page, err := r.Resolve(ctx, "c-1", Visit{Referrer: "https://ads.example.com"})
	require.NoError(t, err)
	require.Equal(t, VariantClone, page.Variant)
	require.Contains(t, page.HTML, "offer")
	require.Contains(t, page.HTML, "psk-overlay")
	require.Contains(t, page.HTML, "https://dest.example.com")

	loaded, err := store.LoadCampaign(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), loaded.Views)
	require.Len(t, store.ViewEvents("c-1"), 1)
	require.Equal(t, "https://ads.example.com", store.ViewEvents("c-1")[0].Referrer)
}

func TestResolveServesScreenshotPage(t *testing.T) {
	r, store := newResolver(t)
	ctx := context.Background()

	require.NoError(t, store.CreateCampaign(ctx, presell.Campaign{
		ID:     "c-2",
		Status: presell.StatusPending,
	}))
	require.NoError(t, store.SaveCampaignStatus(ctx, "c-2", presell.StatusScreenshotMode,
		presell.Artifact{ScreenshotIndex: map[int]string{
			1920: "campaign-c-2/screenshot_1920.jpeg",
			360:  "campaign-c-2/screenshot_360.jpeg",
		}}))

	page, err := r.Resolve(ctx, "c-2", Visit{})
	require.NoError(t, err)
	require.Equal(t, VariantScreenshot, page.Variant)
	require.Contains(t, page.HTML, "screenshot_1920.jpeg")

	loaded, err := store.LoadCampaign(ctx, "c-2")
	require.NoError(t, err)
	require.Equal(t, int64(1), loaded.Views)
}

func TestResolvePendingAndFailedServePlaceholder(t *testing.T) {
	r, store := newResolver(t)
	ctx := context.Background()

	for _, tc := range []struct {
		id     string
		status presell.CampaignStatus
	}{
		{"c-pending", presell.StatusPending},
		{"c-failed", presell.StatusFailed},
	} {
		require.NoError(t, store.CreateCampaign(ctx, presell.Campaign{
			ID:     tc.id,
			Status: presell.StatusPending,
		}))
		require.NoError(t, store.SaveCampaignStatus(ctx, tc.id, tc.status, presell.Artifact{}))

		page, err := r.Resolve(ctx, tc.id, Visit{})
		require.NoError(t, err)
		require.Equal(t, VariantPlaceholder, page.Variant)
		require.Contains(t, page.HTML, `http-equiv="refresh"`)
		require.Contains(t, page.HTML, `content="5"`)

		// Placeholder deliveries do not count as views.
		loaded, err := store.LoadCampaign(ctx, tc.id)
		require.NoError(t, err)
		require.Equal(t, int64(0), loaded.Views)
		require.Empty(t, store.ViewEvents(tc.id))
	}
}

func TestResolveUnknownCampaign(t *testing.T) {
	r, _ := newResolver(t)
	_, err := r.Resolve(context.Background(), "missing", Visit{})
	require.Error(t, err)
}

func TestRecordClickNormalizesControl(t *testing.T) {
	r, store := newResolver(t)
	ctx := context.Background()

	require.NoError(t, store.CreateCampaign(ctx, presell.Campaign{ID: "c-3"}))

	require.NoError(t, r.RecordClick(ctx, "c-3", "accept", Visit{UserAgent: "Mozilla/5.0"}))
	require.NoError(t, r.RecordClick(ctx, "c-3", "close", Visit{}))
	require.NoError(t, r.RecordClick(ctx, "c-3", "something-else", Visit{}))

	loaded, err := store.LoadCampaign(ctx, "c-3")
	require.NoError(t, err)
	require.Equal(t, int64(3), loaded.Clicks)

	events := store.ClickEvents("c-3")
	require.Len(t, events, 3)
	require.Equal(t, "accept", events[0].Control)
	require.Equal(t, "unknown", events[2].Control)
}

func TestRecordClickUnknownCampaign(t *testing.T) {
	r, _ := newResolver(t)
	require.Error(t, r.RecordClick(context.Background(), "missing", "accept", Visit{}))
}
