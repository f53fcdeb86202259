// Package deliver resolves which presell variant a visitor receives.
package deliver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/presellkit/presell-engine/internal/metrics"
	"github.com/presellkit/presell-engine/internal/overlay"
	"github.com/presellkit/presell-engine/internal/presell"
)

// Variant names the kind of page a delivery produced.
type Variant string

// Delivery variants, in priority order.
const (
	VariantClone       Variant = "clone"
	VariantScreenshot  Variant = "screenshot"
	VariantPlaceholder Variant = "placeholder"
)

// Page is a rendered presell response.
type Page struct {
	HTML    string
	Variant Variant
}

// Visit carries request metadata recorded alongside a delivery.
type Visit struct {
	Referrer   string
	UserAgent  string
	RemoteAddr string
}

// Config controls Resolver behavior.
type Config struct {
	// PlaceholderReload is the meta-refresh interval, in seconds, for
	// campaigns still processing.
	PlaceholderReload int
}

// Resolver renders the artifact matching a campaign's status and records
// the view.
type Resolver struct {
	store    presell.CampaignStore
	injector *overlay.Injector
	clock    presell.Clock
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Resolver.
func New(store presell.CampaignStore, injector *overlay.Injector, clock presell.Clock, cfg Config, logger *zap.Logger) *Resolver {
	if cfg.PlaceholderReload <= 0 {
		cfg.PlaceholderReload = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:    store,
		injector: injector,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Resolve renders the page for a campaign. Success serves the overlaid
// clone, screenshot mode serves the responsive screenshot page, anything
// else serves a self-reloading placeholder. Views are only counted for the
// first two; counter failures never block delivery.
func (r *Resolver) Resolve(ctx context.Context, campaignID string, visit Visit) (Page, error) {
	campaign, err := r.store.LoadCampaign(ctx, campaignID)
	if err != nil {
		return Page{}, fmt.Errorf("load campaign: %w", err)
	}

	switch campaign.Status {
	case presell.StatusSuccess:
		html, err := r.injector.InjectIntoClone(campaign.ClonedDocument, campaign.ID, campaign.Overlay)
		if err != nil {
			return Page{}, fmt.Errorf("inject overlay: %w", err)
		}
		r.recordView(ctx, campaign.ID, visit)
		metrics.ObserveDelivery(string(VariantClone))
		return Page{HTML: html, Variant: VariantClone}, nil

	case presell.StatusScreenshotMode:
		html, err := r.injector.RenderScreenshotPage(campaign.ScreenshotIndex, campaign.ID, campaign.Overlay)
		if err != nil {
			return Page{}, fmt.Errorf("render screenshot page: %w", err)
		}
		r.recordView(ctx, campaign.ID, visit)
		metrics.ObserveDelivery(string(VariantScreenshot))
		return Page{HTML: html, Variant: VariantScreenshot}, nil

	default:
		metrics.ObserveDelivery(string(VariantPlaceholder))
		return Page{HTML: r.placeholder(), Variant: VariantPlaceholder}, nil
	}
}

// RecordClick tracks one overlay control click. Unknown controls are
// normalized to "unknown" so the metric label set stays bounded.
func (r *Resolver) RecordClick(ctx context.Context, campaignID, control string, visit Visit) error {
	if control != "accept" && control != "close" {
		control = "unknown"
	}
	if err := r.store.IncrementClickCounter(ctx, campaignID); err != nil {
		return fmt.Errorf("increment clicks: %w", err)
	}
	if err := r.store.AppendClickEvent(ctx, presell.ClickEvent{
		CampaignID: campaignID,
		OccurredAt: r.clock.Now(),
		Control:    control,
		Referrer:   visit.Referrer,
		UserAgent:  visit.UserAgent,
		RemoteAddr: visit.RemoteAddr,
	}); err != nil {
		return fmt.Errorf("append click event: %w", err)
	}
	metrics.ObserveOverlayClick(control)
	return nil
}

func (r *Resolver) recordView(ctx context.Context, campaignID string, visit Visit) {
	if err := r.store.IncrementViewCounter(ctx, campaignID); err != nil {
		r.logger.Warn("increment views failed",
			zap.String("campaign_id", campaignID), zap.Error(err))
	}
	if err := r.store.AppendViewEvent(ctx, presell.ViewEvent{
		CampaignID: campaignID,
		OccurredAt: r.clock.Now(),
		Referrer:   visit.Referrer,
		UserAgent:  visit.UserAgent,
		RemoteAddr: visit.RemoteAddr,
	}); err != nil {
		r.logger.Warn("append view event failed",
			zap.String("campaign_id", campaignID), zap.Error(err))
	}
}

func (r *Resolver) placeholder() string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="%d">
<title>Loading</title>
<style>
body{font-family:sans-serif;display:flex;align-items:center;justify-content:center;height:100vh;margin:0;background:#f5f5f5}
.box{text-align:center;color:#555}
</style>
</head>
<body>
<div class="box">
<p>Your page is being prepared.</p>
<p>This page refreshes automatically.</p>
</div>
</body>
</html>`, r.cfg.PlaceholderReload)
}
