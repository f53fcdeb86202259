package presell

import (
	"context"
	"time"
)

// CampaignStore persists campaign records, counters, and event rows.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, campaign Campaign) error
	LoadCampaign(ctx context.Context, campaignID string) (Campaign, error)
	SaveCampaignStatus(ctx context.Context, campaignID string, status CampaignStatus, artifact Artifact) error
	IncrementViewCounter(ctx context.Context, campaignID string) error
	AppendViewEvent(ctx context.Context, event ViewEvent) error
	IncrementClickCounter(ctx context.Context, campaignID string) error
	AppendClickEvent(ctx context.Context, event ClickEvent) error
}

// ScreenshotStore writes captured images and returns a URI.
type ScreenshotStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
	RemoveAll(ctx context.Context, prefix string) error
}

// Acquirer fetches the raw HTML of a source page.
type Acquirer interface {
	Acquire(ctx context.Context, url string) ([]byte, error)
}

// Rewriter turns raw source HTML into a servable clone.
type Rewriter interface {
	Rewrite(rawHTML []byte, baseURL string) (string, error)
}

// Capturer renders the source page at every capture width and returns the
// width-to-path index.
type Capturer interface {
	Capture(ctx context.Context, url string, campaignID string) (map[int]string, error)
}

// Queue provides enqueue/dequeue semantics for processing requests.
type Queue interface {
	Enqueue(ctx context.Context, request ProcessRequest) error
	Dequeue(ctx context.Context) (ProcessRequest, error)
}

// Publisher pushes processing events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces campaign IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
