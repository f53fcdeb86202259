// Package presell defines core types shared across subsystems.
package presell

import (
	"time"
)

// CampaignStatus represents the processing state of a campaign.
type CampaignStatus string

// Campaign status values persisted in the campaign store.
const (
	StatusPending        CampaignStatus = "pending"
	StatusSuccess        CampaignStatus = "success"
	StatusScreenshotMode CampaignStatus = "screenshot-mode"
	StatusFailed         CampaignStatus = "failed"
)

// Terminal reports whether the status ends a processing attempt.
func (s CampaignStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusScreenshotMode, StatusFailed:
		return true
	default:
		return false
	}
}

// ProcessingMode selects the acquisition strategy for a campaign.
// It is immutable after creation.
type ProcessingMode string

// Processing mode values accepted at campaign creation.
const (
	ModeAutomatic      ProcessingMode = "automatic"
	ModeCloneOnly      ProcessingMode = "clone-only"
	ModeScreenshotOnly ProcessingMode = "screenshot-only"
)

// Valid reports whether the mode is one of the accepted values.
func (m ProcessingMode) Valid() bool {
	switch m {
	case ModeAutomatic, ModeCloneOnly, ModeScreenshotOnly:
		return true
	default:
		return false
	}
}

// ButtonPosition places an overlay control inside the modal.
type ButtonPosition string

// Overlay control placements. Close additionally supports top-right.
const (
	PositionBottomLeft  ButtonPosition = "bottom-left"
	PositionBottomRight ButtonPosition = "bottom-right"
	PositionTopRight    ButtonPosition = "top-right"
)

// OverlayConfig captures the consent modal appearance and behavior for one
// campaign. It is consumed by the overlay injector and never mutated by the
// pipeline.
type OverlayConfig struct {
	Title           string         `json:"title"`
	Message         string         `json:"message"`
	AcceptLabel     string         `json:"accept_label"`
	CloseLabel      string         `json:"close_label"`
	AcceptPosition  ButtonPosition `json:"accept_position"`
	ClosePosition   ButtonPosition `json:"close_position"`
	AcceptShadow    bool           `json:"accept_shadow"`
	CloseShadow     bool           `json:"close_shadow"`
	BackgroundColor string         `json:"background_color"`
	BorderColor     string         `json:"border_color"`
	ShadowIntensity int            `json:"shadow_intensity"`
	RedirectURL     string         `json:"redirect_url"`
}

// Artifact is the product of one processing attempt. Exactly one of the two
// fields is populated on a terminal non-failed status.
type Artifact struct {
	ClonedDocument  string         `json:"cloned_document,omitempty"`
	ScreenshotIndex map[int]string `json:"screenshot_index,omitempty"`
}

// Campaign represents a configured source-URL-to-redirect mapping with its
// processing state, delivery artifact, and overlay styling.
type Campaign struct {
	ID              string         `json:"id"`
	SourceURL       string         `json:"source_url"`
	Mode            ProcessingMode `json:"processing_mode"`
	Status          CampaignStatus `json:"status"`
	ClonedDocument  string         `json:"cloned_document,omitempty"`
	ScreenshotIndex map[int]string `json:"screenshot_index,omitempty"`
	Overlay         OverlayConfig  `json:"overlay"`
	Views           int64          `json:"views"`
	Clicks          int64          `json:"clicks"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ViewEvent records one non-placeholder page delivery.
type ViewEvent struct {
	CampaignID string    `json:"campaign_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Referrer   string    `json:"referrer,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// ClickEvent records one overlay control click reported by the browser.
type ClickEvent struct {
	CampaignID string    `json:"campaign_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Control    string    `json:"control,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// ProcessRequest asks the orchestrator to run one processing attempt.
// Reprocess marks attempts triggered by the reprocess operation; the store
// carries no attempt history, so no ordinal is tracked.
type ProcessRequest struct {
	CampaignID string
	Reprocess  bool
	Submitted  int64
}
