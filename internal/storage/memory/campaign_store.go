// Package memory provides an in-memory campaign store for development and
// tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/presellkit/presell-engine/internal/presell"
)

// ErrNotFound is returned when a campaign ID is unknown.
var ErrNotFound = presell.ErrCampaignNotFound

// CampaignStore implements presell.CampaignStore with maps behind a RWMutex.
// Writes serialize per store, which also serializes them per campaign.
type CampaignStore struct {
	mu          sync.RWMutex
	campaigns   map[string]presell.Campaign
	viewEvents  map[string][]presell.ViewEvent
	clickEvents map[string][]presell.ClickEvent
}

// NewCampaignStore constructs a CampaignStore.
func NewCampaignStore() *CampaignStore {
	return &CampaignStore{
		campaigns:   make(map[string]presell.Campaign),
		viewEvents:  make(map[string][]presell.ViewEvent),
		clickEvents: make(map[string][]presell.ClickEvent),
	}
}

// CreateCampaign stores a new campaign record.
func (s *CampaignStore) CreateCampaign(_ context.Context, campaign presell.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.campaigns[campaign.ID]; exists {
		return errors.New("campaign already exists")
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	campaign.UpdatedAt = campaign.CreatedAt
	s.campaigns[campaign.ID] = campaign
	return nil
}

// LoadCampaign fetches a campaign by ID.
func (s *CampaignStore) LoadCampaign(_ context.Context, campaignID string) (presell.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return presell.Campaign{}, ErrNotFound
	}
	return campaign, nil
}

// SaveCampaignStatus updates the status and replaces the artifact. The
// campaign ends up holding exactly the artifact fields passed in; stale
// fields from a previous attempt are cleared, keeping status and artifact
// coupled.
func (s *CampaignStore) SaveCampaignStatus(
	_ context.Context,
	campaignID string,
	status presell.CampaignStatus,
	artifact presell.Artifact,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return ErrNotFound
	}
	campaign.Status = status
	campaign.ClonedDocument = artifact.ClonedDocument
	campaign.ScreenshotIndex = artifact.ScreenshotIndex
	campaign.UpdatedAt = time.Now().UTC()
	s.campaigns[campaignID] = campaign
	return nil
}

// IncrementViewCounter bumps the view total for a campaign.
func (s *CampaignStore) IncrementViewCounter(_ context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return ErrNotFound
	}
	campaign.Views++
	s.campaigns[campaignID] = campaign
	return nil
}

// AppendViewEvent records one delivery event.
func (s *CampaignStore) AppendViewEvent(_ context.Context, event presell.ViewEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewEvents[event.CampaignID] = append(s.viewEvents[event.CampaignID], event)
	return nil
}

// IncrementClickCounter bumps the click total for a campaign.
func (s *CampaignStore) IncrementClickCounter(_ context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return ErrNotFound
	}
	campaign.Clicks++
	s.campaigns[campaignID] = campaign
	return nil
}

// AppendClickEvent records one overlay click event.
func (s *CampaignStore) AppendClickEvent(_ context.Context, event presell.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clickEvents[event.CampaignID] = append(s.clickEvents[event.CampaignID], event)
	return nil
}

// ViewEvents returns recorded view events for a campaign (test helper).
func (s *CampaignStore) ViewEvents(campaignID string) []presell.ViewEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]presell.ViewEvent, len(s.viewEvents[campaignID]))
	copy(out, s.viewEvents[campaignID])
	return out
}

// ClickEvents returns recorded click events for a campaign (test helper).
func (s *CampaignStore) ClickEvents(campaignID string) []presell.ClickEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]presell.ClickEvent, len(s.clickEvents[campaignID]))
	copy(out, s.clickEvents[campaignID])
	return out
}
