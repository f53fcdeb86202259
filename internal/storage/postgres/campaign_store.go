// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/presellkit/presell-engine/internal/presell"
)

// ErrNotFound is returned when a campaign ID is unknown.
var ErrNotFound = presell.ErrCampaignNotFound

// CampaignStoreConfig controls the Postgres connection pool used for
// campaign rows.
type CampaignStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxQuerier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// CampaignStore persists campaigns and their engagement events in Postgres.
type CampaignStore struct {
	pool pgxQuerier
}

// NewCampaignStore creates a Postgres-backed CampaignStore using the provided
// config.
func NewCampaignStore(ctx context.Context, cfg CampaignStoreConfig) (*CampaignStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &CampaignStore{pool: pool}, nil
}

// NewCampaignStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewCampaignStoreWithPool(pool pgxQuerier) (*CampaignStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &CampaignStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *CampaignStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateCampaign inserts a new campaign row.
func (s *CampaignStore) CreateCampaign(ctx context.Context, campaign presell.Campaign) error {
	if campaign.ID == "" {
		return fmt.Errorf("campaign id is required")
	}
	overlayJSON, err := json.Marshal(campaign.Overlay)
	if err != nil {
		return fmt.Errorf("marshal overlay: %w", err)
	}
	query := `
INSERT INTO campaigns (
	id,
	source_url,
	processing_mode,
	status,
	cloned_document,
	screenshot_index,
	overlay,
	views,
	clicks,
	created_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`
	indexJSON, err := marshalIndex(campaign.ScreenshotIndex)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, query,
		campaign.ID,
		campaign.SourceURL,
		string(campaign.Mode),
		string(campaign.Status),
		campaign.ClonedDocument,
		indexJSON,
		overlayJSON,
		campaign.Views,
		campaign.Clicks,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// LoadCampaign fetches a campaign by ID.
func (s *CampaignStore) LoadCampaign(ctx context.Context, campaignID string) (presell.Campaign, error) {
	query := `
SELECT
	id,
	source_url,
	processing_mode,
	status,
	cloned_document,
	screenshot_index,
	overlay,
	views,
	clicks,
	created_at,
	updated_at
FROM campaigns
WHERE id = $1`

	var (
		campaign    presell.Campaign
		mode        string
		status      string
		indexJSON   []byte
		overlayJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, campaignID).Scan(
		&campaign.ID,
		&campaign.SourceURL,
		&mode,
		&status,
		&campaign.ClonedDocument,
		&indexJSON,
		&overlayJSON,
		&campaign.Views,
		&campaign.Clicks,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return presell.Campaign{}, ErrNotFound
		}
		return presell.Campaign{}, fmt.Errorf("load campaign: %w", err)
	}
	campaign.Mode = presell.ProcessingMode(mode)
	campaign.Status = presell.CampaignStatus(status)
	if len(indexJSON) > 0 {
		if err := json.Unmarshal(indexJSON, &campaign.ScreenshotIndex); err != nil {
			return presell.Campaign{}, fmt.Errorf("unmarshal screenshot index: %w", err)
		}
	}
	if len(overlayJSON) > 0 {
		if err := json.Unmarshal(overlayJSON, &campaign.Overlay); err != nil {
			return presell.Campaign{}, fmt.Errorf("unmarshal overlay: %w", err)
		}
	}
	return campaign, nil
}

// SaveCampaignStatus updates the status and replaces the artifact in one
// statement, so readers never observe a status paired with a stale artifact.
func (s *CampaignStore) SaveCampaignStatus(
	ctx context.Context,
	campaignID string,
	status presell.CampaignStatus,
	artifact presell.Artifact,
) error {
	indexJSON, err := marshalIndex(artifact.ScreenshotIndex)
	if err != nil {
		return err
	}
	query := `
UPDATE campaigns
SET status = $1, cloned_document = $2, screenshot_index = $3, updated_at = $4
WHERE id = $5`
	tag, err := s.pool.Exec(ctx, query,
		string(status),
		artifact.ClonedDocument,
		indexJSON,
		time.Now().UTC(),
		campaignID,
	)
	if err != nil {
		return fmt.Errorf("save campaign status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViewCounter bumps the view total for a campaign.
func (s *CampaignStore) IncrementViewCounter(ctx context.Context, campaignID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET views = views + 1 WHERE id = $1`, campaignID)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendViewEvent records one delivery event.
func (s *CampaignStore) AppendViewEvent(ctx context.Context, event presell.ViewEvent) error {
	query := `
INSERT INTO view_events (campaign_id, occurred_at, referrer, user_agent, remote_addr)
VALUES ($1,$2,$3,$4,$5)`
	_, err := s.pool.Exec(ctx, query,
		event.CampaignID,
		event.OccurredAt,
		event.Referrer,
		event.UserAgent,
		event.RemoteAddr,
	)
	if err != nil {
		return fmt.Errorf("insert view event: %w", err)
	}
	return nil
}

// IncrementClickCounter bumps the click total for a campaign.
func (s *CampaignStore) IncrementClickCounter(ctx context.Context, campaignID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET clicks = clicks + 1 WHERE id = $1`, campaignID)
	if err != nil {
		return fmt.Errorf("increment clicks: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendClickEvent records one overlay click event.
func (s *CampaignStore) AppendClickEvent(ctx context.Context, event presell.ClickEvent) error {
	query := `
INSERT INTO click_events (campaign_id, occurred_at, control, referrer, user_agent, remote_addr)
VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := s.pool.Exec(ctx, query,
		event.CampaignID,
		event.OccurredAt,
		event.Control,
		event.Referrer,
		event.UserAgent,
		event.RemoteAddr,
	)
	if err != nil {
		return fmt.Errorf("insert click event: %w", err)
	}
	return nil
}

// marshalIndex renders the screenshot index as JSONB. An empty index is
// stored as NULL so the artifact coupling is visible in the row itself.
func marshalIndex(index map[int]string) ([]byte, error) {
	if len(index) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(index)
	if err != nil {
		return nil, fmt.Errorf("marshal screenshot index: %w", err)
	}
	return data, nil
}
