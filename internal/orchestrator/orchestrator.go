// Package orchestrator implements the campaign processing loop.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/presellkit/presell-engine/internal/metrics"
	"github.com/presellkit/presell-engine/internal/presell"
)

// Config controls Orchestrator behavior.
type Config struct {
	// EventTopic names the topic processing events are published to.
	// Empty disables event publishing.
	EventTopic string
}

// Event is the payload published after every processing attempt.
type Event struct {
	CampaignID string    `json:"campaign_id"`
	Reprocess  bool      `json:"reprocess"`
	Mode       string    `json:"mode"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Orchestrator consumes processing requests and executes the acquisition
// pipeline, leaving every campaign in a terminal status.
type Orchestrator struct {
	queue     presell.Queue
	store     presell.CampaignStore
	acquirer  presell.Acquirer
	rewriter  presell.Rewriter
	capturer  presell.Capturer
	publisher presell.Publisher
	clock     presell.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator. The publisher may be nil.
func New(
	queue presell.Queue,
	store presell.CampaignStore,
	acquirer presell.Acquirer,
	rewriter presell.Rewriter,
	capturer presell.Capturer,
	publisher presell.Publisher,
	clock presell.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		queue:     queue,
		store:     store,
		acquirer:  acquirer,
		rewriter:  rewriter,
		capturer:  capturer,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Submit enqueues the first processing attempt for a campaign. It returns as
// soon as the request is queued; the attempt itself runs on a worker.
func (o *Orchestrator) Submit(ctx context.Context, campaignID string) error {
	return o.queue.Enqueue(ctx, presell.ProcessRequest{
		CampaignID: campaignID,
		Submitted:  o.clock.Now().UnixMilli(),
	})
}

// Reprocess resets a campaign to pending, discards its artifact, and queues
// a fresh attempt. Delivery falls back to the placeholder until the attempt
// finishes.
func (o *Orchestrator) Reprocess(ctx context.Context, campaignID string) error {
	campaign, err := o.store.LoadCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("load campaign: %w", err)
	}
	if err := o.store.SaveCampaignStatus(ctx, campaignID, presell.StatusPending, presell.Artifact{}); err != nil {
		return fmt.Errorf("reset campaign: %w", err)
	}
	return o.queue.Enqueue(ctx, presell.ProcessRequest{
		CampaignID: campaign.ID,
		Reprocess:  true,
		Submitted:  o.clock.Now().UnixMilli(),
	})
}

// Run blocks, consuming queue items until the context finishes.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		request, err := o.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, presell.ErrQueueClosed) {
				o.logger.Info("queue closed, worker stopping")
				return
			}
			o.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		o.logger.Debug("dequeued processing request",
			zap.String("campaign_id", request.CampaignID),
			zap.Bool("reprocess", request.Reprocess))
		o.processRequest(ctx, request)
	}
}

func (o *Orchestrator) processRequest(ctx context.Context, request presell.ProcessRequest) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	campaign, err := o.store.LoadCampaign(ctx, request.CampaignID)
	if err != nil {
		o.logger.Error("load campaign failed",
			zap.String("campaign_id", request.CampaignID), zap.Error(err))
		return
	}

	started := o.clock.Now()
	status, artifact, attemptErr := o.runAttempt(ctx, campaign)
	duration := o.clock.Now().Sub(started)

	if err := o.store.SaveCampaignStatus(ctx, campaign.ID, status, artifact); err != nil {
		o.logger.Error("save campaign status failed",
			zap.String("campaign_id", campaign.ID),
			zap.String("status", string(status)),
			zap.Error(err))
		return
	}

	metrics.ObserveProcessing(string(campaign.Mode), string(status), duration)
	if attemptErr != nil {
		o.logger.Warn("processing attempt degraded",
			zap.String("campaign_id", campaign.ID),
			zap.String("status", string(status)),
			zap.Error(attemptErr))
	} else {
		o.logger.Info("processing attempt finished",
			zap.String("campaign_id", campaign.ID),
			zap.String("status", string(status)),
			zap.Duration("duration", duration))
	}

	o.publishEvent(ctx, request, campaign, status, attemptErr)
}

// runAttempt executes one attempt and always returns a terminal status. A
// panic inside the pipeline is converted into a failed status so the
// campaign never sticks in pending.
func (o *Orchestrator) runAttempt(
	ctx context.Context,
	campaign presell.Campaign,
) (status presell.CampaignStatus, artifact presell.Artifact, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("processing attempt panicked",
				zap.String("campaign_id", campaign.ID),
				zap.Any("panic", rec))
			status = presell.StatusFailed
			artifact = presell.Artifact{}
			err = fmt.Errorf("attempt panicked: %v", rec)
		}
	}()

	switch campaign.Mode {
	case presell.ModeCloneOnly:
		doc, cloneErr := o.clone(ctx, campaign)
		if cloneErr != nil {
			return presell.StatusFailed, presell.Artifact{}, cloneErr
		}
		return presell.StatusSuccess, presell.Artifact{ClonedDocument: doc}, nil

	case presell.ModeScreenshotOnly:
		index, capErr := o.capture(ctx, campaign)
		if capErr != nil {
			return presell.StatusFailed, presell.Artifact{}, capErr
		}
		return presell.StatusScreenshotMode, presell.Artifact{ScreenshotIndex: index}, nil

	case presell.ModeAutomatic:
		doc, cloneErr := o.clone(ctx, campaign)
		if cloneErr == nil {
			return presell.StatusSuccess, presell.Artifact{ClonedDocument: doc}, nil
		}
		o.logger.Info("clone failed, falling back to screenshots",
			zap.String("campaign_id", campaign.ID),
			zap.Error(cloneErr))
		index, capErr := o.capture(ctx, campaign)
		if capErr != nil {
			return presell.StatusFailed, presell.Artifact{},
				fmt.Errorf("clone failed (%v); capture failed: %w", cloneErr, capErr)
		}
		return presell.StatusScreenshotMode, presell.Artifact{ScreenshotIndex: index}, nil

	default:
		return presell.StatusFailed, presell.Artifact{},
			fmt.Errorf("unknown processing mode %q", campaign.Mode)
	}
}

func (o *Orchestrator) clone(ctx context.Context, campaign presell.Campaign) (string, error) {
	raw, err := o.acquirer.Acquire(ctx, campaign.SourceURL)
	if err != nil {
		return "", fmt.Errorf("acquire source: %w", err)
	}
	doc, err := o.rewriter.Rewrite(raw, campaign.SourceURL)
	if err != nil {
		return "", fmt.Errorf("rewrite document: %w", err)
	}
	return doc, nil
}

func (o *Orchestrator) capture(ctx context.Context, campaign presell.Campaign) (map[int]string, error) {
	started := o.clock.Now()
	index, err := o.capturer.Capture(ctx, campaign.SourceURL, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("capture screenshots: %w", err)
	}
	metrics.ObserveCapture(o.clock.Now().Sub(started))
	return index, nil
}

func (o *Orchestrator) publishEvent(
	ctx context.Context,
	request presell.ProcessRequest,
	campaign presell.Campaign,
	status presell.CampaignStatus,
	attemptErr error,
) {
	if o.publisher == nil || o.cfg.EventTopic == "" {
		return
	}
	event := Event{
		CampaignID: campaign.ID,
		Reprocess:  request.Reprocess,
		Mode:       string(campaign.Mode),
		Status:     string(status),
		FinishedAt: o.clock.Now(),
	}
	if attemptErr != nil {
		event.Error = attemptErr.Error()
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.EventTopic, event); err != nil {
		o.logger.Warn("publish processing event failed",
			zap.String("campaign_id", campaign.ID), zap.Error(err))
	}
}
