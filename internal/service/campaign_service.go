package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blastline/campaign-dispatch/internal/models"
	"github.com/blastline/campaign-dispatch/internal/repository"
	"github.com/blastline/campaign-dispatch/internal/worker"
)

// CampaignService is the public orchestrator for bulk campaigns
type CampaignService interface {
	CreateCampaign(ctx context.Context, req *CreateCampaignRequest) (*CreateCampaignResult, error)
	GetStatus(ctx context.Context, userID, campaignID int64) (*CampaignStatus, error)
	CancelCampaign(ctx context.Context, userID, campaignID int64) error
	ListRecentDeliveries(ctx context.Context, userID, campaignID int64, limit int) (*DeliveryListResult, error)
}

type campaignService struct {
	campaignRepo repository.CampaignRepository
	deliveryRepo repository.DeliveryRepository
	selector     ContactSelector
	dispatcher   *worker.Dispatcher
	tracker      *worker.Tracker
	registry     *worker.Registry
	runCtx       context.Context
	defaultDelay int
	maxDelay     int
	logger       *slog.Logger
}

// NewCampaignService creates a new campaign service. runCtx bounds the
// lifetime of dispatch workers: cancelling it stops all loops at their next
// iteration boundary.
func NewCampaignService(
	runCtx context.Context,
	campaignRepo repository.CampaignRepository,
	deliveryRepo repository.DeliveryRepository,
	selector ContactSelector,
	dispatcher *worker.Dispatcher,
	tracker *worker.Tracker,
	registry *worker.Registry,
	defaultDelay, maxDelay int,
	logger *slog.Logger,
) CampaignService {
	return &campaignService{
		campaignRepo: campaignRepo,
		deliveryRepo: deliveryRepo,
		selector:     selector,
		dispatcher:   dispatcher,
		tracker:      tracker,
		registry:     registry,
		runCtx:       runCtx,
		defaultDelay: defaultDelay,
		maxDelay:     maxDelay,
		logger:       logger,
	}
}

// CreateCampaign validates the request, resolves the target contact set,
// persists the campaign with one pending delivery record per contact and
// starts exactly one dispatch worker bound to it.
func (s *campaignService) CreateCampaign(ctx context.Context, req *CreateCampaignRequest) (*CreateCampaignResult, error) {
	delay := s.defaultDelay
	if req.DelaySeconds != nil {
		delay = *req.DelaySeconds
	}
	if delay > s.maxDelay {
		return nil, models.ErrInvalidInput(fmt.Sprintf("delay_seconds must not exceed %d", s.maxDelay))
	}

	campaign := &models.Campaign{
		UserID:        req.UserID,
		Template:      req.Template,
		Media:         req.Media,
		SelectionMode: req.SelectionMode,
		ContactIDs:    req.ContactIDs,
		DelaySeconds:  delay,
		Status:        models.CampaignStatusPending,
	}
	if err := campaign.Validate(); err != nil {
		return nil, err
	}

	contacts, err := s.selector.Resolve(ctx, req.UserID, req.SelectionMode, req.ContactIDs)
	if err != nil {
		return nil, err
	}

	campaign.Total = int64(len(contacts))
	campaign.PendingRemaining = campaign.Total

	if err := s.campaignRepo.Create(ctx, campaign); err != nil {
		s.logger.Error("failed to create campaign",
			slog.Int64("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	now := time.Now().UTC()

	// An empty contact set is a valid campaign; it completes immediately
	// without a worker.
	if len(contacts) == 0 {
		if err := s.campaignRepo.MarkStarted(ctx, campaign.ID, now); err != nil {
			return nil, fmt.Errorf("failed to start campaign: %w", err)
		}
		if err := s.campaignRepo.Finish(ctx, campaign.ID, models.CampaignStatusCompleted, now); err != nil {
			return nil, fmt.Errorf("failed to complete campaign: %w", err)
		}

		s.logger.Info("campaign completed with empty contact set",
			slog.Int64("campaign_id", campaign.ID),
		)

		return &CreateCampaignResult{
			CampaignID: campaign.ID,
			Status:     models.CampaignStatusCompleted,
			Total:      0,
		}, nil
	}

	records := make([]*models.DeliveryRecord, len(contacts))
	for i, contact := range contacts {
		records[i] = &models.DeliveryRecord{
			CampaignID: campaign.ID,
			ContactID:  contact.ID,
			Status:     models.DeliveryStatusPending,
		}
	}

	if err := s.deliveryRepo.CreateBatch(ctx, records); err != nil {
		s.logger.Error("failed to create delivery records",
			slog.Int64("campaign_id", campaign.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to create delivery records: %w", err)
	}

	if err := s.registry.Acquire(campaign.ID); err != nil {
		return nil, err
	}

	if err := s.campaignRepo.MarkStarted(ctx, campaign.ID, now); err != nil {
		s.registry.Release(campaign.ID)
		return nil, fmt.Errorf("failed to start campaign: %w", err)
	}

	s.tracker.Begin(campaign.ID, campaign.Total, now)

	s.logger.Info("campaign started",
		slog.Int64("campaign_id", campaign.ID),
		slog.Int64("user_id", campaign.UserID),
		slog.Int64("total", campaign.Total),
		slog.Int("delay_seconds", campaign.DelaySeconds),
	)

	go s.dispatcher.Run(s.runCtx, campaign, contacts, records)

	return &CreateCampaignResult{
		CampaignID: campaign.ID,
		Status:     models.CampaignStatusInProgress,
		Total:      campaign.Total,
	}, nil
}

// GetStatus returns a consistent progress snapshot. Live campaigns are
// served from the tracker; campaigns with no live worker (terminal, or
// started before a restart) from the persisted row.
func (s *campaignService) GetStatus(ctx context.Context, userID, campaignID int64) (*CampaignStatus, error) {
	campaign, err := s.getOwned(ctx, userID, campaignID)
	if err != nil {
		return nil, err
	}

	if snap, ok := s.tracker.Snapshot(campaignID); ok {
		return buildStatus(campaignID, snap.Status, snap.Total, snap.Sent, snap.Failed, &snap.StartedAt, snap.CompletedAt), nil
	}

	return buildStatus(campaignID, campaign.Status, campaign.Total, campaign.Sent, campaign.Failed, campaign.StartedAt, campaign.CompletedAt), nil
}

// CancelCampaign requests cooperative cancellation and returns immediately.
// The in-flight send, if any, settles before the loop honors the request.
func (s *campaignService) CancelCampaign(ctx context.Context, userID, campaignID int64) error {
	campaign, err := s.getOwned(ctx, userID, campaignID)
	if err != nil {
		return err
	}

	if !models.CanTransition(campaign.Status, models.CampaignStatusCancelled) {
		return models.ErrConflictWithMsg(fmt.Sprintf("campaign %d is already %s", campaignID, campaign.Status))
	}

	if s.tracker.RequestCancel(campaignID) {
		s.logger.Info("campaign cancellation requested",
			slog.Int64("campaign_id", campaignID),
		)
		return nil
	}

	// The worker may have finished between the row read and now, with its
	// terminal write still in flight. That run is over; it cannot be
	// cancelled.
	if snap, ok := s.tracker.Snapshot(campaignID); ok && models.IsTerminalCampaignStatus(snap.Status) {
		return models.ErrConflictWithMsg(fmt.Sprintf("campaign %d is already %s", campaignID, snap.Status))
	}

	// No live worker for a non-terminal row (e.g. the process restarted
	// mid-run). Settle the row directly.
	if err := s.campaignRepo.Finish(ctx, campaignID, models.CampaignStatusCancelled, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to cancel campaign: %w", err)
	}

	s.logger.Info("orphaned campaign cancelled",
		slog.Int64("campaign_id", campaignID),
	)
	return nil
}

// ListRecentDeliveries returns the most recent delivery records for a
// campaign owned by the caller
func (s *campaignService) ListRecentDeliveries(ctx context.Context, userID, campaignID int64, limit int) (*DeliveryListResult, error) {
	if _, err := s.getOwned(ctx, userID, campaignID); err != nil {
		return nil, err
	}

	records, err := s.deliveryRepo.ListByCampaign(ctx, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}

	return &DeliveryListResult{
		CampaignID: campaignID,
		Records:    records,
	}, nil
}

// getOwned fetches a campaign and hides other users' campaigns behind
// NotFound rather than leaking their existence
func (s *campaignService) getOwned(ctx context.Context, userID, campaignID int64) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.UserID != userID {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("campaign with ID %d not found", campaignID))
	}
	return campaign, nil
}

func buildStatus(campaignID int64, status string, total, sent, failed int64, startedAt, completedAt *time.Time) *CampaignStatus {
	st := &CampaignStatus{
		CampaignID:       campaignID,
		Status:           status,
		Total:            total,
		Sent:             sent,
		Failed:           failed,
		PendingRemaining: total - sent - failed,
		StartedAt:        startedAt,
		CompletedAt:      completedAt,
	}

	settled := sent + failed
	if total > 0 {
		st.ProgressPercentage = float64(settled) / float64(total) * 100
	} else if status == models.CampaignStatusCompleted {
		st.ProgressPercentage = 100
	}

	// ETA is defined once at least one message settled and the run is
	// still going: started_at + elapsed * total / settled.
	if settled > 0 && status == models.CampaignStatusInProgress && startedAt != nil {
		elapsed := time.Since(*startedAt)
		eta := startedAt.Add(time.Duration(float64(elapsed) * float64(total) / float64(settled)))
		st.EstimatedCompletion = &eta
	}

	return st
}
