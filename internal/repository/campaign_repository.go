package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/blastline/campaign-dispatch/internal/models"
)

// CampaignRepository defines the interface for campaign data access
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, id int64) (*models.Campaign, error)
	MarkStarted(ctx context.Context, id int64, startedAt time.Time) error
	UpdateCounts(ctx context.Context, id int64, sent, failed, pendingRemaining int64) error
	Finish(ctx context.Context, id int64, status string, completedAt time.Time) error
}

// campaignRepository implements CampaignRepository using PostgreSQL
type campaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *sql.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

// Create inserts a new campaign
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	media, err := json.Marshal(campaign.Media)
	if err != nil {
		return fmt.Errorf("failed to marshal media: %w", err)
	}

	query := `
		INSERT INTO campaigns (user_id, template, media, selection_mode, contact_ids, delay_seconds,
			status, total, sent, failed, pending_remaining)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err = r.db.QueryRowContext(
		ctx,
		query,
		campaign.UserID,
		campaign.Template,
		media,
		campaign.SelectionMode,
		pq.Array(campaign.ContactIDs),
		campaign.DelaySeconds,
		campaign.Status,
		campaign.Total,
		campaign.Sent,
		campaign.Failed,
		campaign.PendingRemaining,
	).Scan(&campaign.ID, &campaign.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

// GetByID retrieves a campaign by ID
func (r *campaignRepository) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	query := `
		SELECT id, user_id, template, media, selection_mode, contact_ids, delay_seconds,
			status, total, sent, failed, pending_remaining, started_at, completed_at, created_at
		FROM campaigns
		WHERE id = $1`

	campaign := &models.Campaign{}
	var media []byte
	var contactIDs pq.Int64Array

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&campaign.ID,
		&campaign.UserID,
		&campaign.Template,
		&media,
		&campaign.SelectionMode,
		&contactIDs,
		&campaign.DelaySeconds,
		&campaign.Status,
		&campaign.Total,
		&campaign.Sent,
		&campaign.Failed,
		&campaign.PendingRemaining,
		&campaign.StartedAt,
		&campaign.CompletedAt,
		&campaign.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("campaign with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	if len(media) > 0 {
		if err := json.Unmarshal(media, &campaign.Media); err != nil {
			return nil, fmt.Errorf("failed to unmarshal media: %w", err)
		}
	}
	campaign.ContactIDs = []int64(contactIDs)

	return campaign, nil
}

// MarkStarted moves the campaign to in_progress and records the start time
func (r *campaignRepository) MarkStarted(ctx context.Context, id int64, startedAt time.Time) error {
	query := `
		UPDATE campaigns
		SET status = $1, started_at = $2
		WHERE id = $3`

	return r.exec(ctx, id, query, models.CampaignStatusInProgress, startedAt, id)
}

// UpdateCounts persists the progress counters after a delivery settles
func (r *campaignRepository) UpdateCounts(ctx context.Context, id int64, sent, failed, pendingRemaining int64) error {
	query := `
		UPDATE campaigns
		SET sent = $1, failed = $2, pending_remaining = $3
		WHERE id = $4`

	return r.exec(ctx, id, query, sent, failed, pendingRemaining, id)
}

// Finish writes the terminal status and completion time. The WHERE clause
// keeps transitions forward only: a row that is already terminal is never
// overwritten, matching models.CanTransition.
func (r *campaignRepository) Finish(ctx context.Context, id int64, status string, completedAt time.Time) error {
	query := `
		UPDATE campaigns
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status NOT IN ('completed', 'failed', 'cancelled')`

	result, err := r.db.ExecContext(ctx, query, status, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrConflictWithMsg(fmt.Sprintf("campaign %d not found or already terminal", id))
	}

	return nil
}

func (r *campaignRepository) exec(ctx context.Context, id int64, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("campaign with ID %d not found", id))
	}

	return nil
}
