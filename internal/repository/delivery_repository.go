package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blastline/campaign-dispatch/internal/models"
)

// DeliveryRepository defines the interface for delivery record data access
type DeliveryRepository interface {
	CreateBatch(ctx context.Context, records []*models.DeliveryRecord) error
	MarkSent(ctx context.Context, id int64, externalID string) error
	MarkFailed(ctx context.Context, id int64, errorReason string) error
	ListByCampaign(ctx context.Context, campaignID int64, limit int) ([]*models.DeliveryRecord, error)
}

// deliveryRepository implements DeliveryRepository using PostgreSQL
type deliveryRepository struct {
	db *sql.DB
}

// NewDeliveryRepository creates a new delivery record repository
func NewDeliveryRepository(db *sql.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

// CreateBatch inserts pending delivery records in a single transaction
func (r *deliveryRepository) CreateBatch(ctx context.Context, records []*models.DeliveryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Rollback is safe to call even after Commit
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO delivery_records (campaign_id, contact_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		err := stmt.QueryRowContext(
			ctx,
			record.CampaignID,
			record.ContactID,
			record.Status,
		).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)

		if err != nil {
			return fmt.Errorf("failed to insert delivery record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// MarkSent settles a pending record as sent with the gateway's message id.
// The WHERE clause guards the settle-once invariant at the storage level.
func (r *deliveryRepository) MarkSent(ctx context.Context, id int64, externalID string) error {
	query := `
		UPDATE delivery_records
		SET status = $1, external_id = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`

	return r.settle(ctx, id, query, models.DeliveryStatusSent, externalID, id, models.DeliveryStatusPending)
}

// MarkFailed settles a pending record as failed with the error reason
func (r *deliveryRepository) MarkFailed(ctx context.Context, id int64, errorReason string) error {
	query := `
		UPDATE delivery_records
		SET status = $1, error_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`

	return r.settle(ctx, id, query, models.DeliveryStatusFailed, errorReason, id, models.DeliveryStatusPending)
}

// ListByCampaign retrieves the most recent delivery records for a campaign
func (r *deliveryRepository) ListByCampaign(ctx context.Context, campaignID int64, limit int) ([]*models.DeliveryRecord, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT id, campaign_id, contact_id, status, external_id, error_reason, created_at, updated_at
		FROM delivery_records
		WHERE campaign_id = $1
		ORDER BY updated_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery records: %w", err)
	}
	defer rows.Close()

	records := []*models.DeliveryRecord{}
	for rows.Next() {
		record := &models.DeliveryRecord{}
		err := rows.Scan(
			&record.ID,
			&record.CampaignID,
			&record.ContactID,
			&record.Status,
			&record.ExternalID,
			&record.ErrorReason,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery records: %w", err)
	}

	return records, nil
}

func (r *deliveryRepository) settle(ctx context.Context, id int64, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to settle delivery record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrConflictWithMsg(fmt.Sprintf("delivery record %d not found or already settled", id))
	}

	return nil
}
