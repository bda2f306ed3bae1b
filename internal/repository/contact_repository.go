package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/blastline/campaign-dispatch/internal/models"
)

// ContactRepository defines the interface for contact data access. The
// dispatch engine only reads contacts and records successful sends.
type ContactRepository interface {
	List(ctx context.Context, userID int64) ([]*models.Contact, error)
	ListNeverMessaged(ctx context.Context, userID int64) ([]*models.Contact, error)
	GetByIDs(ctx context.Context, userID int64, ids []int64) ([]*models.Contact, error)
	MarkMessaged(ctx context.Context, contactID int64, sentAt time.Time) error
}

// contactRepository implements ContactRepository using PostgreSQL
type contactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *sql.DB) ContactRepository {
	return &contactRepository{db: db}
}

const contactColumns = `id, user_id, name, first_name, phone, last_sent_at, created_at`

// List retrieves every contact owned by the user in creation order
func (r *contactRepository) List(ctx context.Context, userID int64) ([]*models.Contact, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM contacts
		WHERE user_id = $1
		ORDER BY id ASC`, contactColumns)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

// ListNeverMessaged retrieves contacts with no prior successful send,
// in creation order
func (r *contactRepository) ListNeverMessaged(ctx context.Context, userID int64) ([]*models.Contact, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM contacts
		WHERE user_id = $1 AND last_sent_at IS NULL
		ORDER BY id ASC`, contactColumns)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list never-messaged contacts: %w", err)
	}
	defer rows.Close()

	return scanContacts(rows)
}

// GetByIDs retrieves the given contacts restricted to those owned by the
// user, preserving the order of the ids argument. Unknown and foreign ids
// are dropped.
func (r *contactRepository) GetByIDs(ctx context.Context, userID int64, ids []int64) ([]*models.Contact, error) {
	if len(ids) == 0 {
		return []*models.Contact{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM contacts
		WHERE user_id = $1 AND id = ANY($2)`, contactColumns)

	rows, err := r.db.QueryContext(ctx, query, userID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get contacts by ids: %w", err)
	}
	defer rows.Close()

	found, err := scanContacts(rows)
	if err != nil {
		return nil, err
	}

	// Reorder to match the caller-supplied id order.
	byID := make(map[int64]*models.Contact, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	contacts := make([]*models.Contact, 0, len(found))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			contacts = append(contacts, c)
		}
	}

	return contacts, nil
}

// MarkMessaged records a successful send for the contact
func (r *contactRepository) MarkMessaged(ctx context.Context, contactID int64, sentAt time.Time) error {
	query := `
		UPDATE contacts
		SET last_sent_at = $1
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, sentAt, contactID)
	if err != nil {
		return fmt.Errorf("failed to mark contact messaged: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("contact with ID %d not found", contactID))
	}

	return nil
}

func scanContacts(rows *sql.Rows) ([]*models.Contact, error) {
	contacts := []*models.Contact{}
	for rows.Next() {
		contact := &models.Contact{}
		err := rows.Scan(
			&contact.ID,
			&contact.UserID,
			&contact.Name,
			&contact.FirstName,
			&contact.Phone,
			&contact.LastSentAt,
			&contact.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}
