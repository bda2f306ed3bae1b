package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blastline/campaign-dispatch/internal/models"
)

// recordingContactRepo tracks which lookup the selector dispatched to
type recordingContactRepo struct {
	called string
	ids    []int64
}

func (r *recordingContactRepo) List(ctx context.Context, userID int64) ([]*models.Contact, error) {
	r.called = "List"
	return []*models.Contact{{ID: 1, UserID: userID}}, nil
}

func (r *recordingContactRepo) ListNeverMessaged(ctx context.Context, userID int64) ([]*models.Contact, error) {
	r.called = "ListNeverMessaged"
	return nil, nil
}

func (r *recordingContactRepo) GetByIDs(ctx context.Context, userID int64, ids []int64) ([]*models.Contact, error) {
	r.called = "GetByIDs"
	r.ids = ids
	return nil, nil
}

func (r *recordingContactRepo) MarkMessaged(ctx context.Context, contactID int64, sentAt time.Time) error {
	return nil
}

func TestContactSelector_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		ids        []int64
		wantCalled string
	}{
		{name: "all mode lists every contact", mode: models.SelectionAll, wantCalled: "List"},
		{name: "pending mode lists never messaged", mode: models.SelectionPending, wantCalled: "ListNeverMessaged"},
		{name: "selected mode fetches by id", mode: models.SelectionSelected, ids: []int64{3, 1, 2}, wantCalled: "GetByIDs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &recordingContactRepo{}
			selector := NewContactSelector(repo)

			_, err := selector.Resolve(context.Background(), 1, tt.mode, tt.ids)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if repo.called != tt.wantCalled {
				t.Errorf("dispatched to %s, want %s", repo.called, tt.wantCalled)
			}
			if tt.mode == models.SelectionSelected && len(repo.ids) != len(tt.ids) {
				t.Errorf("forwarded %d ids, want %d", len(repo.ids), len(tt.ids))
			}
		})
	}
}

func TestContactSelector_InvalidMode(t *testing.T) {
	selector := NewContactSelector(&recordingContactRepo{})

	_, err := selector.Resolve(context.Background(), 1, "everyone", nil)
	if err == nil {
		t.Fatal("Resolve() expected error for invalid mode")
	}
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != "INVALID_INPUT" {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}

func TestContactSelector_EmptyResultIsValid(t *testing.T) {
	selector := NewContactSelector(&recordingContactRepo{})

	contacts, err := selector.Resolve(context.Background(), 1, models.SelectionPending, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(contacts) != 0 {
		t.Errorf("contacts = %d, want 0", len(contacts))
	}
}
