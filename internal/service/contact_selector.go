package service

import (
	"context"
	"fmt"

	"github.com/blastline/campaign-dispatch/internal/models"
	"github.com/blastline/campaign-dispatch/internal/repository"
)

// ContactSelector resolves the ordered target contact set for a campaign
type ContactSelector interface {
	Resolve(ctx context.Context, userID int64, mode string, contactIDs []int64) ([]*models.Contact, error)
}

type contactSelector struct {
	contactRepo repository.ContactRepository
}

// NewContactSelector creates a new contact selector
func NewContactSelector(contactRepo repository.ContactRepository) ContactSelector {
	return &contactSelector{contactRepo: contactRepo}
}

// Resolve returns the contacts targeted by the selection mode, in a stable
// order. Mode 'all' and 'pending' use creation order; mode 'selected'
// preserves the caller-supplied id order and silently drops ids that are
// unknown or owned by someone else. An empty result is valid.
func (s *contactSelector) Resolve(ctx context.Context, userID int64, mode string, contactIDs []int64) ([]*models.Contact, error) {
	switch mode {
	case models.SelectionAll:
		contacts, err := s.contactRepo.List(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve contacts: %w", err)
		}
		return contacts, nil

	case models.SelectionPending:
		contacts, err := s.contactRepo.ListNeverMessaged(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve pending contacts: %w", err)
		}
		return contacts, nil

	case models.SelectionSelected:
		contacts, err := s.contactRepo.GetByIDs(ctx, userID, contactIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve selected contacts: %w", err)
		}
		return contacts, nil

	default:
		return nil, models.ErrInvalidInput(fmt.Sprintf("invalid selection mode: %s", mode))
	}
}
