package service

import (
	"regexp"

	"github.com/blastline/campaign-dispatch/internal/models"
)

// TemplateService renders personalization tokens into message text
type TemplateService interface {
	Render(template string, contact *models.Contact) string
}

type templateService struct {
	tokenPattern *regexp.Regexp
}

// NewTemplateService creates a new template service
func NewTemplateService() TemplateService {
	return &templateService{
		tokenPattern: regexp.MustCompile(`\{[a-z_]+\}`),
	}
}

// Render substitutes {name}, {first_name} and {phone} with the contact's
// fields. Unrecognized tokens are left untouched: the result is opaque text
// handed to the gateway, not a validation surface.
func (s *templateService) Render(template string, contact *models.Contact) string {
	if contact == nil {
		return template
	}

	return s.tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		switch match {
		case "{name}":
			return contact.Name
		case "{first_name}":
			return contact.FirstName
		case "{phone}":
			return contact.Phone
		default:
			return match
		}
	})
}
