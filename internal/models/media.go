package models

import "fmt"

// Media kind constants
const (
	MediaKindImage    = "image"
	MediaKindVideo    = "video"
	MediaKindAudio    = "audio"
	MediaKindDocument = "document"
)

// MediaAttachment is an opaque media reference forwarded verbatim to the
// gateway. The engine never interprets the content behind the URI.
type MediaAttachment struct {
	URI  string `json:"uri"`
	Kind string `json:"kind"`
}

// Validate performs validation on a media reference
func (m *MediaAttachment) Validate() error {
	if m.URI == "" {
		return ErrInvalidInput("media uri is required")
	}
	if !IsValidMediaKind(m.Kind) {
		return ErrInvalidInput(fmt.Sprintf("invalid media kind: %s (must be image, video, audio or document)", m.Kind))
	}
	return nil
}

// IsValidMediaKind checks if the media kind is valid
func IsValidMediaKind(kind string) bool {
	switch kind {
	case MediaKindImage, MediaKindVideo, MediaKindAudio, MediaKindDocument:
		return true
	default:
		return false
	}
}
