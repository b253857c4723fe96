package types

import (
	"github.com/go-playground/validator/v10"
)

// Sink payload bounds enforced before any network call.
const (
	MaxTitleLength       = 500
	MaxDescriptionLength = 1000
	MaxMarkdownLength    = 200000
	MaxTags              = 30
	MaxTagLength         = 50
)

// WeblinkPayload is the create-record body sent to the sink API.
// Optional fields are omitted entirely when absent, never sent empty.
type WeblinkPayload struct {
	SpaceID     string   `json:"spaceId" validate:"required"`
	URL         string   `json:"url" validate:"required,max=2000"`
	Title       string   `json:"titleOverwrite,omitempty" validate:"max=500"`
	Description string   `json:"descriptionOverwrite,omitempty" validate:"max=1000"`
	Tags        []string `json:"tags,omitempty" validate:"max=30,dive,max=50"`
	Markdown    string   `json:"mdText,omitempty" validate:"max=200000"`
}

// WeblinkResult is the created-record response from the sink API.
type WeblinkResult struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

var payloadValidator = validator.New()

// Validate checks the payload against the sink API's documented bounds.
func (p *WeblinkPayload) Validate() error {
	return payloadValidator.Struct(p)
}
