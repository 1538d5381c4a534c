package models

import "time"

// RedactionType classifies why a span is being withheld.
type RedactionType string

const (
	RedactionTypeOperationalData RedactionType = "OP_DATA"
	RedactionTypeThirdPartyPII   RedactionType = "PII"
	RedactionTypeDataSubjectInfo RedactionType = "DS_INFO"
)

// Redaction marks one half-open character range [StartChar, EndChar)
// of a document's extracted text. Offsets are valid only against the
// text as it stood at creation time; a resubmission discards all prior
// redactions rather than migrating positions.
type Redaction struct {
	ID         string `json:"id" db:"id"`
	DocumentID string `json:"document_id" db:"document_id"`

	StartChar int    `json:"start_char" db:"start_char"`
	EndChar   int    `json:"end_char" db:"end_char"`
	Text      string `json:"text" db:"text"`

	Type          RedactionType `json:"redaction_type" db:"redaction_type"`
	Justification *string       `json:"justification,omitempty" db:"justification"`

	// IsSuggestion is true for AI-authored redactions, false for
	// reviewer-authored ones.
	IsSuggestion bool `json:"is_suggestion" db:"is_suggestion"`
	IsAccepted   bool `json:"is_accepted" db:"is_accepted"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Context is the optional one-to-one disclosure annotation,
	// populated on reads that join it.
	Context *RedactionContext `json:"context,omitempty"`
}

// RedactionContext holds reviewer-provided free text shown in the
// disclosure rendering in place of a plain black box.
type RedactionContext struct {
	RedactionID string `json:"redaction_id" db:"redaction_id"`
	Text        string `json:"text" db:"text"`
}
