package models

import "time"

// TrainingSource selects where a training run draws its examples from.
type TrainingSource string

const (
	TrainingSourceDocs       TrainingSource = "training_docs"
	TrainingSourceRedactions TrainingSource = "redactions"
	TrainingSourceBoth       TrainingSource = "both"
)

// Valid reports whether s is a recognised training source.
func (s TrainingSource) Valid() bool {
	switch s {
	case TrainingSourceDocs, TrainingSourceRedactions, TrainingSourceBoth:
		return true
	}
	return false
}

// TrainingDocument is a manually curated, colour-highlighted document
// used as a ground-truth source for model training.
type TrainingDocument struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	OriginalFile string    `json:"original_file" db:"original_file"`

	// ExtractedText is the frozen text as it was read during the run
	// that consumed this document, persisted for reproducibility.
	ExtractedText string `json:"extracted_text" db:"extracted_text"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	CreatedBy *string   `json:"created_by,omitempty" db:"created_by"`

	// Processed is true once the document has contributed to a
	// completed training run. Deleting that run resets it.
	Processed bool `json:"processed" db:"processed"`
}

// TrainingRun records a single training invocation: the model it
// produced, the source selection, and which documents contributed.
type TrainingRun struct {
	ID        string         `json:"id" db:"id"`
	ModelID   string         `json:"model_id" db:"model_id"`
	Source    TrainingSource `json:"source" db:"source"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`

	// Provenance joins, populated on reads that request them.
	TrainingDocumentIDs []string `json:"training_document_ids,omitempty"`
	CaseDocumentIDs     []string `json:"case_document_ids,omitempty"`
}
