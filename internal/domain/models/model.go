package models

import "time"

// Model is one trained detector version. At most one model is active
// at any time; activation is an explicit transactional operation, not
// a side effect of saving.
type Model struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Path      string    `json:"path" db:"path"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Evaluation metrics from the best checkpoint; nil until evaluated.
	Precision *float64 `json:"precision,omitempty" db:"precision"`
	Recall    *float64 `json:"recall,omitempty" db:"recall"`
	F1Score   *float64 `json:"f1_score,omitempty" db:"f1_score"`
}
