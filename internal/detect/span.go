package detect

import "blackline/internal/domain/models"

// Entity labels produced by the trained span model.
const (
	LabelThirdParty  = "THIRD_PARTY"
	LabelOperational = "OPERATIONAL"
)

// Span is a labelled half-open [Start, End) character range of a text.
type Span struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Entity is a detection result, tagged with the stage that produced it.
type Entity struct {
	Span
	Source string // "model" or "base"
}

// Example is one annotated text used for training and evaluation.
type Example struct {
	Text  string `json:"text"`
	Spans []Span `json:"spans"`
}

// RedactionTypeForLabel maps an entity label to the redaction type a
// suggestion of that label should carry.
func RedactionTypeForLabel(label string) models.RedactionType {
	switch label {
	case LabelOperational:
		return models.RedactionTypeOperationalData
	default:
		return models.RedactionTypeThirdPartyPII
	}
}

// EntityLabelForType is the inverse mapping, used when accepted
// redactions are turned back into training annotations.
func EntityLabelForType(t models.RedactionType) (string, bool) {
	switch t {
	case models.RedactionTypeThirdPartyPII:
		return LabelThirdParty, true
	case models.RedactionTypeOperationalData:
		return LabelOperational, true
	default:
		return "", false
	}
}

func (s Span) overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}
