package detect

import "log/slog"

// Detector runs the hybrid pipeline: the trained span model first, then
// the rule-based recognizers for anything the model did not cover.
type Detector struct {
	cfg    Config
	logger *slog.Logger
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg Config, logger *slog.Logger) *Detector {
	return &Detector{cfg: cfg, logger: logger}
}

// Detect returns the entities found in text. Model predictions are
// authoritative: a rule-based match that intersects any model span, even
// partially, is discarded so the same stretch of text never yields two
// suggestions. Model entities come first in the result, then the
// surviving rule matches.
func (d *Detector) Detect(model *SpanModel, text string) []Entity {
	if d.cfg.Threshold > 0 && d.cfg.Threshold != model.Threshold {
		// The model may be shared across requests; apply the override
		// on a copy.
		scoped := *model
		scoped.Threshold = d.cfg.Threshold
		model = &scoped
	}
	modelSpans := model.Predict(text)

	var entities []Entity
	for _, s := range modelSpans {
		entities = append(entities, Entity{Span: s, Source: "model"})
	}

	dropped := 0
	for _, s := range runBase(text, d.cfg.allowedBase()) {
		clash := false
		for _, m := range modelSpans {
			if s.overlaps(m) {
				clash = true
				break
			}
		}
		if clash {
			dropped++
			continue
		}
		entities = append(entities, Entity{Span: s, Source: "base"})
	}

	d.logger.Debug("detection complete",
		"model_spans", len(modelSpans),
		"base_spans", len(entities)-len(modelSpans),
		"base_dropped", dropped,
	)

	return entities
}
