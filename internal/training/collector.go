package training

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"blackline/internal/detect"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
	"blackline/internal/extract"
	"blackline/internal/filestore"
)

// Collected is the assembled training corpus together with the
// provenance of every example.
type Collected struct {
	Examples            []detect.Example
	TrainingDocumentIDs []string
	CaseDocumentIDs     []string

	// FrozenTexts holds, per consumed training document, the text that
	// was read from it, persisted so the run stays reproducible even
	// if the file changes later.
	FrozenTexts map[string]string
}

// Collector gathers annotated examples from the two ground-truth
// sources: colour-highlighted training documents and accepted
// redactions on completed case documents.
type Collector struct {
	trainingDocs repositories.TrainingDocumentRepository
	documents    repositories.DocumentRepository
	redactions   repositories.RedactionRepository
	store        *filestore.LocalStore
	cfg          detect.Config
	logger       *slog.Logger
}

// NewCollector creates a collector.
func NewCollector(
	trainingDocs repositories.TrainingDocumentRepository,
	documents repositories.DocumentRepository,
	redactions repositories.RedactionRepository,
	store *filestore.LocalStore,
	cfg detect.Config,
	logger *slog.Logger,
) *Collector {
	return &Collector{
		trainingDocs: trainingDocs,
		documents:    documents,
		redactions:   redactions,
		store:        store,
		cfg:          cfg,
		logger:       logger,
	}
}

// Collect assembles the corpus for the given source selection.
func (c *Collector) Collect(ctx context.Context, source models.TrainingSource) (*Collected, error) {
	out := &Collected{FrozenTexts: make(map[string]string)}

	if source == models.TrainingSourceDocs || source == models.TrainingSourceBoth {
		if err := c.collectFromTrainingDocs(ctx, out); err != nil {
			return nil, err
		}
	}
	if source == models.TrainingSourceRedactions || source == models.TrainingSourceBoth {
		if err := c.collectFromRedactions(ctx, out); err != nil {
			return nil, err
		}
	}

	c.logger.Info("training corpus collected",
		"source", source,
		"examples", len(out.Examples),
		"training_documents", len(out.TrainingDocumentIDs),
		"case_documents", len(out.CaseDocumentIDs),
	)
	return out, nil
}

// collectFromTrainingDocs turns each unprocessed highlighted document
// into one example over its full frozen text. Span offsets are shifted
// from paragraph-local to document-level positions. Documents without
// a single usable highlight are skipped.
func (c *Collector) collectFromTrainingDocs(ctx context.Context, out *Collected) error {
	docs, err := c.trainingDocs.List(ctx)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if doc.Processed {
			continue
		}
		paras, err := extract.DocxHighlights(c.store.Path(doc.OriginalFile))
		if err != nil {
			c.logger.Warn("skipping unreadable training document",
				"training_document", doc.ID, "error", err)
			continue
		}

		var spans []detect.Span
		var frozen strings.Builder
		for _, para := range paras {
			if frozen.Len() > 0 {
				frozen.WriteByte('\n')
			}
			base := frozen.Len()
			frozen.WriteString(para.Text)

			for _, sp := range c.paragraphSpans(para) {
				sp.Start += base
				sp.End += base
				spans = append(spans, sp)
			}
		}
		if len(spans) == 0 {
			continue
		}
		out.Examples = append(out.Examples, detect.Example{Text: frozen.String(), Spans: spans})
		out.TrainingDocumentIDs = append(out.TrainingDocumentIDs, doc.ID)
		out.FrozenTexts[doc.ID] = frozen.String()
	}
	return nil
}

// paragraphSpans converts a paragraph's highlight runs into labelled
// spans. Touching runs of the same colour merge into one annotation;
// highlights never extend across paragraphs. Whitespace at the edges
// is trimmed off the annotation, and spans left empty by trimming are
// dropped.
func (c *Collector) paragraphSpans(para extract.HighlightParagraph) []detect.Span {
	var merged []extract.HighlightRun
	for _, run := range para.Runs {
		if n := len(merged); n > 0 && merged[n-1].End == run.Start && merged[n-1].Color == run.Color {
			merged[n-1].End = run.End
			merged[n-1].Text = para.Text[merged[n-1].Start:run.End]
			continue
		}
		merged = append(merged, run)
	}

	var spans []detect.Span
	for _, run := range merged {
		label, ok := c.cfg.HighlightLabels[run.Color]
		if !ok {
			continue
		}
		start, end := trimSpan(para.Text, run.Start, run.End)
		if start >= end {
			continue
		}
		spans = append(spans, detect.Span{
			Text:  para.Text[start:end],
			Label: label,
			Start: start,
			End:   end,
		})
	}
	return spans
}

// trimSpan shrinks [start, end) past leading and trailing whitespace.
func trimSpan(text string, start, end int) (int, int) {
	trimmed := strings.TrimLeft(text[start:end], " \t\n\r")
	start = end - len(trimmed)
	trimmed = strings.TrimRight(trimmed, " \t\n\r")
	return start, start + len(trimmed)
}

// collectFromRedactions turns each completed case document with
// accepted redactions into one example over its full extracted text.
// Data-subject redactions are case housekeeping, not detection
// targets, so they carry no label and are skipped.
func (c *Collector) collectFromRedactions(ctx context.Context, out *Collected) error {
	docs, err := c.documents.ListByStatus(ctx, models.DocumentStatusCompleted)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		text := doc.Text()
		if text == "" {
			continue
		}
		accepted, err := c.redactions.ListAccepted(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("list accepted redactions for %s: %w", doc.ID, err)
		}

		var spans []detect.Span
		for _, r := range accepted {
			label, ok := detect.EntityLabelForType(r.Type)
			if !ok {
				continue
			}
			if r.StartChar < 0 || r.EndChar > len(text) || r.StartChar >= r.EndChar {
				c.logger.Warn("redaction offsets outside document text, skipping",
					"redaction", r.ID, "document", doc.ID)
				continue
			}
			spans = append(spans, detect.Span{
				Text:  text[r.StartChar:r.EndChar],
				Label: label,
				Start: r.StartChar,
				End:   r.EndChar,
			})
		}
		if len(spans) == 0 {
			continue
		}
		out.Examples = append(out.Examples, detect.Example{Text: text, Spans: spans})
		out.CaseDocumentIDs = append(out.CaseDocumentIDs, doc.ID)
	}
	return nil
}
