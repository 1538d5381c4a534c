package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
	"blackline/internal/export"
	"blackline/internal/filestore"
)

// Highlight colours for the redacted rendering, one per redaction
// type.
var redactionColors = map[models.RedactionType][3]float64{
	models.RedactionTypeThirdPartyPII:   {1.0, 0.75, 0.75},
	models.RedactionTypeOperationalData: {0.75, 0.85, 1.0},
	models.RedactionTypeDataSubjectInfo: {0.78, 0.92, 0.78},
}

// ExportService generates disclosure packages.
type ExportService struct {
	caseRepo      repositories.CaseRepository
	docRepo       repositories.DocumentRepository
	redactionRepo repositories.RedactionRepository
	store         *filestore.LocalStore
	logger        *slog.Logger
}

// NewExportService creates a new export service.
func NewExportService(
	caseRepo repositories.CaseRepository,
	docRepo repositories.DocumentRepository,
	redactionRepo repositories.RedactionRepository,
	store *filestore.LocalStore,
	logger *slog.Logger,
) *ExportService {
	return &ExportService{
		caseRepo:      caseRepo,
		docRepo:       docRepo,
		redactionRepo: redactionRepo,
		store:         store,
		logger:        logger,
	}
}

// Export is the case.export task handler body: it renders every
// reviewed document, composes the archive and updates the case's
// export state. Any failure marks the export ERROR.
func (s *ExportService) Export(ctx context.Context, caseID string) error {
	c, err := s.caseRepo.GetByID(ctx, caseID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("case gone before export ran", "case", caseID)
		return nil
	}
	if err != nil {
		return err
	}

	rel, err := s.buildPackage(ctx, c)
	if err != nil {
		s.logger.Error("export failed", "case", caseID, "error", err)
		c.ExportStatus = models.ExportStatusError
		c.ExportTaskKey = nil
		if updErr := s.caseRepo.Update(ctx, c); updErr != nil {
			s.logger.Error("could not record export failure", "case", caseID, "error", updErr)
		}
		return err
	}

	c.ExportStatus = models.ExportStatusCompleted
	c.ExportFile = &rel
	c.ExportTaskKey = nil
	if err := s.caseRepo.Update(ctx, c); err != nil {
		return err
	}

	s.logger.Info("export completed", "case", caseID, "file", rel)
	return nil
}

func (s *ExportService) buildPackage(ctx context.Context, c *models.Case) (string, error) {
	docs, err := s.docRepo.ListByCase(ctx, c.ID)
	if err != nil {
		return "", err
	}

	var entries []export.Entry
	defer func() {
		for _, e := range entries {
			if closer, ok := e.Original.(io.Closer); ok {
				closer.Close()
			}
		}
	}()
	for i := range docs {
		doc := &docs[i]
		if doc.Text() == "" {
			s.logger.Warn("document has no text, leaving it out of the package",
				"case", c.ID, "document", doc.ID)
			continue
		}

		entry, err := s.buildEntry(ctx, doc)
		if err != nil {
			return "", fmt.Errorf("document %s: %w", doc.Filename, err)
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("case %s has no renderable documents", c.CaseReference)
	}

	var buf bytes.Buffer
	if err := export.WriteArchive(&buf, entries); err != nil {
		return "", err
	}
	return s.store.Save(&buf, "exports", export.ArchiveName(c.CaseReference))
}

func (s *ExportService) buildEntry(ctx context.Context, doc *models.Document) (export.Entry, error) {
	accepted, err := s.redactionRepo.ListAccepted(ctx, doc.ID)
	if err != nil {
		return export.Entry{}, err
	}
	text := doc.Text()

	viewText, highlights := redactedView(text, accepted)
	redactedPDF, err := export.RenderPDF(viewText, highlights)
	if err != nil {
		return export.Entry{}, fmt.Errorf("render redacted view: %w", err)
	}
	if err := export.ValidatePDF(redactedPDF); err != nil {
		return export.Entry{}, err
	}

	disclosurePDF, err := export.RenderPDF(ApplyRedactions(text, accepted), nil)
	if err != nil {
		return export.Entry{}, fmt.Errorf("render disclosure view: %w", err)
	}
	if err := export.ValidatePDF(disclosurePDF); err != nil {
		return export.Entry{}, err
	}

	entry := export.Entry{
		Filename:      doc.Filename,
		RedactedPDF:   redactedPDF,
		DisclosurePDF: disclosurePDF,
	}
	if f, err := s.store.Open(doc.OriginalFile); err == nil {
		// The file handle stays open until the archive is written;
		// WriteArchive drains each reader exactly once.
		entry.Original = f
	} else {
		s.logger.Warn("original file missing, package will omit it",
			"document", doc.ID, "error", err)
	}
	return entry, nil
}

// redactedView produces the reviewer-facing rendering: the full text
// with every accepted span highlighted in its type colour, and any
// attached context appended inline after the span as a bracketed
// annotation. Highlight offsets are shifted to account for the
// insertions. Overlapping or out-of-range redactions are skipped.
func redactedView(text string, accepted []models.Redaction) (string, []export.Highlight) {
	sorted := make([]models.Redaction, len(accepted))
	copy(sorted, accepted)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartChar < sorted[j].StartChar })

	var sb strings.Builder
	var highlights []export.Highlight
	pos := 0
	for _, r := range sorted {
		if r.StartChar < pos || r.EndChar > len(text) || r.StartChar >= r.EndChar {
			continue
		}
		sb.WriteString(text[pos:r.StartChar])
		highlights = append(highlights, export.Highlight{
			Start: sb.Len(),
			End:   sb.Len() + (r.EndChar - r.StartChar),
			Color: redactionColors[r.Type],
		})
		sb.WriteString(text[r.StartChar:r.EndChar])
		if r.Context != nil && r.Context.Text != "" {
			sb.WriteString(" [" + r.Context.Text + "]")
		}
		pos = r.EndChar
	}
	sb.WriteString(text[pos:])
	return sb.String(), highlights
}

// ApplyRedactions produces the disclosure text: each accepted redaction
// is replaced by its bracketed context when one exists, otherwise by
// block characters matching the hidden text's length. Substitution runs
// from the highest offset down so earlier offsets stay valid while
// later ones are rewritten.
func ApplyRedactions(text string, accepted []models.Redaction) string {
	sorted := make([]models.Redaction, len(accepted))
	copy(sorted, accepted)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartChar > sorted[j].StartChar })

	for _, r := range sorted {
		if r.StartChar < 0 || r.EndChar > len(text) || r.StartChar >= r.EndChar {
			continue
		}
		var replacement string
		if r.Context != nil && r.Context.Text != "" {
			replacement = "[" + r.Context.Text + "]"
		} else {
			replacement = strings.Repeat("█", len([]rune(text[r.StartChar:r.EndChar])))
		}
		text = text[:r.StartChar] + replacement + text[r.EndChar:]
	}
	return text
}
