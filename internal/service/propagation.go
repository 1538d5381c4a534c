package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
)

// PropagationService spreads a data-subject redaction across the other
// reviewable documents of the same case, so a term marked once is
// flagged everywhere it appears.
type PropagationService struct {
	redactionRepo repositories.RedactionRepository
	docRepo       repositories.DocumentRepository
	txManager     repositories.TransactionManager
	logger        *slog.Logger
}

// NewPropagationService creates a new propagation service.
func NewPropagationService(
	redactionRepo repositories.RedactionRepository,
	docRepo repositories.DocumentRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *PropagationService {
	return &PropagationService{
		redactionRepo: redactionRepo,
		docRepo:       docRepo,
		txManager:     txManager,
		logger:        logger,
	}
}

// Propagate is the redaction.propagate task handler body. The source
// redaction having been deleted in the meantime is a no-op, not an
// error.
func (s *PropagationService) Propagate(ctx context.Context, redactionID string) error {
	red, err := s.redactionRepo.GetByID(ctx, redactionID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("redaction gone before propagation ran", "redaction", redactionID)
		return nil
	}
	if err != nil {
		return err
	}
	if red.Type != models.RedactionTypeDataSubjectInfo {
		return nil
	}
	term := strings.TrimSpace(red.Text)
	if term == "" {
		return nil
	}

	source, err := s.docRepo.GetByID(ctx, red.DocumentID)
	if err != nil {
		return err
	}

	pattern, err := termPattern(term)
	if err != nil {
		return fmt.Errorf("build pattern for %q: %w", term, err)
	}

	siblings, err := s.docRepo.ListSiblings(ctx, source.CaseID, source.ID, []models.DocumentStatus{
		models.DocumentStatusReadyForReview,
		models.DocumentStatusCompleted,
	})
	if err != nil {
		return err
	}

	for i := range siblings {
		if err := s.propagateToDocument(ctx, &siblings[i], pattern); err != nil {
			return fmt.Errorf("propagate %q to document %s: %w", term, siblings[i].ID, err)
		}
	}
	return nil
}

// termPattern builds a whole-word, case-insensitive alternation over
// the term and its number variants, longest first so plural forms win
// over the stems they contain.
func termPattern(term string) (*regexp.Regexp, error) {
	seen := map[string]bool{}
	var variants []string
	for _, v := range []string{term, inflection.Plural(term), inflection.Singular(term)} {
		v = strings.TrimSpace(v)
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		variants = append(variants, v)
	}
	sort.Slice(variants, func(i, j int) bool {
		if len(variants[i]) != len(variants[j]) {
			return len(variants[i]) > len(variants[j])
		}
		return variants[i] < variants[j]
	})
	for i, v := range variants {
		variants[i] = regexp.QuoteMeta(v)
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(variants, "|") + `)\b`)
}

// propagateToDocument marks every match in one document, inside a
// single transaction. A completed document that gains or changes a
// redaction drops back to READY so the reviewer sees the new work.
func (s *PropagationService) propagateToDocument(ctx context.Context, doc *models.Document, pattern *regexp.Regexp) error {
	text := doc.Text()
	if text == "" {
		return nil
	}
	matches := pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	return s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		changed := false
		for _, m := range matches {
			start, end := m[0], m[1]
			existing, err := s.redactionRepo.FindByRange(txCtx, doc.ID, start, end)
			if err != nil {
				return err
			}
			switch {
			case len(existing) > 1:
				return fmt.Errorf("document %s has %d redactions at [%d,%d), expected at most one",
					doc.ID, len(existing), start, end)

			case len(existing) == 1:
				r := existing[0]
				if r.Type == models.RedactionTypeDataSubjectInfo {
					continue
				}
				// Re-author the span as a fresh data-subject
				// suggestion for the reviewer to confirm.
				r.Type = models.RedactionTypeDataSubjectInfo
				r.IsSuggestion = true
				r.IsAccepted = false
				r.Justification = nil
				if err := s.redactionRepo.Update(txCtx, &r); err != nil {
					return err
				}
				changed = true

			default:
				red := &models.Redaction{
					DocumentID:   doc.ID,
					StartChar:    start,
					EndChar:      end,
					Text:         text[start:end],
					Type:         models.RedactionTypeDataSubjectInfo,
					IsSuggestion: true,
				}
				if err := s.redactionRepo.Create(txCtx, red); err != nil {
					return err
				}
				changed = true
			}
		}

		if changed && doc.Status == models.DocumentStatusCompleted {
			doc.Status = models.DocumentStatusReadyForReview
			if err := s.docRepo.Update(txCtx, doc); err != nil {
				return err
			}
			s.logger.Info("completed document reopened by propagation", "document", doc.ID)
		}
		return nil
	})
}
