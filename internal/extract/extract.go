package extract

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"blackline/internal/domain"
	"blackline/internal/domain/models"
)

// Result is the output of extracting one source document: a single
// linear text buffer plus structural metadata whose character offsets
// refer exactly to that buffer.
type Result struct {
	Text      string
	Tables    []models.DocumentTable
	Structure []models.StructureElement
}

// Extractor converts source documents into offset-tracked text.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates a new extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract reads the file at path and produces its text and structure.
// Returns domain.ErrNoText when the assembled text is empty or
// whitespace-only.
func (e *Extractor) Extract(path string) (*Result, error) {
	var (
		res *Result
		err error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		res, err = e.extractDocx(path)
	case ".pdf":
		res, err = e.extractPDF(path)
	default:
		res, err = e.extractPlainText(path)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(res.Text) == "" {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), domain.ErrNoText)
	}

	e.logger.Debug("document extracted",
		"path", path,
		"chars", len(res.Text),
		"tables", len(res.Tables),
		"structure", len(res.Structure),
	)

	return res, nil
}

func (e *Extractor) extractPlainText(path string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	text := collapseNewlines(strings.ReplaceAll(string(raw), "\r\n", "\n"))
	return &Result{Text: text}, nil
}
