package models

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentStatus is the processing/review status of a case document.
type DocumentStatus string

const (
	DocumentStatusProcessing     DocumentStatus = "PROCESSING"
	DocumentStatusReadyForReview DocumentStatus = "READY"
	DocumentStatusCompleted      DocumentStatus = "COMPLETED"
	DocumentStatusError          DocumentStatus = "ERROR"
	DocumentStatusUnprocessed    DocumentStatus = "UNPROCESSED"
)

// TableCell is one cell of a styled table rendering, with offsets local
// to the table's own plain-text block.
type TableCell struct {
	Text       string     `json:"text"`
	Background string     `json:"background,omitempty"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Runs       []StyledRun `json:"runs,omitempty"`
}

// StyledRun carries per-run character formatting inside a table cell.
type StyledRun struct {
	Text   string `json:"text"`
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
	Color  string `json:"color,omitempty"`
}

// DocumentTable is the stored metadata for one extracted table: the
// offset range its plain-text form occupies in the document text, plus
// the styled rendering used for display.
type DocumentTable struct {
	Index      int           `json:"index"`
	NERStart   int           `json:"ner_start"`
	NEREnd     int           `json:"ner_end"`
	Borderless bool          `json:"borderless,omitempty"`
	Rows       [][]TableCell `json:"rows"`
	HTML       string        `json:"html,omitempty"`
}

// StructureElement marks a heading, paragraph or table region of the
// extracted text by character offsets.
type StructureElement struct {
	Type  string `json:"type"` // "heading", "paragraph", "table"
	Level int    `json:"level,omitempty"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Document is a single uploaded file within a Case.
type Document struct {
	ID     string `json:"id" db:"id"`
	CaseID string `json:"case_id" db:"case_id"`

	// OriginalFile is the file-store path of the unmodified upload.
	OriginalFile string `json:"original_file" db:"original_file"`

	// Filename and FileType are derived once from the upload at
	// creation and never change on subsequent saves.
	Filename string `json:"filename" db:"filename"`
	FileType string `json:"file_type" db:"file_type"`

	Status        DocumentStatus `json:"status" db:"status"`
	ExtractedText *string        `json:"extracted_text,omitempty" db:"extracted_text"`

	Tables    []DocumentTable    `json:"extracted_tables,omitempty" db:"extracted_tables"`
	Structure []StructureElement `json:"extracted_structure,omitempty" db:"extracted_structure"`

	// ModelID references the detector model version used to process
	// this document, if any.
	ModelID *string `json:"model_id,omitempty" db:"model_id"`

	// ProcessingTaskKey is the queue key of the suggestion-pipeline
	// task, kept so queued-but-not-started work can be cancelled.
	ProcessingTaskKey *string `json:"-" db:"processing_task_key"`

	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// DeriveFileMeta returns the filename and upper-cased extension type
// for an uploaded file name, e.g. ("report.docx") -> ("report.docx", "DOCX").
func DeriveFileMeta(uploadName string) (filename, fileType string) {
	filename = filepath.Base(uploadName)
	if ext := filepath.Ext(filename); ext != "" {
		fileType = strings.ToUpper(strings.TrimPrefix(ext, "."))
	}
	return filename, fileType
}

// Text returns the extracted text or "" when extraction has not run.
func (d *Document) Text() string {
	if d.ExtractedText == nil {
		return ""
	}
	return *d.ExtractedText
}
