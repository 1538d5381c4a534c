package training

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackline/internal/detect"
	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
	"blackline/internal/filestore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// In-memory repository fakes.

type fakeTrainingDocs struct {
	docs map[string]*models.TrainingDocument
}

func (f *fakeTrainingDocs) Create(_ context.Context, d *models.TrainingDocument) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	f.docs[d.ID] = d
	return nil
}

func (f *fakeTrainingDocs) GetByID(_ context.Context, id string) (*models.TrainingDocument, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeTrainingDocs) List(_ context.Context) ([]models.TrainingDocument, error) {
	var out []models.TrainingDocument
	for _, d := range f.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeTrainingDocs) Update(_ context.Context, d *models.TrainingDocument) error {
	cp := *d
	f.docs[d.ID] = &cp
	return nil
}

func (f *fakeTrainingDocs) Delete(_ context.Context, id string) error {
	delete(f.docs, id)
	return nil
}

type fakeDocuments struct {
	docs []models.Document
}

func (f *fakeDocuments) Create(_ context.Context, d *models.Document) error {
	f.docs = append(f.docs, *d)
	return nil
}
func (f *fakeDocuments) GetByID(_ context.Context, id string) (*models.Document, error) {
	for i := range f.docs {
		if f.docs[i].ID == id {
			cp := f.docs[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (f *fakeDocuments) ListByCase(_ context.Context, caseID string) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f.docs {
		if d.CaseID == caseID {
			out = append(out, d)
		}
	}
	return out, nil
}
func (f *fakeDocuments) ListSiblings(_ context.Context, caseID, excludeID string, statuses []models.DocumentStatus) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f.docs {
		if d.CaseID != caseID || d.ID == excludeID {
			continue
		}
		for _, s := range statuses {
			if d.Status == s {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}
func (f *fakeDocuments) ListByStatus(_ context.Context, status models.DocumentStatus) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f.docs {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}
func (f *fakeDocuments) Update(_ context.Context, d *models.Document) error {
	for i := range f.docs {
		if f.docs[i].ID == d.ID {
			f.docs[i] = *d
			return nil
		}
	}
	return domain.ErrNotFound
}
func (f *fakeDocuments) Delete(_ context.Context, id string) error { return nil }

type fakeRedactions struct {
	byDoc map[string][]models.Redaction
}

func (f *fakeRedactions) Create(_ context.Context, r *models.Redaction) error  { return nil }
func (f *fakeRedactions) GetByID(_ context.Context, id string) (*models.Redaction, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeRedactions) ListByDocument(_ context.Context, documentID string) ([]models.Redaction, error) {
	return f.byDoc[documentID], nil
}
func (f *fakeRedactions) ListAccepted(_ context.Context, documentID string) ([]models.Redaction, error) {
	var out []models.Redaction
	for _, r := range f.byDoc[documentID] {
		if r.IsAccepted {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeRedactions) FindByRange(_ context.Context, documentID string, startChar, endChar int) ([]models.Redaction, error) {
	return nil, nil
}
func (f *fakeRedactions) Update(_ context.Context, r *models.Redaction) error { return nil }
func (f *fakeRedactions) Delete(_ context.Context, id string) error           { return nil }
func (f *fakeRedactions) DeleteByDocument(_ context.Context, documentID string) error {
	return nil
}
func (f *fakeRedactions) UpsertContext(_ context.Context, rc *models.RedactionContext) (bool, error) {
	return true, nil
}
func (f *fakeRedactions) DeleteContext(_ context.Context, redactionID string) error { return nil }

type fakeModels struct {
	models []*models.Model
}

func (f *fakeModels) Create(_ context.Context, m *models.Model) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now()
	f.models = append(f.models, m)
	return nil
}
func (f *fakeModels) GetByID(_ context.Context, id string) (*models.Model, error) {
	for _, m := range f.models {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (f *fakeModels) GetByName(_ context.Context, name string) (*models.Model, error) {
	for _, m := range f.models {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (f *fakeModels) GetActive(_ context.Context) (*models.Model, error) {
	for _, m := range f.models {
		if m.IsActive {
			return m, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (f *fakeModels) List(_ context.Context) ([]models.Model, error) { return nil, nil }
func (f *fakeModels) SetActive(_ context.Context, id string) error {
	for _, m := range f.models {
		m.IsActive = m.ID == id
	}
	return nil
}
func (f *fakeModels) Delete(_ context.Context, id string) error { return nil }

type fakeRuns struct {
	runs []*models.TrainingRun
}

func (f *fakeRuns) Create(_ context.Context, run *models.TrainingRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	f.runs = append(f.runs, run)
	return nil
}
func (f *fakeRuns) GetByID(_ context.Context, id string) (*models.TrainingRun, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeRuns) List(_ context.Context) ([]models.TrainingRun, error) { return nil, nil }
func (f *fakeRuns) ResetProcessedByModel(_ context.Context, modelID string) error {
	return nil
}

type fakeTx struct{}

func (fakeTx) ExecTx(ctx context.Context, fn repositories.TxFn) error { return fn(ctx) }

// writeHighlightDocx builds a DOCX whose body is the given markup and
// stores it in the file store, returning the relative path.
func writeHighlightDocx(t *testing.T, store *filestore.LocalStore, body string) string {
	t.Helper()

	dir := t.TempDir()
	src := filepath.Join(dir, "train.docx")
	f, err := os.Create(src)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	in, err := os.Open(src)
	require.NoError(t, err)
	defer in.Close()
	rel, err := store.Save(in, "training", "train.docx")
	require.NoError(t, err)
	return rel
}

func highlightedPara(pieces ...[2]string) string {
	body := "<w:p>"
	for _, p := range pieces {
		text, color := p[0], p[1]
		if color == "" {
			body += `<w:r><w:t xml:space="preserve">` + text + `</w:t></w:r>`
		} else {
			body += `<w:r><w:rPr><w:highlight w:val="` + color + `"/></w:rPr>` +
				`<w:t xml:space="preserve">` + text + `</w:t></w:r>`
		}
	}
	return body + "</w:p>"
}

func newCollector(t *testing.T, tdocs *fakeTrainingDocs, docs *fakeDocuments, reds *fakeRedactions) (*Collector, *filestore.LocalStore) {
	t.Helper()
	store, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewCollector(tdocs, docs, reds, store, detect.DefaultConfig(), testLogger()), store
}

func TestCollectorMergesAdjacentHighlights(t *testing.T) {
	tdocs := &fakeTrainingDocs{docs: map[string]*models.TrainingDocument{}}
	docs := &fakeDocuments{}
	reds := &fakeRedactions{byDoc: map[string][]models.Redaction{}}
	collector, store := newCollector(t, tdocs, docs, reds)

	body := highlightedPara(
		[2]string{"Contact ", ""},
		[2]string{"Jane ", "green"},
		[2]string{"Doe", "green"},
		[2]string{" for details.", ""},
	)
	rel := writeHighlightDocx(t, store, body)
	require.NoError(t, tdocs.Create(context.Background(), &models.TrainingDocument{
		Name: "train.docx", OriginalFile: rel,
	}))

	got, err := collector.Collect(context.Background(), models.TrainingSourceDocs)
	require.NoError(t, err)

	require.Len(t, got.Examples, 1)
	require.Len(t, got.Examples[0].Spans, 1)
	span := got.Examples[0].Spans[0]
	assert.Equal(t, "Jane Doe", span.Text, "touching same-colour runs merge and edges trim")
	assert.Equal(t, detect.LabelThirdParty, span.Label)
	assert.Equal(t, span.Text, got.Examples[0].Text[span.Start:span.End])
}

func TestCollectorOneExamplePerDocument(t *testing.T) {
	tdocs := &fakeTrainingDocs{docs: map[string]*models.TrainingDocument{}}
	docs := &fakeDocuments{}
	reds := &fakeRedactions{byDoc: map[string][]models.Redaction{}}
	collector, store := newCollector(t, tdocs, docs, reds)

	body := highlightedPara(
		[2]string{"Speak to ", ""},
		[2]string{"Jane Doe", "green"},
		[2]string{" first.", ""},
	) + highlightedPara(
		[2]string{"Then ", ""},
		[2]string{"John Roe", "green"},
		[2]string{" confirms.", ""},
	) + highlightedPara(
		[2]string{"Escalate to ", ""},
		[2]string{"Anna Lee", "green"},
		[2]string{".", ""},
	)
	rel := writeHighlightDocx(t, store, body)
	require.NoError(t, tdocs.Create(context.Background(), &models.TrainingDocument{
		Name: "multi.docx", OriginalFile: rel,
	}))

	got, err := collector.Collect(context.Background(), models.TrainingSourceDocs)
	require.NoError(t, err)

	require.Len(t, got.Examples, 1, "highlighted paragraphs fold into one example per document")
	ex := got.Examples[0]
	assert.Equal(t, "Speak to Jane Doe first.\nThen John Roe confirms.\nEscalate to Anna Lee.", ex.Text)
	require.Len(t, ex.Spans, 3)
	for _, sp := range ex.Spans {
		assert.Equal(t, sp.Text, ex.Text[sp.Start:sp.End], "span offsets are document-level")
	}
	assert.Equal(t, "Jane Doe", ex.Spans[0].Text)
	assert.Equal(t, "John Roe", ex.Spans[1].Text)
	assert.Equal(t, "Anna Lee", ex.Spans[2].Text)
	assert.Equal(t, ex.Text, got.FrozenTexts[got.TrainingDocumentIDs[0]])
}

func TestCollectorDropsWhitespaceOnlyHighlights(t *testing.T) {
	tdocs := &fakeTrainingDocs{docs: map[string]*models.TrainingDocument{}}
	docs := &fakeDocuments{}
	reds := &fakeRedactions{byDoc: map[string][]models.Redaction{}}
	collector, store := newCollector(t, tdocs, docs, reds)

	body := highlightedPara(
		[2]string{"Before", ""},
		[2]string{"   ", "green"},
		[2]string{"after", ""},
	)
	rel := writeHighlightDocx(t, store, body)
	require.NoError(t, tdocs.Create(context.Background(), &models.TrainingDocument{
		Name: "t.docx", OriginalFile: rel,
	}))

	got, err := collector.Collect(context.Background(), models.TrainingSourceDocs)
	require.NoError(t, err)
	assert.Empty(t, got.Examples)
	assert.Empty(t, got.TrainingDocumentIDs)
}

func TestCollectorSkipsProcessedDocuments(t *testing.T) {
	tdocs := &fakeTrainingDocs{docs: map[string]*models.TrainingDocument{}}
	docs := &fakeDocuments{}
	reds := &fakeRedactions{byDoc: map[string][]models.Redaction{}}
	collector, store := newCollector(t, tdocs, docs, reds)

	rel := writeHighlightDocx(t, store, highlightedPara([2]string{"Jane Doe", "green"}))
	require.NoError(t, tdocs.Create(context.Background(), &models.TrainingDocument{
		Name: "t.docx", OriginalFile: rel, Processed: true,
	}))

	got, err := collector.Collect(context.Background(), models.TrainingSourceDocs)
	require.NoError(t, err)
	assert.Empty(t, got.Examples)
}

func TestCollectorFromAcceptedRedactions(t *testing.T) {
	tdocs := &fakeTrainingDocs{docs: map[string]*models.TrainingDocument{}}
	text := "Invoice raised by Acme Ltd on behalf of the council."
	docs := &fakeDocuments{docs: []models.Document{
		{ID: "d1", Status: models.DocumentStatusCompleted, ExtractedText: &text},
	}}
	reds := &fakeRedactions{byDoc: map[string][]models.Redaction{
		"d1": {
			{ID: "r1", DocumentID: "d1", StartChar: 18, EndChar: 26, Text: "Acme Ltd",
				Type: models.RedactionTypeThirdPartyPII, IsAccepted: true},
			{ID: "r2", DocumentID: "d1", StartChar: 0, EndChar: 7, Text: "Invoice",
				Type: models.RedactionTypeDataSubjectInfo, IsAccepted: true},
			{ID: "r3", DocumentID: "d1", StartChar: 44, EndChar: 51, Text: "council",
				Type: models.RedactionTypeThirdPartyPII, IsAccepted: false},
		},
	}}
	collector, _ := newCollector(t, tdocs, docs, reds)

	got, err := collector.Collect(context.Background(), models.TrainingSourceRedactions)
	require.NoError(t, err)

	require.Len(t, got.Examples, 1)
	require.Len(t, got.Examples[0].Spans, 1, "DS_INFO and unaccepted redactions are excluded")
	assert.Equal(t, "Acme Ltd", got.Examples[0].Spans[0].Text)
	assert.Equal(t, detect.LabelThirdParty, got.Examples[0].Spans[0].Label)
	assert.Equal(t, []string{"d1"}, got.CaseDocumentIDs)
}

func newTrainer(t *testing.T, collector *Collector, modelRepo *fakeModels, runs *fakeRuns, tdocs *fakeTrainingDocs) *Trainer {
	t.Helper()
	return NewTrainer(collector, modelRepo, runs, tdocs, fakeTx{}, t.TempDir(), testLogger())
}

func TestTrainInsufficientData(t *testing.T) {
	tdocs := &fakeTrainingDocs{docs: map[string]*models.TrainingDocument{}}
	docs := &fakeDocuments{}
	reds := &fakeRedactions{byDoc: map[string][]models.Redaction{}}
	collector, _ := newCollector(t, tdocs, docs, reds)
	modelRepo := &fakeModels{}
	runs := &fakeRuns{}
	trainer := newTrainer(t, collector, modelRepo, runs, tdocs)

	_, err := trainer.Train(context.Background(), models.TrainingSourceBoth)

	assert.ErrorIs(t, err, domain.ErrInsufficientData)
	assert.Empty(t, modelRepo.models, "nothing registered on abort")
	assert.Empty(t, runs.runs)
}

func TestTrainRegistersModelAndProvenance(t *testing.T) {
	tdocs := &fakeTrainingDocs{docs: map[string]*models.TrainingDocument{}}
	docs := &fakeDocuments{}
	reds := &fakeRedactions{byDoc: map[string][]models.Redaction{}}
	collector, store := newCollector(t, tdocs, docs, reds)

	// Thirty documents, each contributing one example with one
	// highlighted name.
	names := []string{"Jane Doe", "John Roe", "Anna Lee", "Omar Khan", "Mary Qualls", "Ivan Petrov"}
	for i := 0; i < 30; i++ {
		body := highlightedPara(
			[2]string{"Contact ", ""},
			[2]string{names[i%len(names)], "green"},
			[2]string{" about the claim.", ""},
		)
		rel := writeHighlightDocx(t, store, body)
		require.NoError(t, tdocs.Create(context.Background(), &models.TrainingDocument{
			Name: fmt.Sprintf("corpus_%02d.docx", i), OriginalFile: rel,
		}))
	}

	modelRepo := &fakeModels{}
	runs := &fakeRuns{}
	trainer := newTrainer(t, collector, modelRepo, runs, tdocs)

	rec, err := trainer.Train(context.Background(), models.TrainingSourceDocs)
	require.NoError(t, err)

	assert.False(t, rec.IsActive, "a new model is registered inactive")
	assert.FileExists(t, rec.Path)
	require.NotNil(t, rec.F1Score)

	loaded, err := detect.LoadSpanModel(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, []string{detect.LabelThirdParty, detect.LabelOperational}, loaded.Labels)

	require.Len(t, runs.runs, 1)
	assert.Equal(t, rec.ID, runs.runs[0].ModelID)
	assert.NotEmpty(t, runs.runs[0].TrainingDocumentIDs)

	for _, d := range tdocs.docs {
		assert.True(t, d.Processed, "consumed documents are marked processed")
		assert.NotEmpty(t, d.ExtractedText, "text is frozen at consumption time")
	}
}
