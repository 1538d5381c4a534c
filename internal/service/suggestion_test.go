package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackline/internal/detect"
	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/extract"
	"blackline/internal/filestore"
)

type fakeModelRepo struct {
	models []*models.Model
}

func (f *fakeModelRepo) Create(_ context.Context, m *models.Model) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now()
	f.models = append(f.models, m)
	return nil
}
func (f *fakeModelRepo) GetByID(_ context.Context, id string) (*models.Model, error) {
	for _, m := range f.models {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, &domain.NotFoundError{Message: "model not found"}
}
func (f *fakeModelRepo) GetByName(_ context.Context, name string) (*models.Model, error) {
	for _, m := range f.models {
		if m.Name == name {
			cp := *m
			return &cp, nil
		}
	}
	return nil, &domain.NotFoundError{Message: "model not found"}
}
func (f *fakeModelRepo) GetActive(_ context.Context) (*models.Model, error) {
	for _, m := range f.models {
		if m.IsActive {
			cp := *m
			return &cp, nil
		}
	}
	return nil, &domain.NotFoundError{Message: "no active model"}
}
func (f *fakeModelRepo) List(_ context.Context) ([]models.Model, error) {
	var out []models.Model
	for _, m := range f.models {
		out = append(out, *m)
	}
	return out, nil
}
func (f *fakeModelRepo) SetActive(_ context.Context, id string) error {
	found := false
	for _, m := range f.models {
		if m.ID == id {
			found = true
		}
	}
	if !found {
		return domain.ErrNotFound
	}
	for _, m := range f.models {
		m.IsActive = m.ID == id
	}
	return nil
}
func (f *fakeModelRepo) Delete(_ context.Context, id string) error {
	for i, m := range f.models {
		if m.ID == id {
			f.models = append(f.models[:i], f.models[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

type suggestionFixture struct {
	svc       *SuggestionService
	docs      *fakeDocs
	reds      *fakeReds
	store     *filestore.LocalStore
	modelRepo *fakeModelRepo
}

func setupSuggestion(t *testing.T) *suggestionFixture {
	t.Helper()
	docs := newFakeDocs()
	reds := newFakeReds()
	store, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	modelRepo := &fakeModelRepo{}
	registry := detect.NewRegistry(modelRepo, testLogger())
	detector := detect.NewDetector(detect.DefaultConfig(), testLogger())
	extractor := extract.NewExtractor(testLogger())

	svc := NewSuggestionService(docs, reds, extractor, detector, registry, store, fakeTx{}, testLogger())
	return &suggestionFixture{svc: svc, docs: docs, reds: reds, store: store, modelRepo: modelRepo}
}

// activateEmptyModel registers an untrained model as active so the
// pipeline runs with only the rule-based recognizers contributing.
func (fx *suggestionFixture) activateEmptyModel(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, detect.NewSpanModel([]string{detect.LabelThirdParty, detect.LabelOperational}).Save(path))
	m := &models.Model{Name: "empty", Path: path, IsActive: true}
	require.NoError(t, fx.modelRepo.Create(context.Background(), m))
}

func (fx *suggestionFixture) storeText(t *testing.T, content string) string {
	t.Helper()
	rel, err := fx.store.Save(strings.NewReader(content), "documents", "note.txt")
	require.NoError(t, err)
	return rel
}

func (fx *suggestionFixture) seedProcessing(t *testing.T, rel string) string {
	t.Helper()
	d := &models.Document{CaseID: "c1", OriginalFile: rel, Filename: "note.txt",
		FileType: "TXT", Status: models.DocumentStatusProcessing}
	require.NoError(t, fx.docs.Create(context.Background(), d))
	return d.ID
}

func TestProcessHappyPath(t *testing.T) {
	fx := setupSuggestion(t)
	fx.activateEmptyModel(t)

	rel := fx.storeText(t, "Please email jane.doe@example.org about the review.")
	docID := fx.seedProcessing(t, rel)

	require.NoError(t, fx.svc.Process(context.Background(), docID))

	doc, err := fx.docs.GetByID(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusReadyForReview, doc.Status)
	require.NotNil(t, doc.ExtractedText)
	assert.NotNil(t, doc.ModelID)
	assert.Nil(t, doc.ProcessingTaskKey)

	suggestions := fx.reds.byDocument(docID)
	require.Len(t, suggestions, 1)
	s := suggestions[0]
	assert.Equal(t, "jane.doe@example.org", s.Text)
	assert.Equal(t, models.RedactionTypeThirdPartyPII, s.Type)
	assert.True(t, s.IsSuggestion)
	assert.False(t, s.IsAccepted)
	assert.Equal(t, s.Text, (*doc.ExtractedText)[s.StartChar:s.EndChar])
}

func TestProcessEmptyDocumentParksInError(t *testing.T) {
	fx := setupSuggestion(t)
	fx.activateEmptyModel(t)

	rel := fx.storeText(t, "   \n\n   ")
	docID := fx.seedProcessing(t, rel)

	require.NoError(t, fx.svc.Process(context.Background(), docID),
		"an unreadable document is not a task failure")

	doc, err := fx.docs.GetByID(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusError, doc.Status)
}

func TestProcessNoActiveModel(t *testing.T) {
	fx := setupSuggestion(t)

	rel := fx.storeText(t, "Some perfectly readable text.")
	docID := fx.seedProcessing(t, rel)

	err := fx.svc.Process(context.Background(), docID)
	assert.ErrorIs(t, err, domain.ErrNoActiveModel)

	doc, gerr := fx.docs.GetByID(context.Background(), docID)
	require.NoError(t, gerr)
	assert.Equal(t, models.DocumentStatusError, doc.Status)
}

func TestProcessMissingDocumentIsNoOp(t *testing.T) {
	fx := setupSuggestion(t)
	assert.NoError(t, fx.svc.Process(context.Background(), "gone"))
}

func TestProcessSkipsCancelledDocument(t *testing.T) {
	fx := setupSuggestion(t)
	fx.activateEmptyModel(t)

	rel := fx.storeText(t, "text")
	d := &models.Document{CaseID: "c1", OriginalFile: rel, Filename: "note.txt",
		Status: models.DocumentStatusUnprocessed}
	require.NoError(t, fx.docs.Create(context.Background(), d))

	require.NoError(t, fx.svc.Process(context.Background(), d.ID))

	doc, err := fx.docs.GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusUnprocessed, doc.Status, "cancelled work stays cancelled")
	assert.Empty(t, fx.reds.byDocument(d.ID))
}

func TestProcessIdempotentAfterCompletion(t *testing.T) {
	fx := setupSuggestion(t)
	fx.activateEmptyModel(t)

	rel := fx.storeText(t, "Please email jane.doe@example.org today.")
	docID := fx.seedProcessing(t, rel)

	require.NoError(t, fx.svc.Process(context.Background(), docID))
	require.NoError(t, fx.svc.Process(context.Background(), docID),
		"a duplicate task delivery is skipped, not reprocessed")

	assert.Len(t, fx.reds.byDocument(docID), 1)
}
