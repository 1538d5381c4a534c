package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/filestore"
	"blackline/internal/tasks"
)

func setupDocument(t *testing.T) (*DocumentService, *fakeCases, *fakeDocs, *fakeReds, *fakeQueue) {
	t.Helper()
	cases := newFakeCases()
	docs := newFakeDocs()
	reds := newFakeReds()
	queue := newFakeQueue()
	store, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	svc := NewDocumentService(docs, cases, reds, store, queue, fakeTx{}, testLogger())
	return svc, cases, docs, reds, queue
}

func seedCase(t *testing.T, cases *fakeCases) string {
	t.Helper()
	c := &models.Case{CaseReference: "SAR-1", DataSubjectName: "A"}
	require.NoError(t, cases.Create(context.Background(), c))
	return c.ID
}

func TestUploadSchedulesProcessing(t *testing.T) {
	svc, cases, _, _, queue := setupDocument(t)
	caseID := seedCase(t, cases)

	doc, err := svc.Upload(context.Background(), caseID, "Letter.docx", strings.NewReader("bytes"))
	require.NoError(t, err)

	assert.Equal(t, "Letter.docx", doc.Filename)
	assert.Equal(t, "DOCX", doc.FileType)
	assert.Equal(t, models.DocumentStatusProcessing, doc.Status)
	assert.NotNil(t, doc.ProcessingTaskKey)
	assert.Equal(t, []string{tasks.OpDocumentProcess}, queue.enqueuedOps())
}

func TestUploadUnknownCase(t *testing.T) {
	svc, _, _, _, _ := setupDocument(t)
	_, err := svc.Upload(context.Background(), "missing", "a.docx", strings.NewReader("b"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFilenameImmutableAcrossUpdates(t *testing.T) {
	svc, cases, docs, _, _ := setupDocument(t)
	caseID := seedCase(t, cases)

	doc, err := svc.Upload(context.Background(), caseID, "original.docx", strings.NewReader("b"))
	require.NoError(t, err)

	// A later save attempt with different name fields does not stick.
	doc.Filename = "sneaky.pdf"
	doc.FileType = "PDF"
	require.NoError(t, docs.Update(context.Background(), doc))

	stored, err := svc.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "original.docx", stored.Filename)
	assert.Equal(t, "DOCX", stored.FileType)
}

func TestResubmitDiscardsPriorResults(t *testing.T) {
	svc, cases, docs, reds, queue := setupDocument(t)
	caseID := seedCase(t, cases)

	text := "old text"
	modelID := "m1"
	d := &models.Document{CaseID: caseID, Filename: "a.docx",
		Status: models.DocumentStatusError, ExtractedText: &text, ModelID: &modelID}
	require.NoError(t, docs.Create(context.Background(), d))
	require.NoError(t, reds.Create(context.Background(), &models.Redaction{
		DocumentID: d.ID, StartChar: 0, EndChar: 3, Text: "old",
		Type: models.RedactionTypeThirdPartyPII,
	}))

	doc, err := svc.Resubmit(context.Background(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, models.DocumentStatusProcessing, doc.Status)
	assert.Nil(t, doc.ExtractedText)
	assert.Nil(t, doc.ModelID)
	assert.Empty(t, reds.byDocument(d.ID), "stale offsets are discarded, not migrated")
	assert.Equal(t, []string{tasks.OpDocumentProcess}, queue.enqueuedOps())
}

func TestResubmitRefusedWhileProcessing(t *testing.T) {
	svc, cases, docs, _, _ := setupDocument(t)
	caseID := seedCase(t, cases)

	d := &models.Document{CaseID: caseID, Filename: "a.docx", Status: models.DocumentStatusProcessing}
	require.NoError(t, docs.Create(context.Background(), d))

	_, err := svc.Resubmit(context.Background(), d.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCancelProcessing(t *testing.T) {
	svc, cases, docs, reds, queue := setupDocument(t)
	caseID := seedCase(t, cases)

	key := "task-key"
	text := "partial"
	d := &models.Document{CaseID: caseID, Filename: "a.docx",
		Status: models.DocumentStatusProcessing, ProcessingTaskKey: &key, ExtractedText: &text}
	require.NoError(t, docs.Create(context.Background(), d))
	require.NoError(t, reds.Create(context.Background(), &models.Redaction{
		DocumentID: d.ID, StartChar: 0, EndChar: 2, Text: "pa",
		Type: models.RedactionTypeThirdPartyPII,
	}))

	doc, err := svc.CancelProcessing(context.Background(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, models.DocumentStatusUnprocessed, doc.Status)
	assert.Nil(t, doc.ExtractedText)
	assert.Nil(t, doc.ProcessingTaskKey)
	assert.Empty(t, reds.byDocument(d.ID))
	assert.Equal(t, []string{key}, queue.cancelled)
}

func TestCancelOnlyFromProcessing(t *testing.T) {
	svc, cases, docs, _, _ := setupDocument(t)
	caseID := seedCase(t, cases)

	d := &models.Document{CaseID: caseID, Filename: "a.docx", Status: models.DocumentStatusReadyForReview}
	require.NoError(t, docs.Create(context.Background(), d))

	_, err := svc.CancelProcessing(context.Background(), d.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestReviewStatusTransitions(t *testing.T) {
	svc, cases, docs, _, _ := setupDocument(t)
	caseID := seedCase(t, cases)

	d := &models.Document{CaseID: caseID, Filename: "a.docx", Status: models.DocumentStatusReadyForReview}
	require.NoError(t, docs.Create(context.Background(), d))

	doc, err := svc.SetStatus(context.Background(), d.ID, models.DocumentStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusCompleted, doc.Status)

	doc, err = svc.SetStatus(context.Background(), d.ID, models.DocumentStatusReadyForReview)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusReadyForReview, doc.Status)

	_, err = svc.SetStatus(context.Background(), d.ID, models.DocumentStatusProcessing)
	assert.ErrorIs(t, err, domain.ErrConflict, "pipeline statuses are not reviewer-settable")
}
