package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// In-memory fakes shared by the service tests.

type fakeCases struct {
	mu    sync.Mutex
	cases map[string]*models.Case
}

func newFakeCases() *fakeCases { return &fakeCases{cases: map[string]*models.Case{}} }

func (f *fakeCases) Create(_ context.Context, c *models.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.cases {
		if existing.CaseReference == c.CaseReference {
			return &domain.ConflictError{Message: "case reference already exists"}
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now()
	cp := *c
	f.cases[c.ID] = &cp
	return nil
}

func (f *fakeCases) GetByID(_ context.Context, id string) (*models.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: "case not found"}
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCases) List(_ context.Context) ([]models.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Case
	for _, c := range f.cases {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCases) Update(_ context.Context, c *models.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.cases[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *c
	// Retention review date is never rewritten.
	cp.RetentionReviewDate = stored.RetentionReviewDate
	f.cases[c.ID] = &cp
	return nil
}

func (f *fakeCases) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cases, id)
	return nil
}

func (f *fakeCases) ListPastRetention(_ context.Context, day time.Time) ([]models.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Case
	for _, c := range f.cases {
		if c.RetentionReviewDate.Before(day) {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeDocs struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newFakeDocs() *fakeDocs { return &fakeDocs{docs: map[string]*models.Document{}} }

func (f *fakeDocs) Create(_ context.Context, d *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.UploadedAt = time.Now()
	cp := *d
	f.docs[d.ID] = &cp
	return nil
}

func (f *fakeDocs) GetByID(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: "document not found"}
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocs) ListByCase(_ context.Context, caseID string) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Document
	for _, d := range f.docs {
		if d.CaseID == caseID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDocs) ListSiblings(_ context.Context, caseID, excludeID string, statuses []models.DocumentStatus) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Document
	for _, d := range f.docs {
		if d.CaseID != caseID || d.ID == excludeID {
			continue
		}
		for _, s := range statuses {
			if d.Status == s {
				out = append(out, *d)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeDocs) ListByStatus(_ context.Context, status models.DocumentStatus) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Document
	for _, d := range f.docs {
		if d.Status == status {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDocs) Update(_ context.Context, d *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.docs[d.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *d
	// Filename and file type are write-once.
	cp.Filename = stored.Filename
	cp.FileType = stored.FileType
	f.docs[d.ID] = &cp
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}

type fakeReds struct {
	mu   sync.Mutex
	reds map[string]*models.Redaction
}

func newFakeReds() *fakeReds { return &fakeReds{reds: map[string]*models.Redaction{}} }

func (f *fakeReds) Create(_ context.Context, r *models.Redaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now()
	cp := *r
	f.reds[r.ID] = &cp
	return nil
}

func (f *fakeReds) GetByID(_ context.Context, id string) (*models.Redaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reds[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: "redaction not found"}
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReds) ListByDocument(_ context.Context, documentID string) ([]models.Redaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Redaction
	for _, r := range f.reds {
		if r.DocumentID == documentID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReds) ListAccepted(_ context.Context, documentID string) ([]models.Redaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Redaction
	for _, r := range f.reds {
		if r.DocumentID == documentID && r.IsAccepted {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReds) FindByRange(_ context.Context, documentID string, startChar, endChar int) ([]models.Redaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Redaction
	for _, r := range f.reds {
		if r.DocumentID == documentID && r.StartChar == startChar && r.EndChar == endChar {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReds) Update(_ context.Context, r *models.Redaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reds[r.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *r
	f.reds[r.ID] = &cp
	return nil
}

func (f *fakeReds) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reds, id)
	return nil
}

func (f *fakeReds) DeleteByDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.reds {
		if r.DocumentID == documentID {
			delete(f.reds, id)
		}
	}
	return nil
}

func (f *fakeReds) UpsertContext(_ context.Context, rc *models.RedactionContext) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reds[rc.RedactionID]
	if !ok {
		return false, domain.ErrNotFound
	}
	created := r.Context == nil
	r.Context = &models.RedactionContext{RedactionID: rc.RedactionID, Text: rc.Text}
	return created, nil
}

func (f *fakeReds) DeleteContext(_ context.Context, redactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.reds[redactionID]; ok {
		r.Context = nil
	}
	return nil
}

func (f *fakeReds) byDocument(documentID string) []models.Redaction {
	out, _ := f.ListByDocument(context.Background(), documentID)
	return out
}

type fakeTx struct{}

func (fakeTx) ExecTx(ctx context.Context, fn repositories.TxFn) error { return fn(ctx) }

// fakeQueue records enqueues without executing anything.
type fakeQueue struct {
	mu       sync.Mutex
	enqueued []struct {
		Op   string
		Args []string
	}
	cancelled []string
	active    map[string]int
}

func newFakeQueue() *fakeQueue { return &fakeQueue{active: map[string]int{}} }

func (q *fakeQueue) Enqueue(op string, args ...string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, struct {
		Op   string
		Args []string
	}{op, args})
	return uuid.NewString(), nil
}

func (q *fakeQueue) Cancel(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled = append(q.cancelled, key)
	return true
}

func (q *fakeQueue) CountActive(op string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active[op]
}

func (q *fakeQueue) enqueuedOps() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.enqueued))
	for i, e := range q.enqueued {
		out[i] = e.Op
	}
	return out
}
