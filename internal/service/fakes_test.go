package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quejas/complaint-service/internal/domain"
	"github.com/quejas/complaint-service/internal/repository"
	"github.com/quejas/complaint-service/internal/worker"
)

// fakeComplaintRepo mimics the complaints table, including the unique tracking code.
type fakeComplaintRepo struct {
	mu      sync.Mutex
	nextID  int64
	base    time.Time
	byCode  map[string]*domain.Complaint
	failErr error
}

func newFakeComplaintRepo() *fakeComplaintRepo {
	return &fakeComplaintRepo{
		base:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		byCode: make(map[string]*domain.Complaint),
	}
}

func (r *fakeComplaintRepo) Create(_ context.Context, c *domain.Complaint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	if _, exists := r.byCode[c.TrackingCode]; exists {
		return repository.ErrDuplicateKey
	}
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = r.base.Add(time.Duration(r.nextID) * time.Second)
	stored := *c
	r.byCode[c.TrackingCode] = &stored
	return nil
}

func (r *fakeComplaintRepo) GetByTrackingCode(_ context.Context, code string) (*domain.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	c, ok := r.byCode[code]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (r *fakeComplaintRepo) ListAll(_ context.Context) ([]domain.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	result := make([]domain.Complaint, 0, len(r.byCode))
	for _, c := range r.byCode {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (r *fakeComplaintRepo) UpdateStatus(_ context.Context, code, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	c, ok := r.byCode[code]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Status = status
	return nil
}

// fakeCredentialRepo enforces username uniqueness like the credentials table.
type fakeCredentialRepo struct {
	mu         sync.Mutex
	byUsername map[string]domain.Credential
	creates    int
	lookupErr  error
	// afterLookup runs between a failed lookup and the caller's insert, to simulate a race.
	afterLookup func()
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{byUsername: make(map[string]domain.Credential)}
}

func (r *fakeCredentialRepo) Create(_ context.Context, c *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byUsername[c.Username]; exists {
		return repository.ErrDuplicateKey
	}
	r.creates++
	c.ID = int64(r.creates)
	c.CreatedAt = time.Now()
	r.byUsername[c.Username] = *c
	return nil
}

func (r *fakeCredentialRepo) GetByUsername(_ context.Context, username string) (*domain.Credential, error) {
	r.mu.Lock()
	if r.lookupErr != nil {
		r.mu.Unlock()
		return nil, r.lookupErr
	}
	c, ok := r.byUsername[username]
	hook := r.afterLookup
	r.mu.Unlock()
	if !ok {
		if hook != nil {
			hook()
		}
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (r *fakeCredentialRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUsername)
}

// fakeQueue records enqueued entries; full makes every Enqueue fail.
type fakeQueue struct {
	mu      sync.Mutex
	entries []worker.Entry
	full    bool
}

func (q *fakeQueue) Enqueue(entry worker.Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.entries = append(q.entries, entry)
	return true
}

// stalledStream only returns once the append context ends.
type stalledStream struct{}

func (stalledStream) Append(ctx context.Context, _ map[string]any) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// fakeStream records appended entries.
type fakeStream struct {
	mu      sync.Mutex
	entries []map[string]any
}

func (s *fakeStream) Append(_ context.Context, values map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, values)
	return "1-0", nil
}
