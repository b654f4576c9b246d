package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// SubmissionStore implements domain.SubmissionStore in memory.
type SubmissionStore struct {
	mu          sync.RWMutex
	nextID      uint64
	submissions map[uint64]domain.Submission
}

// NewSubmissionStore creates an empty SubmissionStore.
func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{submissions: make(map[uint64]domain.Submission)}
}

func (s *SubmissionStore) Create(_ context.Context, sub domain.Submission) (domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub.ID = s.nextID
	s.nextID++
	sub.Conditions = append([]string(nil), sub.Conditions...)
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	s.submissions[sub.ID] = sub
	return copySubmission(sub), nil
}

func (s *SubmissionStore) GetByID(_ context.Context, id uint64) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return domain.Submission{}, domain.ErrNotFound
	}
	return copySubmission(sub), nil
}

func (s *SubmissionStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		out = append(out, copySubmission(sub))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts), nil
}

func (s *SubmissionStore) MarkRevealed(_ context.Context, id uint64, at time.Time) (domain.Submission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[id]
	if !ok {
		return domain.Submission{}, false, domain.ErrNotFound
	}
	if sub.Revealed {
		return copySubmission(sub), false, nil
	}
	sub.Revealed = true
	sub.RevealedAt = &at
	s.submissions[id] = sub
	return copySubmission(sub), true, nil
}

func copySubmission(sub domain.Submission) domain.Submission {
	sub.Conditions = append([]string(nil), sub.Conditions...)
	if sub.RevealedAt != nil {
		t := *sub.RevealedAt
		sub.RevealedAt = &t
	}
	return sub
}

var _ domain.SubmissionStore = (*SubmissionStore)(nil)
