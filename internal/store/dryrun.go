package store

import (
	"context"
	"sync"

	"github.com/amishk599/jobagg/internal/model"
)

// DryRunStore is an in-memory posting inserter used by check runs. Nothing is
// persisted; duplicates are only detected within the current process.
type DryRunStore struct {
	mu   sync.Mutex
	seen map[string]model.Posting
}

func NewDryRunStore() *DryRunStore { return &DryRunStore{seen: make(map[string]model.Posting)} }

func (s *DryRunStore) Insert(_ context.Context, p model.Posting) (model.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[p.Fingerprint]; ok {
		return model.Duplicate, nil
	}
	s.seen[p.Fingerprint] = p
	return model.Inserted, nil
}

// Postings returns every posting kept so far.
func (s *DryRunStore) Postings() []model.Posting {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Posting, 0, len(s.seen))
	for _, p := range s.seen {
		out = append(out, p)
	}
	return out
}
