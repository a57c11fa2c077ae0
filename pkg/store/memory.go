package store

import (
	"context"
	"slices"
	"sync"

	"github.com/matzehuels/nacplan/pkg/errors"
	"github.com/matzehuels/nacplan/pkg/plan"
)

// MemoryStore keeps plans in memory. Plans are stored as encoded copies so
// callers cannot mutate stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	plans map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{plans: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*plan.Plan, error) {
	if err := errors.ValidatePlanID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.plans[id]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return plan.Unmarshal(data)
}

func (s *MemoryStore) Save(ctx context.Context, p *plan.Plan) error {
	if err := checkPlan(p); err != nil {
		return err
	}
	data, err := plan.Marshal(p)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "encode plan %s", p.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = data
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := errors.ValidatePlanID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return notFound(id)
	}
	delete(s.plans, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]plan.Summary, error) {
	s.mu.RLock()
	out := make([]plan.Summary, 0, len(s.plans))
	for _, data := range s.plans {
		p, err := plan.Unmarshal(data)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		out = append(out, p.Summarize())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, newestFirst)
	if len(out) > opts.limit() {
		out = out[:opts.limit()]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
