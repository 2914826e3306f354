package history

import (
	"context"
	"sync"
	"time"

	"github.com/KirkDiggler/pcg-director/internal/errors"
)

type playerHistory struct {
	records   []*Record
	expiresAt time.Time
}

// InMemoryRepository implements Repository without Redis. Expiry follows the
// same rule as the Redis key TTL.
type InMemoryRepository struct {
	mu    sync.RWMutex
	opts  Options
	store map[string]*playerHistory
}

// NewInMemory creates a new in-memory repository
func NewInMemory(opts Options) (*InMemoryRepository, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}

	return &InMemoryRepository{
		opts:  opts,
		store: make(map[string]*playerHistory),
	}, nil
}

var _ Repository = (*InMemoryRepository)(nil)

// Append stores a record
func (r *InMemoryRepository) Append(_ context.Context, input *AppendInput) (*AppendOutput, error) {
	if err := validateAppend(input); err != nil {
		return nil, err
	}

	record := r.opts.newRecord(input)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Clock.Now()
	h, ok := r.store[input.PlayerID]
	if !ok || !now.Before(h.expiresAt) {
		h = &playerHistory{}
		r.store[input.PlayerID] = h
	}

	h.records = append([]*Record{record}, h.records...)
	if len(h.records) > r.opts.MaxEntries {
		h.records = h.records[:r.opts.MaxEntries]
	}
	h.expiresAt = now.Add(r.opts.TTL)

	return &AppendOutput{Record: copyRecord(record)}, nil
}

// List returns a player's records, newest first
func (r *InMemoryRepository) List(_ context.Context, input *ListInput) (*ListOutput, error) {
	if err := validateList(input); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.store[input.PlayerID]
	if !ok || !r.opts.Clock.Now().Before(h.expiresAt) {
		return &ListOutput{Records: []*Record{}}, nil
	}

	limit := r.opts.limit(input.Limit)
	if limit > len(h.records) {
		limit = len(h.records)
	}

	records := make([]*Record, limit)
	for i := range records {
		records[i] = copyRecord(h.records[i])
	}
	return &ListOutput{Records: records}, nil
}

func copyRecord(record *Record) *Record {
	clone := *record
	if record.State != nil {
		state := *record.State
		clone.State = &state
	}
	return &clone
}
