package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mvidal/flight-emissions-back/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// CalculationBatch is one bounded persistence transaction. The batch
// processor inserts successful rows into it, commits every N successes and
// rolls back the uncommitted work of a failing row before continuing.
type CalculationBatch interface {
	Insert(ctx context.Context, calculation *domain.Calculation) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context)
}

// CalculationsRepository abstracts durable storage for computed results.
type CalculationsRepository interface {
	BeginBatch(ctx context.Context) (CalculationBatch, error)
	GetCalculation(ctx context.Context, id int64) (*domain.Calculation, error)
}

// AirportsRepository resolves a 3-letter code to an internal identifier.
// Lookups are best-effort; a missing airport never blocks persistence.
type AirportsRepository interface {
	LookupID(ctx context.Context, code string) (int64, error)
}

// MemoryCalculationsRepository stores calculations in memory for local
// development and tests.
type MemoryCalculationsRepository struct {
	mu        sync.RWMutex
	nextID    int64
	committed map[int64]*domain.Calculation
}

func NewMemoryCalculationsRepository() *MemoryCalculationsRepository {
	return &MemoryCalculationsRepository{
		committed: make(map[int64]*domain.Calculation),
	}
}

func (r *MemoryCalculationsRepository) BeginBatch(_ context.Context) (CalculationBatch, error) {
	return &memoryCalculationBatch{repo: r}, nil
}

func (r *MemoryCalculationsRepository) GetCalculation(_ context.Context, id int64) (*domain.Calculation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	calculation, ok := r.committed[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *calculation
	return &clone, nil
}

// CommittedCount reports how many calculations survived their commits.
func (r *MemoryCalculationsRepository) CommittedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.committed)
}

type memoryCalculationBatch struct {
	repo   *MemoryCalculationsRepository
	staged []*domain.Calculation
}

func (b *memoryCalculationBatch) Insert(_ context.Context, calculation *domain.Calculation) error {
	b.repo.mu.Lock()
	b.repo.nextID++
	calculation.ID = b.repo.nextID
	b.repo.mu.Unlock()

	if calculation.CreatedAt.IsZero() {
		calculation.CreatedAt = time.Now().UTC()
	}
	clone := *calculation
	b.staged = append(b.staged, &clone)
	return nil
}

func (b *memoryCalculationBatch) Commit(_ context.Context) error {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()

	for _, calculation := range b.staged {
		b.repo.committed[calculation.ID] = calculation
	}
	b.staged = b.staged[:0]
	return nil
}

func (b *memoryCalculationBatch) Rollback(_ context.Context) error {
	b.staged = b.staged[:0]
	return nil
}

func (b *memoryCalculationBatch) Close(_ context.Context) {
	b.staged = nil
}

// MemoryAirportsRepository is the in-memory reference lookup used when no
// database is configured.
type MemoryAirportsRepository struct {
	mu  sync.RWMutex
	ids map[string]int64
}

func NewMemoryAirportsRepository(codes ...string) *MemoryAirportsRepository {
	repo := &MemoryAirportsRepository{ids: make(map[string]int64, len(codes))}
	for i, code := range codes {
		repo.ids[code] = int64(i + 1)
	}
	return repo
}

func (r *MemoryAirportsRepository) LookupID(_ context.Context, code string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.ids[code]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}
