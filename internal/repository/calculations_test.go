package repository

import (
	"context"
	"testing"

	"github.com/mvidal/flight-emissions-back/internal/domain"
)

func TestMemoryBatchCommitPersistsStagedRows(t *testing.T) {
	repo := NewMemoryCalculationsRepository()
	batch, err := repo.BeginBatch(context.Background())
	if err != nil {
		t.Fatalf("begin batch: %v", err)
	}
	defer batch.Close(context.Background())

	first := &domain.Calculation{CabinClass: domain.CabinEconomy, Passengers: 1, DistanceKM: 550}
	if err := batch.Insert(context.Background(), first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.ID == 0 {
		t.Fatalf("expected insert to assign an id")
	}

	if repo.CommittedCount() != 0 {
		t.Fatalf("expected nothing committed before commit, got %d", repo.CommittedCount())
	}
	if err := batch.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if repo.CommittedCount() != 1 {
		t.Fatalf("expected 1 committed row, got %d", repo.CommittedCount())
	}

	loaded, err := repo.GetCalculation(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("get calculation: %v", err)
	}
	if loaded.DistanceKM != 550 {
		t.Fatalf("expected distance 550, got %.1f", loaded.DistanceKM)
	}
}

func TestMemoryBatchRollbackDiscardsUncommittedRows(t *testing.T) {
	repo := NewMemoryCalculationsRepository()
	batch, err := repo.BeginBatch(context.Background())
	if err != nil {
		t.Fatalf("begin batch: %v", err)
	}
	defer batch.Close(context.Background())

	kept := &domain.Calculation{CabinClass: domain.CabinEconomy, Passengers: 1}
	if err := batch.Insert(context.Background(), kept); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := batch.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	dropped := &domain.Calculation{CabinClass: domain.CabinBusiness, Passengers: 2}
	if err := batch.Insert(context.Background(), dropped); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := batch.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if repo.CommittedCount() != 1 {
		t.Fatalf("expected rollback to keep only committed rows, got %d", repo.CommittedCount())
	}
	if _, err := repo.GetCalculation(context.Background(), dropped.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for rolled-back row, got %v", err)
	}
}

func TestMemoryAirportsLookup(t *testing.T) {
	repo := NewMemoryAirportsRepository("YYZ", "YVR")

	id, err := repo.LookupID(context.Background(), "YVR")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if id != 2 {
		t.Fatalf("expected id 2, got %d", id)
	}

	if _, err := repo.LookupID(context.Background(), "ZZZ"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
	}
}
