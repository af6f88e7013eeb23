package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hitoshi/agrisense/internal/model"
)

func TestPostgresRepos_ImplementInterfaces(t *testing.T) {
	var _ AccountRepository = (*PostgresAccountRepo)(nil)
	var _ FarmRepository = (*PostgresFarmRepo)(nil)
	var _ SensorReadingRepository = (*PostgresSensorReadingRepo)(nil)
	var _ AlertRepository = (*PostgresAlertRepo)(nil)
	var _ PredictionRepository = (*PostgresPredictionRepo)(nil)
	var _ AccountRepository = (*MemoryAccountRepo)(nil)
}

func TestMemoryAccountRepo_FindByIdentifier_NotFound_ReturnsNil(t *testing.T) {
	repo := NewMemoryAccountRepo()

	a, err := repo.FindByIdentifier(context.Background(), "+15550001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Errorf("account = %+v, want nil", a)
	}
}

func TestMemoryAccountRepo_CreateAndFind(t *testing.T) {
	repo := NewMemoryAccountRepo()
	ctx := context.Background()

	a := &model.Account{FirstName: "Ada", LastName: "Farmer", PhoneNumber: "+15550001", PasswordHash: "hash"}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if a.ID != 1 {
		t.Errorf("ID = %d, want 1", a.ID)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	found, err := repo.FindByIdentifier(ctx, "+15550001")
	if err != nil {
		t.Fatalf("FindByIdentifier returned error: %v", err)
	}
	if found == nil || found.FirstName != "Ada" || found.PasswordHash != "hash" {
		t.Fatalf("found = %+v, want Ada with hash", found)
	}

	// 完全一致のみ
	if other, _ := repo.FindByIdentifier(ctx, "15550001"); other != nil {
		t.Error("prefix-less identifier must not match")
	}
}

func TestMemoryAccountRepo_ReturnsCopy(t *testing.T) {
	repo := NewMemoryAccountRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, &model.Account{PhoneNumber: "+15550001", PasswordHash: "hash"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	found, _ := repo.FindByIdentifier(ctx, "+15550001")
	found.PasswordHash = "tampered"

	again, _ := repo.FindByIdentifier(ctx, "+15550001")
	if again.PasswordHash != "hash" {
		t.Errorf("PasswordHash = %q, want %q", again.PasswordHash, "hash")
	}
}

func TestMemoryAccountRepo_Create_Duplicate(t *testing.T) {
	repo := NewMemoryAccountRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, &model.Account{PhoneNumber: "+15550001"}); err != nil {
		t.Fatalf("first Create returned error: %v", err)
	}
	err := repo.Create(ctx, &model.Account{PhoneNumber: "+15550001"})
	if !errors.Is(err, ErrDuplicateIdentifier) {
		t.Errorf("err = %v, want %v", err, ErrDuplicateIdentifier)
	}
}

func TestMemoryAccountRepo_ConcurrentAccess(t *testing.T) {
	repo := NewMemoryAccountRepo()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			phone := fmt.Sprintf("+1555%04d", i)
			if err := repo.Create(ctx, &model.Account{PhoneNumber: phone}); err != nil {
				t.Errorf("Create(%s) returned error: %v", phone, err)
			}
			if a, err := repo.FindByIdentifier(ctx, phone); err != nil || a == nil {
				t.Errorf("FindByIdentifier(%s) = %v, %v", phone, a, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestIsUniqueViolation_NonPQError(t *testing.T) {
	if isUniqueViolation(errors.New("boom")) {
		t.Error("plain error must not be treated as unique violation")
	}
}
