package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eleven-am/speech-delivery/internal/shared"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return store
}

func TestStore_CreateAssignsID(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	r := &DeliveryRecord{SessionID: "chan-1", Provider: "openai", Delivery: "stream"}
	if err := store.Create(ctx, r); err != nil {
		t.Fatal(err)
	}
	if r.ID == "" {
		t.Error("expected generated ID")
	}

	got, err := store.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Provider != "openai" || got.Delivery != "stream" {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.GetByID(context.Background(), "dlv_missing")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListBySession(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r := &DeliveryRecord{
			SessionID: "chan-1",
			Provider:  "edge",
			Delivery:  "buffered",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := store.Create(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Create(ctx, &DeliveryRecord{SessionID: "chan-2", Provider: "edge", Delivery: "buffered"}); err != nil {
		t.Fatal(err)
	}

	records, err := store.ListBySession(ctx, "chan-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt.After(records[i-1].CreatedAt) {
			t.Error("expected newest-first ordering")
		}
	}
}

func TestStore_CountByProvider(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	store.Create(ctx, &DeliveryRecord{SessionID: "a", Provider: "openai", Delivery: "stream"})
	store.Create(ctx, &DeliveryRecord{SessionID: "b", Provider: "openai", Delivery: "buffered"})
	store.Create(ctx, &DeliveryRecord{SessionID: "c", Provider: "edge", Delivery: "buffered"})

	n, err := store.CountByProvider(ctx, "openai")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
}
