package history

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreAppendAndList(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	records := []*Record{
		{ID: "a1", Bundle: "0x01", Action: ActionInvest, Strategy: "exact_basket", Status: StatusSucceeded, CreatedAt: 1},
		{ID: "a2", Bundle: "0x02", Action: ActionRedeem, Strategy: "redeem_basket", Status: StatusSucceeded, CreatedAt: 2},
		{ID: "a3", Bundle: "0x01", Action: ActionInvest, Strategy: "single_direct", Status: StatusFailed, CreatedAt: 3},
	}
	for _, record := range records {
		if err := store.Append(ctx, record); err != nil {
			t.Fatalf("append %s: %v", record.ID, err)
		}
	}

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("list = %d records, want 3", len(all))
	}
	if all[0].ID != "a3" {
		t.Fatalf("newest record first, got %s", all[0].ID)
	}

	byBundle, err := store.List(ctx, ListOptions{Bundle: "0x01"})
	if err != nil {
		t.Fatalf("list by bundle: %v", err)
	}
	if len(byBundle) != 2 {
		t.Fatalf("bundle filter = %d records, want 2", len(byBundle))
	}

	byAction, err := store.List(ctx, ListOptions{Action: ActionRedeem})
	if err != nil {
		t.Fatalf("list by action: %v", err)
	}
	if len(byAction) != 1 || byAction[0].ID != "a2" {
		t.Fatalf("action filter = %+v, want only a2", byAction)
	}

	paged, err := store.List(ctx, ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list paged: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != "a2" {
		t.Fatalf("paging = %+v, want a2", paged)
	}
}

func TestMemoryStoreRejectsDuplicates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Append(ctx, &Record{ID: "a1", Action: ActionInvest, Status: StatusSucceeded}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, &Record{ID: "a1", Action: ActionInvest, Status: StatusSucceeded}); !errors.Is(err, ErrRecordConflict) {
		t.Fatalf("duplicate append = %v, want %v", err, ErrRecordConflict)
	}
	if err := store.Append(ctx, &Record{}); err == nil {
		t.Fatal("empty id must be rejected")
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Append(ctx, &Record{ID: "a1", Bundle: "0x01", Action: ActionInvest, Status: StatusSucceeded}); err != nil {
		t.Fatalf("append: %v", err)
	}
	listed, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	listed[0].Bundle = "mutated"

	again, _ := store.List(ctx, ListOptions{})
	if again[0].Bundle != "0x01" {
		t.Fatal("listed records must be copies")
	}
}
