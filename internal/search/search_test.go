package search

import (
	"context"
	"testing"

	"github.com/fixflow-io/fixflow/internal/repair"
)

func indexFixtures(t *testing.T, idx *MemoryIndex) {
	t.Helper()
	ctx := context.Background()
	tickets := []*repair.Ticket{
		{
			ID:       "I1001042",
			Customer: repair.CustomerInfo{Name: "Dana Khalil"},
			Device:   repair.DeviceInfo{Brand: "Lenovo", Model: "T14"},
			Problem:  "no boot after drop",
		},
		{
			ID:       "C1002117",
			Customer: repair.CustomerInfo{Name: "Omar Said"},
			Device:   repair.DeviceInfo{Brand: "HP", Model: "Envy"},
			Problem:  "broken hinge",
		},
	}
	for _, tk := range tickets {
		if err := idx.IndexTicket(ctx, tk); err != nil {
			t.Fatalf("index: %v", err)
		}
	}
}

func TestMemoryIndexSearch(t *testing.T) {
	idx := NewMemoryIndex()
	indexFixtures(t, idx)

	hits, total, err := idx.Search(context.Background(), "dana", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(hits) != 1 || hits[0].TicketID != "I1001042" {
		t.Fatalf("customer search failed: total=%d hits=%+v", total, hits)
	}

	// ticket id outweighs weaker fields
	hits, _, _ = idx.Search(context.Background(), "1002", 10)
	if len(hits) != 1 || hits[0].TicketID != "C1002117" {
		t.Fatalf("id search failed: %+v", hits)
	}
}

func TestMemoryIndexLimitAndEmptyQuery(t *testing.T) {
	idx := NewMemoryIndex()
	indexFixtures(t, idx)
	ctx := context.Background()

	hits, total, err := idx.Search(ctx, "  ", 10)
	if err != nil || total != 0 || len(hits) != 0 {
		t.Fatalf("blank query must match nothing: %v %d %+v", err, total, hits)
	}

	// both problems mention nothing common; brand match for one each, so use
	// a query hitting both and truncate to 1
	idx.IndexTicket(ctx, &repair.Ticket{
		ID:       "I1003001",
		Customer: repair.CustomerInfo{Name: "Dana Other"},
	})
	hits, total, _ = idx.Search(ctx, "dana", 1)
	if total != 2 || len(hits) != 1 {
		t.Fatalf("limit must truncate hits but keep total: total=%d hits=%d", total, len(hits))
	}
}

func TestMemoryIndexReindexOverwrites(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	tk := &repair.Ticket{ID: "T1", Customer: repair.CustomerInfo{Name: "Old Name"}}
	idx.IndexTicket(ctx, tk)
	tk.Customer.Name = "New Name"
	idx.IndexTicket(ctx, tk)

	if _, total, _ := idx.Search(ctx, "old name", 10); total != 0 {
		t.Fatalf("stale entry survived reindex")
	}
	if _, total, _ := idx.Search(ctx, "new name", 10); total != 1 {
		t.Fatalf("reindexed entry not found")
	}
}
