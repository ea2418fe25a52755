package repair

import (
	"context"
	"testing"
)

func newTestResolver(t *testing.T) (*Resolver, *MemoryTicketStore, *MemoryPartsNoteStore, *MemoryQuotationStore) {
	t.Helper()
	tickets := NewMemoryTicketStore()
	notes := NewMemoryPartsNoteStore()
	quotes := NewMemoryQuotationStore()
	return NewResolver(tickets, notes, quotes), tickets, notes, quotes
}

func TestNextDeliveryNoteFirst(t *testing.T) {
	r, tickets, _, _ := newTestResolver(t)
	tk := seedTicket(t, tickets, "T1")

	next, err := r.Next(context.Background(), tk)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next.Step != StepDeliveryNote || !next.Mandatory {
		t.Fatalf("missing delivery note must come first, got %+v", next)
	}
}

func TestNextPartsNoteSignature(t *testing.T) {
	r, tickets, notes, _ := newTestResolver(t)
	tk := seedTicket(t, tickets, "T1")
	ctx := context.Background()

	notes.Create(ctx, &PartsNote{ID: "PN1", TicketID: "T1"})
	tk.DeliveryNoteURL = "mem://delivery_note/T1.pdf"
	tk.PartDeliveryNote = "PN1"
	tickets.Update(ctx, tk)

	next, err := r.Next(ctx, tk)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next.Step != StepPartsNoteSignature || !next.Mandatory {
		t.Fatalf("unsigned parts note must be next, got %+v", next)
	}
}

func TestNextInvoiceOnlyWhenPriced(t *testing.T) {
	r, tickets, notes, _ := newTestResolver(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		prices []float64
		want   DocumentStep
		should bool
	}{
		{"priced line item", []float64{0, 25}, StepInvoice, true},
		{"all free under warranty", []float64{0, 0}, StepNone, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tk := seedTicket(t, tickets, "T-"+tc.name)
			parts := make([]Part, len(tc.prices))
			for i, p := range tc.prices {
				parts[i] = Part{Description: "part", Price: p}
			}
			noteID := "PN-" + tc.name
			notes.Create(ctx, &PartsNote{ID: noteID, TicketID: tk.ID, Parts: parts, MigratedAt: 1})
			tk.DeliveryNoteURL = "mem://dn.pdf"
			tk.PartDeliveryNote = noteID
			tk.PartsDeliveryNoteURL = "mem://pn.pdf"
			tickets.Update(ctx, tk)

			next, err := r.Next(ctx, tk)
			if err != nil {
				t.Fatalf("next: %v", err)
			}
			if next.Step != tc.want {
				t.Fatalf("step = %s, want %s", next.Step, tc.want)
			}
			// derived flag is persisted, explicitly false when all items are free
			stored, _ := tickets.Get(ctx, tk.ID)
			if stored.ShouldHaveInvoice != tc.should {
				t.Fatalf("ShouldHaveInvoice = %v, want %v", stored.ShouldHaveInvoice, tc.should)
			}
		})
	}
}

func TestNextNoneWhenInvoiceStored(t *testing.T) {
	r, tickets, notes, _ := newTestResolver(t)
	ctx := context.Background()
	tk := seedTicket(t, tickets, "T1")
	notes.Create(ctx, &PartsNote{ID: "PN1", TicketID: "T1", Parts: []Part{{Price: 30}}, MigratedAt: 1})
	tk.DeliveryNoteURL = "mem://dn.pdf"
	tk.PartDeliveryNote = "PN1"
	tk.PartsDeliveryNoteURL = "mem://pn.pdf"
	tk.HasAnInvoice = true
	tickets.Update(ctx, tk)

	next, err := r.Next(ctx, tk)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next.Step != StepNone {
		t.Fatalf("all obligations met, got %+v", next)
	}
}

func TestNextReportsAvailableQuotation(t *testing.T) {
	r, tickets, _, quotes := newTestResolver(t)
	ctx := context.Background()
	tk := seedTicket(t, tickets, "T1")
	quotes.Create(ctx, &Quotation{ID: "Q1", TicketID: "T1", Items: []QuoteItem{{Description: "screen", Price: 80}}})

	next, err := r.Next(ctx, tk)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !next.QuotationAvailable {
		t.Fatalf("unaccepted quotation should be surfaced")
	}

	// accepted quotation is no longer offered
	tk.PriceQuotationRef = "Q1"
	tickets.Update(ctx, tk)
	next, _ = r.Next(ctx, tk)
	if next.QuotationAvailable {
		t.Fatalf("accepted quotation must not be offered again")
	}
}

func TestValidatePart(t *testing.T) {
	r, _, _, _ := newTestResolver(t)
	tk := &Ticket{ID: "T1"}

	err := r.ValidatePart(tk, Part{Description: "fan", Price: 10})
	de, ok := err.(*Error)
	if !ok || de.Code != CodeQuotationRequired {
		t.Fatalf("priced part without quotation must block with quotation_required, got %v", err)
	}
	if err := r.ValidatePart(tk, Part{Description: "fan", Price: 0}); err != nil {
		t.Fatalf("free part must pass: %v", err)
	}
	tk.PriceQuotationRef = "Q1"
	if err := r.ValidatePart(tk, Part{Description: "fan", Price: 10}); err != nil {
		t.Fatalf("priced part with quotation must pass: %v", err)
	}
}

func TestMigratePartsNotePositional(t *testing.T) {
	n := &PartsNote{
		ID:           "PN1",
		TicketID:     "T1",
		PartNumbers:  []string{"FAN-01", "SSD-256", ""},
		Descriptions: []string{"cooling fan", "ssd", ""},
		OldSNs:       []string{"O1", "O2"},
		NewSNs:       []string{"N1", "N2"},
		Quantities:   []int{1, 1, 1},
		Prices:       []float64{0, 45, 20},
		Warranties:   []string{"in", "out"},
		Services:     []string{"", "", "thermal paste renewal"},
	}
	if !MigratePartsNote(n, 1700000000) {
		t.Fatalf("legacy note should migrate")
	}
	if len(n.Parts) != 3 {
		t.Fatalf("expected 3 line items, got %d", len(n.Parts))
	}
	if n.Parts[0].PartNumber != "FAN-01" || n.Parts[0].OldSN != "O1" || n.Parts[0].Price != 0 {
		t.Fatalf("index 0 mapped wrong: %+v", n.Parts[0])
	}
	if n.Parts[1].PartNumber != "SSD-256" || n.Parts[1].NewSN != "N2" || n.Parts[1].Price != 45 {
		t.Fatalf("index 1 mapped wrong: %+v", n.Parts[1])
	}
	// index 2 is labor: identification fields forced empty, description from the service text
	if n.Parts[2].PartNumber != "" || n.Parts[2].OldSN != "" || n.Parts[2].NewSN != "" {
		t.Fatalf("labor item kept identification fields: %+v", n.Parts[2])
	}
	if n.Parts[2].Description != "thermal paste renewal" || n.Parts[2].Price != 20 {
		t.Fatalf("labor item mapped wrong: %+v", n.Parts[2])
	}
	if n.MigratedAt != 1700000000 {
		t.Fatalf("migration not stamped")
	}
	if n.PartNumbers != nil || n.Services != nil || n.Prices != nil {
		t.Fatalf("legacy arrays must be cleared after migration")
	}
}

func TestMigratePartsNoteIdempotent(t *testing.T) {
	n := &PartsNote{ID: "PN1", PartNumbers: []string{"A"}, Descriptions: []string{"a"}}
	if !MigratePartsNote(n, 100) {
		t.Fatalf("first migration should run")
	}
	snapshot := *n.Clone()
	if MigratePartsNote(n, 200) {
		t.Fatalf("second migration must be a no-op")
	}
	if n.MigratedAt != snapshot.MigratedAt || len(n.Parts) != len(snapshot.Parts) {
		t.Fatalf("repeat migration changed the note")
	}
}

func TestLoadPartsNotePersistsMigration(t *testing.T) {
	r, _, notes, _ := newTestResolver(t)
	ctx := context.Background()
	notes.Create(ctx, &PartsNote{
		ID:           "PN1",
		TicketID:     "T1",
		PartNumbers:  []string{"FAN-01"},
		Descriptions: []string{"fan"},
		Prices:       []float64{15},
	})

	n, err := r.LoadPartsNote(ctx, "PN1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(n.Parts) != 1 || n.MigratedAt == 0 {
		t.Fatalf("note not migrated on read: %+v", n)
	}

	// stored copy carries the migrated shape now
	stored, _ := notes.Get(ctx, "PN1")
	if len(stored.Parts) != 1 || stored.MigratedAt == 0 || stored.PartNumbers != nil {
		t.Fatalf("migration was not persisted: %+v", stored)
	}
}
