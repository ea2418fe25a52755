package repair

import (
	"context"
	"errors"
	"time"
)

// DocumentStep names the next unmet document obligation of a ticket.
type DocumentStep string

const (
	StepDeliveryNote       DocumentStep = "delivery_note"
	StepPartsNoteSignature DocumentStep = "parts_note_signature"
	StepInvoice            DocumentStep = "invoice"
	StepNone               DocumentStep = "none"
)

// NextDocument is the resolver's answer: which document step the operator
// should be offered next, and whether a quotation action is also available.
type NextDocument struct {
	Step               DocumentStep `json:"step"`
	Mandatory          bool         `json:"mandatory"`
	QuotationAvailable bool         `json:"quotation_available"`
}

// Resolver decides which signed document a ticket needs next, derives the
// invoice flag from the parts note, and migrates legacy-shaped parts notes
// on first read.
type Resolver struct {
	tickets TicketStore
	notes   PartsNoteStore
	quotes  QuotationStore
	now     func() time.Time
}

func NewResolver(tickets TicketStore, notes PartsNoteStore, quotes QuotationStore) *Resolver {
	return &Resolver{tickets: tickets, notes: notes, quotes: quotes, now: time.Now}
}

// NextByID loads the ticket and resolves its next document step.
func (r *Resolver) NextByID(ctx context.Context, ticketID string) (*NextDocument, error) {
	t, err := r.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, errf(CodeNotFound, "ticket %s not found", ticketID)
	}
	return r.Next(ctx, t)
}

// Next evaluates the dependency rules in order, first match wins:
//
//  1. no delivery note yet -> delivery note
//  2. parts note exists but is unsigned -> parts-note signature
//  3. signed parts note with a priced line item -> invoice
//
// Along the way it derives ShouldHaveInvoice from the parts note (explicitly
// false when every line item is free) and persists the flag when it changed.
func (r *Resolver) Next(ctx context.Context, t *Ticket) (*NextDocument, error) {
	next := &NextDocument{Step: StepNone}

	var note *PartsNote
	if t.PartDeliveryNote != "" {
		n, err := r.LoadPartsNote(ctx, t.PartDeliveryNote)
		if err != nil {
			return nil, err
		}
		note = n
		if should := note.HasPricedPart(); should != t.ShouldHaveInvoice {
			t.ShouldHaveInvoice = should
			if err := r.tickets.Update(ctx, t); err != nil {
				return nil, err
			}
		}
	}

	switch {
	case t.DeliveryNoteURL == "":
		next.Step = StepDeliveryNote
		next.Mandatory = true
	case t.PartDeliveryNote != "" && t.PartsDeliveryNoteURL == "":
		next.Step = StepPartsNoteSignature
		next.Mandatory = true
	case t.ShouldHaveInvoice && !t.HasAnInvoice:
		next.Step = StepInvoice
		next.Mandatory = true
	}

	if t.PriceQuotationRef == "" && r.quotes != nil {
		if _, err := r.quotes.FindByTicket(ctx, t.ID); err == nil {
			next.QuotationAvailable = true
		}
	}
	return next, nil
}

// LoadPartsNote reads a parts note, migrating the legacy parallel-array
// shape into the line-item list the first time it is seen. The migration is
// persisted once; later reads are untouched.
func (r *Resolver) LoadPartsNote(ctx context.Context, id string) (*PartsNote, error) {
	n, err := r.notes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errf(CodeNotFound, "parts note %s not found", id)
		}
		return nil, err
	}
	if MigratePartsNote(n, r.now().Unix()) {
		if err := r.notes.Update(ctx, n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// ValidatePart is the blocking precondition for entering a line item: a
// priced part requires an accepted quotation on the ticket first.
func (r *Resolver) ValidatePart(t *Ticket, p Part) error {
	if p.Price > 0 && t.PriceQuotationRef == "" {
		return errf(CodeQuotationRequired,
			"a priced part requires a price quotation on the ticket; create and accept one first")
	}
	return nil
}

// MigratePartsNote reconstructs the line-item list from the legacy parallel
// arrays: index i across all arrays forms line item i, and a non-empty
// services[i] marks that index as labor, forcing its identification fields
// empty. Returns true when a migration happened; an already-migrated note
// (MigratedAt set, or no legacy arrays) is left untouched.
func MigratePartsNote(n *PartsNote, now int64) bool {
	if n.MigratedAt != 0 || len(n.Parts) > 0 {
		return false
	}
	count := maxLen(len(n.PartNumbers), len(n.Descriptions), len(n.OldSNs),
		len(n.NewSNs), len(n.Quantities), len(n.Prices), len(n.Warranties), len(n.Services))
	if count == 0 {
		return false
	}
	parts := make([]Part, 0, count)
	for i := 0; i < count; i++ {
		p := Part{
			PartNumber:     at(n.PartNumbers, i),
			Description:    at(n.Descriptions, i),
			OldSN:          at(n.OldSNs, i),
			NewSN:          at(n.NewSNs, i),
			WarrantyStatus: at(n.Warranties, i),
		}
		if i < len(n.Quantities) {
			p.Quantity = n.Quantities[i]
		}
		if i < len(n.Prices) {
			p.Price = n.Prices[i]
		}
		if svc := at(n.Services, i); svc != "" {
			p.PartNumber = ""
			p.OldSN = ""
			p.NewSN = ""
			if p.Description == "" {
				p.Description = svc
			}
		}
		parts = append(parts, p)
	}
	n.Parts = parts
	n.PartNumbers = nil
	n.Descriptions = nil
	n.OldSNs = nil
	n.NewSNs = nil
	n.Quantities = nil
	n.Prices = nil
	n.Warranties = nil
	n.Services = nil
	n.MigratedAt = now
	return true
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

func maxLen(ns ...int) int {
	m := 0
	for _, n := range ns {
		if n > m {
			m = n
		}
	}
	return m
}
