package main

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/fixflow-io/fixflow/internal/common"
	"github.com/fixflow-io/fixflow/internal/observability"
	"github.com/fixflow-io/fixflow/internal/repair"
	"github.com/google/uuid"
)

// registerDocumentRoutes covers signed documents, parts notes and quotations.
func registerDocumentRoutes(h *server.Hertz, d *deps) {
	h.POST(pathTicketID+"/documents/:category", saveDocumentHandler(d))

	h.POST(pathTicketID+"/parts-note", createPartsNoteHandler(d))
	h.GET("/v1/parts-notes/:id", getPartsNoteHandler(d))
	h.POST("/v1/parts-notes/:id/parts", addPartHandler(d))
	h.POST("/v1/parts-notes/:id/sign", signPartsNoteHandler(d))

	h.POST(pathTicketID+"/quotation", createQuotationHandler(d))
	h.GET("/v1/quotations/:id", func(c context.Context, ctx *app.RequestContext) {
		q, err := d.quotes.Get(c, string(ctx.Param("id")))
		if err != nil {
			common.WriteError(c, ctx, 404, common.ErrCodeNotFound, "quotation not found")
			return
		}
		ctx.JSON(200, q)
	})
	h.POST("/v1/quotations/:id/accept", acceptQuotationHandler(d))
}

// documentField returns a pointer to the ticket field holding the stored URL
// of the given document category.
func documentField(t *repair.Ticket, category string) *string {
	switch category {
	case "contract":
		return &t.ContractURL
	case "delivery_note":
		return &t.DeliveryNoteURL
	case "parts_delivery_note":
		return &t.PartsDeliveryNoteURL
	case "price_quotation":
		return &t.PriceQuotationURL
	case "invoice":
		return &t.InvoiceURL
	case "release_form":
		return &t.ReleaseFormURL
	}
	return nil
}

// saveDocumentHandler stores a signed document binary and records its URL on
// the ticket. The request body is the binary itself.
func saveDocumentHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		id := string(ctx.Param("id"))
		category := string(ctx.Param("category"))
		t, err := d.tickets.Get(c, id)
		if err != nil {
			common.WriteError(c, ctx, 404, common.ErrCodeNotFound, "ticket not found")
			return
		}
		field := documentField(t, category)
		if field == nil {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, "unknown document category")
			return
		}
		body := ctx.Request.Body()
		if len(body) == 0 {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, "document body is empty")
			return
		}
		url, err := d.objects.Put(c, repair.ObjectPath(category, t.ID), body)
		if err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		*field = url
		if category == "invoice" {
			t.HasAnInvoice = true
		}
		if err := d.tickets.Update(c, t); err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		observability.DocumentSaved.Add(1)
		ctx.JSON(200, map[string]any{"ticket_id": t.ID, "category": category, "url": url})
	}
}

func createPartsNoteHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		id := string(ctx.Param("id"))
		t, err := d.tickets.Get(c, id)
		if err != nil {
			common.WriteError(c, ctx, 404, common.ErrCodeNotFound, "ticket not found")
			return
		}
		if t.PartDeliveryNote != "" {
			common.WriteError(c, ctx, 409, common.ErrCodeConflict, "ticket already has a parts note")
			return
		}
		n := &repair.PartsNote{
			ID:        uuid.NewString(),
			TicketID:  t.ID,
			CreatedAt: time.Now().Unix(),
		}
		if err := d.notes.Create(c, n); err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		t.PartDeliveryNote = n.ID
		if err := d.tickets.Update(c, t); err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		ctx.JSON(201, n)
	}
}

func getPartsNoteHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		id := string(ctx.Param("id"))
		// peek at the stored shape so the migration can be counted
		raw, err := d.notes.Get(c, id)
		if err != nil {
			if errors.Is(err, repair.ErrNotFound) {
				common.WriteError(c, ctx, 404, common.ErrCodeNotFound, "parts note not found")
				return
			}
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		legacy := raw.MigratedAt == 0 && len(raw.Parts) == 0 && len(raw.PartNumbers)+len(raw.Descriptions)+len(raw.Services) > 0
		n, err := d.resolver.LoadPartsNote(c, id)
		if err != nil {
			writeDomainError(c, ctx, err)
			return
		}
		if legacy && n.MigratedAt != 0 {
			observability.PartsNoteMigrated.Add(1)
		}
		ctx.JSON(200, n)
	}
}

func addPartHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		var p repair.Part
		if err := ctx.Bind(&p); err != nil {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, badRequestMsg)
			return
		}
		n, err := d.resolver.LoadPartsNote(c, string(ctx.Param("id")))
		if err != nil {
			writeDomainError(c, ctx, err)
			return
		}
		t, err := d.tickets.Get(c, n.TicketID)
		if err != nil {
			common.WriteError(c, ctx, 404, common.ErrCodeNotFound, "ticket not found")
			return
		}
		if err := d.resolver.ValidatePart(t, p); err != nil {
			writeDomainError(c, ctx, err)
			return
		}
		n.Parts = append(n.Parts, p)
		if err := d.notes.Update(c, n); err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		ctx.JSON(200, n)
	}
}

// signPartsNoteHandler stores the customer-signed copy of the parts note and
// marks the signature step done on the ticket.
func signPartsNoteHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		n, err := d.resolver.LoadPartsNote(c, string(ctx.Param("id")))
		if err != nil {
			writeDomainError(c, ctx, err)
			return
		}
		t, err := d.tickets.Get(c, n.TicketID)
		if err != nil {
			common.WriteError(c, ctx, 404, common.ErrCodeNotFound, "ticket not found")
			return
		}
		body := ctx.Request.Body()
		if len(body) == 0 {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, "signed document body is empty")
			return
		}
		url, err := d.objects.Put(c, repair.ObjectPath("parts_delivery_note", t.ID), body)
		if err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		t.PartsDeliveryNoteURL = url
		if err := d.tickets.Update(c, t); err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		observability.DocumentSaved.Add(1)
		ctx.JSON(200, map[string]any{"ticket_id": t.ID, "parts_note": n.ID, "url": url})
	}
}

func createQuotationHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		var req struct {
			Items []repair.QuoteItem `json:"items"`
		}
		if err := ctx.Bind(&req); err != nil || len(req.Items) == 0 {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, badRequestMsg)
			return
		}
		t, err := d.tickets.Get(c, string(ctx.Param("id")))
		if err != nil {
			common.WriteError(c, ctx, 404, common.ErrCodeNotFound, "ticket not found")
			return
		}
		q := &repair.Quotation{
			ID:        uuid.NewString(),
			TicketID:  t.ID,
			Items:     req.Items,
			CreatedAt: time.Now().Unix(),
		}
		if err := d.quotes.Create(c, q); err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		ctx.JSON(201, q)
	}
}

// acceptQuotationHandler records customer acceptance: the quotation becomes
// the ticket's price reference, unblocking priced parts.
func acceptQuotationHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		q, err := d.quotes.Get(c, string(ctx.Param("id")))
		if err != nil {
			common.WriteError(c, ctx, 404, common.ErrCodeNotFound, "quotation not found")
			return
		}
		t, err := d.tickets.Get(c, q.TicketID)
		if err != nil {
			common.WriteError(c, ctx, 404, common.ErrCodeNotFound, "ticket not found")
			return
		}
		t.PriceQuotationRef = q.ID
		if err := d.tickets.Update(c, t); err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		ctx.JSON(200, t)
	}
}
