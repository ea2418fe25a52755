package main

import (
	"context"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/fixflow-io/fixflow/internal/common"
	"github.com/fixflow-io/fixflow/internal/observability"
	"github.com/fixflow-io/fixflow/internal/repair"
)

const (
	pathTickets      = "/v1/tickets"
	pathTicketID     = "/v1/tickets/:id"
	pathTicketSearch = "/v1/tickets/search"
)

const badRequestMsg = "bad request"

func registerTicketRoutes(h *server.Hertz, d *deps) {
	// search is registered before :id so the router doesn't swallow it
	h.GET(pathTicketSearch, searchTicketsHandler(d))

	h.POST(pathTickets, createTicketHandler(d))
	h.GET(pathTickets, listTicketsHandler(d))
	h.GET(pathTicketID, func(c context.Context, ctx *app.RequestContext) {
		t, err := d.tickets.Get(c, string(ctx.Param("id")))
		if err != nil {
			common.WriteError(c, ctx, 404, common.ErrCodeNotFound, "ticket not found")
			return
		}
		ctx.JSON(200, t)
	})
	h.PUT(pathTicketID, editTicketHandler(d))
	h.DELETE(pathTicketID, func(c context.Context, ctx *app.RequestContext) {
		if !operatorFrom(ctx).IsAdmin() {
			common.WriteError(c, ctx, 403, common.ErrCodeForbidden, "only an admin can delete a ticket")
			return
		}
		if err := d.tickets.Delete(c, string(ctx.Param("id"))); err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		ctx.JSON(204, nil)
	})

	h.PUT(pathTicketID+"/status", transitionHandler(d))
	h.PUT(pathTicketID+"/approval", approvalHandler(d))
	h.GET(pathTicketID+"/next-document", nextDocumentHandler(d))
	h.GET(pathTicketID+"/history", historyHandler(d))
}

func createTicketHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		var req struct {
			Branch   string              `json:"branch"`
			Warranty string              `json:"warranty"`
			Customer repair.CustomerInfo `json:"customer"`
			Device   repair.DeviceInfo   `json:"device"`
			Problem  string              `json:"problem"`
		}
		if err := ctx.Bind(&req); err != nil {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, badRequestMsg)
			return
		}
		start := time.Now()
		t, err := d.converter.NewTicket(c, req.Branch, req.Warranty, req.Customer, req.Device, req.Problem, operatorFrom(ctx))
		if err != nil {
			writeDomainError(c, ctx, err)
			return
		}
		observability.ObserveAllocation(time.Since(start).Seconds())
		observability.TicketCreated.Add(1)
		_ = d.index.IndexTicket(c, t)
		ctx.JSON(201, t)
	}
}

func listTicketsHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		ts, err := d.tickets.List(c)
		if err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		branch := string(ctx.Query("branch"))
		statusFilter := -1
		if v := ctx.Query("status"); len(v) > 0 {
			if n, err := strconv.Atoi(string(v)); err == nil {
				statusFilter = n
			}
		}
		out := ts[:0]
		for _, t := range ts {
			if branch != "" && t.Location != branch {
				continue
			}
			if statusFilter >= 0 && int(t.CurrentStatus()) != statusFilter {
				continue
			}
			out = append(out, t)
		}
		ctx.JSON(200, out)
	}
}

// editTicketHandler updates non-append fields only. The audit triple, the
// approval flags and the document linkage are owned by the engine and the
// resolver; last-write-wins on everything edited here.
func editTicketHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		var req struct {
			Customer *repair.CustomerInfo `json:"customer"`
			Device   *repair.DeviceInfo   `json:"device"`
			Problem  *string              `json:"problem"`
			Warranty *string              `json:"warranty_status"`
		}
		if err := ctx.Bind(&req); err != nil {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, badRequestMsg)
			return
		}
		t, err := d.tickets.Get(c, string(ctx.Param("id")))
		if err != nil {
			common.WriteError(c, ctx, 404, common.ErrCodeNotFound, "ticket not found")
			return
		}
		if req.Customer != nil {
			t.Customer = *req.Customer
		}
		if req.Device != nil {
			t.Device = *req.Device
		}
		if req.Problem != nil {
			t.Problem = *req.Problem
		}
		if req.Warranty != nil {
			t.WarrantyStatus = *req.Warranty
		}
		if err := d.tickets.Update(c, t); err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		_ = d.index.IndexTicket(c, t)
		ctx.JSON(200, t)
	}
}

func transitionHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		var req struct {
			To   int    `json:"to"`
			Note string `json:"note"`
		}
		if err := ctx.Bind(&req); err != nil {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, badRequestMsg)
			return
		}
		to := repair.Status(req.To)
		res, err := d.engine.Transition(c, repair.TransitionInput{
			TicketID: string(ctx.Param("id")),
			To:       to,
			Note:     req.Note,
			Operator: operatorFrom(ctx),
		})
		if err != nil {
			// only the state machine saying no counts as a rejection;
			// malformed requests and missing tickets are not gate events
			if de, ok := err.(*repair.Error); ok &&
				(de.Code == repair.CodeInvalidTransition || de.Code == repair.CodeApprovalPending) {
				observability.TransitionRejected.Add(1)
				observability.ObserveTransition(strconv.Itoa(req.To), "rejected")
			}
			writeDomainError(c, ctx, err)
			return
		}
		observability.TicketTransitioned.Add(1)
		observability.ObserveTransition(strconv.Itoa(req.To), "applied")
		if to == repair.StatusTroubleshooting {
			observability.ApprovalRequested.Add(1)
		}
		if res.Notification != nil {
			countNotification("status", *res.Notification)
		}
		_ = d.index.IndexTicket(c, res.Ticket)
		ctx.JSON(200, res)
	}
}

func approvalHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		var req struct {
			Approve bool `json:"approve"`
		}
		if err := ctx.Bind(&req); err != nil {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, badRequestMsg)
			return
		}
		t, err := d.engine.ResolveApproval(c, operatorFrom(ctx), string(ctx.Param("id")), req.Approve)
		if err != nil {
			writeDomainError(c, ctx, err)
			return
		}
		if req.Approve {
			observability.ApprovalApproved.Add(1)
		} else {
			observability.ApprovalRejected.Add(1)
		}
		ctx.JSON(200, t)
	}
}

func nextDocumentHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		next, err := d.resolver.NextByID(c, string(ctx.Param("id")))
		if err != nil {
			writeDomainError(c, ctx, err)
			return
		}
		ctx.JSON(200, next)
	}
}

func historyHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		t, err := d.tickets.Get(c, string(ctx.Param("id")))
		if err != nil {
			common.WriteError(c, ctx, 404, common.ErrCodeNotFound, "ticket not found")
			return
		}
		ctx.JSON(200, map[string]any{"ticket_id": t.ID, "entries": historyEntries(t)})
	}
}

// historyEntries zips the audit triple into response entries. The engine
// keeps the three lists equal-length, but records written by the previous
// system can be short; missing positions render empty rather than failing
// the whole read.
func historyEntries(t *repair.Ticket) []map[string]any {
	entries := make([]map[string]any, 0, len(t.States))
	for i, s := range t.States {
		e := map[string]any{
			"status":     int(s),
			"label":      s.Label(),
			"detail":     "",
			"technician": "",
		}
		if i < len(t.Details) {
			e["detail"] = t.Details[i]
		}
		if i < len(t.Technicians) {
			e["technician"] = t.Technicians[i]
		}
		entries = append(entries, e)
	}
	return entries
}

func searchTicketsHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		q := string(ctx.Query("q"))
		limit := 10
		if v := ctx.Query("limit"); len(v) > 0 {
			if n, err := strconv.Atoi(string(v)); err == nil && n > 0 {
				if n > 50 {
					n = 50
				}
				limit = n
			}
		}
		hits, total, err := d.index.Search(c, q, limit)
		if err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, "search backend unavailable")
			return
		}
		observability.TicketSearchRequests.Add(1)
		ctx.JSON(200, map[string]any{"items": hits, "total": total})
	}
}

func countNotification(kind string, r repair.NotifyReport) {
	if r.Sent {
		observability.NotificationSent.Add(1)
		observability.ObserveNotification(kind, "sent")
	} else if r.Error != "" {
		observability.NotificationFailed.Add(1)
		observability.ObserveNotification(kind, "failed")
	}
}
