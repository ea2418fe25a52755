package main

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/fixflow-io/fixflow/internal/common"
	"github.com/fixflow-io/fixflow/internal/observability"
	"github.com/fixflow-io/fixflow/internal/repair"
	"github.com/google/uuid"
)

// registerIntakeRoutes covers the online intake queue: agreements and
// appointments, submitted by customers and resolved by branch operators.
func registerIntakeRoutes(h *server.Hertz, d *deps) {
	h.POST("/v1/agreements", submitAgreementHandler(d))
	h.GET("/v1/agreements", func(c context.Context, ctx *app.RequestContext) {
		ags, err := d.agreements.List(c)
		if err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		ctx.JSON(200, ags)
	})
	h.POST("/v1/agreements/:id/accept", acceptAgreementHandler(d))
	h.POST("/v1/agreements/:id/reject", rejectAgreementHandler(d))

	h.POST("/v1/appointments", submitAppointmentHandler(d))
	h.GET("/v1/appointments", listAppointmentsHandler(d))
	h.POST("/v1/appointments/:id/accept", appointmentActionHandler(d, true))
	h.POST("/v1/appointments/:id/reject", appointmentActionHandler(d, false))
}

func submitAgreementHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		var req struct {
			Customer        repair.CustomerInfo `json:"customer"`
			Device          repair.DeviceInfo   `json:"device"`
			Problem         string              `json:"problem"`
			ContractURL     string              `json:"contract_url"`
			PreferredBranch string              `json:"preferred_branch"`
			WarrantyHint    string              `json:"warranty_hint"`
		}
		if err := ctx.Bind(&req); err != nil || req.Customer.Name == "" {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, badRequestMsg)
			return
		}
		ag := &repair.Agreement{
			ID:              uuid.NewString(),
			Customer:        req.Customer,
			Device:          req.Device,
			Problem:         req.Problem,
			ContractURL:     req.ContractURL,
			PreferredBranch: req.PreferredBranch,
			WarrantyHint:    req.WarrantyHint,
			CreatedAt:       time.Now().Unix(),
		}
		if err := d.agreements.Create(c, ag); err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		ctx.JSON(201, ag)
	}
}

func acceptAgreementHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		var req struct {
			Branch   string `json:"branch"`
			Warranty string `json:"warranty"`
		}
		if err := ctx.Bind(&req); err != nil {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, badRequestMsg)
			return
		}
		res, err := d.converter.AcceptAgreement(c, repair.AcceptInput{
			AgreementID: string(ctx.Param("id")),
			Branch:      req.Branch,
			Warranty:    req.Warranty,
			Operator:    operatorFrom(ctx),
		})
		if err != nil {
			writeDomainError(c, ctx, err)
			return
		}
		observability.AgreementAccepted.Add(1)
		observability.TicketCreated.Add(1)
		countNotification("agreement", res.Notification)
		_ = d.index.IndexTicket(c, res.Ticket)
		ctx.JSON(201, res)
	}
}

func rejectAgreementHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		res, err := d.converter.RejectAgreement(c, string(ctx.Param("id")), operatorFrom(ctx))
		if err != nil {
			writeDomainError(c, ctx, err)
			return
		}
		observability.AgreementRejected.Add(1)
		countNotification("agreement", res.Notification)
		ctx.JSON(200, res)
	}
}

func submitAppointmentHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		var req struct {
			Customer repair.CustomerInfo `json:"customer"`
			Branch   string              `json:"branch"`
			SlotAt   int64               `json:"slot_at"`
		}
		if err := ctx.Bind(&req); err != nil || req.Customer.Name == "" || req.Branch == "" {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, badRequestMsg)
			return
		}
		ap := &repair.Appointment{
			ID:        uuid.NewString(),
			Customer:  req.Customer,
			Branch:    req.Branch,
			SlotAt:    req.SlotAt,
			CreatedAt: time.Now().Unix(),
		}
		if !ap.Available(time.Now().Unix()) {
			common.WriteError(c, ctx, 400, common.ErrCodeBadRequest, "appointment slot is in the past")
			return
		}
		if err := d.appointments.Create(c, ap); err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		ctx.JSON(201, ap)
	}
}

func listAppointmentsHandler(d *deps) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		aps, err := d.appointments.List(c)
		if err != nil {
			common.WriteError(c, ctx, 503, common.ErrCodeStoreUnavailable, err.Error())
			return
		}
		// expired slots stay stored but are not offered
		now := time.Now().Unix()
		out := aps[:0]
		for _, ap := range aps {
			if ap.Available(now) {
				out = append(out, ap)
			}
		}
		ctx.JSON(200, out)
	}
}

func appointmentActionHandler(d *deps, accept bool) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		id := string(ctx.Param("id"))
		var res *repair.IntakeResult
		var err error
		if accept {
			res, err = d.converter.AcceptAppointment(c, id, operatorFrom(ctx))
		} else {
			res, err = d.converter.RejectAppointment(c, id, operatorFrom(ctx))
		}
		if err != nil {
			writeDomainError(c, ctx, err)
			return
		}
		if accept {
			observability.AppointmentAccepted.Add(1)
		} else {
			observability.AppointmentRejected.Add(1)
		}
		countNotification("appointment", res.Notification)
		ctx.JSON(200, res)
	}
}
