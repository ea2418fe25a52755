package repair

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Converter turns an online agreement (or appointment) into a first-class
// ticket, or terminates it. Accepting runs the same numbering and seeding as
// the manual creation path.
type Converter struct {
	tickets      TicketStore
	agreements   AgreementStore
	appointments AppointmentStore
	seq          Sequence
	notifier     Notifier
	now          func() time.Time
}

func NewConverter(tickets TicketStore, agreements AgreementStore, appointments AppointmentStore, seq Sequence, notifier Notifier) *Converter {
	return &Converter{
		tickets:      tickets,
		agreements:   agreements,
		appointments: appointments,
		seq:          seq,
		notifier:     notifier,
		now:          time.Now,
	}
}

// AcceptInput carries the operator-supplied values the agreement itself
// doesn't have. Branch and Warranty are mandatory; nothing is defaulted.
type AcceptInput struct {
	AgreementID string
	Branch      string
	Warranty    string
	Operator    Operator
}

// IntakeResult reports the accept/reject outcome including the trailing
// steps that do not roll back the state change: source deletion and the
// customer notification.
type IntakeResult struct {
	Ticket        *Ticket      `json:"ticket,omitempty"`
	SourceDeleted bool         `json:"source_deleted"`
	Notification  NotifyReport `json:"notification"`
}

// Partial reports whether any trailing step fell short: a stale source
// record, a failed delivery, or a customer we could not reach at all. The
// operator follows up by hand in every one of those cases.
func (r *IntakeResult) Partial() bool {
	return !r.SourceDeleted || !r.Notification.Sent
}

// AcceptAgreement converts an agreement into a new ticket. Order matters:
// number allocation first (failure aborts everything), then the ticket
// write, then source deletion and notification. Those last two are
// recoverable inconsistencies when they fail, never rollbacks.
func (c *Converter) AcceptAgreement(ctx context.Context, in AcceptInput) (*IntakeResult, error) {
	if strings.TrimSpace(in.Branch) == "" {
		return nil, errf(CodeBadRequest, "a branch code is required to accept an agreement")
	}
	if strings.TrimSpace(in.Warranty) == "" {
		return nil, errf(CodeBadRequest, "a warranty status is required to accept an agreement")
	}
	if strings.TrimSpace(in.Operator.Name) == "" {
		return nil, errf(CodeBadRequest, "operator name is required")
	}
	ag, err := c.agreements.Get(ctx, in.AgreementID)
	if err != nil {
		return nil, errf(CodeNotFound, "agreement %s not found", in.AgreementID)
	}

	num, err := c.seq.Next(ctx)
	if err != nil {
		// No number reserved means no ticket: the whole acceptance aborts.
		return nil, fmt.Errorf("allocate ticket number: %w", err)
	}

	now := c.now()
	t := &Ticket{
		ID:             ComposeTicketID(in.Branch, num),
		Num:            num,
		Location:       in.Branch,
		Customer:       ag.Customer,
		Device:         ag.Device,
		Problem:        ag.Problem,
		WarrantyStatus: in.Warranty,
		ContractURL:    ag.ContractURL,
		States:         []Status{StatusStart},
		Details: []string{
			fmt.Sprintf("Accepted on %s. Started by %s.", now.Format(time.RFC3339), in.Operator.Name),
		},
		Technicians:    []string{in.Operator.Name},
		ApprovalStatus: ApprovalNone,
		CreatedAt:      now.Unix(),
	}
	if err := c.tickets.Create(ctx, t); err != nil {
		return nil, err
	}

	res := &IntakeResult{Ticket: t, SourceDeleted: true}
	if err := c.agreements.Delete(ctx, in.AgreementID); err != nil && !errors.Is(err, ErrNotFound) {
		// Ticket exists alongside a stale agreement; surfaced for manual
		// cleanup rather than rolled back.
		res.SourceDeleted = false
	}
	res.Notification = deliver(ctx, c.notifier, agreementAcceptedMessage(ag, t))
	return res, nil
}

// RejectAgreement deletes the agreement and notifies the customer. No
// ticket is created. A missing customer email never blocks the rejection,
// but the result comes back partial so the operator reaches out some other
// way.
func (c *Converter) RejectAgreement(ctx context.Context, id string, op Operator) (*IntakeResult, error) {
	ag, err := c.agreements.Get(ctx, id)
	if err != nil {
		return nil, errf(CodeNotFound, "agreement %s not found", id)
	}
	if err := c.agreements.Delete(ctx, id); err != nil {
		return nil, err
	}
	res := &IntakeResult{SourceDeleted: true}
	res.Notification = deliver(ctx, c.notifier, agreementRejectedMessage(ag))
	return res, nil
}

// AcceptAppointment removes the slot and notifies; appointments never
// produce a ticket.
func (c *Converter) AcceptAppointment(ctx context.Context, id string, op Operator) (*IntakeResult, error) {
	ap, err := c.appointments.Get(ctx, id)
	if err != nil {
		return nil, errf(CodeNotFound, "appointment %s not found", id)
	}
	if err := c.appointments.Delete(ctx, id); err != nil {
		return nil, err
	}
	res := &IntakeResult{SourceDeleted: true}
	res.Notification = deliver(ctx, c.notifier, appointmentAcceptedMessage(ap))
	return res, nil
}

func (c *Converter) RejectAppointment(ctx context.Context, id string, op Operator) (*IntakeResult, error) {
	ap, err := c.appointments.Get(ctx, id)
	if err != nil {
		return nil, errf(CodeNotFound, "appointment %s not found", id)
	}
	if err := c.appointments.Delete(ctx, id); err != nil {
		return nil, err
	}
	res := &IntakeResult{SourceDeleted: true}
	res.Notification = deliver(ctx, c.notifier, appointmentRejectedMessage(ap))
	return res, nil
}

// NewTicket is the manual intake path: same allocator, same id composition,
// same audit seeding as AcceptAgreement, minus a source record.
func (c *Converter) NewTicket(ctx context.Context, branch, warranty string, customer CustomerInfo, device DeviceInfo, problem string, op Operator) (*Ticket, error) {
	if strings.TrimSpace(branch) == "" {
		return nil, errf(CodeBadRequest, "a branch code is required")
	}
	if strings.TrimSpace(warranty) == "" {
		return nil, errf(CodeBadRequest, "a warranty status is required")
	}
	if strings.TrimSpace(op.Name) == "" {
		return nil, errf(CodeBadRequest, "operator name is required")
	}
	num, err := c.seq.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate ticket number: %w", err)
	}
	now := c.now()
	t := &Ticket{
		ID:             ComposeTicketID(branch, num),
		Num:            num,
		Location:       branch,
		Customer:       customer,
		Device:         device,
		Problem:        problem,
		WarrantyStatus: warranty,
		States:         []Status{StatusStart},
		Details: []string{
			fmt.Sprintf("Created on %s by %s.", now.Format(time.RFC3339), op.Name),
		},
		Technicians:    []string{op.Name},
		ApprovalStatus: ApprovalNone,
		CreatedAt:      now.Unix(),
	}
	if err := c.tickets.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
