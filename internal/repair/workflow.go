package repair

import (
	"context"
	"strings"
	"time"
)

// Engine enforces the status state machine: strictly increasing transitions,
// the troubleshooting approval gate, and the side effects each destination
// status triggers. All validation happens before any write.
type Engine struct {
	tickets  TicketStore
	resolver *Resolver
	notifier Notifier
	now      func() time.Time
}

func NewEngine(tickets TicketStore, resolver *Resolver, notifier Notifier) *Engine {
	return &Engine{tickets: tickets, resolver: resolver, notifier: notifier, now: time.Now}
}

// TransitionInput is one requested status change. Note is mandatory input,
// not optional metadata.
type TransitionInput struct {
	TicketID string
	To       Status
	Note     string
	Operator Operator
}

// TransitionResult reports the persisted ticket plus the trailing,
// non-rollback side effects of the transition.
type TransitionResult struct {
	Ticket       *Ticket       `json:"ticket"`
	Notification *NotifyReport `json:"notification,omitempty"`
	NextDocument *NextDocument `json:"next_document,omitempty"`
}

// Transition validates and applies one status change. Exactly one entry is
// appended to each of States, Details and Technicians; the three lists stay
// the same length after every call.
func (e *Engine) Transition(ctx context.Context, in TransitionInput) (*TransitionResult, error) {
	if strings.TrimSpace(in.Note) == "" {
		return nil, errf(CodeBadRequest, "a technician note is required for every status change")
	}
	if strings.TrimSpace(in.Operator.Name) == "" {
		return nil, errf(CodeBadRequest, "operator name is required")
	}
	if !in.To.Valid() {
		return nil, errf(CodeBadRequest, "unknown status %d", in.To)
	}
	t, err := e.tickets.Get(ctx, in.TicketID)
	if err != nil {
		return nil, errf(CodeNotFound, "ticket %s not found", in.TicketID)
	}
	current := t.CurrentStatus()
	if in.To <= current {
		return nil, errf(CodeInvalidTransition,
			"status must move forward: ticket is at %q (%d), requested %q (%d)",
			current.Label(), current, in.To.Label(), in.To)
	}
	if e.frozen(t, in.To, in.Operator) {
		return nil, errf(CodeApprovalPending,
			"ticket is held by the approval gate (%s); an admin must resolve it before statuses 2-5 can be entered",
			t.ApprovalStatus)
	}

	now := e.now()
	t.States = append(t.States, in.To)
	t.Details = append(t.Details, e.formatDetail(in, now))
	t.Technicians = append(t.Technicians, in.Operator.Name)

	res := &TransitionResult{}
	switch in.To {
	case StatusTroubleshooting:
		t.ApprovalRequired = true
		t.ApprovalStatus = ApprovalPending
	case StatusComplete:
		// Trailing documents may still need signatures after close; consult
		// the resolver so the operator sees what is left.
		if e.resolver != nil {
			if next, rerr := e.resolver.Next(ctx, t); rerr == nil {
				res.NextDocument = next
			}
		}
	}

	if err := e.tickets.Update(ctx, t); err != nil {
		return nil, err
	}

	switch in.To {
	case StatusReadyForPickup:
		r := deliver(ctx, e.notifier, readyForPickupMessage(t))
		res.Notification = &r
	case StatusComplete:
		r := deliver(ctx, e.notifier, serviceCompleteMessage(t))
		res.Notification = &r
	}
	res.Ticket = t
	return res, nil
}

// frozen applies the approval gate: while an approval is pending or was
// rejected, statuses 2-5 are closed to everyone but admins.
func (e *Engine) frozen(t *Ticket, to Status, op Operator) bool {
	if !t.ApprovalRequired {
		return false
	}
	if t.ApprovalStatus != ApprovalPending && t.ApprovalStatus != ApprovalRejected {
		return false
	}
	if to >= StatusReadyForPickup {
		return false
	}
	return !op.IsAdmin()
}

func (e *Engine) formatDetail(in TransitionInput, now time.Time) string {
	ts := now.Format(time.RFC3339)
	if in.To == StatusComplete {
		return "Repair closed by " + in.Operator.Name + " on " + ts + ": " + in.Note
	}
	return ts + " [" + in.To.Label() + "] " + in.Note + " - " + in.Operator.Name
}

// ResolveApproval approves or rejects the troubleshooting gate. Only admins
// may resolve it; approving clears the gate and re-opens statuses 2-5,
// rejecting keeps them frozen. An admin may approve after a rejection; a
// technician cannot resubmit.
func (e *Engine) ResolveApproval(ctx context.Context, op Operator, ticketID string, approve bool) (*Ticket, error) {
	if !op.IsAdmin() {
		return nil, errf(CodeForbidden, "only an admin can resolve an approval")
	}
	t, err := e.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, errf(CodeNotFound, "ticket %s not found", ticketID)
	}
	if !t.ApprovalRequired {
		return nil, errf(CodeConflict, "ticket has no approval to resolve")
	}
	if approve {
		t.ApprovalRequired = false
		t.ApprovalStatus = ApprovalApproved
	} else {
		t.ApprovalStatus = ApprovalRejected
	}
	if err := e.tickets.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
