package repair

import (
	"context"
	"strings"
	"testing"
)

type memNotifier struct {
	sent []Message
	fail error
}

func (m *memNotifier) Send(ctx context.Context, msg Message) error {
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func seedTicket(t *testing.T, store TicketStore, id string) *Ticket {
	t.Helper()
	tk := &Ticket{
		ID:       id,
		Num:      1001,
		Location: "I",
		Customer: CustomerInfo{Name: "Dana", Email: "dana@example.com"},
		Device:   DeviceInfo{Brand: "Lenovo", Model: "T14", Serial: "SN1"},
		Problem:  "no boot",
		States:   []Status{StatusStart},
		Details:  []string{"Created."},
		Technicians:    []string{"front-desk"},
		ApprovalStatus: ApprovalNone,
	}
	if err := store.Create(context.Background(), tk); err != nil {
		t.Fatalf("create: %v", err)
	}
	return tk
}

func newTestEngine(t *testing.T) (*Engine, TicketStore, *memNotifier) {
	t.Helper()
	tickets := NewMemoryTicketStore()
	notes := NewMemoryPartsNoteStore()
	quotes := NewMemoryQuotationStore()
	n := &memNotifier{}
	return NewEngine(tickets, NewResolver(tickets, notes, quotes), n), tickets, n
}

func user(name string) Operator  { return Operator{Name: name, Permission: PermUser, Location: "I"} }
func admin(name string) Operator { return Operator{Name: name, Permission: PermAdmin, Location: "I"} }

func TestTransitionAppendsToAllThreeLists(t *testing.T) {
	e, tickets, _ := newTestEngine(t)
	seedTicket(t, tickets, "I1001042")

	res, err := e.Transition(context.Background(), TransitionInput{
		TicketID: "I1001042", To: StatusTroubleshooting, Note: "bench check", Operator: user("amr"),
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	tk := res.Ticket
	if len(tk.States) != 2 || len(tk.Details) != 2 || len(tk.Technicians) != 2 {
		t.Fatalf("audit triple out of sync: %d/%d/%d", len(tk.States), len(tk.Details), len(tk.Technicians))
	}
	if tk.CurrentStatus() != StatusTroubleshooting {
		t.Fatalf("current status = %d, want 1", tk.CurrentStatus())
	}
	if !tk.ApprovalRequired || tk.ApprovalStatus != ApprovalPending {
		t.Fatalf("entering troubleshooting must open the approval gate, got required=%v status=%s",
			tk.ApprovalRequired, tk.ApprovalStatus)
	}
	if tk.Technicians[1] != "amr" {
		t.Fatalf("technician not recorded: %v", tk.Technicians)
	}
}

func TestTransitionRequiresNote(t *testing.T) {
	e, tickets, _ := newTestEngine(t)
	seedTicket(t, tickets, "T1")

	_, err := e.Transition(context.Background(), TransitionInput{
		TicketID: "T1", To: StatusTroubleshooting, Note: "   ", Operator: user("amr"),
	})
	de, ok := err.(*Error)
	if !ok || de.Code != CodeBadRequest {
		t.Fatalf("blank note should be bad_request, got %v", err)
	}
}

func TestTransitionMustMoveForward(t *testing.T) {
	e, tickets, _ := newTestEngine(t)
	seedTicket(t, tickets, "T1")

	for _, to := range []Status{StatusStart, Status(-1)} {
		_, err := e.Transition(context.Background(), TransitionInput{
			TicketID: "T1", To: to, Note: "n", Operator: user("amr"),
		})
		if err == nil {
			t.Fatalf("transition to %d should fail", to)
		}
	}
	_, err := e.Transition(context.Background(), TransitionInput{
		TicketID: "T1", To: StatusStart, Note: "n", Operator: user("amr"),
	})
	de, ok := err.(*Error)
	if !ok || de.Code != CodeInvalidTransition {
		t.Fatalf("non-increasing move should be invalid_transition, got %v", err)
	}
	// rejected request must not grow any list
	tk, _ := tickets.Get(context.Background(), "T1")
	if len(tk.States) != 1 || len(tk.Details) != 1 || len(tk.Technicians) != 1 {
		t.Fatalf("rejected transition mutated the ticket: %d/%d/%d",
			len(tk.States), len(tk.Details), len(tk.Technicians))
	}
}

func TestApprovalGateFreezesMidStatuses(t *testing.T) {
	e, tickets, _ := newTestEngine(t)
	seedTicket(t, tickets, "T1")
	ctx := context.Background()

	if _, err := e.Transition(ctx, TransitionInput{TicketID: "T1", To: StatusTroubleshooting, Note: "n", Operator: user("amr")}); err != nil {
		t.Fatalf("to troubleshooting: %v", err)
	}

	// non-admin is frozen out of 2-5 while pending
	_, err := e.Transition(ctx, TransitionInput{TicketID: "T1", To: StatusReleased, Note: "n", Operator: user("amr")})
	de, ok := err.(*Error)
	if !ok || de.Code != CodeApprovalPending {
		t.Fatalf("pending gate should block a non-admin with approval_pending, got %v", err)
	}

	// admin resolves, then the same move succeeds
	if _, err := e.ResolveApproval(ctx, admin("boss"), "T1", true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := e.Transition(ctx, TransitionInput{TicketID: "T1", To: StatusReleased, Note: "n", Operator: user("amr")}); err != nil {
		t.Fatalf("post-approval transition: %v", err)
	}
}

func TestRejectedApprovalStaysFrozen(t *testing.T) {
	e, tickets, _ := newTestEngine(t)
	seedTicket(t, tickets, "T1")
	ctx := context.Background()

	if _, err := e.Transition(ctx, TransitionInput{TicketID: "T1", To: StatusTroubleshooting, Note: "n", Operator: user("amr")}); err != nil {
		t.Fatalf("to troubleshooting: %v", err)
	}
	if _, err := e.ResolveApproval(ctx, admin("boss"), "T1", false); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// still frozen for the technician after rejection
	_, err := e.Transition(ctx, TransitionInput{TicketID: "T1", To: StatusAwaitingParts, Note: "n", Operator: user("amr")})
	de, ok := err.(*Error)
	if !ok || de.Code != CodeApprovalPending {
		t.Fatalf("rejected gate should keep 2-5 frozen, got %v", err)
	}
	// but 6+ stays open: the device can be returned unrepaired
	if _, err := e.Transition(ctx, TransitionInput{TicketID: "T1", To: StatusReadyForPickup, Note: "returned unrepaired", Operator: user("amr")}); err != nil {
		t.Fatalf("ready-for-pickup should bypass the gate: %v", err)
	}
	// only an admin resolves; a later approve re-opens the gate
	tk, _ := tickets.Get(ctx, "T1")
	if tk.ApprovalStatus != ApprovalRejected {
		t.Fatalf("approval status = %s, want rejected", tk.ApprovalStatus)
	}
}

func TestResolveApprovalAdminOnly(t *testing.T) {
	e, tickets, _ := newTestEngine(t)
	seedTicket(t, tickets, "T1")
	ctx := context.Background()
	if _, err := e.Transition(ctx, TransitionInput{TicketID: "T1", To: StatusTroubleshooting, Note: "n", Operator: user("amr")}); err != nil {
		t.Fatalf("to troubleshooting: %v", err)
	}
	_, err := e.ResolveApproval(ctx, user("amr"), "T1", true)
	de, ok := err.(*Error)
	if !ok || de.Code != CodeForbidden {
		t.Fatalf("non-admin resolve should be forbidden, got %v", err)
	}
}

func TestReadyForPickupNotifiesCustomer(t *testing.T) {
	e, tickets, n := newTestEngine(t)
	seedTicket(t, tickets, "T1")

	res, err := e.Transition(context.Background(), TransitionInput{
		TicketID: "T1", To: StatusReadyForPickup, Note: "device on shelf 4", Operator: user("amr"),
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if res.Notification == nil || !res.Notification.Sent {
		t.Fatalf("status 6 must notify, got %+v", res.Notification)
	}
	if len(n.sent) != 1 || n.sent[0].To != "dana@example.com" {
		t.Fatalf("unexpected deliveries: %+v", n.sent)
	}
	if !strings.Contains(n.sent[0].Subject, "ready for pickup") {
		t.Fatalf("unexpected subject %q", n.sent[0].Subject)
	}
}

func TestCompleteClosesTicket(t *testing.T) {
	e, tickets, n := newTestEngine(t)
	seedTicket(t, tickets, "T1")

	res, err := e.Transition(context.Background(), TransitionInput{
		TicketID: "T1", To: StatusComplete, Note: "picked up, paid", Operator: user("amr"),
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	tk := res.Ticket
	last := tk.Details[len(tk.Details)-1]
	if !strings.HasPrefix(last, "Repair closed by amr") {
		t.Fatalf("closing detail missing, got %q", last)
	}
	if len(tk.States) != len(tk.Details) || len(tk.Details) != len(tk.Technicians) {
		t.Fatalf("audit triple out of sync after close")
	}
	if res.NextDocument == nil {
		t.Fatalf("closing must consult the document resolver")
	}
	if res.NextDocument.Step != StepDeliveryNote {
		t.Fatalf("fresh ticket should still owe a delivery note, got %s", res.NextDocument.Step)
	}
	if len(n.sent) != 1 {
		t.Fatalf("status 7 must notify, got %d deliveries", len(n.sent))
	}
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	e, tickets, n := newTestEngine(t)
	n.fail = errForced
	seedTicket(t, tickets, "T1")

	res, err := e.Transition(context.Background(), TransitionInput{
		TicketID: "T1", To: StatusReadyForPickup, Note: "n", Operator: user("amr"),
	})
	if err != nil {
		t.Fatalf("transition must succeed despite delivery failure: %v", err)
	}
	if res.Notification == nil || res.Notification.Sent || res.Notification.Error == "" {
		t.Fatalf("delivery failure must be reported, got %+v", res.Notification)
	}
	tk, _ := tickets.Get(context.Background(), "T1")
	if tk.CurrentStatus() != StatusReadyForPickup {
		t.Fatalf("status change rolled back on notify failure")
	}
}

var errForced = &Error{Code: "internal", Message: "smtp down"}
