package repair

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type failingSequence struct{}

func (failingSequence) Next(ctx context.Context) (int64, error) {
	return 0, errors.New("counter unavailable")
}

func newTestConverter(t *testing.T, seq Sequence) (*Converter, *MemoryTicketStore, *MemoryAgreementStore, *MemoryAppointmentStore, *memNotifier) {
	t.Helper()
	tickets := NewMemoryTicketStore()
	agreements := NewMemoryAgreementStore()
	appointments := NewMemoryAppointmentStore()
	n := &memNotifier{}
	if seq == nil {
		seq = NewMemorySequence()
	}
	return NewConverter(tickets, agreements, appointments, seq, n), tickets, agreements, appointments, n
}

func seedAgreement(t *testing.T, store *MemoryAgreementStore, id string) *Agreement {
	t.Helper()
	ag := &Agreement{
		ID:       id,
		Customer: CustomerInfo{Name: "Dana", Email: "dana@example.com"},
		Device:   DeviceInfo{Brand: "Lenovo", Model: "T14"},
		Problem:  "no boot",
	}
	if err := store.Create(context.Background(), ag); err != nil {
		t.Fatalf("create agreement: %v", err)
	}
	return ag
}

func TestAcceptAgreementCreatesTicket(t *testing.T) {
	c, tickets, agreements, _, n := newTestConverter(t, NewMemorySequenceAt(1050))
	seedAgreement(t, agreements, "AG1")
	ctx := context.Background()

	res, err := c.AcceptAgreement(ctx, AcceptInput{
		AgreementID: "AG1", Branch: "I", Warranty: "in-warranty", Operator: user("amr"),
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	tk := res.Ticket
	if tk.Num != 1051 {
		t.Fatalf("allocated number = %d, want 1051", tk.Num)
	}
	if !strings.HasPrefix(tk.ID, "I1051") || len(tk.ID) != len("I1051")+3 {
		t.Fatalf("ticket id = %q, want branch+number+3 digits", tk.ID)
	}
	if len(tk.States) != 1 || tk.States[0] != StatusStart {
		t.Fatalf("ticket must be seeded at Start, got %v", tk.States)
	}
	if len(tk.Details) != 1 || len(tk.Technicians) != 1 {
		t.Fatalf("audit triple not seeded: %d/%d", len(tk.Details), len(tk.Technicians))
	}
	if tk.WarrantyStatus != "in-warranty" || tk.Location != "I" {
		t.Fatalf("operator-supplied fields lost: %+v", tk)
	}
	// source removed, customer notified
	if _, err := agreements.Get(ctx, "AG1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("agreement should be deleted after acceptance")
	}
	if !res.SourceDeleted || !res.Notification.Sent || res.Partial() {
		t.Fatalf("clean acceptance reported as partial: %+v", res)
	}
	if len(n.sent) != 1 || !strings.Contains(n.sent[0].HTML, tk.ID) {
		t.Fatalf("acceptance mail must carry the ticket id: %+v", n.sent)
	}
	if got, _ := tickets.Get(ctx, tk.ID); got == nil {
		t.Fatalf("ticket not persisted")
	}
}

func TestAcceptAgreementValidation(t *testing.T) {
	c, _, agreements, _, _ := newTestConverter(t, nil)
	seedAgreement(t, agreements, "AG1")

	cases := []AcceptInput{
		{AgreementID: "AG1", Warranty: "in", Operator: user("amr")},             // no branch
		{AgreementID: "AG1", Branch: "I", Operator: user("amr")},                // no warranty
		{AgreementID: "AG1", Branch: "I", Warranty: "in"},                       // no operator
		{AgreementID: "missing", Branch: "I", Warranty: "in", Operator: user("amr")},
	}
	for i, in := range cases {
		if _, err := c.AcceptAgreement(context.Background(), in); err == nil {
			t.Fatalf("case %d should fail", i)
		}
	}
}

func TestAllocatorFailureAbortsAcceptance(t *testing.T) {
	c, tickets, agreements, _, n := newTestConverter(t, failingSequence{})
	seedAgreement(t, agreements, "AG1")
	ctx := context.Background()

	_, err := c.AcceptAgreement(ctx, AcceptInput{
		AgreementID: "AG1", Branch: "I", Warranty: "in", Operator: user("amr"),
	})
	if err == nil {
		t.Fatalf("allocator failure must abort")
	}
	// nothing written, nothing deleted, nothing sent
	if ts, _ := tickets.List(ctx); len(ts) != 0 {
		t.Fatalf("no ticket may exist without a reserved number")
	}
	if _, gerr := agreements.Get(ctx, "AG1"); gerr != nil {
		t.Fatalf("agreement must survive an aborted acceptance")
	}
	if len(n.sent) != 0 {
		t.Fatalf("no notification on abort")
	}
}

func TestRejectAgreementWithoutEmail(t *testing.T) {
	c, tickets, agreements, _, _ := newTestConverter(t, nil)
	agreements.Create(context.Background(), &Agreement{
		ID:       "AG1",
		Customer: CustomerInfo{Name: "Walk-in"},
	})

	res, err := c.RejectAgreement(context.Background(), "AG1", user("amr"))
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if res.Notification.Sent || res.Notification.Error != "" {
		t.Fatalf("no recipient means skipped delivery, not an error: %+v", res.Notification)
	}
	// the rejection completed, but with no way to reach the customer the
	// operator must be told to follow up by hand
	if !res.Partial() {
		t.Fatalf("unreachable customer must be reported as a partial outcome")
	}
	if ts, _ := tickets.List(context.Background()); len(ts) != 0 {
		t.Fatalf("rejection must not create a ticket")
	}
}

func TestAcceptAgreementWithoutEmailIsPartial(t *testing.T) {
	c, _, agreements, _, _ := newTestConverter(t, nil)
	agreements.Create(context.Background(), &Agreement{
		ID:       "AG1",
		Customer: CustomerInfo{Name: "Walk-in"},
	})

	res, err := c.AcceptAgreement(context.Background(), AcceptInput{
		AgreementID: "AG1", Branch: "I", Warranty: "in", Operator: user("amr"),
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.Ticket == nil || !res.SourceDeleted {
		t.Fatalf("acceptance itself must complete: %+v", res)
	}
	if res.Notification.Sent || !res.Partial() {
		t.Fatalf("unreachable customer must degrade acceptance to partial: %+v", res)
	}
}

func TestAppointmentsNeverBecomeTickets(t *testing.T) {
	c, tickets, _, appointments, n := newTestConverter(t, nil)
	ctx := context.Background()
	appointments.Create(ctx, &Appointment{
		ID:       "AP1",
		Customer: CustomerInfo{Name: "Dana", Email: "dana@example.com"},
		Branch:   "I",
	})

	res, err := c.AcceptAppointment(ctx, "AP1", user("amr"))
	if err != nil {
		t.Fatalf("accept appointment: %v", err)
	}
	if res.Ticket != nil {
		t.Fatalf("appointments must not produce tickets")
	}
	if ts, _ := tickets.List(ctx); len(ts) != 0 {
		t.Fatalf("ticket store should stay empty")
	}
	if _, err := appointments.Get(ctx, "AP1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("appointment should be removed")
	}
	if !res.Notification.Sent || len(n.sent) != 1 {
		t.Fatalf("customer must be notified: %+v", res.Notification)
	}
}

func TestNewTicketManualPath(t *testing.T) {
	c, _, _, _, _ := newTestConverter(t, NewMemorySequenceAt(2000))

	tk, err := c.NewTicket(context.Background(), "C", "out-of-warranty",
		CustomerInfo{Name: "Omar"}, DeviceInfo{Brand: "HP"}, "broken hinge", admin("boss"))
	if err != nil {
		t.Fatalf("new ticket: %v", err)
	}
	if tk.Num != 2001 || !strings.HasPrefix(tk.ID, "C2001") {
		t.Fatalf("manual path must use the same allocator: %+v", tk)
	}
	if len(tk.States) != 1 || len(tk.Details) != 1 || len(tk.Technicians) != 1 {
		t.Fatalf("audit triple not seeded")
	}
}
