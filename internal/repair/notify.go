package repair

import (
	"context"
	"fmt"
)

// Message is a fully-formed outbound notification. The core decides when to
// send and with what content; delivery belongs to the Notifier.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Branch  string `json:"branch"`
}

// Notifier performs delivery. A failure is surfaced to the operator but
// never rolls back the state change that preceded it.
type Notifier interface {
	Send(ctx context.Context, m Message) error
}

// NotifyReport tells the operator whether the trailing notification step of
// an action succeeded. Empty Error with Sent=false means no recipient was on
// file; the action itself still completed.
type NotifyReport struct {
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

func readyForPickupMessage(t *Ticket) Message {
	return Message{
		To:      t.Customer.Email,
		Subject: fmt.Sprintf("Your device is ready for pickup (ticket %s)", t.ID),
		HTML: fmt.Sprintf("<p>Dear %s,</p><p>Your %s %s is repaired and ready for pickup at branch %s. Please bring your service agreement.</p><p>Ticket: %s</p>",
			t.Customer.Name, t.Device.Brand, t.Device.Model, t.Location, t.ID),
		Branch: t.Location,
	}
}

func serviceCompleteMessage(t *Ticket) Message {
	return Message{
		To:      t.Customer.Email,
		Subject: fmt.Sprintf("Service complete (ticket %s)", t.ID),
		HTML: fmt.Sprintf("<p>Dear %s,</p><p>Service on your %s %s is complete. Thank you for choosing us.</p><p>Ticket: %s</p>",
			t.Customer.Name, t.Device.Brand, t.Device.Model, t.ID),
		Branch: t.Location,
	}
}

func agreementAcceptedMessage(a *Agreement, t *Ticket) Message {
	return Message{
		To:      a.Customer.Email,
		Subject: fmt.Sprintf("Your service request was accepted (ticket %s)", t.ID),
		HTML: fmt.Sprintf("<p>Dear %s,</p><p>Your service request for the %s %s has been accepted. Your ticket number is <b>%s</b>; use it for any inquiry.</p>",
			a.Customer.Name, a.Device.Brand, a.Device.Model, t.ID),
		Branch: t.Location,
	}
}

func agreementRejectedMessage(a *Agreement) Message {
	return Message{
		To:      a.Customer.Email,
		Subject: "Your service request could not be accepted",
		HTML: fmt.Sprintf("<p>Dear %s,</p><p>We are sorry, your service request for the %s %s could not be accepted. Please contact the branch for details.</p>",
			a.Customer.Name, a.Device.Brand, a.Device.Model),
		Branch: a.PreferredBranch,
	}
}

func appointmentAcceptedMessage(a *Appointment) Message {
	return Message{
		To:      a.Customer.Email,
		Subject: "Your appointment is confirmed",
		HTML: fmt.Sprintf("<p>Dear %s,</p><p>Your appointment at branch %s is confirmed. We look forward to seeing you.</p>",
			a.Customer.Name, a.Branch),
		Branch: a.Branch,
	}
}

func appointmentRejectedMessage(a *Appointment) Message {
	return Message{
		To:      a.Customer.Email,
		Subject: "Your appointment could not be confirmed",
		HTML: fmt.Sprintf("<p>Dear %s,</p><p>We are sorry, your requested appointment at branch %s is not available. Please pick another slot.</p>",
			a.Customer.Name, a.Branch),
		Branch: a.Branch,
	}
}

// deliver sends m unless no recipient is on file. The state change that led
// here always takes priority over notification success.
func deliver(ctx context.Context, n Notifier, m Message) NotifyReport {
	if m.To == "" {
		return NotifyReport{Sent: false}
	}
	if n == nil {
		return NotifyReport{Sent: false}
	}
	if err := n.Send(ctx, m); err != nil {
		return NotifyReport{Sent: false, Error: err.Error()}
	}
	return NotifyReport{Sent: true}
}
