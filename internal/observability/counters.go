package observability

import (
	"fmt"
	"sync/atomic"
)

var (
	TicketCreated        atomic.Int64
	TicketTransitioned   atomic.Int64
	TransitionRejected   atomic.Int64
	ApprovalRequested    atomic.Int64
	ApprovalApproved     atomic.Int64
	ApprovalRejected     atomic.Int64
	AgreementAccepted    atomic.Int64
	AgreementRejected    atomic.Int64
	AppointmentAccepted  atomic.Int64
	AppointmentRejected  atomic.Int64
	DocumentSaved        atomic.Int64
	PartsNoteMigrated    atomic.Int64
	NotificationSent     atomic.Int64
	NotificationFailed   atomic.Int64
	TicketSearchRequests atomic.Int64
)

// Snapshot returns a simple Prometheus-like exposition text for the domain
// counters, served under /metrics/domain.
func Snapshot() string {
	return fmt.Sprintf(`# FixFlow metrics
fixflow_ticket_created_total %d
fixflow_ticket_transitioned_total %d
fixflow_transition_rejected_total %d
fixflow_approval_requested_total %d
fixflow_approval_approved_total %d
fixflow_approval_rejected_total %d
fixflow_agreement_accepted_total %d
fixflow_agreement_rejected_total %d
fixflow_appointment_accepted_total %d
fixflow_appointment_rejected_total %d
fixflow_document_saved_total %d
fixflow_parts_note_migrated_total %d
fixflow_notification_sent_total %d
fixflow_notification_failed_total %d
fixflow_ticket_search_requests_total %d
`,
		TicketCreated.Load(),
		TicketTransitioned.Load(),
		TransitionRejected.Load(),
		ApprovalRequested.Load(),
		ApprovalApproved.Load(),
		ApprovalRejected.Load(),
		AgreementAccepted.Load(),
		AgreementRejected.Load(),
		AppointmentAccepted.Load(),
		AppointmentRejected.Load(),
		DocumentSaved.Load(),
		PartsNoteMigrated.Load(),
		NotificationSent.Load(),
		NotificationFailed.Load(),
		TicketSearchRequests.Load(),
	)
}
