package repair

// Status is a ticket's workflow position. Codes 0-7 and their labels are a
// fixed contract; new statuses must be appended after Complete, never
// inserted, so tickets created under an older scheme keep their ordering.
type Status int

const (
	StatusStart           Status = 0
	StatusTroubleshooting Status = 1
	StatusReleased        Status = 2
	StatusAwaitingParts   Status = 3
	StatusPartsAllocated  Status = 4
	StatusInRepair        Status = 5
	StatusReadyForPickup  Status = 6
	StatusComplete        Status = 7
)

var statusLabels = [...]string{
	"Start",
	"VMI Troubleshooting",
	"Repair Released from Processing",
	"Awaiting Parts",
	"Parts Allocated",
	"In Repair",
	"Ready For Pickup",
	"Repair Marked Complete",
}

func (s Status) Valid() bool { return s >= StatusStart && s <= StatusComplete }

func (s Status) Label() string {
	if !s.Valid() {
		return "Unknown"
	}
	return statusLabels[s]
}

// ApprovalStatus of the troubleshooting gate.
type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = "none"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Permission levels of an operator. Admin and SystemAdmin may resolve
// approvals and bypass the approval freeze.
type Permission string

const (
	PermUser        Permission = "User"
	PermAdmin       Permission = "Admin"
	PermSystemAdmin Permission = "SystemAdmin"
)

// Operator identifies who performs an action. Supplied per request;
// authentication itself is outside this service.
type Operator struct {
	Name       string     `json:"name"`
	Permission Permission `json:"permission"`
	Location   string     `json:"location"`
}

func (o Operator) IsAdmin() bool {
	return o.Permission == PermAdmin || o.Permission == PermSystemAdmin
}

type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type DeviceInfo struct {
	Brand  string `json:"brand"`
	Model  string `json:"model"`
	Serial string `json:"serial"`
}

// Ticket is the repair-job record tracked end to end.
//
// States, Details and Technicians form an append-only audit triple: every
// transition appends exactly one entry to each, so the three stay the same
// length for the life of the ticket. The last element of States is the
// current status. The "technicions" wire name is historical and kept for
// records written by the previous system.
type Ticket struct {
	ID       string `json:"ticket_id"`
	Num      int64  `json:"ticket_num"`
	Location string `json:"location"`

	Customer       CustomerInfo `json:"customer"`
	Device         DeviceInfo   `json:"device"`
	Problem        string       `json:"problem"`
	WarrantyStatus string       `json:"warranty_status"`

	States      []Status `json:"ticket_states"`
	Details     []string `json:"details"`
	Technicians []string `json:"technicions"`

	ApprovalRequired bool           `json:"approval_required"`
	ApprovalStatus   ApprovalStatus `json:"approval_status"`

	// Storage paths of signed documents, absent until the generating step
	// completes.
	ContractURL          string `json:"contract_url,omitempty"`
	DeliveryNoteURL      string `json:"delivery_note_url,omitempty"`
	PartsDeliveryNoteURL string `json:"parts_delivery_note_url,omitempty"`
	PriceQuotationURL    string `json:"price_quotation_url,omitempty"`
	InvoiceURL           string `json:"invoice_url,omitempty"`
	ReleaseFormURL       string `json:"release_form_url,omitempty"`

	// Linkage used by the document dependency resolver.
	PartDeliveryNote  string  `json:"part_delivery_note,omitempty"`
	PriceQuotationRef string  `json:"price_quotation_ref,omitempty"`
	ShouldHaveInvoice bool    `json:"should_have_invoice"`
	HasAnInvoice      bool    `json:"has_an_invoice"`
	AmountPaid        float64 `json:"amount_paid"`

	CreatedAt int64 `json:"created_at"`
}

// CurrentStatus returns the last element of States. A ticket always has at
// least one state (seeded with StatusStart on creation).
func (t *Ticket) CurrentStatus() Status {
	if len(t.States) == 0 {
		return StatusStart
	}
	return t.States[len(t.States)-1]
}

// Clone returns a deep copy so callers can mutate freely before Update.
func (t *Ticket) Clone() *Ticket {
	cp := *t
	cp.States = append([]Status(nil), t.States...)
	cp.Details = append([]string(nil), t.Details...)
	cp.Technicians = append([]string(nil), t.Technicians...)
	return &cp
}

// Part is one line item of a parts delivery note. A labor/service entry has
// only Description and Price populated; the identification fields stay empty.
type Part struct {
	PartNumber     string  `json:"part_number"`
	Description    string  `json:"description"`
	OldSN          string  `json:"old_sn"`
	NewSN          string  `json:"new_sn"`
	Quantity       int     `json:"quantity"`
	Price          float64 `json:"price"`
	WarrantyStatus string  `json:"warranty_status"`
}

// PartsNote is the document listing physical parts and labor applied to a
// repair. Legacy records persisted parallel arrays instead of Parts; the
// resolver migrates those positionally exactly once (MigratedAt stamps the
// migration).
type PartsNote struct {
	ID       string `json:"id"`
	TicketID string `json:"ticket_id"`
	Parts    []Part `json:"parts"`

	// Legacy parallel-array shape, present only on old records.
	PartNumbers  []string  `json:"partNumbers,omitempty"`
	Descriptions []string  `json:"descriptions,omitempty"`
	OldSNs       []string  `json:"oldSNs,omitempty"`
	NewSNs       []string  `json:"newSNs,omitempty"`
	Quantities   []int     `json:"quantities,omitempty"`
	Prices       []float64 `json:"prices,omitempty"`
	Warranties   []string  `json:"warranties,omitempty"`
	Services     []string  `json:"services,omitempty"`

	MigratedAt int64 `json:"migrated_at,omitempty"`
	CreatedAt  int64 `json:"created_at"`
}

// Clone returns a deep copy of the note.
func (n *PartsNote) Clone() *PartsNote {
	cp := *n
	cp.Parts = append([]Part(nil), n.Parts...)
	cp.PartNumbers = append([]string(nil), n.PartNumbers...)
	cp.Descriptions = append([]string(nil), n.Descriptions...)
	cp.OldSNs = append([]string(nil), n.OldSNs...)
	cp.NewSNs = append([]string(nil), n.NewSNs...)
	cp.Quantities = append([]int(nil), n.Quantities...)
	cp.Prices = append([]float64(nil), n.Prices...)
	cp.Warranties = append([]string(nil), n.Warranties...)
	cp.Services = append([]string(nil), n.Services...)
	return &cp
}

// HasPricedPart reports whether any line item carries a price above zero.
func (n *PartsNote) HasPricedPart() bool {
	for _, p := range n.Parts {
		if p.Price > 0 {
			return true
		}
	}
	return false
}

// QuoteItem is one entry of a price quotation.
type QuoteItem struct {
	PartNumber  string  `json:"part_number,omitempty"`
	ServiceType string  `json:"service_type,omitempty"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Service     bool    `json:"service"`
}

// Quotation is a pre-approval cost estimate, independent of the parts note
// until the customer accepts the repair.
type Quotation struct {
	ID        string      `json:"id"`
	TicketID  string      `json:"ticket_id"`
	Items     []QuoteItem `json:"items"`
	CreatedAt int64       `json:"created_at"`
}

// Agreement is a customer-submitted service request awaiting accept/reject.
// It exists only until an operator converts it into a ticket or rejects it.
type Agreement struct {
	ID              string       `json:"id"`
	Customer        CustomerInfo `json:"customer"`
	Device          DeviceInfo   `json:"device"`
	Problem         string       `json:"problem"`
	ContractURL     string       `json:"contract_url,omitempty"`
	PreferredBranch string       `json:"preferred_branch,omitempty"`
	WarrantyHint    string       `json:"warranty_hint,omitempty"`
	CreatedAt       int64        `json:"created_at"`
}

// Appointment is a scheduled-slot record; accepting or rejecting it removes
// the slot and notifies the customer, but never produces a ticket.
type Appointment struct {
	ID        string       `json:"id"`
	Customer  CustomerInfo `json:"customer"`
	Branch    string       `json:"branch"`
	SlotAt    int64        `json:"slot_at"`
	CreatedAt int64        `json:"created_at"`
}

// Available reports whether the slot is still in the future.
func (a *Appointment) Available(now int64) bool { return a.SlotAt > now }
