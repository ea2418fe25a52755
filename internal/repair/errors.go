package repair

import "fmt"

// Error carries a machine-readable code alongside the operator-facing
// message. Codes align with the HTTP layer's error schema.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

const (
	CodeBadRequest        = "bad_request"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeInvalidTransition = "invalid_transition"
	CodeApprovalPending   = "approval_pending"
	CodeQuotationRequired = "quotation_required"
	CodeForbidden         = "forbidden"
)

func errf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
