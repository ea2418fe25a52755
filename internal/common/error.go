package common

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
)

// Domain error codes shared by handlers and the workflow engine.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeNotFound          = "not_found"
	ErrCodeConflict          = "conflict"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeApprovalPending   = "approval_pending"
	ErrCodeQuotationRequired = "quotation_required"
	ErrCodeForbidden         = "forbidden"
	ErrCodeStoreUnavailable  = "store_unavailable"
	ErrCodeInternal          = "internal_error"
)

// ErrorResponse harmonized HTTP error schema.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// RequestIDKey exported for reuse in tests and middleware.
const RequestIDKey = "request_id"

// MapErrorCodeToHTTP maps domain error codes to HTTP status.
func MapErrorCodeToHTTP(code string) int {
	switch code {
	case ErrCodeBadRequest, ErrCodeQuotationRequired:
		return 400
	case ErrCodeForbidden:
		return 403
	case ErrCodeNotFound:
		return 404
	case ErrCodeConflict, ErrCodeInvalidTransition, ErrCodeApprovalPending:
		return 409
	case ErrCodeStoreUnavailable:
		return 503
	default:
		return 500
	}
}

// WriteError converts an internal error code + message to the HTTP JSON schema.
func WriteError(c context.Context, ctx *app.RequestContext, status int, code, msg string) {
	rid := ""
	if v, ok := ctx.Get(RequestIDKey); ok {
		switch vv := v.(type) {
		case string:
			rid = vv
		case []byte:
			rid = string(vv)
		}
	}
	if status == 0 {
		status = MapErrorCodeToHTTP(code)
	}
	ctx.SetStatusCode(status)
	ctx.JSON(status, ErrorResponse{Code: code, Message: msg, RequestID: rid})
}
