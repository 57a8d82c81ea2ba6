package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/oitbase/roomledger/internal/billing"
	"github.com/oitbase/roomledger/internal/directory"
	"github.com/oitbase/roomledger/internal/identity"
	"github.com/oitbase/roomledger/internal/rooms"
	"github.com/oitbase/roomledger/internal/types"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    lower(http.StatusText(http.StatusBadRequest)),
	}
}

func NewNotFoundError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    lower(http.StatusText(http.StatusNotFound)),
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    lower(http.StatusText(http.StatusUnauthorized)),
	}
}

func NewForbiddenError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Message:    lower(http.StatusText(http.StatusForbidden)),
	}
}

func NewConflictError(message string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusConflict,
		Message:    message,
	}
}

// apiErrorFor translates domain errors to their HTTP representation.
// Every public operation resolves to a status and a human-readable
// message; the caller decides presentation.
func apiErrorFor(err error) *ApiError {
	var quotaErr *types.QuotaError
	switch {
	case errors.As(err, &quotaErr):
		return NewConflictError(quotaErr.Error())
	case errors.Is(err, rooms.ErrInvalidOrExpiredCode):
		return &ApiError{StatusCode: http.StatusBadRequest, Message: "invalid or expired code"}
	case errors.Is(err, directory.ErrNotFound),
		errors.Is(err, rooms.ErrRoomNotFound),
		errors.Is(err, rooms.ErrAccountNotFound):
		return NewNotFoundError()
	case errors.Is(err, identity.ErrInvalidCredentials):
		return NewUnauthorizedError()
	case errors.Is(err, directory.ErrPartialWrite):
		return &ApiError{StatusCode: http.StatusInternalServerError, Message: "partial write failure", Err: err}
	case errors.Is(err, identity.ErrIdentityFailure):
		return &ApiError{StatusCode: http.StatusBadGateway, Message: "external identity failure", Err: err}
	case errors.Is(err, billing.ErrEntitlementLookup):
		return &ApiError{StatusCode: http.StatusBadGateway, Message: "entitlement lookup failure", Err: err}
	default:
		return NewInternalServerError(err)
	}
}
