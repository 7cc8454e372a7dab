package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shinyyama/lynxx-backend/internal/reqctx"
	"github.com/shinyyama/lynxx-backend/internal/service"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

const genericFailure = "failed to send, try again"

// writeError maps service errors to the envelope. Unknown errors never leak detail.
func writeError(c echo.Context, err error) error {
	status, code, msg := http.StatusInternalServerError, "internal_error", genericFailure
	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		status, code, msg = http.StatusPaymentRequired, "insufficient_credits", "not enough credits, top up to keep chatting"
	case errors.Is(err, service.ErrEmptyMessage):
		status, code, msg = http.StatusBadRequest, "empty_message", "message is empty"
	case errors.Is(err, service.ErrMessageTooLong):
		status, code, msg = http.StatusBadRequest, "message_too_long", "message is too long"
	case errors.Is(err, service.ErrInvalidMessageType):
		status, code, msg = http.StatusBadRequest, "bad_request", "invalid message type"
	case errors.Is(err, service.ErrInvalidRole):
		status, code, msg = http.StatusBadRequest, "bad_request", "invalid role"
	case errors.Is(err, service.ErrInvalidAmount):
		status, code, msg = http.StatusBadRequest, "bad_request", "invalid amount"
	case errors.Is(err, service.ErrUnauthorized):
		status, code, msg = http.StatusForbidden, "forbidden", "not a participant"
	case errors.Is(err, service.ErrConversationNotFound):
		status, code, msg = http.StatusNotFound, "not_found", "conversation not found"
	case errors.Is(err, service.ErrNotFound):
		status, code, msg = http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, service.ErrProfileExists):
		status, code, msg = http.StatusConflict, "profile_exists", "profile already exists with another role"
	case errors.Is(err, service.ErrTransient):
		status, code = http.StatusServiceUnavailable, "transient"
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("rid", reqctx.RID(c.Request().Context())).
			Str("path", c.Path()).
			Msg("request failed")
	}
	return c.JSON(status, NewErrorResponse(code, msg))
}

func requireUID(c echo.Context) (string, bool) {
	uid, _ := c.Get("uid").(string)
	return uid, uid != ""
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
}

func parseID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
