package api

import (
	"errors"
	"net/http"

	"courtbook/internal/booking"
	"courtbook/internal/lock"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorStatuses = []struct {
	target error
	status int
	code   string
}{
	{booking.ErrValidation, http.StatusBadRequest, "validation"},
	{booking.ErrPastDate, http.StatusBadRequest, "past_date"},
	{booking.ErrInvalidDuration, http.StatusBadRequest, "invalid_duration"},
	{booking.ErrNotFound, http.StatusNotFound, "not_found"},
	{booking.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{booking.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
	{booking.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{lock.ErrLockTimeout, http.StatusServiceUnavailable, "busy"},
}

// statusFor maps err to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.target) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorBody{Error: msg, Code: code})
}
