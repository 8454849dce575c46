// Package api exposes the booking engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"courtbook/internal/booking"
	"courtbook/internal/model"
	"courtbook/internal/slots"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Service is the engine surface used by the handlers.
type Service interface {
	Create(ctx context.Context, req booking.CreateRequest) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id string, status model.Status, actor, reason string) (*model.Booking, error)
	Get(ctx context.Context, id string) (*model.Booking, error)
	ListBookings(ctx context.Context, resourceID string, date time.Time) ([]model.Booking, error)
	GetAvailableSlots(ctx context.Context, resourceID string, date time.Time) ([]slots.TimeSlot, error)
	FreeWindows(ctx context.Context, resourceID string, date time.Time) ([]slots.Window, error)
	ParseDate(s string) (time.Time, error)
}

type Handler struct {
	svc    Service
	logger zerolog.Logger
}

func NewHandler(svc Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With().Str("component", "api").Logger()}
}

// RouterConfig tunes the router middleware.
type RouterConfig struct {
	RateLimit float64
	RateBurst int
}

// NewRouter registers the v1 routes.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), AccessLog(h.logger))
	if cfg.RateLimit > 0 {
		r.Use(RateLimit(cfg.RateLimit, cfg.RateBurst, h.logger))
	}

	v1 := r.Group("/v1")
	v1.POST("/bookings", h.CreateBooking)
	v1.GET("/bookings/:id", h.GetBooking)
	v1.PATCH("/bookings/:id/status", h.UpdateStatus)
	v1.GET("/resources/:id/slots", h.ListSlots)
	v1.GET("/resources/:id/windows", h.ListWindows)
	v1.GET("/resources/:id/bookings", h.ListBookings)
	return r
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req booking.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation"})
		return
	}
	if actor := c.GetHeader(ActorHeader); actor != "" {
		req.RequesterID = actor
	}

	b, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBooking(c *gin.Context) {
	b, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation"})
		return
	}

	b, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), model.Status(req.Status), c.GetHeader(ActorHeader), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type slotsResponse struct {
	ResourceID string           `json:"resource_id"`
	Date       string           `json:"date"`
	Slots      []slots.SlotInfo `json:"slots"`
}

// ListSlots returns the day's slots. available_only=true drops booked ones.
func (h *Handler) ListSlots(c *gin.Context) {
	date, err := h.svc.ParseDate(c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	availableOnly := false
	if raw := c.Query("available_only"); raw != "" {
		availableOnly, err = strconv.ParseBool(raw)
		if err != nil {
			h.fail(c, fmt.Errorf("%w: available_only must be a boolean", booking.ErrValidation))
			return
		}
	}

	annotated, err := h.svc.GetAvailableSlots(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		h.fail(c, err)
		return
	}
	if availableOnly {
		annotated = slots.AvailableOnly(annotated)
	}
	c.JSON(http.StatusOK, slotsResponse{
		ResourceID: c.Param("id"),
		Date:       date.Format(model.DateLayout),
		Slots:      slots.ToSlotInfo(annotated),
	})
}

type windowsResponse struct {
	ResourceID string             `json:"resource_id"`
	Date       string             `json:"date"`
	Windows    []slots.WindowInfo `json:"windows"`
}

func (h *Handler) ListWindows(c *gin.Context) {
	date, err := h.svc.ParseDate(c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}

	windows, err := h.svc.FreeWindows(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, windowsResponse{
		ResourceID: c.Param("id"),
		Date:       date.Format(model.DateLayout),
		Windows:    slots.ToWindowInfo(windows),
	})
}

type bookingsResponse struct {
	ResourceID string          `json:"resource_id"`
	Date       string          `json:"date"`
	Bookings   []model.Booking `json:"bookings"`
}

func (h *Handler) ListBookings(c *gin.Context) {
	date, err := h.svc.ParseDate(c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}

	list, err := h.svc.ListBookings(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []model.Booking{}
	}
	c.JSON(http.StatusOK, bookingsResponse{
		ResourceID: c.Param("id"),
		Date:       date.Format(model.DateLayout),
		Bookings:   list,
	})
}
