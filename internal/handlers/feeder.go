package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"petfeeder/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK          = "ok"
	statusFeeding     = "feed_accepted"
	statusScheduleSet = "schedule_set"

	errGetStatus       = "failed to load status"
	errGetSchedule     = "failed to load schedule"
	errSetSchedule     = "failed to store schedule"
	errFeed            = "failed to start feeding"
	errBusy            = "a dispense cycle is already running"
	errDeviceBusy      = "device command queue is full"
	errDeviceTimeout   = "device did not respond"
	errInvalidBodyPref = "invalid body: "
)

// commandTimeout bounds how long a request waits for the control loop.
const commandTimeout = 5 * time.Second

// maxScheduleBody caps PUT /schedule bodies well above any valid document.
const maxScheduleBody = 4 << 10

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// commandError maps a control-loop error to a response. It reports false
// when err is not one of the known command failures.
func (h *Handler) commandError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errDeviceBusy})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": errDeviceTimeout})
	default:
		return false
	}
	return true
}

// Respond with a status and include the device status if available.
func (h *Handler) respondWithStatus(c *gin.Context, status string, extra gin.H) {
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetStatus(c.Request.Context())
	if err == nil {
		resp["device"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Device status
// @Description  State machine, motor, counters, last fault, clock and link state.
// @Tags         feeder
// @Produce      json
// @Success      200  {object}  models.DeviceStatus
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/status [get]
func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.services.Monitoring.GetStatus(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetStatus, "status_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Manual feed
// @Description  Dispenses one portion. Rejected while a cycle is running.
// @Tags         feeder
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, device"
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Failure      504  {object}  map[string]string
// @Router       /api/v1/feed [post]
func (h *Handler) feed(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()

	err := h.services.Feeder.Feed(ctx)
	switch {
	case err == nil:
		h.respondWithStatus(c, statusFeeding, gin.H{})
	case errors.Is(err, service.ErrDispenseBusy):
		c.JSON(http.StatusConflict, gin.H{"error": errBusy})
	default:
		if !h.commandError(c, err) {
			h.logAndJSONError(c, http.StatusInternalServerError, errFeed, "manual_feed_failed", err)
		}
	}
}

// @Summary      Get schedule
// @Description  Returns the stored schedule document byte for byte.
// @Tags         schedule
// @Produce      json
// @Success      200  {array}   models.ScheduleEntry
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/schedule [get]
func (h *Handler) getSchedule(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()

	doc, err := h.services.Feeder.Schedule(ctx)
	if err != nil {
		if h.commandError(c, err) {
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSchedule, "schedule_get_failed", err)
		return
	}
	c.Data(http.StatusOK, "application/json", doc)
}

// @Summary      Replace schedule
// @Description  Exactly three entries. Every slot becomes eligible again today.
// @Tags         schedule
// @Accept       json
// @Produce      json
// @Param        body  body      []models.ScheduleEntry  true  "Three schedule entries"
// @Success      200   {object}  map[string]interface{}  "status, device"
// @Failure      400   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/schedule [put]
func (h *Handler) putSchedule(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxScheduleBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()

	err = h.services.Feeder.SetSchedule(ctx, raw)
	switch {
	case err == nil:
		h.respondWithStatus(c, statusScheduleSet, gin.H{})
	case errors.Is(err, service.ErrInvalidSchedule), errors.Is(err, service.ErrDocumentTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
	default:
		if !h.commandError(c, err) {
			h.logAndJSONError(c, http.StatusInternalServerError, errSetSchedule, "schedule_set_failed", err)
		}
	}
}
