package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"petfeeder/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid  = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid    = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errRangeInvalid = "'from' must be <= 'to'"
	errListEvents   = "failed to load feed events"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

var queryTimeLayouts = []string{time.RFC3339, layoutDateTime, layoutDate}

// @Summary      List feed events
// @Description  Feed, fault and schedule events. 'to' given as a bare date covers that whole day.
// @Tags         logs
// @Produce      json
// @Param        from  query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-08-01)
// @Param        to    query   string  false  "End of range, inclusive"  example(2025-08-31)
// @Param        type  query   string  false  "Event type"  Enums(FEED_START,FEED_DONE,STATE_CHANGE,FAULT,SCHEDULE_UPDATE,SCHEDULE_RESET,RECOVERY)
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
func (h *Handler) getLogs(c *gin.Context) {
	filter, msg := parseLogFilter(c)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	events, err := h.services.EventLog.List(c.Request.Context(), filter)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListEvents, "feed_events_list_failed", err,
			"from", filter.From, "to", filter.To, "type", filter.Type)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// parseLogFilter reads from/to/type. A non-empty string is the user-facing
// reason the query was rejected.
func parseLogFilter(c *gin.Context) (service.LogFilter, string) {
	f := service.LogFilter{Type: strings.ToUpper(strings.TrimSpace(c.Query("type")))}

	if qs := c.Query("from"); qs != "" {
		t, err := parseQueryTime(qs)
		if err != nil {
			return f, errFromInvalid
		}
		f.From = t
	}
	if qs := c.Query("to"); qs != "" {
		t, err := parseQueryTime(qs)
		if err != nil {
			return f, errToInvalid
		}
		if !strings.ContainsAny(qs, "T ") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, errRangeInvalid
	}
	return f, ""
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range queryTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
