// Package api exposes the presence aggregations over HTTP with gin.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"presence/internal/attendance"
	"presence/internal/presence"
	"presence/internal/queue"
)

// Handler serves the JSON endpoints and HTML pages.
type Handler struct {
	svc *attendance.Service
	bus queue.Queue
}

// NewHandler wires the service and the refresh bus.
func NewHandler(svc *attendance.Service, bus queue.Queue) *Handler {
	return &Handler{svc: svc, bus: bus}
}

// Index redirects to the default page.
func (h *Handler) Index(c *gin.Context) {
	c.Redirect(http.StatusFound, "/presence_weekday.html")
}

// Page renders one of the embedded templates.
func (h *Handler) Page(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, name, gin.H{"Title": title, "Page": name})
	}
}

// Users lists the directory in source order.
func (h *Handler) Users(c *gin.Context) {
	entries, err := h.svc.DirectoryEntries(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// MeanTimeWeekday returns [weekday, mean seconds] for each day.
func (h *Handler) MeanTimeWeekday(c *gin.Context) {
	tl, ok := h.timeline(c)
	if !ok {
		return
	}
	means := presence.MeanByWeekday(presence.GroupByWeekday(tl))
	rows := make([][]any, 0, presence.DaysInWeek)
	for d, m := range means {
		rows = append(rows, []any{presence.WeekdayAbbr[d], m})
	}
	c.JSON(http.StatusOK, rows)
}

// PresenceWeekday returns a header row followed by [weekday, total seconds].
func (h *Handler) PresenceWeekday(c *gin.Context) {
	tl, ok := h.timeline(c)
	if !ok {
		return
	}
	totals := presence.TotalByWeekday(presence.GroupByWeekday(tl))
	rows := make([][]any, 0, presence.DaysInWeek+1)
	rows = append(rows, []any{"Weekday", "Presence (s)"})
	for d, total := range totals {
		rows = append(rows, []any{presence.WeekdayAbbr[d], total})
	}
	c.JSON(http.StatusOK, rows)
}

// PresenceStartEnd returns [weekday, mean start, mean end] in seconds since
// midnight.
func (h *Handler) PresenceStartEnd(c *gin.Context) {
	tl, ok := h.timeline(c)
	if !ok {
		return
	}
	spans := presence.MeanStartEnd(presence.StartEndPresence(tl))
	rows := make([][]any, 0, presence.DaysInWeek)
	for d, s := range spans {
		rows = append(rows, []any{presence.WeekdayAbbr[d], s.Start, s.End})
	}
	c.JSON(http.StatusOK, rows)
}

// RefreshCache drops the local cache and asks peers to do the same.
func (h *Handler) RefreshCache(c *gin.Context) {
	h.svc.Reset()
	msg := queue.NewMessage(queue.TypeCacheReset, []byte(c.GetString("request_id")))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	broadcast := true
	if err := h.bus.Publish(ctx, msg); err != nil {
		slog.Warn("refresh broadcast failed", "id", msg.ID, "error", err)
		broadcast = false
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reset", "id": msg.ID, "broadcast": broadcast})
}

// Healthz reports whether both sources are readable and the bus is up.
func (h *Handler) Healthz(c *gin.Context) {
	csvPath, xmlPath := h.svc.Sources()
	csvOK := readable(csvPath)
	xmlOK := readable(xmlPath)
	busOK := h.bus.Healthy(c.Request.Context())

	status := http.StatusOK
	if !csvOK || !xmlOK || !busOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"attendance": csvOK, "directory": xmlOK, "bus": busOK})
}

// timeline resolves :user_id. When it returns false the response is already
// written: 400 for a bad id, [] for an unknown person, or the load error.
func (h *Handler) timeline(c *gin.Context) (presence.Timeline, bool) {
	id, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be an integer"})
		return nil, false
	}
	tl, found, err := h.svc.Timeline(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if !found {
		slog.Debug("user not found", "user_id", id)
		c.JSON(http.StatusOK, []any{})
		return nil, false
	}
	return tl, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, presence.ErrSourceUnavailable) {
		status = http.StatusServiceUnavailable
	}
	slog.Error("request failed", "path", c.FullPath(), "status", status, "error", err)
	c.JSON(status, gin.H{"error": http.StatusText(status)})
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
