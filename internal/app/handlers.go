package app

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dentalbot/internal/booking"
	"dentalbot/internal/calendar"
	"dentalbot/internal/session"
)

const maxSlotDays = 60

// POST /api/messages
func (a *App) MessageHandler(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !a.Limiter.Allow(calendar.NormalizePhone(req.Phone)) {
		a.logger().Warn("rate limit exceeded", zap.String("conversation_id", req.ConversationID))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many messages, try again shortly"})
		return
	}

	reply := a.Bot.HandleTurn(c.Request.Context(), req.ConversationID, req.Phone, req.Text)
	c.JSON(http.StatusOK, MessageResponse{ConversationID: req.ConversationID, Reply: reply})
}

// GET /api/practitioners/:id/slots?days=N
// The id "any" lists every practitioner.
func (a *App) SlotsHandler(c *gin.Context) {
	id := c.Param("id")
	if id == "any" {
		id = ""
	}
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSlotDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 60"})
			return
		}
		days = n
	}

	slots, err := a.Bot.FreeSlots(c.Request.Context(), id, days)
	if errors.Is(err, booking.ErrUnknownPractitioner) {
		c.JSON(http.StatusNotFound, gin.H{"error": "practitioner not found"})
		return
	}
	if err != nil {
		a.logger().Warn("slot lookup failed", zap.String("practitioner", id), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "calendar unavailable"})
		return
	}
	c.JSON(http.StatusOK, SlotsResponse{Practitioner: id, Days: days, Slots: slots, Count: len(slots)})
}

// GET /api/sessions/:id
func (a *App) GetSessionHandler(c *gin.Context) {
	s, err := a.Sessions.Lookup(c.Request.Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, newSessionView(s))
}

// DELETE /api/sessions/:id
func (a *App) EndSessionHandler(c *gin.Context) {
	err := a.Sessions.End(c.Request.Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *App) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
