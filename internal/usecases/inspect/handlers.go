// Package inspect exposes read-mostly HTTP views over presence, the offline
// backlog and the room catalogue.
package inspect

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/capacity"
	"github.com/medeiros-dev/reservation-notifier/internal/infrastructure/classroom"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"go.uber.org/zap"
)

type PresenceReader interface {
	ClientCount(userID string) int
	PendingCount(ctx context.Context, userID string) (int, error)
}

type RoomCatalog interface {
	capacity.Gate
	Rooms() []classroom.Room
	UpdateCapacity(room string, capacity int) error
}

type PresenceOutputDTO struct {
	UserID  string `json:"user_id"`
	Clients int    `json:"clients"`
	Pending int    `json:"pending"`
}

type CapacityOutputDTO struct {
	Room    string `json:"room"`
	Exists  bool   `json:"exists"`
	Allowed bool   `json:"allowed"`
}

type UpdateCapacityInputDTO struct {
	Capacity *int `json:"capacity" binding:"required"`
}

type Handlers struct {
	presence PresenceReader
	rooms    RoomCatalog
}

func NewHandlers(presence PresenceReader, rooms RoomCatalog) *Handlers {
	return &Handlers{presence: presence, rooms: rooms}
}

// Presence answers GET /users/:userId/presence.
func (h *Handlers) Presence(c *gin.Context) {
	userID := c.Param("userId")
	pending, err := h.presence.PendingCount(c.Request.Context(), userID)
	if err != nil {
		logger.L().Error("Failed to count offline notifications",
			zap.String("userID", userID),
			logger.TraceField(c.Request.Context()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read offline store"})
		return
	}
	c.JSON(http.StatusOK, PresenceOutputDTO{
		UserID:  userID,
		Clients: h.presence.ClientCount(userID),
		Pending: pending,
	})
}

// Capacity answers GET /rooms/:room/capacity?count=N.
func (h *Handlers) Capacity(c *gin.Context) {
	room := c.Param("room")
	count, err := strconv.Atoi(c.Query("count"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be an integer"})
		return
	}
	c.JSON(http.StatusOK, CapacityOutputDTO{
		Room:    room,
		Exists:  h.rooms.ClassroomExists(room),
		Allowed: h.rooms.CheckCapacity(room, count),
	})
}

// Rooms answers GET /rooms.
func (h *Handlers) Rooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.rooms.Rooms()})
}

// UpdateCapacity answers PUT /rooms/:room/capacity.
func (h *Handlers) UpdateCapacity(c *gin.Context) {
	room := c.Param("room")
	var input UpdateCapacityInputDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if *input.Capacity < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "capacity must not be negative"})
		return
	}

	err := h.rooms.UpdateCapacity(room, *input.Capacity)
	switch {
	case errors.Is(err, domain.ErrUnknownRoom):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		logger.L().Error("Failed to update room capacity", zap.String("room", room), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update capacity"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Register mounts the handlers on rg.
func (h *Handlers) Register(rg *gin.RouterGroup) {
	rg.GET("/users/:userId/presence", h.Presence)
	rg.GET("/rooms", h.Rooms)
	rg.GET("/rooms/:room/capacity", h.Capacity)
	rg.PUT("/rooms/:room/capacity", h.UpdateCapacity)
}
