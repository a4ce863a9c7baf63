package handlers

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/arnold/habitgrid-api/internal/habits"
	"github.com/arnold/habitgrid-api/internal/middleware"
)

// Event types sent over WebSocket
const (
	EventHabitUpdated       = "habit_updated"
	EventHabitDeleted       = "habit_deleted"
	EventAchievementToggled = "achievement_toggled"
	EventAlarmUpdated       = "alarm_updated"
	EventAlarmDeleted       = "alarm_deleted"
)

// WSEvent is the JSON message sent to connected clients
type WSEvent struct {
	Type    string      `json:"type"`
	HabitID string      `json:"habitItemId"`
	Data    interface{} `json:"data,omitempty"`
}

type connection struct {
	conn   *websocket.Conn
	userID uuid.UUID
	mu     sync.Mutex
}

func (c *connection) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub fans habit changes out to every open view of the same habit. Rooms
// are keyed by habit document path, so they are private to the owner.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*connection]bool
}

var WS = NewHub()

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*connection]bool)}
}

func (h *Hub) register(room string, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*connection]bool)
	}
	h.rooms[room][conn] = true
	appLog.Debug("ws register", "room", room, "user", conn.userID, "total", len(h.rooms[room]))
}

func (h *Hub) unregister(room string, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Viewers counts the open connections on room.
func (h *Hub) Viewers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast sends an event to every connection in the habit's room.
func (h *Hub) Broadcast(room string, event WSEvent) {
	h.mu.RLock()
	conns := make([]*connection, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	msg, err := json.Marshal(event)
	if err != nil {
		appLog.Error("ws marshal failed", "type", event.Type, "error", err)
		return
	}
	for _, c := range conns {
		if err := c.write(msg); err != nil {
			appLog.Warn("ws write failed", "room", room, "error", err)
		}
	}
}

// WebSocketUpgrade is the middleware that checks the upgrade request and validates JWT
func WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		// ?token=<jwt> for browsers, Authorization header for everything else
		tokenString := c.Query("token")
		if tokenString == "" {
			header := c.Get("Authorization")
			if raw := strings.TrimPrefix(header, "Bearer "); raw != header {
				tokenString = raw
			}
		}
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authentication token",
			})
		}

		claims, err := middleware.ParseToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("userId", claims.UserID)
		return c.Next()
	}
}

// HandleWebSocket keeps a connection open on one habit's room.
func HandleWebSocket(c *websocket.Conn) {
	habitID := c.Params("id")
	userID, ok := c.Locals("userId").(uuid.UUID)
	if !ok || habitID == "" {
		c.Close()
		return
	}

	room := habits.HabitPath(userID, habitID)
	conn := &connection{conn: c, userID: userID}
	WS.register(room, conn)
	defer WS.unregister(room, conn)

	// read until the client goes away; clients only send keepalives
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

func broadcastHabit(c *fiber.Ctx, habitID, eventType string, data interface{}) {
	WS.Broadcast(habits.HabitPath(middleware.GetUserID(c), habitID), WSEvent{
		Type:    eventType,
		HabitID: habitID,
		Data:    data,
	})
}
