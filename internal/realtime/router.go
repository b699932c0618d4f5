package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// Router owns the signaling components and accepts WebSocket connections.
// A connection starts unassigned and binds to a session and role on its
// first register-broadcaster or join-stream message; the binding is
// immutable for the life of the connection.
type Router struct {
	registry  *Registry
	presence  *Tracker
	lifecycle *Lifecycle
	hub       *Hub
	logger    *zap.Logger
}

// NewRouter creates the signaling router.
func NewRouter(registry *Registry, presence *Tracker, lifecycle *Lifecycle, hub *Hub, logger *zap.Logger) *Router {
	return &Router{
		registry:  registry,
		presence:  presence,
		lifecycle: lifecycle,
		hub:       hub,
		logger:    logger,
	}
}

// ServeWs handles the WebSocket upgrade and runs the connection loop.
// jwtValidate authenticates the peer; who may broadcast is not checked here.
func (r *Router) ServeWs(jwtValidate func(token string) (userID string, err error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		userIDStr, err := jwtValidate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID, _ := uuid.Parse(userIDStr)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			r.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.NewString(),
			UserID: userID,
			router: r,
			conn:   conn,
			send:   make(chan WSMessage, 256),
			logger: r.logger,
		}
		go client.writePump()
		client.readPump()
	}
}
