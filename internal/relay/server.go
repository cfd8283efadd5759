package relay

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BioHazard786/multiplay/internal/signaling"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Peers are native programs, not browsers, so there is no origin to check.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter returns the relay's HTTP handler: a health check, the websocket
// endpoint and a room lookup.
func NewRouter(hub *Hub, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", ServeWs(hub))
	router.GET("/rooms/:code", getRoom(hub))

	return router
}

// ServeWs upgrades the request and attaches the connection to hub.
func ServeWs(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.Warn("failed to upgrade connection", "error", err)
			return
		}

		conn := newConn(hub, ws)
		if !hub.attach(conn) {
			ws.Close()
			return
		}

		go conn.writePump()
		go conn.readPump()
	}
}

func getRoom(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		code, err := signaling.NormalizeRoomCode(c.Param("code"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": ReasonInvalidCode})
			return
		}

		info, ok, err := hub.Lookup(c.Request.Context(), code)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": ReasonNotFound})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
