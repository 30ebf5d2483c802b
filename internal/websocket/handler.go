package websocket

import (
	"net/http"
	"strings"

	"cinecritic/internal/services"
	"cinecritic/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenParser validates an access token and returns its claims.
type TokenParser interface {
	ParseAccessToken(token string) (services.AccessClaims, error)
}

type Handler struct {
	tokens   TokenParser
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHandler(tokens TokenParser, hub *Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		tokens: tokens,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Connect upgrades GET /hubs/notifications. The token is taken from the
// access_token query parameter (browsers cannot set headers on a websocket
// handshake) or from a Bearer Authorization header.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("access_token")
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
		return
	}

	claims, err := h.tokens.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
		return
	}
	if claims.Role != services.RoleAdministrator {
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("administrator role required", httpdto.CodeForbidden))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(conn, strings.TrimSpace(claims.UserID))
	if err := h.hub.OnConnect(client, claims.Role); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "forbidden"))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump()

	h.hub.OnDisconnect(client)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
