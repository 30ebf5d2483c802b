package websocket

import (
	"context"
	"fmt"
	"sync"

	"cinecritic/internal/events"
	"cinecritic/internal/services"
	cinecritic_errors "cinecritic/pkg/errors"

	"go.uber.org/zap"
)

// HubMetrics is optional instrumentation for the hub.
type HubMetrics interface {
	SetConnections(n int)
	ClientDropped()
}

// Hub tracks live administrator sessions and their groups. Membership is the
// set of currently connected sessions and nothing else; there is no replay.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client
	clients map[string]*Client

	// groups maps group name to the set of member clients
	groups map[string]map[*Client]struct{}

	logger  *zap.Logger
	metrics HubMetrics
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) WithMetrics(m HubMetrics) *Hub {
	h.metrics = m
	return h
}

// OnConnect admits an administrator session into the Administrators group.
// Any other role is refused and the client is left untouched.
func (h *Hub) OnConnect(client *Client, role string) error {
	if role != services.RoleAdministrator {
		return fmt.Errorf("%w: role %q may not join the notification hub", cinecritic_errors.ErrUnauthorized, role)
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.joinLocked(client, events.GroupAdministrators)
	n := len(h.clients)
	h.mu.Unlock()

	h.reportConnections(n)
	h.logger.Info("hub session connected",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("connections", n))
	return nil
}

// OnDisconnect removes a session from every group. Calling it again for the
// same client does nothing.
func (h *Hub) OnDisconnect(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	h.removeLocked(client)
	n := len(h.clients)
	h.mu.Unlock()

	client.closeSend()
	h.reportConnections(n)
	h.logger.Info("hub session disconnected",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("connections", n))
}

// Broadcast queues payload on every member of group. Members whose queue is
// closed or full are pruned. A cancelled ctx stops the fan-out; sends not yet
// made are dropped and ctx.Err() is returned.
func (h *Hub) Broadcast(ctx context.Context, group string, payload []byte) error {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	var failed []*Client
	var ctxErr error
	for _, c := range members {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		if !c.trySend(payload) {
			failed = append(failed, c)
		}
	}

	for _, c := range failed {
		h.logger.Warn("pruning unresponsive hub session",
			zap.String("client_id", c.ID),
			zap.String("group", group))
		if h.metrics != nil {
			h.metrics.ClientDropped()
		}
		h.OnDisconnect(c)
	}
	return ctxErr
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

func (h *Hub) joinLocked(client *Client, group string) {
	if _, ok := h.groups[group]; !ok {
		h.groups[group] = make(map[*Client]struct{})
	}
	h.groups[group][client] = struct{}{}
	client.Join(group)
}

func (h *Hub) removeLocked(client *Client) {
	for _, group := range client.Groups() {
		if members, ok := h.groups[group]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.groups, group)
			}
		}
		client.Leave(group)
	}
	delete(h.clients, client.ID)
}

func (h *Hub) reportConnections(n int) {
	if h.metrics != nil {
		h.metrics.SetConnections(n)
	}
}
