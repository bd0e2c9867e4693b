package app

import (
	"sync"

	"quizlive/internal/domain"
)

// Client is a live connection as seen by the core. Send must not block:
// implementations queue the event and may shed their oldest queued event
// under pressure, returning false only when the connection is unusable.
type Client interface {
	ID() string
	Send(ev domain.Event) bool
}

// Gateway fans session events out to every connection bound to one session.
// The state machine emits while holding its command lock, so the per-session
// emission order observed here is exactly the command serialization order
// and survives the fan-out unreordered.
type Gateway struct {
	mu      sync.Mutex
	outlets map[string]Client
}

// NewGateway returns an empty per-session gateway.
func NewGateway() *Gateway {
	return &Gateway{outlets: make(map[string]Client)}
}

// Attach binds a connection to the fan-out set, replacing any previous
// outlet with the same connection id.
func (g *Gateway) Attach(c Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outlets[c.ID()] = c
}

// Detach removes a connection from the fan-out set.
func (g *Gateway) Detach(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.outlets, connID)
}

// Broadcast delivers an event to every bound connection.
func (g *Gateway) Broadcast(ev domain.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.outlets {
		c.Send(ev)
	}
}

// BroadcastExcept delivers an event to every bound connection but one,
// typically the originator of the change being announced.
func (g *Gateway) BroadcastExcept(connID string, ev domain.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, c := range g.outlets {
		if id != connID {
			c.Send(ev)
		}
	}
}

// Unicast delivers an event to a single connection, if still bound.
func (g *Gateway) Unicast(connID string, ev domain.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.outlets[connID]; ok {
		c.Send(ev)
	}
}

// BroadcastReaction applies the spectator gate at emit time: a spectator's
// reaction is dropped entirely while spectator reactions are disabled. The
// gate lives here, server-side, rather than trusting clients to self-censor.
func (g *Gateway) BroadcastReaction(ev domain.Event, sender domain.Role, allowSpectators bool) {
	if sender == domain.RoleSpectator && !allowSpectators {
		return
	}
	g.Broadcast(ev)
}
