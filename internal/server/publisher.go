package server

import (
	"context"

	"github.com/futarchy-labs/futarchyd/internal/events"
)

// Publisher pumps hub events into the websocket broadcast path. It is the
// only consumer-side bridge between the market core's event hub and
// subscribed connections.
type Publisher struct {
	sub *events.Subscription
	ws  *WebSocketServer
}

// NewPublisher creates a publisher feeding the websocket server. The hub
// subscription starts buffering immediately; Run drains it.
func NewPublisher(hub *events.Hub, ws *WebSocketServer) *Publisher {
	return &Publisher{sub: hub.Subscribe(), ws: ws}
}

// Run consumes hub events until the context ends or the hub closes.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-p.sub.C():
			if !ok {
				return nil
			}
			p.ws.Broadcast(ev)
		}
	}
}
