// Package broadcast provides the process-wide publish point for feed
// mutations. A Publisher is constructed once at startup and handed to the
// feed service; publishing is fire-and-forget with respect to the request
// path.
package broadcast

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/skovert/feedwall/internal/ws"
)

// Topic is the single feed channel carried by the hub.
const Topic = "posts"

// Actions published for feed mutations.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ErrClosed is returned when publishing after shutdown.
var ErrClosed = errors.New("broadcast: publisher closed")

// Event is the wire shape delivered to subscribers. Post carries the full
// post for create/update and only the post id for delete.
type Event struct {
	Action string `json:"action"`
	Post   any    `json:"post"`
}

// Publisher fans events out to currently connected subscribers. No
// persistence, no replay: events published with no subscribers are dropped.
type Publisher struct {
	hub    *ws.Hub
	log    *slog.Logger
	closed atomic.Bool
}

// NewPublisher wraps hub as the feed publish handle.
func NewPublisher(hub *ws.Hub, logger *slog.Logger) (*Publisher, error) {
	if hub == nil {
		return nil, errors.New("broadcast: hub required")
	}
	return &Publisher{hub: hub, log: logger}, nil
}

// Publish marshals event and hands it to the hub. The caller is expected to
// log, not propagate, any error.
func (p *Publisher) Publish(event Event) error {
	if p.closed.Load() {
		return ErrClosed
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.hub.Broadcast(Topic, payload)
	return nil
}

// Subscribe attaches a client to the feed stream.
func (p *Publisher) Subscribe(client ws.Subscriber) {
	p.hub.Register(Topic, client)
}

// Unsubscribe detaches a client.
func (p *Publisher) Unsubscribe(client ws.Subscriber) {
	p.hub.Unregister(Topic, client)
}

// Close marks the publisher as shut down. Subsequent publishes fail with
// ErrClosed.
func (p *Publisher) Close() {
	p.closed.Store(true)
}
