// Package systemlayer connects to the OS helper process that reports media
// playback and user-activity events, and republishes them on the internal
// event bus. Modules never talk to the helper socket directly.
package systemlayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/chatterbox-vr/chatterbox/internal/pubsub"
)

// Event is the wire envelope the helper process speaks in both directions.
type Event struct {
	Type string          `json:"Type"`
	Data json.RawMessage `json:"Data,omitempty"`
}

// Sender pushes commands back to the helper process (e.g. the AFK module
// adjusting the inactivity threshold).
type Sender interface {
	Send(ctx context.Context, eventType string, data any) error
}

// Client maintains the websocket to the helper process, republishing inbound
// events on pubsub.TopicSystemLayer.
type Client struct {
	url       string
	publisher pubsub.Publisher

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a client for the helper process at url.
func New(url string, publisher pubsub.Publisher) *Client {
	return &Client{url: url, publisher: publisher}
}

// Start dials the helper and begins the read loop, reconnecting with backoff
// until ctx is canceled. It returns immediately. An empty URL disables the
// client entirely.
func (c *Client) Start(ctx context.Context) {
	if c.url == "" {
		slog.Info("System layer disabled, no URL configured")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(runCtx)
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	backoff := time.Second
	for {
		if err := c.readLoop(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("System layer connection lost, reconnecting", "error", err, "backoff", backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial system layer: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	slog.Info("Connected to system layer", "url", c.url)

	for {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read system layer event: %w", err)
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			slog.Warn("Discarding malformed system layer event", "error", err)
			continue
		}
		if err := c.publisher.Publish(ctx, pubsub.Message{
			Topic:   pubsub.TopicSystemLayer,
			Payload: payload,
		}); err != nil {
			slog.Error("Failed to republish system layer event", "type", event.Type, "error", err)
		}
	}
}

// Send implements Sender.
func (c *Client) Send(ctx context.Context, eventType string, data any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("system layer not connected")
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	payload, err := json.Marshal(Event{Type: eventType, Data: raw})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", eventType, err)
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

// Stop tears the connection down and waits for the read loop to exit.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
