// Package heartrate streams heart rate samples from a Pulsoid-style
// websocket feed and exposes them as placeholders.
package heartrate

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
)

const (
	defaultFeedURL = "wss://dev.pulsoid.net/api/v1/data/real_time"

	// maxSamples bounds the window the lowest/highest/average stats cover.
	maxSamples = 100

	// onlineWindow is how recently a sample must have arrived for the feed
	// to count as online.
	onlineWindow = 30 * time.Second
)

// Dependencies holds the collaborators the heart rate module needs.
type Dependencies struct {
	Store    kvstore.Store
	Resolver module.Resolver

	// FeedURL overrides the websocket endpoint, mainly for tests.
	FeedURL string
}

// Module exposes heart rate placeholders.
type Module struct {
	*module.Base
	feedURL string

	mu        sync.Mutex
	samples   []int
	lastBeat  time.Time
	lastToken string
	conn      *websocket.Conn
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates the heart rate module.
func New(deps Dependencies) *Module {
	desc := module.Descriptor{
		ID:          "pulsoid",
		Name:        "Pulsoid",
		Description: "Pulsoid module, used to display heart rate and other health metrics.",
		Premium:     true,
		Inputs: []module.InputDefinition{
			{
				ID:          "auth_token",
				Kind:        module.KindText,
				Name:        "Auth Token",
				Description: "Your Pulsoid auth token. You can find it in your Pulsoid account settings.",
				DefaultText: "",
				Secret:      true,
			},
		},
		ExamplePlaceholders: []module.ExamplePlaceholder{
			{Placeholder: "heart_rate", Description: "Heart Rate"},
			{Placeholder: "heart_rate_lowest", Description: "Lowest Heart Rate"},
			{Placeholder: "heart_rate_highest", Description: "Highest Heart Rate"},
			{Placeholder: "heart_rate_average", Description: "Average Heart Rate"},
			{Placeholder: "is_connected", Description: "Is Connected to Pulsoid Socket"},
			{Placeholder: "is_online", Description: "Is Online on Pulsoid Socket"},
		},
	}

	feedURL := deps.FeedURL
	if feedURL == "" {
		feedURL = defaultFeedURL
	}
	return &Module{
		Base:    module.NewBase(desc, deps.Store, deps.Resolver),
		feedURL: feedURL,
	}
}

// Destroy closes the socket.
func (m *Module) Destroy(ctx context.Context) error {
	m.disconnect()
	return nil
}

func (m *Module) disconnect() {
	m.mu.Lock()
	cancel := m.cancel
	conn := m.conn
	done := m.done
	m.cancel = nil
	m.conn = nil
	m.done = nil
	m.samples = nil
	m.lastToken = ""
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		conn.Close()
	}
	<-done
	slog.Debug("Disconnected from heart rate feed")
}

// syncSocket re-dials the feed when the token input changes, and tears the
// socket down when the token is cleared.
func (m *Module) syncSocket(ctx context.Context, token string) {
	m.mu.Lock()
	same := token == m.lastToken
	m.mu.Unlock()
	if same {
		return
	}

	m.disconnect()

	m.mu.Lock()
	m.lastToken = token
	if token == "" {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()
	go m.readLoop(runCtx, token, done)
}

func (m *Module) readLoop(ctx context.Context, token string, done chan struct{}) {
	defer close(done)

	endpoint := m.feedURL + "?" + url.Values{"access_token": {token}}.Encode()
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			slog.Debug("Heart rate feed dial failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()
		slog.Debug("Connected to heart rate feed")

		m.consume(ctx, conn)

		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
		conn.Close()
	}
}

func (m *Module) consume(ctx context.Context, conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Debug("Heart rate feed read failed", "error", err)
			}
			return
		}
		rate, ok := parseRate(payload)
		if !ok {
			continue
		}
		m.record(rate)
	}
}

func parseRate(payload []byte) (int, bool) {
	rate := gjson.GetBytes(payload, "data.heart_rate")
	if !rate.Exists() {
		return 0, false
	}
	return int(rate.Int()), true
}

func (m *Module) record(rate int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, rate)
	if len(m.samples) > maxSamples {
		m.samples = m.samples[len(m.samples)-maxSamples:]
	}
	m.lastBeat = time.Now()
}

// Placeholder implements module.Module.
func (m *Module) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	token := m.TextInput("auth_token")
	m.syncSocket(ctx, token)

	m.mu.Lock()
	samples := make([]int, len(m.samples))
	copy(samples, m.samples)
	connected := m.conn != nil
	online := !m.lastBeat.IsZero() && time.Since(m.lastBeat) < onlineWindow
	m.mu.Unlock()

	if token == "" {
		switch key {
		case "is_connected", "is_online":
			return "false", true, nil
		default:
			return "0", true, nil
		}
	}

	switch key {
	case "heart_rate":
		if len(samples) == 0 {
			return "0", true, nil
		}
		return strconv.Itoa(samples[len(samples)-1]), true, nil
	case "heart_rate_lowest":
		if len(samples) == 0 {
			return "0", true, nil
		}
		lowest := samples[0]
		for _, s := range samples[1:] {
			if s < lowest {
				lowest = s
			}
		}
		return strconv.Itoa(lowest), true, nil
	case "heart_rate_highest":
		if len(samples) == 0 {
			return "0", true, nil
		}
		highest := samples[0]
		for _, s := range samples[1:] {
			if s > highest {
				highest = s
			}
		}
		return strconv.Itoa(highest), true, nil
	case "heart_rate_average":
		if len(samples) == 0 {
			return "0", true, nil
		}
		sum := 0
		for _, s := range samples {
			sum += s
		}
		return fmt.Sprintf("%.2f", float64(sum)/float64(len(samples))), true, nil
	case "is_connected":
		return strconv.FormatBool(connected), true, nil
	case "is_online":
		return strconv.FormatBool(online), true, nil
	}
	return "", true, nil
}
