// Package afk tracks whether the user is away from keyboard, fed by
// activity events from the OS helper process.
package afk

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
	"github.com/chatterbox-vr/chatterbox/internal/pubsub"
	"github.com/chatterbox-vr/chatterbox/internal/systemlayer"
)

// System layer event types this module reacts to.
const (
	eventBecameActive   = "UserBecameActive"
	eventBecameInactive = "UserBecameInactive"
)

// StateChange is published on pubsub.TopicAFKState on every transition.
type StateChange struct {
	State bool  `json:"state"`
	Since int64 `json:"since,omitempty"`
}

// Dependencies holds the collaborators the AFK module needs.
type Dependencies struct {
	Store      kvstore.Store
	Resolver   module.Resolver
	Subscriber pubsub.Subscriber
	Publisher  pubsub.Publisher
	Sender     systemlayer.Sender
}

// Module detects AFK state.
type Module struct {
	*module.Base
	deps Dependencies

	mu        sync.Mutex
	afk       bool
	lastAfkAt time.Time

	// lastSentThreshold tracks the inactivity threshold last pushed to the
	// system layer, so the push only happens when the input changes.
	lastSentThreshold time.Duration

	cancel context.CancelFunc
}

// New creates the AFK module.
func New(deps Dependencies) *Module {
	desc := module.Descriptor{
		ID:          "afk",
		Name:        "AFK",
		Description: "Afk detection module, used to detect if the user is AFK (Away From Keyboard).",
		Inputs: []module.InputDefinition{
			{
				ID:          "force_afk",
				Kind:        module.KindBoolean,
				Name:        "Force AFK",
				Description: "Force the user to be AFK, even if they are not.",
				DefaultBool: false,
			},
			{
				ID:            "afk_timeout_duration",
				Kind:          module.KindNumber,
				Name:          "AFK Timeout Duration",
				Description:   "Duration in minutes of inactivity after which the user is considered AFK.",
				DefaultNumber: 15,
			},
			{
				ID:   "afk_text",
				Kind: module.KindKeyValues,
				Name: "AFK Text",
				DefaultMap: map[string]string{
					"afk":     "AFK",
					"not_afk": "Not AFK",
				},
				KeyDisplayNames: map[string]string{
					"afk":     "AFK",
					"not_afk": "Not AFK",
				},
			},
		},
		ExamplePlaceholders: []module.ExamplePlaceholder{
			{Placeholder: "afk_state", Description: "true while the user is AFK, otherwise false."},
			{Placeholder: "afk_text", Description: "The configured AFK or Not AFK text."},
			{Placeholder: "force_afk", Description: "Whether AFK is being forced on."},
			{Placeholder: "afk_since", Description: "Unix millisecond timestamp of when the user became AFK, or 0."},
			{Placeholder: "afk_duration", Description: "How long the user has been AFK in milliseconds, or 0."},
		},
	}
	return &Module{
		Base: module.NewBase(desc, deps.Store, deps.Resolver),
		deps: deps,
	}
}

// Init subscribes to system layer activity events.
func (m *Module) Init(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	return m.deps.Subscriber.Subscribe(runCtx, pubsub.TopicSystemLayer, m.handleSystemLayerMessage)
}

// Destroy cancels the subscription.
func (m *Module) Destroy(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return nil
}

func (m *Module) handleSystemLayerMessage(ctx context.Context, msg pubsub.Message) error {
	var event systemlayer.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil
	}

	switch event.Type {
	case eventBecameActive:
		m.mu.Lock()
		since := m.lastAfkAt
		m.afk = false
		m.lastAfkAt = time.Time{}
		m.mu.Unlock()
		m.publishState(ctx, false, since)

	case eventBecameInactive:
		now := time.Now()
		m.mu.Lock()
		m.afk = true
		m.lastAfkAt = now
		m.mu.Unlock()
		m.publishState(ctx, true, now)
	}
	return nil
}

func (m *Module) publishState(ctx context.Context, state bool, since time.Time) {
	change := StateChange{State: state}
	if !since.IsZero() {
		change.Since = since.UnixMilli()
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return
	}
	if err := m.deps.Publisher.Publish(ctx, pubsub.Message{
		Topic:   pubsub.TopicAFKState,
		Payload: payload,
	}); err != nil {
		slog.Debug("Failed to publish AFK state change", "error", err)
	}
}

// IsAFK reports the effective AFK state, including the force input.
func (m *Module) IsAFK() bool {
	if m.BoolInput("force_afk") {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.afk
}

// Placeholder implements module.Module.
func (m *Module) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	m.syncThreshold(ctx)

	m.mu.Lock()
	lastAfkAt := m.lastAfkAt
	m.mu.Unlock()

	texts := m.MapInput("afk_text")
	switch key {
	case "afk_state":
		return strconv.FormatBool(m.IsAFK()), true, nil
	case "afk_text":
		if m.IsAFK() {
			return texts["afk"], true, nil
		}
		return texts["not_afk"], true, nil
	case "force_afk":
		return strconv.FormatBool(m.BoolInput("force_afk")), true, nil
	case "afk_since":
		if lastAfkAt.IsZero() {
			return "0", true, nil
		}
		return strconv.FormatInt(lastAfkAt.UnixMilli(), 10), true, nil
	case "afk_duration":
		if lastAfkAt.IsZero() {
			return "0", true, nil
		}
		return strconv.FormatInt(time.Since(lastAfkAt).Milliseconds(), 10), true, nil
	}
	return key, true, nil
}

// syncThreshold pushes the configured inactivity timeout to the system layer
// when it changes. Checked lazily here rather than watching the input store;
// the next render after an edit picks it up.
func (m *Module) syncThreshold(ctx context.Context) {
	threshold := time.Duration(m.NumberInput("afk_timeout_duration")) * time.Minute

	m.mu.Lock()
	changed := threshold != m.lastSentThreshold
	if changed {
		m.lastSentThreshold = threshold
	}
	m.mu.Unlock()

	if !changed || m.deps.Sender == nil {
		return
	}
	if err := m.deps.Sender.Send(ctx, "InactivityThreshold", threshold.Milliseconds()); err != nil {
		slog.Debug("Failed to push inactivity threshold", "error", err)
	}
}
