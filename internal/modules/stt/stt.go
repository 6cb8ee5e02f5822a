// Package stt surfaces speech-to-text transcripts. Recognition itself runs
// out of process; finished and partial transcripts arrive as events on the
// bus and this module exposes them as placeholders, flipping the chatbox
// typing indicator while a phrase is still being recognized.
package stt

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
	"github.com/chatterbox-vr/chatterbox/internal/pubsub"
	"github.com/chatterbox-vr/chatterbox/internal/transport"
)

// Transcript is the payload published on pubsub.TopicTranscript.
type Transcript struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// Dependencies holds the collaborators the speech-to-text module needs.
type Dependencies struct {
	Store      kvstore.Store
	Resolver   module.Resolver
	Subscriber pubsub.Subscriber
	Transport  transport.Transport
}

// Module exposes transcript placeholders.
type Module struct {
	*module.Base
	deps Dependencies

	mu           sync.Mutex
	lastResult   string
	lastResultAt time.Time
	partial      string
	typing       bool

	cancel context.CancelFunc
	now    func() time.Time
}

// New creates the speech-to-text module.
func New(deps Dependencies) *Module {
	desc := module.Descriptor{
		ID:          "stt",
		Name:        "Speech To Text",
		Description: "Recognize speech and convert it to text.",
		Premium:     true,
		Inputs: []module.InputDefinition{
			{
				ID:          "enabled",
				Kind:        module.KindBoolean,
				Name:        "Enabled",
				Description: "Enable or disable the Speech to Text module. This option is nessessary to prevent the module from running when not needed.",
				DefaultBool: false,
			},
			{
				ID:            "result_timeout",
				Kind:          module.KindNumber,
				Name:          "Result Timeout",
				Description:   "Timeout in milliseconds after which the last result will be cleared. This is useful to prevent the last result from being stale.",
				DefaultNumber: 6500,
			},
		},
		ExamplePlaceholders: []module.ExamplePlaceholder{
			{Placeholder: "last_result", Description: "Get the last recognized speech result."},
			{Placeholder: "result", Description: "Get the last recognized speech result. This value will be cleared after the result timeout."},
			{Placeholder: "partial_result", Description: "Get the phrase currently being recognized."},
			{Placeholder: "recognition_state", Description: "Get the current state of the speech recognition. Possible values are 'Offline', 'Ready'."},
			{Placeholder: "last_result_at", Description: "Get the timestamp of the last recognized speech result."},
		},
	}
	return &Module{
		Base: module.NewBase(desc, deps.Store, deps.Resolver),
		deps: deps,
		now:  time.Now,
	}
}

// Init subscribes to transcript events.
func (m *Module) Init(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	return m.deps.Subscriber.Subscribe(runCtx, pubsub.TopicTranscript, m.handleTranscript)
}

// Destroy cancels the subscription and clears the typing indicator.
func (m *Module) Destroy(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.setTyping(false)
	return nil
}

func (m *Module) handleTranscript(ctx context.Context, msg pubsub.Message) error {
	if !m.BoolInput("enabled") {
		return nil
	}

	var t Transcript
	if err := json.Unmarshal(msg.Payload, &t); err != nil {
		slog.Debug("Discarding malformed transcript", "error", err)
		return nil
	}

	m.mu.Lock()
	if t.Final {
		m.lastResult = t.Text
		m.lastResultAt = m.now()
		m.partial = ""
	} else {
		m.partial = t.Text
	}
	m.mu.Unlock()

	m.setTyping(!t.Final)
	return nil
}

// setTyping flips the chatbox typing indicator, skipping redundant sends.
func (m *Module) setTyping(on bool) {
	m.mu.Lock()
	changed := m.typing != on
	m.typing = on
	m.mu.Unlock()
	if !changed || m.deps.Transport == nil {
		return
	}
	if err := m.deps.Transport.ToggleTyping(on); err != nil {
		slog.Debug("Failed to toggle typing indicator", "error", err)
	}
}

// Placeholder implements module.Module.
func (m *Module) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	enabled := m.BoolInput("enabled")

	m.mu.Lock()
	lastResult := m.lastResult
	lastResultAt := m.lastResultAt
	partial := m.partial
	m.mu.Unlock()

	if !enabled {
		if key == "recognition_state" {
			return "Offline", true, nil
		}
		return "", true, nil
	}

	switch key {
	case "last_result":
		return lastResult, true, nil
	case "result":
		timeout := time.Duration(m.NumberInput("result_timeout")) * time.Millisecond
		if !lastResultAt.IsZero() && m.now().Sub(lastResultAt) < timeout {
			return lastResult, true, nil
		}
		return "", true, nil
	case "partial_result":
		return partial, true, nil
	case "recognition_state":
		return "Ready", true, nil
	case "last_result_at":
		if lastResultAt.IsZero() {
			return "", true, nil
		}
		return lastResultAt.UTC().Format(time.RFC3339), true, nil
	}
	return "", true, nil
}
