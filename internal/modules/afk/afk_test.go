package afk

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatterbox-vr/chatterbox/internal/pubsub"
	"github.com/chatterbox-vr/chatterbox/internal/systemlayer"
)

type capturePublisher struct {
	mu   sync.Mutex
	msgs []pubsub.Message
}

func (p *capturePublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) messages() []pubsub.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pubsub.Message(nil), p.msgs...)
}

type captureSender struct {
	mu    sync.Mutex
	sends []sentEvent
}

type sentEvent struct {
	eventType string
	data      any
}

func (s *captureSender) Send(ctx context.Context, eventType string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, sentEvent{eventType: eventType, data: data})
	return nil
}

func newTestModule(publisher *capturePublisher, sender systemlayer.Sender) *Module {
	if publisher == nil {
		publisher = &capturePublisher{}
	}
	return New(Dependencies{Publisher: publisher, Sender: sender})
}

func activityEvent(t *testing.T, eventType string) pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(systemlayer.Event{Type: eventType})
	require.NoError(t, err)
	return pubsub.Message{Topic: pubsub.TopicSystemLayer, Payload: raw}
}

func render(t *testing.T, m *Module, key string) string {
	t.Helper()
	text, ok, err := m.Placeholder(context.Background(), key, nil)
	require.NoError(t, err)
	require.True(t, ok)
	return text
}

func TestHandleSystemLayerMessage_Transitions(t *testing.T) {
	m := newTestModule(nil, nil)
	ctx := context.Background()

	assert.False(t, m.IsAFK())
	assert.Equal(t, "false", render(t, m, "afk_state"))
	assert.Equal(t, "Not AFK", render(t, m, "afk_text"))
	assert.Equal(t, "0", render(t, m, "afk_since"))
	assert.Equal(t, "0", render(t, m, "afk_duration"))

	require.NoError(t, m.handleSystemLayerMessage(ctx, activityEvent(t, "UserBecameInactive")))
	assert.True(t, m.IsAFK())
	assert.Equal(t, "true", render(t, m, "afk_state"))
	assert.Equal(t, "AFK", render(t, m, "afk_text"))
	assert.NotEqual(t, "0", render(t, m, "afk_since"))

	since, err := strconv.ParseInt(render(t, m, "afk_since"), 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().UnixMilli(), since, 5000)

	require.NoError(t, m.handleSystemLayerMessage(ctx, activityEvent(t, "UserBecameActive")))
	assert.False(t, m.IsAFK())
	assert.Equal(t, "0", render(t, m, "afk_since"))
	assert.Equal(t, "0", render(t, m, "afk_duration"))
}

func TestHandleSystemLayerMessage_PublishesStateChanges(t *testing.T) {
	publisher := &capturePublisher{}
	m := newTestModule(publisher, nil)
	ctx := context.Background()

	require.NoError(t, m.handleSystemLayerMessage(ctx, activityEvent(t, "UserBecameInactive")))
	require.NoError(t, m.handleSystemLayerMessage(ctx, activityEvent(t, "UserBecameActive")))

	msgs := publisher.messages()
	require.Len(t, msgs, 2)

	var first, second StateChange
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &first))
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &second))

	assert.Equal(t, pubsub.TopicAFKState, msgs[0].Topic)
	assert.True(t, first.State)
	assert.NotZero(t, first.Since)
	assert.False(t, second.State)
	assert.Equal(t, first.Since, second.Since)
}

func TestHandleSystemLayerMessage_IgnoresUnrelatedEvents(t *testing.T) {
	publisher := &capturePublisher{}
	m := newTestModule(publisher, nil)

	require.NoError(t, m.handleSystemLayerMessage(context.Background(), activityEvent(t, "PlaybackSessionOpened")))
	assert.False(t, m.IsAFK())
	assert.Empty(t, publisher.messages())
}

func TestIsAFK_ForceInput(t *testing.T) {
	m := newTestModule(nil, nil)
	require.NoError(t, m.SetInputValue("force_afk", true))

	assert.True(t, m.IsAFK())
	assert.Equal(t, "true", render(t, m, "afk_state"))
	assert.Equal(t, "true", render(t, m, "force_afk"))
	assert.Equal(t, "AFK", render(t, m, "afk_text"))

	// Force does not fabricate a timestamp.
	assert.Equal(t, "0", render(t, m, "afk_since"))
}

func TestSyncThreshold_PushesOnlyOnChange(t *testing.T) {
	sender := &captureSender{}
	m := newTestModule(nil, sender)

	render(t, m, "afk_state")
	render(t, m, "afk_state")

	require.Len(t, sender.sends, 1)
	assert.Equal(t, "InactivityThreshold", sender.sends[0].eventType)
	assert.Equal(t, (15 * time.Minute).Milliseconds(), sender.sends[0].data)

	require.NoError(t, m.SetInputValue("afk_timeout_duration", float64(5)))
	render(t, m, "afk_state")

	require.Len(t, sender.sends, 2)
	assert.Equal(t, (5 * time.Minute).Milliseconds(), sender.sends[1].data)
}

func TestPlaceholder_UnknownKeyEchoes(t *testing.T) {
	m := newTestModule(nil, nil)
	assert.Equal(t, "bogus", render(t, m, "bogus"))
}
