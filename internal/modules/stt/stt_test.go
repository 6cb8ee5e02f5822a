package stt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatterbox-vr/chatterbox/internal/pubsub"
)

type captureTransport struct {
	mu     sync.Mutex
	typing []bool
	sends  []string
}

func (t *captureTransport) Send(text string, egg bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sends = append(t.sends, text)
	return nil
}

func (t *captureTransport) Fill(text string) error { return nil }

func (t *captureTransport) ToggleTyping(active bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.typing = append(t.typing, active)
	return nil
}

func (t *captureTransport) Close() error { return nil }

func (t *captureTransport) toggles() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]bool(nil), t.typing...)
}

func newTestModule(t *testing.T, out *captureTransport) *Module {
	t.Helper()
	deps := Dependencies{}
	if out != nil {
		deps.Transport = out
	}
	m := New(deps)
	require.NoError(t, m.SetInputValue("enabled", true))
	return m
}

func transcriptMessage(t *testing.T, text string, final bool) pubsub.Message {
	t.Helper()
	payload, err := json.Marshal(Transcript{Text: text, Final: final})
	require.NoError(t, err)
	return pubsub.Message{Topic: pubsub.TopicTranscript, Payload: payload}
}

func render(t *testing.T, m *Module, key string) string {
	t.Helper()
	text, ok, err := m.Placeholder(context.Background(), key, nil)
	require.NoError(t, err)
	require.True(t, ok)
	return text
}

func TestPlaceholder_DisabledIsOffline(t *testing.T) {
	m := New(Dependencies{})

	assert.Equal(t, "Offline", render(t, m, "recognition_state"))
	assert.Equal(t, "", render(t, m, "last_result"))
	assert.Equal(t, "", render(t, m, "partial_result"))
}

func TestHandleTranscript_PartialThenFinal(t *testing.T) {
	m := newTestModule(t, nil)
	ctx := context.Background()

	require.NoError(t, m.handleTranscript(ctx, transcriptMessage(t, "hello wo", false)))
	assert.Equal(t, "hello wo", render(t, m, "partial_result"))
	assert.Equal(t, "", render(t, m, "last_result"))

	require.NoError(t, m.handleTranscript(ctx, transcriptMessage(t, "hello world", true)))
	assert.Equal(t, "", render(t, m, "partial_result"))
	assert.Equal(t, "hello world", render(t, m, "last_result"))
	assert.Equal(t, "hello world", render(t, m, "result"))
	assert.Equal(t, "Ready", render(t, m, "recognition_state"))
}

func TestHandleTranscript_IgnoredWhileDisabled(t *testing.T) {
	m := New(Dependencies{})

	require.NoError(t, m.handleTranscript(context.Background(), transcriptMessage(t, "hello", true)))
	require.NoError(t, m.SetInputValue("enabled", true))
	assert.Equal(t, "", render(t, m, "last_result"))
}

func TestPlaceholder_ResultTimesOut(t *testing.T) {
	m := newTestModule(t, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	require.NoError(t, m.handleTranscript(context.Background(), transcriptMessage(t, "hello", true)))
	assert.Equal(t, "hello", render(t, m, "result"))

	m.now = func() time.Time { return base.Add(7 * time.Second) }
	assert.Equal(t, "", render(t, m, "result"))
	assert.Equal(t, "hello", render(t, m, "last_result"))
}

func TestPlaceholder_LastResultAt(t *testing.T) {
	m := newTestModule(t, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	assert.Equal(t, "", render(t, m, "last_result_at"))

	require.NoError(t, m.handleTranscript(context.Background(), transcriptMessage(t, "hello", true)))
	assert.Equal(t, "2026-03-01T12:00:00Z", render(t, m, "last_result_at"))
}

func TestTypingIndicator_TogglesWithoutRepeats(t *testing.T) {
	out := &captureTransport{}
	m := newTestModule(t, out)
	ctx := context.Background()

	require.NoError(t, m.handleTranscript(ctx, transcriptMessage(t, "h", false)))
	require.NoError(t, m.handleTranscript(ctx, transcriptMessage(t, "he", false)))
	require.NoError(t, m.handleTranscript(ctx, transcriptMessage(t, "hello", true)))

	assert.Equal(t, []bool{true, false}, out.toggles())
}

func TestDestroy_ClearsTypingIndicator(t *testing.T) {
	out := &captureTransport{}
	m := newTestModule(t, out)
	ctx := context.Background()

	require.NoError(t, m.handleTranscript(ctx, transcriptMessage(t, "h", false)))
	require.NoError(t, m.Destroy(ctx))

	assert.Equal(t, []bool{true, false}, out.toggles())
}
