package module

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore implements kvstore.Store in memory and counts writes.
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(ctx context.Context, key string, def []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, found := s.data[key]; found {
		return v, nil
	}
	return def, nil
}

func (s *memStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.writes++
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func testDescriptor() Descriptor {
	return Descriptor{
		ID:   "demo",
		Name: "Demo",
		Inputs: []InputDefinition{
			{ID: "greeting", Kind: KindText, Name: "Greeting", DefaultText: "hello"},
			{ID: "count", Kind: KindNumber, Name: "Count", DefaultNumber: 3},
			{ID: "enabled", Kind: KindBoolean, Name: "Enabled", DefaultBool: true},
			{ID: "token", Kind: KindText, Name: "Token", DefaultText: "", Secret: true},
			{ID: "labels", Kind: KindKeyValues, Name: "Labels", DefaultMap: map[string]string{"on": "ON"}},
		},
	}
}

func TestBase_DefaultsWithoutPersisting(t *testing.T) {
	store := newMemStore()
	b := NewBase(testDescriptor(), store, nil)

	assert.Equal(t, "hello", b.TextInput("greeting"))
	assert.Equal(t, float64(3), b.NumberInput("count"))
	assert.True(t, b.BoolInput("enabled"))
	assert.Equal(t, map[string]string{"on": "ON"}, b.MapInput("labels"))

	// Reading defaults never writes them back.
	assert.Equal(t, 0, store.writeCount())
}

func TestBase_SetInputValueRoundTrips(t *testing.T) {
	store := newMemStore()
	b := NewBase(testDescriptor(), store, nil)

	require.NoError(t, b.SetInputValue("greeting", "howdy"))
	assert.Equal(t, "howdy", b.TextInput("greeting"))
	assert.Equal(t, 1, store.writeCount())

	// A fresh Base over the same store sees the persisted value.
	reloaded := NewBase(testDescriptor(), store, nil)
	assert.Equal(t, "howdy", reloaded.TextInput("greeting"))
	assert.Equal(t, float64(3), reloaded.NumberInput("count"))
}

func TestBase_AllInputValuesMasksSecrets(t *testing.T) {
	b := NewBase(testDescriptor(), newMemStore(), nil)
	require.NoError(t, b.SetInputValue("token", "s3cret"))

	masked := b.AllInputValues(false)
	assert.Equal(t, "", masked["token"])
	assert.Equal(t, "hello", masked["greeting"])

	unmasked := b.AllInputValues(true)
	assert.Equal(t, "s3cret", unmasked["token"])
}

func TestBase_SetAllInputValuesReplacesState(t *testing.T) {
	b := NewBase(testDescriptor(), newMemStore(), nil)
	require.NoError(t, b.SetInputValue("greeting", "old"))

	require.NoError(t, b.SetAllInputValues(map[string]any{"count": float64(7)}))
	assert.Equal(t, float64(7), b.NumberInput("count"))
	// Values absent from the restore fall back to defaults.
	assert.Equal(t, "hello", b.TextInput("greeting"))
}

func TestBase_DefaultPlaceholder(t *testing.T) {
	desc := testDescriptor()
	desc.PlaceholderDefaults = map[string]string{"status": "ok"}
	b := NewBase(desc, nil, nil)

	text, ok, err := b.Placeholder(context.Background(), "status", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ok", text)

	text, ok, err = b.Placeholder(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "anything", text)
}

func TestBase_MapInputCopies(t *testing.T) {
	b := NewBase(testDescriptor(), newMemStore(), nil)

	first := b.MapInput("labels")
	first["on"] = "mutated"
	assert.Equal(t, map[string]string{"on": "ON"}, b.MapInput("labels"))
}

func TestDescriptor_Examples(t *testing.T) {
	desc := Descriptor{
		ID: "time",
		ExamplePlaceholders: []ExamplePlaceholder{
			{Placeholder: "date_time", Description: "Current time."},
			{Placeholder: "format_time;10:30", Description: "With args."},
		},
	}

	examples := desc.Examples()
	require.Len(t, examples, 2)
	assert.Equal(t, "{{time;date_time}}", examples[0].Outer)
	assert.Equal(t, "[[time:date_time]]", examples[0].Inner)
	assert.Equal(t, "{{time;format_time;10:30}}", examples[1].Outer)
}
