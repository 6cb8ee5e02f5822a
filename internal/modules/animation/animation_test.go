package animation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatterbox-vr/chatterbox/internal/module"
)

type passthroughResolver struct{}

func (passthroughResolver) Resolve(ctx context.Context, text string, syntax module.Syntax, ignored []module.Override) (string, error) {
	return text, nil
}

func (passthroughResolver) ResolveMany(ctx context.Context, texts []string, syntax module.Syntax, ignored []module.Override) ([]string, error) {
	out := make([]string, len(texts))
	copy(out, texts)
	return out, nil
}

// newTestModule uses a zero frame delay so every call advances a frame.
func newTestModule() *Module {
	return New(nil, passthroughResolver{}, 0)
}

func frames(t *testing.T, m *Module, key string, args []string, n int) []string {
	t.Helper()
	out := make([]string, n)
	for i := range out {
		text, ok, err := m.Placeholder(context.Background(), key, args)
		require.NoError(t, err)
		require.True(t, ok)
		out[i] = text
	}
	return out
}

func TestPlaceholder_EachOneCycles(t *testing.T) {
	m := newTestModule()
	got := frames(t, m, "each_one", []string{"a", "b", "c"}, 4)
	assert.Equal(t, []string{"a", "b", "c", "a"}, got)
}

func TestPlaceholder_BlinkAlternates(t *testing.T) {
	m := newTestModule()
	got := frames(t, m, "blink", []string{"hi"}, 3)
	assert.Equal(t, []string{"", "hi", ""}, got)
}

func TestPlaceholder_MarqueeRotates(t *testing.T) {
	m := newTestModule()
	got := frames(t, m, "marquee", []string{"abc"}, 4)
	assert.Equal(t, []string{"abc", "bca", "cab", "abc"}, got)
}

func TestPlaceholder_MarqueeWindow(t *testing.T) {
	m := newTestModule()
	got := frames(t, m, "marquee", []string{"abcd", "2"}, 3)
	assert.Equal(t, []string{"ab", "bc", "cd"}, got)
}

func TestPlaceholder_WaveAlternates(t *testing.T) {
	m := newTestModule()
	got := frames(t, m, "wave", []string{"abcd"}, 2)
	assert.Equal(t, "AbCd", got[0])
	assert.Equal(t, "aBcD", got[1])
}

func TestPlaceholder_BreathExpandsAndContracts(t *testing.T) {
	m := newTestModule()
	require.NoError(t, m.SetInputValue("animation_breath_max_spaces", float64(2)))

	got := frames(t, m, "breath", []string{"ab"}, 4)
	assert.Equal(t, []string{"ab", "a b", "a  b", "a b"}, got)
}

func TestPlaceholder_RandomAnimationsKeepLength(t *testing.T) {
	m := newTestModule()

	for _, key := range []string{"random_case", "random_hide"} {
		text, _, err := m.Placeholder(context.Background(), key, []string{"hello"})
		require.NoError(t, err)
		assert.Len(t, []rune(text), 5, key)
	}
}

func TestPlaceholder_FrameDelayFreezesOutput(t *testing.T) {
	m := New(nil, passthroughResolver{}, time.Hour)

	first := frames(t, m, "each_one", []string{"a", "b"}, 1)[0]
	second := frames(t, m, "each_one", []string{"a", "b"}, 1)[0]
	assert.Equal(t, first, second)
}

func TestPlaceholder_FrameStateKeyedByRawContent(t *testing.T) {
	m := newTestModule()

	// Two distinct argument sets animate independently.
	frames(t, m, "each_one", []string{"a", "b"}, 1)
	got := frames(t, m, "each_one", []string{"x", "y"}, 1)
	assert.Equal(t, "x", got[0])
}

func TestPlaceholder_UnknownAnimationReturnsContent(t *testing.T) {
	m := newTestModule()
	got := frames(t, m, "sparkle", []string{"text"}, 1)
	assert.Equal(t, "text", got[0])
}

func TestSweepDropsStaleFrames(t *testing.T) {
	m := newTestModule()
	frames(t, m, "each_one", []string{"a", "b"}, 1)

	m.mu.Lock()
	for _, f := range m.frames {
		f.at = time.Now().Add(-2 * staleAfter)
	}
	m.mu.Unlock()

	m.sweep()
	m.mu.Lock()
	assert.Empty(t, m.frames)
	m.mu.Unlock()
}
