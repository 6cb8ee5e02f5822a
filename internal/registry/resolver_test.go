package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatterbox-vr/chatterbox/internal/entitlement"
	"github.com/chatterbox-vr/chatterbox/internal/module"
	"github.com/chatterbox-vr/chatterbox/internal/pubsub"
)

// fakeModule implements module.Module with a configurable placeholder func
// and a call counter.
type fakeModule struct {
	*module.Base
	fn func(ctx context.Context, key string, args []string) (string, bool, error)

	mu    sync.Mutex
	calls int
}

func newFakeModule(id string, premium bool, fn func(ctx context.Context, key string, args []string) (string, bool, error)) *fakeModule {
	return &fakeModule{
		Base: module.NewBase(module.Descriptor{ID: id, Name: id, Premium: premium}, nil, nil),
		fn:   fn,
	}
}

func (f *fakeModule) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(ctx, key, args)
}

func (f *fakeModule) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type capturePublisher struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (p *capturePublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) getMessages() []pubsub.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pubsub.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

func echoModule(id string) *fakeModule {
	return newFakeModule(id, false, func(ctx context.Context, key string, args []string) (string, bool, error) {
		return key, true, nil
	})
}

func newTestRegistry(t *testing.T, premium bool, opts ...Option) *Registry {
	t.Helper()
	return New(entitlement.NewStatic(premium), &capturePublisher{}, opts...)
}

func TestResolve_PlainTextPassesThrough(t *testing.T) {
	r := newTestRegistry(t, false)

	out, err := r.Resolve(context.Background(), "hello world", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestResolve_DispatchesToModule(t *testing.T) {
	r := newTestRegistry(t, false)
	m := newFakeModule("greet", false, func(ctx context.Context, key string, args []string) (string, bool, error) {
		assert.Equal(t, "hello", key)
		assert.Equal(t, []string{"a", "b"}, args)
		return "hi there", true, nil
	})
	require.NoError(t, r.Register(context.Background(), m, false))

	out, err := r.Resolve(context.Background(), "say {{greet;hello;a;b}}!", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "say hi there!", out)
}

func TestResolve_InnerSyntax(t *testing.T) {
	r := newTestRegistry(t, false)
	m := newFakeModule("greet", false, func(ctx context.Context, key string, args []string) (string, bool, error) {
		assert.Equal(t, []string{"x"}, args)
		return "inner", true, nil
	})
	require.NoError(t, r.Register(context.Background(), m, false))

	out, err := r.Resolve(context.Background(), "[[greet:hello:x]]", module.SyntaxInner, nil)
	require.NoError(t, err)
	assert.Equal(t, "inner", out)
}

func TestResolve_UnknownModulePassesThrough(t *testing.T) {
	r := newTestRegistry(t, false)

	out, err := r.Resolve(context.Background(), "{{nope;key}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "{{nope;key}}", out)
}

func TestResolve_NewlineAliasIsSyntaxLocal(t *testing.T) {
	r := newTestRegistry(t, false)

	out, err := r.Resolve(context.Background(), "a{{nl}}b[[nl]]c", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "a\nb[[nl]]c", out)

	out, err = r.Resolve(context.Background(), "a[[nl]]b{{nl}}c", module.SyntaxInner, nil)
	require.NoError(t, err)
	assert.Equal(t, "a\nb{{nl}}c", out)
}

func TestResolve_MemoizesDistinctTokens(t *testing.T) {
	r := newTestRegistry(t, false)
	m := echoModule("time")
	require.NoError(t, r.Register(context.Background(), m, false))

	out, err := r.Resolve(context.Background(),
		"{{time;now}} {{time;now}} {{time;now}} {{time;later}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "now now now later", out)
	assert.Equal(t, 2, m.callCount())
}

func TestResolve_ResolvedValuesAreNotRescanned(t *testing.T) {
	r := newTestRegistry(t, false)
	m := newFakeModule("echo", false, func(ctx context.Context, key string, args []string) (string, bool, error) {
		return "{{echo;again}}", true, nil
	})
	require.NoError(t, r.Register(context.Background(), m, false))

	out, err := r.Resolve(context.Background(), "{{echo;once}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "{{echo;again}}", out)
	assert.Equal(t, 1, m.callCount())
}

func TestResolve_MissingKeySentinel(t *testing.T) {
	r := newTestRegistry(t, false)
	m := newFakeModule("partial", false, func(ctx context.Context, key string, args []string) (string, bool, error) {
		return "", false, nil
	})
	require.NoError(t, r.Register(context.Background(), m, false))

	out, err := r.Resolve(context.Background(), "{{partial;gone}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "(Missing: {{partial;gone}})", out)
}

func TestResolve_ModuleErrorKeepsRawToken(t *testing.T) {
	r := newTestRegistry(t, false)
	m := newFakeModule("broken", false, func(ctx context.Context, key string, args []string) (string, bool, error) {
		return "", false, errors.New("boom")
	})
	require.NoError(t, r.Register(context.Background(), m, false))

	out, err := r.Resolve(context.Background(), "{{broken;key}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "{{broken;key}}", out)
}

func TestResolve_ModulePanicKeepsRawToken(t *testing.T) {
	r := newTestRegistry(t, false)
	m := newFakeModule("panicky", false, func(ctx context.Context, key string, args []string) (string, bool, error) {
		panic("oh no")
	})
	require.NoError(t, r.Register(context.Background(), m, false))

	out, err := r.Resolve(context.Background(), "{{panicky;key}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "{{panicky;key}}", out)
}

func TestResolve_PremiumGate(t *testing.T) {
	m := newFakeModule("fancy", true, func(ctx context.Context, key string, args []string) (string, bool, error) {
		return "premium content", true, nil
	})

	r := newTestRegistry(t, false)
	require.NoError(t, r.Register(context.Background(), m, false))
	out, err := r.Resolve(context.Background(), "{{fancy;key}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "(Premium Module: {{fancy;key}})", out)

	r = newTestRegistry(t, true)
	require.NoError(t, r.Register(context.Background(), m, false))
	out, err = r.Resolve(context.Background(), "{{fancy;key}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "premium content", out)
}

func TestResolve_Overrides(t *testing.T) {
	r := newTestRegistry(t, false)
	m := echoModule("echo")
	require.NoError(t, r.Register(context.Background(), m, false))

	// Nil Return substitutes the raw token back.
	out, err := r.Resolve(context.Background(), "{{echo;key}}", module.SyntaxOuter,
		[]module.Override{{ModuleID: "echo", Key: "key"}})
	require.NoError(t, err)
	assert.Equal(t, "{{echo;key}}", out)
	assert.Equal(t, 0, m.callCount())

	// Non-nil Return substitutes the given value.
	replacement := "fixed"
	out, err = r.Resolve(context.Background(), "{{echo;key}}", module.SyntaxOuter,
		[]module.Override{{ModuleID: "echo", Key: "key", Return: &replacement}})
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)
	assert.Equal(t, 0, m.callCount())
}

func TestResolveMany_RoundTrips(t *testing.T) {
	r := newTestRegistry(t, false)
	m := echoModule("echo")
	require.NoError(t, r.Register(context.Background(), m, false))

	out, err := r.ResolveMany(context.Background(),
		[]string{"{{echo;one}}", "plain", "{{echo;two}}"}, module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "plain", "two"}, out)
}

func TestResolve_GuardTripsAndSuppresses(t *testing.T) {
	publisher := &capturePublisher{}
	r := New(entitlement.NewStatic(false), publisher,
		WithThreshold(3), WithStall(time.Millisecond), WithCooldown(time.Hour))
	m := echoModule("echo")
	require.NoError(t, r.Register(context.Background(), m, false))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		out, err := r.Resolve(ctx, "{{echo;key}}", module.SyntaxOuter, nil)
		require.NoError(t, err)
		assert.Equal(t, "key", out)
	}

	// Third identical dispatch within the epoch trips the guard.
	out, err := r.Resolve(ctx, "{{echo;key}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "(Ignored: {{echo;key}})", out)

	// Suppression holds for the cooldown without re-dispatching.
	out, err = r.Resolve(ctx, "{{echo;key}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "(Ignored: {{echo;key}})", out)
	assert.Equal(t, 2, m.callCount())

	// A different tuple is unaffected.
	out, err = r.Resolve(ctx, "{{echo;other}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "other", out)

	// The trip published exactly one notice.
	messages := publisher.getMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, pubsub.TopicNotice, messages[0].Topic)
}

func TestResolve_SuppressionKeyedByFullTuple(t *testing.T) {
	r := New(entitlement.NewStatic(false), &capturePublisher{},
		WithThreshold(2), WithStall(time.Millisecond), WithCooldown(time.Hour))
	m := echoModule("echo")
	require.NoError(t, r.Register(context.Background(), m, false))

	ctx := context.Background()
	_, err := r.Resolve(ctx, "{{echo;key;a}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	out, err := r.Resolve(ctx, "{{echo;key;a}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "(Ignored: {{echo;key;a}})", out)

	// Same key, different args: separate tuple, still live.
	out, err = r.Resolve(ctx, "{{echo;key;b}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "key", out)
}

func TestRegistry_RegisterReplacesById(t *testing.T) {
	r := newTestRegistry(t, false)
	first := echoModule("dup")
	second := newFakeModule("dup", false, func(ctx context.Context, key string, args []string) (string, bool, error) {
		return "second", true, nil
	})

	ctx := context.Background()
	require.NoError(t, r.Register(ctx, first, false))
	require.NoError(t, r.Register(ctx, second, false))

	assert.Len(t, r.Modules(), 1)
	out, err := r.Resolve(ctx, "{{dup;key}}", module.SyntaxOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestRegistry_LifecycleHooksRun(t *testing.T) {
	r := newTestRegistry(t, false, WithEpoch(10*time.Millisecond))
	m := echoModule("echo")

	ctx := context.Background()
	require.NoError(t, r.Init(ctx, m))
	assert.Len(t, r.Modules(), 1)
	require.NoError(t, r.Destroy(ctx))
	assert.Empty(t, r.Modules())
}
