// Package registry owns the set of live chatbox modules and implements
// placeholder resolution over them, including the recursion circuit breaker
// that keeps user-authored templates from looping forever.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatterbox-vr/chatterbox/internal/entitlement"
	"github.com/chatterbox-vr/chatterbox/internal/module"
	"github.com/chatterbox-vr/chatterbox/internal/pubsub"
)

const (
	// defaultThreshold is how many identical dispatches within one epoch trip
	// the recursion guard.
	defaultThreshold = 500

	// defaultEpoch is how often dispatch counters reset.
	defaultEpoch = time.Second

	// defaultCooldown is how long a tripped tuple stays suppressed.
	defaultCooldown = time.Second

	// defaultStall is the deliberate backpressure applied to the call that
	// trips the guard, so a runaway template cannot busy-loop the render
	// timer.
	defaultStall = time.Second
)

// premiumRoles short-circuit the entitlement check for staff accounts.
var premiumRoles = []string{"Admin", "Owner", "Moderator"}

// Notice is the payload published on pubsub.TopicNotice when the guard trips.
type Notice struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Registry is the single entry point for template resolution. It owns module
// lifecycle and the recursion guard state; neither outlives it.
type Registry struct {
	entitlement entitlement.Checker
	publisher   pubsub.Publisher

	mu    sync.RWMutex
	mods  map[string]module.Module
	order []string

	guard *guard
	epoch time.Duration
	stall time.Duration

	stopEpoch chan struct{}
	epochDone chan struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithThreshold overrides the guard's dispatch threshold.
func WithThreshold(n int) Option {
	return func(r *Registry) { r.guard.threshold = n }
}

// WithEpoch overrides the counter-reset interval.
func WithEpoch(d time.Duration) Option {
	return func(r *Registry) { r.epoch = d }
}

// WithCooldown overrides how long a tripped tuple stays suppressed.
func WithCooldown(d time.Duration) Option {
	return func(r *Registry) { r.guard.cooldown = d }
}

// WithStall overrides the backpressure stall applied on trip.
func WithStall(d time.Duration) Option {
	return func(r *Registry) { r.stall = d }
}

// New creates a registry. Modules are attached via Init or Register.
func New(checker entitlement.Checker, publisher pubsub.Publisher, opts ...Option) *Registry {
	r := &Registry{
		entitlement: checker,
		publisher:   publisher,
		mods:        make(map[string]module.Module),
		guard:       newGuard(defaultThreshold, defaultCooldown),
		epoch:       defaultEpoch,
		stall:       defaultStall,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts a module into the id-keyed map. Last write wins on id
// collision; replacing a module is how profiles swap implementations. When
// init is true the module's Init hook runs.
func (r *Registry) Register(ctx context.Context, m module.Module, init bool) error {
	id := m.Descriptor().ID

	r.mu.Lock()
	_, replacing := r.mods[id]
	r.mods[id] = m
	if !replacing {
		r.order = append(r.order, id)
	}
	r.mu.Unlock()

	slog.Debug("Module registered", "module", id, "name", m.Descriptor().Name)
	if init {
		return m.Init(ctx)
	}
	return nil
}

// Unregister removes a module. When destroy is true its Destroy hook runs.
func (r *Registry) Unregister(ctx context.Context, m module.Module, destroy bool) error {
	id := m.Descriptor().ID

	r.mu.Lock()
	delete(r.mods, id)
	for i, known := range r.order {
		if known == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	slog.Debug("Module unregistered", "module", id, "name", m.Descriptor().Name)
	if destroy {
		return m.Destroy(ctx)
	}
	return nil
}

// Init starts the guard's epoch timer and registers the given modules in
// order. Order matters only for display; resolution is keyed by module id.
func (r *Registry) Init(ctx context.Context, mods ...module.Module) error {
	r.stopEpoch = make(chan struct{})
	r.epochDone = make(chan struct{})
	go r.runEpochTimer()

	for _, m := range mods {
		if err := r.Register(ctx, m, true); err != nil {
			slog.Error("Module init failed", "module", m.Descriptor().ID, "error", err)
		}
	}
	return nil
}

func (r *Registry) runEpochTimer() {
	defer close(r.epochDone)
	ticker := time.NewTicker(r.epoch)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.guard.resetEpoch()
		case <-r.stopEpoch:
			return
		}
	}
}

// Destroy unregisters and destroys every module, stops the epoch timer and
// clears all guard state.
func (r *Registry) Destroy(ctx context.Context) error {
	for _, m := range r.Modules() {
		if err := r.Unregister(ctx, m, true); err != nil {
			slog.Error("Module destroy failed", "module", m.Descriptor().ID, "error", err)
		}
	}

	if r.stopEpoch != nil {
		close(r.stopEpoch)
		<-r.epochDone
		r.stopEpoch = nil
	}
	r.guard.clear()
	return nil
}

// Module returns the registered module with the given id.
func (r *Registry) Module(id string) (module.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, found := r.mods[id]
	return m, found
}

// Modules returns the registered modules in display order.
func (r *Registry) Modules() []module.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]module.Module, 0, len(r.order))
	for _, id := range r.order {
		if m, found := r.mods[id]; found {
			out = append(out, m)
		}
	}
	return out
}

// Premium reports whether the current user may use premium modules.
func (r *Registry) Premium(ctx context.Context) bool {
	ok, err := r.entitlement.IsPremium(ctx, premiumRoles...)
	if err != nil {
		slog.Warn("Entitlement check failed, treating as not premium", "error", err)
		return false
	}
	return ok
}

// AllInputValues snapshots every module's input values, keyed by module id.
// force=false masks secret inputs; use it whenever the result leaves the
// machine (e.g. sharing a profile).
func (r *Registry) AllInputValues(force bool) map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, m := range r.Modules() {
		out[m.Descriptor().ID] = m.AllInputValues(force)
	}
	return out
}

// SetAllInputValues bulk-restores input values from a profile snapshot.
// Unknown module ids are skipped.
func (r *Registry) SetAllInputValues(values map[string]map[string]any) error {
	for id, moduleValues := range values {
		m, found := r.Module(id)
		if !found {
			continue
		}
		if err := m.SetAllInputValues(moduleValues); err != nil {
			return err
		}
	}
	return nil
}

// notifySuppressed publishes the one-time user-visible notice when the guard
// trips on a tuple.
func (r *Registry) notifySuppressed(ctx context.Context, moduleID, key string, count int) {
	if r.publisher == nil {
		return
	}
	payload, err := json.Marshal(Notice{
		ID:    uuid.NewString(),
		Title: "Chatbox",
		Description: fmt.Sprintf(
			"Prevented recursive calls for module %s key %s due to excessive calls (%d). "+
				"This may indicate a loop in a user-made template.", moduleID, key, count),
	})
	if err != nil {
		return
	}
	if err := r.publisher.Publish(ctx, pubsub.Message{
		Topic:   pubsub.TopicNotice,
		Payload: payload,
	}); err != nil {
		slog.Debug("Failed to publish suppression notice", "error", err)
	}
}
