// Package chatbox owns the top-level template and the render/send loop: on a
// fixed interval it asks the registry to resolve the template and hands the
// result to the transport.
package chatbox

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
	"github.com/chatterbox-vr/chatterbox/internal/transport"
)

// ConfigKey is the key/value store namespace holding the chatbox config.
const ConfigKey = "Chatbox;Config"

// DefaultUpdateInterval is the render/send tick.
const DefaultUpdateInterval = 2250 * time.Millisecond

// Config is the user-facing chatbox configuration, persisted as one JSON
// value so the desktop shell (or the user, editing the file directly) can
// change it while we run.
type Config struct {
	// Egg suppresses the in-game notification sound on sends.
	Egg bool `json:"egg"`

	// ResumeDelayMS is how long a pause lasts before sends resume on their own.
	ResumeDelayMS int `json:"resume_delay_ms"`

	// TrimTemplate strips leading/trailing whitespace from rendered output.
	TrimTemplate bool `json:"trim_template"`

	// AutoTemplateEnabled gates the periodic send entirely.
	AutoTemplateEnabled bool `json:"auto_template_enabled"`

	// Template is the user-authored template string.
	Template string `json:"template"`

	// AutoTemplateUpdateCondition, when set, makes sends edge-triggered: the
	// full template is only sent on ticks where this template's resolved
	// value differs from the previous tick.
	AutoTemplateUpdateCondition string `json:"auto_template_update_condition"`
}

// DefaultConfig returns the out-of-the-box chatbox configuration.
func DefaultConfig() Config {
	return Config{
		Egg:                 false,
		ResumeDelayMS:       10000,
		TrimTemplate:        true,
		AutoTemplateEnabled: true,
		Template: strings.Join([]string{
			"{{shortcut;media_if_playing}}",
			"🕛 {{time;date_time}}",
		}, "\n"),
		AutoTemplateUpdateCondition: "",
	}
}

// Chatbox is the orchestrator: template + pause state + the send timer.
type Chatbox struct {
	store    kvstore.Store
	resolver module.Resolver
	out      transport.Transport
	interval time.Duration

	mu            sync.Mutex
	config        Config
	lastPausedAt  time.Time
	lastCondition string

	cancel context.CancelFunc
	done   chan struct{}

	watchPath string
}

// Option configures a Chatbox.
type Option func(*Chatbox)

// WithInterval overrides the render/send tick.
func WithInterval(d time.Duration) Option {
	return func(c *Chatbox) { c.interval = d }
}

// WithConfigWatch enables reloading the persisted config when the backing
// file changes on disk.
func WithConfigWatch(path string) Option {
	return func(c *Chatbox) { c.watchPath = path }
}

// New creates the orchestrator. Init starts the timer.
func New(store kvstore.Store, resolver module.Resolver, out transport.Transport, opts ...Option) *Chatbox {
	c := &Chatbox{
		store:    store,
		resolver: resolver,
		out:      out,
		interval: DefaultUpdateInterval,
		config:   DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns a copy of the current configuration.
func (c *Chatbox) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// Update mutates the configuration and persists it synchronously.
func (c *Chatbox) Update(ctx context.Context, mutate func(*Config)) error {
	c.mu.Lock()
	mutate(&c.config)
	snapshot := c.config
	c.mu.Unlock()
	return kvstore.SetJSON(ctx, c.store, ConfigKey, snapshot)
}

// ResetConfig restores and persists the defaults.
func (c *Chatbox) ResetConfig(ctx context.Context) error {
	return c.Update(ctx, func(cfg *Config) { *cfg = DefaultConfig() })
}

// Pause suppresses outbound sends. The pause expires on its own after the
// configured resume delay; resolution keeps running regardless.
func (c *Chatbox) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPausedAt = time.Now()
}

// Unpause clears the pause immediately.
func (c *Chatbox) Unpause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPausedAt = time.Time{}
}

// IsPaused reports whether sends are currently suppressed.
func (c *Chatbox) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isPausedLocked()
}

func (c *Chatbox) isPausedLocked() bool {
	if c.lastPausedAt.IsZero() {
		return false
	}
	delay := time.Duration(c.config.ResumeDelayMS) * time.Millisecond
	return time.Since(c.lastPausedAt) < delay
}

// Send hands text to the transport unless paused. force bypasses the pause.
func (c *Chatbox) Send(text string, force bool) {
	c.mu.Lock()
	paused := c.isPausedLocked()
	egg := c.config.Egg
	c.mu.Unlock()

	if paused && !force {
		return
	}
	if err := c.out.Send(text, egg); err != nil {
		slog.Error("Failed to send chatbox text", "error", err)
	}
}

// TemplateContent renders the current template to final text.
func (c *Chatbox) TemplateContent(ctx context.Context) (string, error) {
	cfg := c.Config()
	text, err := c.resolver.Resolve(ctx, cfg.Template, module.SyntaxOuter, nil)
	if err != nil {
		return "", err
	}
	if cfg.TrimTemplate {
		text = strings.TrimSpace(text)
	}
	return text, nil
}

// Init loads the persisted config and starts the send timer (and the config
// watcher when enabled).
func (c *Chatbox) Init(ctx context.Context) error {
	if err := c.loadConfig(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	if c.watchPath != "" {
		go c.watchConfig(runCtx, c.watchPath)
	}
	go c.run(runCtx)
	return nil
}

// Destroy stops the timer. Pending sends are abandoned, not flushed: stale
// status is worse than no status.
func (c *Chatbox) Destroy(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	return nil
}

func (c *Chatbox) loadConfig(ctx context.Context) error {
	cfg := DefaultConfig()
	if err := kvstore.GetJSON(ctx, c.store, ConfigKey, &cfg); err != nil {
		return err
	}
	c.mu.Lock()
	c.config = cfg
	c.mu.Unlock()
	return nil
}

func (c *Chatbox) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick is one render pass. The timer never overlaps itself: the next tick
// only fires after this one returns, so resolve passes are never re-entered.
func (c *Chatbox) tick(ctx context.Context) {
	cfg := c.Config()
	if !cfg.AutoTemplateEnabled {
		return
	}

	if cfg.AutoTemplateUpdateCondition != "" {
		condition, err := c.resolver.Resolve(ctx, cfg.AutoTemplateUpdateCondition, module.SyntaxOuter, nil)
		if err != nil {
			slog.Error("Failed to resolve update condition", "error", err)
			return
		}

		c.mu.Lock()
		changed := condition != c.lastCondition
		c.lastCondition = condition
		c.mu.Unlock()
		if !changed {
			return
		}
	}

	text, err := c.TemplateContent(ctx)
	if err != nil {
		slog.Error("Failed to render template", "error", err)
		return
	}
	c.Send(text, false)
}
