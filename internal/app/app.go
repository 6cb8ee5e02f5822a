// Package app assembles the application: storage, event bus, transport,
// system layer client, module registry and the chatbox orchestrator.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/chatterbox-vr/chatterbox/internal/chatbox"
	"github.com/chatterbox-vr/chatterbox/internal/config"
	"github.com/chatterbox-vr/chatterbox/internal/entitlement"
	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
	"github.com/chatterbox-vr/chatterbox/internal/pubsub"
	"github.com/chatterbox-vr/chatterbox/internal/registry"
	"github.com/chatterbox-vr/chatterbox/internal/systemlayer"
	"github.com/chatterbox-vr/chatterbox/internal/transport"
)

// chatboxFrameDelay paces frame-based animations to the chatbox update tick.
const chatboxFrameDelay = chatbox.DefaultUpdateInterval

// App owns the wired application and its lifecycle.
type App struct {
	cfg *config.Config

	store       *kvstore.FileStore
	bus         *pubsub.WatermillBridge
	out         transport.Transport
	systemLayer *systemlayer.Client
	registry    *registry.Registry
	chatbox     *chatbox.Chatbox
}

// New wires the application from config. Nothing starts running until Run.
func New(cfg *config.Config) (*App, error) {
	store := kvstore.NewFileStore(afero.NewOsFs(), cfg.DataDir)
	bus := pubsub.NewWatermillBridge()

	out, err := transport.NewOSC(cfg.OSCAddr)
	if err != nil {
		return nil, fmt.Errorf("create osc transport: %w", err)
	}

	systemLayer := systemlayer.New(cfg.SystemLayerURL, bus)
	checker := entitlement.NewStatic(cfg.Premium)
	reg := registry.New(checker, bus)

	box := chatbox.New(store, reg, out,
		chatbox.WithInterval(cfg.UpdateInterval),
		chatbox.WithConfigWatch(store.Path(chatbox.ConfigKey)),
	)

	return &App{
		cfg:         cfg,
		store:       store,
		bus:         bus,
		out:         out,
		systemLayer: systemLayer,
		registry:    reg,
		chatbox:     box,
	}, nil
}

// Registry exposes the module registry for the CLI surfaces.
func (a *App) Registry() *registry.Registry { return a.registry }

func (a *App) moduleSet() []module.Module {
	return NewModules(ModuleDependencies{
		Store:       a.store,
		Resolver:    a.registry,
		Bus:         a.bus,
		Transport:   a.out,
		SystemLayer: a.systemLayer,
	})
}

// LoadModules registers the module set without starting any of them. Offline
// surfaces like the module listing and profile import/export use this.
func (a *App) LoadModules(ctx context.Context) error {
	for _, m := range a.moduleSet() {
		if err := a.registry.Register(ctx, m, false); err != nil {
			return fmt.Errorf("register module %q: %w", m.Descriptor().ID, err)
		}
	}
	return nil
}

// Chatbox exposes the orchestrator for the CLI surfaces.
func (a *App) Chatbox() *chatbox.Chatbox { return a.chatbox }

// Run starts everything and blocks until ctx is canceled, then tears the
// application down in reverse order.
func (a *App) Run(ctx context.Context) error {
	slog.Info("Starting chatterbox", "data_dir", a.cfg.DataDir, "osc_addr", a.cfg.OSCAddr)

	a.systemLayer.Start(ctx)

	if err := a.registry.Init(ctx, a.moduleSet()...); err != nil {
		return fmt.Errorf("init module registry: %w", err)
	}

	if err := a.chatbox.Init(ctx); err != nil {
		return fmt.Errorf("init chatbox: %w", err)
	}

	<-ctx.Done()
	slog.Info("Shutting down chatterbox")

	shutdownCtx := context.WithoutCancel(ctx)
	if err := a.chatbox.Destroy(shutdownCtx); err != nil {
		slog.Error("Failed to stop chatbox", "error", err)
	}
	if err := a.registry.Destroy(shutdownCtx); err != nil {
		slog.Error("Failed to stop module registry", "error", err)
	}
	a.systemLayer.Stop()
	if err := a.out.Close(); err != nil {
		slog.Error("Failed to close transport", "error", err)
	}
	if err := a.bus.Close(); err != nil {
		slog.Error("Failed to close event bus", "error", err)
	}
	return nil
}
