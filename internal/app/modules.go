package app

import (
	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
	"github.com/chatterbox-vr/chatterbox/internal/modules/afk"
	"github.com/chatterbox-vr/chatterbox/internal/modules/animation"
	"github.com/chatterbox-vr/chatterbox/internal/modules/condition"
	"github.com/chatterbox-vr/chatterbox/internal/modules/format"
	"github.com/chatterbox-vr/chatterbox/internal/modules/heartrate"
	"github.com/chatterbox-vr/chatterbox/internal/modules/httpfetch"
	"github.com/chatterbox-vr/chatterbox/internal/modules/mathexpr"
	"github.com/chatterbox-vr/chatterbox/internal/modules/media"
	"github.com/chatterbox-vr/chatterbox/internal/modules/progressbar"
	"github.com/chatterbox-vr/chatterbox/internal/modules/shortcut"
	"github.com/chatterbox-vr/chatterbox/internal/modules/stt"
	"github.com/chatterbox-vr/chatterbox/internal/modules/timemod"
	"github.com/chatterbox-vr/chatterbox/internal/pubsub"
	"github.com/chatterbox-vr/chatterbox/internal/systemlayer"
	"github.com/chatterbox-vr/chatterbox/internal/transport"
)

// ModuleDependencies holds the core services the data-source modules need.
// This struct is passed from the main application entrypoint to wire up the
// modules.
type ModuleDependencies struct {
	Store       kvstore.Store
	Resolver    module.Resolver
	Bus         pubsub.Bus
	Transport   transport.Transport
	SystemLayer systemlayer.Sender
}

// NewModules creates and returns the list of all active modules in display
// order. This is the single source of truth for which modules are enabled.
func NewModules(deps ModuleDependencies) []module.Module {
	return []module.Module{
		media.New(media.Dependencies{
			Store:      deps.Store,
			Resolver:   deps.Resolver,
			Subscriber: deps.Bus,
		}),
		shortcut.New(deps.Store, deps.Resolver),
		animation.New(deps.Store, deps.Resolver, chatboxFrameDelay),
		progressbar.New(deps.Store, deps.Resolver),
		timemod.New(deps.Store, deps.Resolver),
		stt.New(stt.Dependencies{
			Store:      deps.Store,
			Resolver:   deps.Resolver,
			Subscriber: deps.Bus,
			Transport:  deps.Transport,
		}),
		heartrate.New(heartrate.Dependencies{
			Store:    deps.Store,
			Resolver: deps.Resolver,
		}),
		httpfetch.New(httpfetch.Dependencies{
			Store:    deps.Store,
			Resolver: deps.Resolver,
		}),
		afk.New(afk.Dependencies{
			Store:      deps.Store,
			Resolver:   deps.Resolver,
			Subscriber: deps.Bus,
			Publisher:  deps.Bus,
			Sender:     deps.SystemLayer,
		}),
		format.New(deps.Store, deps.Resolver),
		condition.New(deps.Store, deps.Resolver),
		mathexpr.New(deps.Store, deps.Resolver),
	}
}
