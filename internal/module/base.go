package module

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
)

// InputNamespacePrefix is the key/value store namespace prefix under which
// each module's input values are persisted, keyed per module id.
const InputNamespacePrefix = "Chatterbox;ModuleConfigs"

// Base carries the persisted input store and default behavior shared by every
// module. Concrete modules embed *Base and override Placeholder (and Init /
// Destroy when they own background resources).
type Base struct {
	desc     Descriptor
	store    kvstore.Store
	resolver Resolver

	mu     sync.RWMutex
	values map[string]any
}

// NewBase loads the module's persisted input values and returns the shared
// core. A corrupt or unreadable store logs and starts empty rather than
// failing construction; defaults cover every input.
func NewBase(desc Descriptor, store kvstore.Store, resolver Resolver) *Base {
	b := &Base{
		desc:     desc,
		store:    store,
		resolver: resolver,
		values:   make(map[string]any),
	}
	if store != nil {
		if err := kvstore.GetJSON(context.Background(), store, b.storeKey(), &b.values); err != nil {
			slog.Warn("Failed to load module input values, starting from defaults",
				"module", desc.ID, "error", err)
			b.values = make(map[string]any)
		}
	}
	return b
}

func (b *Base) storeKey() string {
	return fmt.Sprintf("%s;%s", InputNamespacePrefix, b.desc.ID)
}

// Descriptor implements Module.
func (b *Base) Descriptor() Descriptor { return b.desc }

// Resolver returns the template resolver this module composes with.
func (b *Base) Resolver() Resolver { return b.resolver }

// Init implements Module as a no-op.
func (b *Base) Init(ctx context.Context) error { return nil }

// Destroy implements Module as a no-op.
func (b *Base) Destroy(ctx context.Context) error { return nil }

// Placeholder implements Module with the declared per-key default text,
// falling back to the key itself.
func (b *Base) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	if text, found := b.desc.PlaceholderDefaults[key]; found {
		return text, true, nil
	}
	return key, true, nil
}

// InputValue implements Module. An unset input yields the declared default
// without persisting it.
func (b *Base) InputValue(id string) any {
	b.mu.RLock()
	v, found := b.values[id]
	b.mu.RUnlock()
	if found && v != nil {
		return v
	}
	if def, ok := b.desc.Input(id); ok {
		return def.DefaultValue()
	}
	return nil
}

// SetInputValue implements Module. The write is durable before it returns.
func (b *Base) SetInputValue(id string, value any) error {
	b.mu.Lock()
	b.values[id] = value
	snapshot := b.snapshotLocked()
	b.mu.Unlock()
	return b.persist(snapshot)
}

// AllInputValues implements Module.
func (b *Base) AllInputValues(force bool) map[string]any {
	out := make(map[string]any, len(b.desc.Inputs))
	for _, in := range b.desc.Inputs {
		if in.Secret && !force {
			out[in.ID] = in.DefaultValue()
			continue
		}
		out[in.ID] = b.InputValue(in.ID)
	}
	return out
}

// SetAllInputValues implements Module.
func (b *Base) SetAllInputValues(values map[string]any) error {
	b.mu.Lock()
	b.values = make(map[string]any, len(values))
	for k, v := range values {
		b.values[k] = v
	}
	snapshot := b.snapshotLocked()
	b.mu.Unlock()
	return b.persist(snapshot)
}

func (b *Base) snapshotLocked() map[string]any {
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

func (b *Base) persist(values map[string]any) error {
	if b.store == nil {
		return nil
	}
	if err := kvstore.SetJSON(context.Background(), b.store, b.storeKey(), values); err != nil {
		return fmt.Errorf("persist inputs for module %q: %w", b.desc.ID, err)
	}
	return nil
}

// TextInput returns the input value coerced to a string.
func (b *Base) TextInput(id string) string {
	switch v := b.InputValue(id).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// NumberInput returns the input value coerced to a float64.
func (b *Base) NumberInput(id string) float64 {
	switch v := b.InputValue(id).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// BoolInput returns the input value coerced to a bool.
func (b *Base) BoolInput(id string) bool {
	switch v := b.InputValue(id).(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(v)
		return err == nil && parsed
	default:
		return false
	}
}

// MapInput returns the input value coerced to a string map. JSON round-trips
// turn maps into map[string]any, so both shapes are handled.
func (b *Base) MapInput(id string) map[string]string {
	switch v := b.InputValue(id).(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				out[k] = s
			} else {
				out[k] = fmt.Sprint(val)
			}
		}
		return out
	default:
		return map[string]string{}
	}
}
