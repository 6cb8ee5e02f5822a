// Package module defines the contract every chatbox data-source module
// implements, and the Base type that gives each module its persisted
// input store.
package module

import (
	"context"
	"fmt"
	"strings"
)

// Syntax selects one of the two placeholder grammars.
type Syntax int

const (
	// SyntaxOuter is {{moduleId;key;arg1;...}}, used for top-level templates
	// and most module-to-module composition.
	SyntaxOuter Syntax = iota
	// SyntaxInner is [[moduleId:key:arg1:...]], used when a placeholder is
	// embedded inside another placeholder's argument so the delimiters don't
	// collide with argument content.
	SyntaxInner
)

// Override suppresses dispatch for a (moduleId, key) pair during one resolve
// call. A module resolving its own template uses this to avoid re-triggering
// itself. When Return is nil the raw token is substituted back literally.
type Override struct {
	ModuleID string
	Key      string
	Return   *string
}

// Resolver is the template-expansion capability modules use to resolve nested
// placeholders inside their own arguments. The registry implements it.
type Resolver interface {
	Resolve(ctx context.Context, text string, syntax Syntax, ignored []Override) (string, error)
	ResolveMany(ctx context.Context, texts []string, syntax Syntax, ignored []Override) ([]string, error)
}

// Descriptor is the static identity and configuration schema of a module.
type Descriptor struct {
	ID          string
	Name        string
	Description string

	// Premium modules resolve to a sentinel for callers without entitlement.
	Premium bool

	// Inputs are declared in display order. IDs must be unique.
	Inputs []InputDefinition

	// PlaceholderDefaults supplies fallback text per key for modules that
	// don't override Placeholder.
	PlaceholderDefaults map[string]string

	// ExamplePlaceholders document the module for discovery surfaces.
	ExamplePlaceholders []ExamplePlaceholder
}

// Input returns the declared input with the given id.
func (d Descriptor) Input(id string) (InputDefinition, bool) {
	for _, in := range d.Inputs {
		if in.ID == id {
			return in, true
		}
	}
	return InputDefinition{}, false
}

// Example is a rendered example placeholder in both grammars.
type Example struct {
	Outer       string
	Inner       string
	Description string
}

// Examples renders the descriptor's example placeholders as full tokens.
func (d Descriptor) Examples() []Example {
	out := make([]Example, 0, len(d.ExamplePlaceholders))
	for _, ph := range d.ExamplePlaceholders {
		out = append(out, Example{
			Outer:       fmt.Sprintf("{{%s;%s}}", d.ID, ph.Placeholder),
			Inner:       fmt.Sprintf("[[%s:%s]]", d.ID, strings.ReplaceAll(ph.Placeholder, ";", ":")),
			Description: ph.Description,
		})
	}
	return out
}

// Module is the uniform shape every data-source plugin implements. The
// resolver treats all data sources through this one interface.
type Module interface {
	// Descriptor returns the module's static identity and input schema.
	Descriptor() Descriptor

	// Placeholder resolves the path segments after the module id to text.
	// ok=false means the module has no value for this key. Implementations
	// must tolerate being called far more often than once per render tick;
	// recursion and batching multiply calls.
	Placeholder(ctx context.Context, key string, args []string) (text string, ok bool, err error)

	// Init is called when the module is registered. Modules that own
	// background resources (sockets, tickers, watchers) start them here.
	Init(ctx context.Context) error

	// Destroy stops everything Init started. No timers or handles may
	// survive its return.
	Destroy(ctx context.Context) error

	// InputValue returns the persisted value for an input id, or the
	// declared default when unset. The default is not written back.
	InputValue(id string) any

	// SetInputValue persists an input value immediately.
	SetInputValue(id string, value any) error

	// AllInputValues returns every declared input's current value. When
	// force is false, secret inputs are masked with their defaults.
	AllInputValues(force bool) map[string]any

	// SetAllInputValues bulk-restores input values, e.g. when importing a
	// shared profile.
	SetAllInputValues(values map[string]any) error
}
