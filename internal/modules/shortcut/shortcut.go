// Package shortcut lets users name template fragments and reference them as
// placeholders, including nested ones.
package shortcut

import (
	"context"
	"regexp"
	"strconv"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
)

// argRefPattern matches $0, $1, ... references inside a shortcut body.
var argRefPattern = regexp.MustCompile(`\$(\d+)`)

// Module expands named shortcuts into their (recursively resolved) bodies.
type Module struct {
	*module.Base
}

// New creates the shortcut module.
func New(store kvstore.Store, resolver module.Resolver) *Module {
	desc := module.Descriptor{
		ID:          "shortcut",
		Name:        "Shortcut",
		Description: "Shortcut module, used to replace a key with a value. Allows you to use nested placeholders.",
		Inputs: []module.InputDefinition{
			{
				ID:              "shortcuts",
				Kind:            module.KindKeyValues,
				Name:            "Shortcuts",
				Description:     "List of shortcuts",
				AllowCustomKeys: true,
				DefaultMap: map[string]string{
					"media_base":        "{{media;playback_status}} '{{media;title}} ᵇʸ {{media;artist}}' {{format;superscript;[[media:current_time]]/[[media:total_time]]}}\n{{media;current_lyric_line}}",
					"media_not_playing": "⏸️ Nothing Playing",
					"media_if_playing":  "{{condition;==;[[media:raw_playback_status]];Playing;[[shortcut:media_base]];[[shortcut:media_not_playing]]}}",
				},
			},
		},
		ExamplePlaceholders: []module.ExamplePlaceholder{
			{Placeholder: "media_example", Description: "Example of using the media module with a shortcut."},
			{Placeholder: "shortcut_name;some;args", Description: "Expand a shortcut with arguments. Args can be used in the shortcut value with $0, $1, $2, etc."},
		},
	}
	return &Module{Base: module.NewBase(desc, store, resolver)}
}

// Placeholder implements module.Module. The shortcut body is itself a
// template; resolving it can reference further shortcuts, which is exactly
// what the registry's recursion guard exists for.
func (m *Module) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	shortcuts := m.MapInput("shortcuts")
	body, found := shortcuts[key]
	if !found || body == "" {
		return key, true, nil
	}

	filledArgs, err := m.Resolver().ResolveMany(ctx, args, module.SyntaxOuter, nil)
	if err != nil {
		return "", false, err
	}

	spliced := argRefPattern.ReplaceAllStringFunc(body, func(ref string) string {
		index, err := strconv.Atoi(ref[1:])
		if err != nil || index >= len(filledArgs) {
			return ref
		}
		return filledArgs[index]
	})

	resolved, err := m.Resolver().Resolve(ctx, spliced, module.SyntaxOuter, nil)
	if err != nil {
		return "", false, err
	}
	return resolved, true, nil
}
