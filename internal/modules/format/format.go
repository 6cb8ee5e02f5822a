// Package format rewrites text into decorative unicode alphabets.
package format

import (
	"context"
	"strings"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
)

// styles maps a style key to its per-rune translation table. Input is
// lowercased first; unmapped runes pass through unchanged.
var styles = map[string]map[rune]string{
	"superscript": {
		'a': "ᵃ", 'b': "ᵇ", 'c': "ᶜ", 'd': "ᵈ", 'e': "ᵉ", 'f': "ᶠ", 'g': "ᵍ",
		'h': "ʰ", 'i': "ⁱ", 'j': "ʲ", 'k': "ᵏ", 'l': "ˡ", 'm': "ᵐ", 'n': "ⁿ",
		'o': "ᵒ", 'p': "ᵖ", 'q': "ᑫ", 'r': "ʳ", 's': "ˢ", 't': "ᵗ", 'u': "ᵘ",
		'v': "ᵛ", 'w': "ʷ", 'x': "ˣ", 'y': "ʸ", 'z': "ᶻ",
		'0': "⁰", '1': "¹", '2': "²", '3': "³", '4': "⁴", '5': "⁵", '6': "⁶",
		'7': "⁷", '8': "⁸", '9': "⁹",
		'+': "⁺", '-': "⁻", '=': "⁼", '(': "⁽", ')': "⁾", '/': "ᐟ",
	},
	"rounded": {
		'a': "ⓐ", 'b': "ⓑ", 'c': "ⓒ", 'd': "ⓓ", 'e': "ⓔ", 'f': "ⓕ", 'g': "ⓖ",
		'h': "ⓗ", 'i': "ⓘ", 'j': "ⓙ", 'k': "ⓚ", 'l': "ⓛ", 'm': "ⓜ", 'n': "ⓝ",
		'o': "ⓞ", 'p': "ⓟ", 'q': "ⓠ", 'r': "ⓡ", 's': "ⓢ", 't': "ⓣ", 'u': "ⓤ",
		'v': "ⓥ", 'w': "ⓦ", 'x': "ⓧ", 'y': "ⓨ", 'z': "ⓩ",
		'0': "⓪", '1': "①", '2': "②", '3': "③", '4': "④", '5': "⑤", '6': "⑥",
		'7': "⑦", '8': "⑧", '9': "⑨",
	},
	"small_caps": {
		'a': "ᴀ", 'b': "ʙ", 'c': "ᴄ", 'd': "ᴅ", 'e': "ᴇ", 'f': "ꜰ", 'g': "ɢ",
		'h': "ʜ", 'i': "ɪ", 'j': "ᴊ", 'k': "ᴋ", 'l': "ʟ", 'm': "ᴍ", 'n': "ɴ",
		'o': "ᴏ", 'p': "ᴘ", 'q': "ǫ", 'r': "ʀ", 's': "ꜱ", 't': "ᴛ", 'u': "ᴜ",
		'v': "ᴠ", 'w': "ᴡ", 'x': "x", 'y': "ʏ", 'z': "ᴢ",
	},
}

// Module translates text through one of the style tables.
type Module struct {
	*module.Base
}

// New creates the format module.
func New(store kvstore.Store, resolver module.Resolver) *Module {
	desc := module.Descriptor{
		ID:          "format",
		Name:        "Format",
		Description: "Format module, used to format text.",
		ExamplePlaceholders: []module.ExamplePlaceholder{
			{Placeholder: "superscript;HelloWorld", Description: "Convert text to ˢᵘᵖᵉʳˢᶜʳⁱᵖᵗ."},
			{Placeholder: "rounded;HelloWorld", Description: "Convert text to ⓡⓞⓤⓝⓓⓔⓓ."},
			{Placeholder: "small_caps;HelloWorld", Description: "Convert text to ꜱᴍᴀʟʟᴄᴀᴘꜱ."},
		},
	}
	return &Module{Base: module.NewBase(desc, store, resolver)}
}

// Placeholder implements module.Module. The key selects the style; the
// arguments, re-joined on ';', are the text (resolved in inner syntax first).
func (m *Module) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	value, err := m.Resolver().Resolve(ctx, strings.Join(args, ";"), module.SyntaxInner, nil)
	if err != nil {
		return "", false, err
	}

	table, found := styles[key]
	if !found {
		return value, true, nil
	}

	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if mapped, ok := table[r]; ok {
			b.WriteString(mapped)
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), true, nil
}
