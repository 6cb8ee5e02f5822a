// Package progressbar renders textual progress bars driven by other modules'
// numeric output (media position, countdowns, heart rate).
package progressbar

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
)

// Style is one bar appearance. Prepend/Append are optional caps.
type Style struct {
	Prepend    string
	Complete   string
	Head       string
	Incomplete string
	Append     string
}

// builtinStyles are the named appearances available without configuration.
var builtinStyles = map[string]Style{
	"bar":           {Complete: "▒", Incomplete: "░", Head: "▓"},
	"circle":        {Complete: "●", Incomplete: "○", Head: "◉"},
	"arrow":         {Complete: "▶", Incomplete: "▷", Head: "▷"},
	"ascii":         {Complete: "=", Incomplete: "-", Head: ">"},
	"dot":           {Complete: "●", Incomplete: "○", Head: "◐"},
	"slash":         {Complete: "\\", Incomplete: " ", Head: "/"},
	"square":        {Complete: "■", Incomplete: "▢", Head: "■"},
	"parallelogram": {Complete: "▰", Incomplete: "▱", Head: "▰"},
	"structured":    {Prepend: "╞", Complete: "═", Incomplete: "═", Head: "▰", Append: "╡"},
}

// Module renders progress bars.
type Module struct {
	*module.Base
}

// New creates the progress bar module.
func New(store kvstore.Store, resolver module.Resolver) *Module {
	styleKeys := []module.ExamplePlaceholder{}
	for name := range builtinStyles {
		styleKeys = append(styleKeys, module.ExamplePlaceholder{
			Placeholder: name + ";10;[[media:raw_current_time]];[[media:raw_total_time]]",
			Description: "Style: " + name + ". Give the bar length, then the current and maximum values.",
		})
	}
	styleKeys = append(styleKeys,
		module.ExamplePlaceholder{
			Placeholder: "custom;10;[[media:raw_current_time]];[[media:raw_total_time]]",
			Description: "Custom style from the Custom Style input.",
		},
		module.ExamplePlaceholder{
			Placeholder: "text_slice;[[media:raw_current_time]];[[media:raw_total_time]]",
			Description: "Reveals the Text Slice Style text as progress advances.",
		},
		module.ExamplePlaceholder{
			Placeholder: "custom_value;10;[[media:raw_current_time]];[[media:raw_total_time]];prepend;complete;head;incomplete;append",
			Description: "Custom style given inline as extra arguments.",
		},
	)

	desc := module.Descriptor{
		ID:          "progress_bar",
		Name:        "Progress Bar",
		Description: "Display a progress bar with a custom style.",
		Inputs: []module.InputDefinition{
			{
				ID:   "custom_style",
				Kind: module.KindKeyValues,
				Name: "Custom Style",
				DefaultMap: map[string]string{
					"prepend":    "",
					"complete":   "=",
					"incomplete": "-",
					"head":       ">",
					"append":     "",
				},
				KeyDisplayNames: map[string]string{
					"prepend":    "Prepend",
					"complete":   "Complete",
					"incomplete": "Incomplete",
					"head":       "Head",
					"append":     "Append",
				},
			},
			{
				ID:   "text_slice_style",
				Kind: module.KindKeyValues,
				Name: "Text Slice Style",
				DefaultMap: map[string]string{
					"prepend":    "[",
					"complete":   "ChatterboxIsNeat",
					"head":       ">",
					"incomplete": " ",
					"append":     "]",
				},
				KeyDisplayNames: map[string]string{
					"prepend":    "Prepend",
					"complete":   "Complete",
					"incomplete": "Incomplete",
					"head":       "Head",
					"append":     "Append",
				},
			},
		},
		ExamplePlaceholders: styleKeys,
	}
	return &Module{Base: module.NewBase(desc, store, resolver)}
}

// Placeholder implements module.Module.
func (m *Module) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	filled, err := m.Resolver().ResolveMany(ctx, args, module.SyntaxInner, nil)
	if err != nil {
		return "", false, err
	}

	if key == "text_slice" {
		return m.renderTextSlice(ctx, filled)
	}

	length := argInt(filled, 0, 10)
	current := argFloat(filled, 1, 0)
	max := argFloat(filled, 2, 1)
	progress := clamp01(current / max)

	var style Style
	switch key {
	case "custom":
		style = m.styleFromInput("custom_style")
	case "custom_value":
		style = Style{
			Prepend:    argString(filled, 3, ""),
			Complete:   argString(filled, 4, "="),
			Head:       argString(filled, 5, ">"),
			Incomplete: argString(filled, 6, "-"),
			Append:     argString(filled, 7, ""),
		}
	default:
		var found bool
		style, found = builtinStyles[key]
		if !found {
			return key, true, nil
		}
	}

	style, err = m.resolveStyle(ctx, style)
	if err != nil {
		return "", false, err
	}
	return render(style, length, progress), true, nil
}

// renderTextSlice reveals the configured text up to the progress point,
// padding the rest with the incomplete rune.
func (m *Module) renderTextSlice(ctx context.Context, args []string) (string, bool, error) {
	style, err := m.resolveStyle(ctx, m.styleFromInput("text_slice_style"))
	if err != nil {
		return "", false, err
	}

	text := []rune(style.Complete)
	length := len(text)
	current := argFloat(args, 0, 0)
	max := argFloat(args, 1, 1)
	progress := clamp01(current / max)

	revealed := int(math.Ceil(progress * float64(length)))
	if revealed > length {
		revealed = length
	}
	return style.Prepend +
		string(text[:revealed]) +
		style.Head +
		strings.Repeat(style.Incomplete, length-revealed) +
		style.Append, true, nil
}

// resolveStyle runs each style piece through the outer grammar so styles can
// embed placeholders of their own.
func (m *Module) resolveStyle(ctx context.Context, s Style) (Style, error) {
	pieces, err := m.Resolver().ResolveMany(ctx,
		[]string{s.Complete, s.Incomplete, s.Head, s.Prepend, s.Append},
		module.SyntaxOuter, nil)
	if err != nil {
		return Style{}, err
	}
	return Style{
		Complete:   pieces[0],
		Incomplete: pieces[1],
		Head:       pieces[2],
		Prepend:    pieces[3],
		Append:     pieces[4],
	}, nil
}

func (m *Module) styleFromInput(id string) Style {
	table := m.MapInput(id)
	return Style{
		Prepend:    table["prepend"],
		Complete:   table["complete"],
		Head:       table["head"],
		Incomplete: table["incomplete"],
		Append:     table["append"],
	}
}

// render draws the bar. Caps count against the total length so the rendered
// width matches what the user asked for.
func render(s Style, length int, progress float64) string {
	filled := int(progress * float64(length))
	head := 0
	if filled < length {
		head = 1
	}
	caps := 0
	if s.Prepend != "" {
		caps++
	}
	if s.Append != "" {
		caps++
	}
	empty := length - filled - head - caps
	if empty < 0 {
		empty = 0
	}

	var b strings.Builder
	b.WriteString(s.Prepend)
	b.WriteString(strings.Repeat(s.Complete, filled))
	if head == 1 {
		b.WriteString(s.Head)
	}
	b.WriteString(strings.Repeat(s.Incomplete, empty))
	b.WriteString(s.Append)
	return b.String()
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func argString(args []string, index int, def string) string {
	if index >= len(args) || args[index] == "" {
		return def
	}
	return args[index]
}

func argInt(args []string, index int, def int) int {
	if index >= len(args) {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(args[index]))
	if err != nil || v == 0 {
		return def
	}
	return v
}

func argFloat(args []string, index int, def float64) float64 {
	if index >= len(args) {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(args[index]), 64)
	if err != nil || v == 0 {
		return def
	}
	return v
}
