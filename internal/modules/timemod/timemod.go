// Package timemod provides clock and countdown placeholders.
package timemod

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
)

// unitOrder fixes the display order of duration components.
var unitOrder = []struct {
	id string
	d  time.Duration
}{
	{"years", 365 * 24 * time.Hour},
	{"months", 30 * 24 * time.Hour},
	{"weeks", 7 * 24 * time.Hour},
	{"days", 24 * time.Hour},
	{"hours", time.Hour},
	{"minutes", time.Minute},
	{"seconds", time.Second},
}

// Module formats times and durations.
type Module struct {
	*module.Base

	// now is swappable for tests.
	now func() time.Time
}

// New creates the time module.
func New(store kvstore.Store, resolver module.Resolver) *Module {
	desc := module.Descriptor{
		ID:          "time",
		Name:        "Time",
		Description: "Time module, used to format time.",
		Inputs: []module.InputDefinition{
			{
				ID:          "date_format",
				Kind:        module.KindText,
				Name:        "Date Format",
				DefaultText: "15:04",
				Description: "Go reference-time layout used for {{time;date_time}}.",
				Help: &module.HelpLink{
					URL:     "https://pkg.go.dev/time#pkg-constants",
					Message: "Learn more about reference-time layouts.",
				},
			},
			{
				ID:            "target_time_unix",
				Kind:          module.KindNumber,
				Name:          "Target Time Unix",
				Description:   "Target time in unix seconds. Used to show countdown/countup.",
				DefaultNumber: 1767229200,
				Help: &module.HelpLink{
					URL:     "https://www.epochconverter.com/",
					Message: "Learn more about epoch time.",
				},
			},
			{
				ID:          "target_time_format",
				Kind:        module.KindKeyValues,
				Name:        "Target Time Format",
				Description: "Unit names for formatted durations. Make a unit blank to skip it.",
				DefaultMap: map[string]string{
					"years":   "year, years",
					"months":  "month, months",
					"weeks":   "week, weeks",
					"days":    "day, days",
					"hours":   "hour, hours",
					"minutes": "minute, minutes",
					"seconds": "second, seconds",
				},
				KeyDisplayNames: map[string]string{
					"years":   "Years",
					"months":  "Months",
					"weeks":   "Weeks",
					"days":    "Days",
					"hours":   "Hours",
					"minutes": "Minutes",
					"seconds": "Seconds",
				},
			},
			{
				ID:          "target_time_finish_text",
				Kind:        module.KindText,
				Name:        "Target Time Finish Text",
				Description: "Text to show when the target time is reached.",
				DefaultText: "Time's up!",
			},
		},
		ExamplePlaceholders: []module.ExamplePlaceholder{
			{Placeholder: "date_time", Description: "Formatted current date/time."},
			{Placeholder: "target_time_from_now", Description: "Countdown to the target time."},
			{Placeholder: "target_time_to_now", Description: "Countup from the target time."},
			{Placeholder: "format_time_to_now;[[time]]", Description: "Format the duration since a unix timestamp."},
			{Placeholder: "format_time_from_now;[[time]]", Description: "Format the duration until a unix timestamp."},
			{Placeholder: "format_time;[[time]];[[multiplier]];[[text]]", Description: "Format a raw duration; multiplier scales the value to milliseconds, text is the fallback when empty."},
		},
	}
	return &Module{
		Base: module.NewBase(desc, store, resolver),
		now:  time.Now,
	}
}

// Placeholder implements module.Module.
func (m *Module) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	now := m.now()
	units := m.unitNames()

	switch key {
	case "date_time":
		return now.Format(m.TextInput("date_format")), true, nil

	case "target_time_from_now":
		target := time.Unix(int64(m.NumberInput("target_time_unix")), 0)
		return m.orFinishText(formatDuration(target.Sub(now), units)), true, nil

	case "target_time_to_now":
		target := time.Unix(int64(m.NumberInput("target_time_unix")), 0)
		return m.orFinishText(formatDuration(now.Sub(target), units)), true, nil

	case "format_time_to_now", "format_time_from_now", "format_time":
		filled, err := m.Resolver().ResolveMany(ctx, args, module.SyntaxInner, nil)
		if err != nil {
			return "", false, err
		}
		value := argFloat(filled, 0, 0)
		multiplier := argFloat(filled, 1, 1)
		ms := time.Duration(value*multiplier) * time.Millisecond

		var d time.Duration
		switch key {
		case "format_time_to_now":
			d = now.Sub(time.UnixMilli(int64(value * multiplier)))
		case "format_time_from_now":
			d = time.UnixMilli(int64(value * multiplier)).Sub(now)
		default:
			d = ms
		}

		text := formatDuration(d, units)
		if text == "" && len(filled) > 2 {
			text = filled[2]
		}
		return text, true, nil
	}

	return key, true, nil
}

func (m *Module) orFinishText(text string) string {
	if text != "" {
		return text
	}
	return m.TextInput("target_time_finish_text")
}

// unitNames parses the KeyValues table into per-unit [singular, plural]
// pairs. A blank entry drops the unit from output entirely.
func (m *Module) unitNames() map[string][]string {
	table := m.MapInput("target_time_format")
	out := make(map[string][]string, len(table))
	for unit, names := range table {
		if strings.TrimSpace(names) == "" {
			continue
		}
		parts := strings.Split(names, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		out[unit] = parts
	}
	return out
}

// formatDuration renders d as "2 hours 5 minutes", skipping zero components
// and units absent from the names table. Non-positive durations yield "".
func formatDuration(d time.Duration, units map[string][]string) string {
	if d <= 0 {
		return ""
	}

	var parts []string
	remaining := d
	for _, unit := range unitOrder {
		names, wanted := units[unit.id]
		if !wanted {
			continue
		}
		count := remaining / unit.d
		remaining -= count * unit.d
		if count == 0 {
			continue
		}
		name := names[0]
		if count != 1 && len(names) > 1 {
			name = names[1]
		}
		parts = append(parts, strconv.FormatInt(int64(count), 10)+" "+name)
	}
	return strings.Join(parts, " ")
}

func argFloat(args []string, index int, def float64) float64 {
	if index >= len(args) {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(args[index]), 64)
	if err != nil {
		return def
	}
	return v
}
