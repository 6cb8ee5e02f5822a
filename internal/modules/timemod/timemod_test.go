package timemod

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatterbox-vr/chatterbox/internal/module"
)

type passthroughResolver struct{}

func (passthroughResolver) Resolve(ctx context.Context, text string, syntax module.Syntax, ignored []module.Override) (string, error) {
	return text, nil
}

func (passthroughResolver) ResolveMany(ctx context.Context, texts []string, syntax module.Syntax, ignored []module.Override) ([]string, error) {
	out := make([]string, len(texts))
	copy(out, texts)
	return out, nil
}

func fixedModule(t *testing.T, at time.Time) *Module {
	t.Helper()
	m := New(nil, passthroughResolver{})
	m.now = func() time.Time { return at }
	return m
}

func TestPlaceholder_DateTime(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	m := fixedModule(t, at)

	text, ok, err := m.Placeholder(context.Background(), "date_time", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "09:26", text)

	require.NoError(t, m.SetInputValue("date_format", "2006-01-02 15:04:05"))
	text, _, err = m.Placeholder(context.Background(), "date_time", nil)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14 09:26:53", text)
}

func TestPlaceholder_TargetTimeCountdown(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := fixedModule(t, at)
	target := at.Add(2*time.Hour + 5*time.Minute)
	require.NoError(t, m.SetInputValue("target_time_unix", float64(target.Unix())))

	text, _, err := m.Placeholder(context.Background(), "target_time_from_now", nil)
	require.NoError(t, err)
	assert.Equal(t, "2 hours 5 minutes", text)

	// Past the target, the finish text shows.
	m.now = func() time.Time { return target.Add(time.Second) }
	text, _, err = m.Placeholder(context.Background(), "target_time_from_now", nil)
	require.NoError(t, err)
	assert.Equal(t, "Time's up!", text)
}

func TestPlaceholder_TargetTimeCountup(t *testing.T) {
	at := time.Date(2026, 1, 2, 0, 0, 30, 0, time.UTC)
	m := fixedModule(t, at)
	require.NoError(t, m.SetInputValue("target_time_unix",
		float64(at.Add(-30*time.Second).Unix())))

	text, _, err := m.Placeholder(context.Background(), "target_time_to_now", nil)
	require.NoError(t, err)
	assert.Equal(t, "30 seconds", text)
}

func TestPlaceholder_FormatTime(t *testing.T) {
	m := fixedModule(t, time.Now())

	// 90061 seconds = 1 day 1 hour 1 minute 1 second; multiplier scales to ms.
	text, _, err := m.Placeholder(context.Background(), "format_time",
		[]string{"90061", "1000"})
	require.NoError(t, err)
	assert.Equal(t, "1 day 1 hour 1 minute 1 second", text)
}

func TestPlaceholder_FormatTimeFallbackText(t *testing.T) {
	m := fixedModule(t, time.Now())

	text, _, err := m.Placeholder(context.Background(), "format_time",
		[]string{"0", "1000", "just now"})
	require.NoError(t, err)
	assert.Equal(t, "just now", text)
}

func TestPlaceholder_FormatTimeToNow(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	m := fixedModule(t, at)
	then := at.Add(-90 * time.Second)

	text, _, err := m.Placeholder(context.Background(), "format_time_to_now",
		[]string{strconv.FormatInt(then.UnixMilli(), 10), "1"})
	require.NoError(t, err)
	assert.Equal(t, "1 minute 30 seconds", text)
}

func TestFormatDuration_SkipsBlankUnits(t *testing.T) {
	m := fixedModule(t, time.Now())
	table := m.MapInput("target_time_format")
	table["seconds"] = ""
	require.NoError(t, m.SetInputValue("target_time_format", table))

	text, _, err := m.Placeholder(context.Background(), "format_time",
		[]string{"3725", "1000"})
	require.NoError(t, err)
	assert.Equal(t, "1 hour 2 minutes", text)
}

func TestFormatDuration_SingularPlural(t *testing.T) {
	units := map[string][]string{
		"minutes": {"minute", "minutes"},
		"seconds": {"second", "seconds"},
	}
	assert.Equal(t, "1 minute 2 seconds", formatDuration(62*time.Second, units))
	assert.Equal(t, "2 minutes 1 second", formatDuration(121*time.Second, units))
	assert.Equal(t, "", formatDuration(0, units))
	assert.Equal(t, "", formatDuration(-time.Second, units))
}
