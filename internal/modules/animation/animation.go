// Package animation animates text across render ticks: each render of the
// same placeholder advances its frame.
package animation

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
)

const (
	// staleAfter drops frame state for placeholders that left the template.
	staleAfter = time.Minute
	sweepEvery = time.Minute
)

// frame is the per-placeholder animation state, keyed by the raw argument
// content so the same animation in two places shares a frame counter.
type frame struct {
	at    time.Time
	index int
	last  string
}

// Module animates text.
type Module struct {
	*module.Base

	// frameDelay is the minimum time between frame advances. Without it,
	// recursion and batching would fast-forward animations mid-tick.
	frameDelay time.Duration

	mu     sync.Mutex
	frames map[string]*frame

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates the animation module. frameDelay should match the chatbox
// update interval so animations advance once per broadcast.
func New(store kvstore.Store, resolver module.Resolver, frameDelay time.Duration) *Module {
	desc := module.Descriptor{
		ID:          "animation",
		Name:        "Animation",
		Description: "Animation module, used to animate text.",
		Inputs: []module.InputDefinition{
			{
				ID:            "animation_breath_max_spaces",
				Kind:          module.KindNumber,
				Name:          "Animation: Breath Max Spaces",
				Description:   "Max spaces for the breath animation.",
				DefaultNumber: 3,
			},
		},
		ExamplePlaceholders: []module.ExamplePlaceholder{
			{Placeholder: "breath;HelloWorld", Description: "Breath animation."},
			{Placeholder: "marquee;HelloWorld", Description: "Marquee animation."},
			{Placeholder: "marquee;HelloWorld;5", Description: "Marquee animation with a window length."},
			{Placeholder: "wave;HelloWorld", Description: "Wave animation."},
			{Placeholder: "random_case;HelloWorld", Description: "Random case animation."},
			{Placeholder: "random_hide;HelloWorld", Description: "Random hide animation."},
			{Placeholder: "each_one;Hello;World", Description: "Cycle through the arguments, one per tick."},
			{Placeholder: "blink;HelloWorld", Description: "Blink animation."},
		},
	}
	return &Module{
		Base:       module.NewBase(desc, store, resolver),
		frameDelay: frameDelay,
		frames:     make(map[string]*frame),
	}
}

// Init starts the stale-frame sweeper.
func (m *Module) Init(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
	return nil
}

// Destroy stops the sweeper.
func (m *Module) Destroy(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	return nil
}

func (m *Module) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for key, f := range m.frames {
		if now.Sub(f.at) > staleAfter {
			delete(m.frames, key)
		}
	}
}

// Placeholder implements module.Module. The key is the animation type; the
// raw argument content (before resolution) keys the frame state so dynamic
// content doesn't reset the animation each tick.
func (m *Module) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	rawContent := strings.Join(args, ";")
	content, err := m.Resolver().Resolve(ctx, rawContent, module.SyntaxInner, nil)
	if err != nil {
		return "", false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, found := m.frames[rawContent]
	if !found {
		f = &frame{last: content}
		m.frames[rawContent] = f
	}
	if time.Since(f.at) < m.frameDelay {
		return f.last, true, nil
	}

	switch key {
	case "breath":
		maxSpaces := int(m.NumberInput("animation_breath_max_spaces"))
		if maxSpaces < 1 {
			maxSpaces = 1
		}
		width := f.index
		if width > maxSpaces {
			width = maxSpaces*2 - f.index
		}
		f.last = joinRunes(content, strings.Repeat(" ", width))
		f.index = (f.index + 1) % (maxSpaces * 2)

	case "marquee":
		parts := strings.SplitN(content, ";", 2)
		chars := []rune(parts[0])
		if len(chars) == 0 {
			f.last = ""
			break
		}
		window := len(chars)
		if len(parts) > 1 {
			if n, err := strconv.Atoi(parts[1]); err == nil && n > 0 {
				window = n
			}
		}
		rotated := append(append([]rune{}, chars[f.index:]...), chars[:f.index]...)
		if window < len(rotated) {
			rotated = rotated[:window]
		}
		f.last = string(rotated)
		f.index = (f.index + 1) % len(chars)

	case "wave":
		var b strings.Builder
		for i, r := range []rune(content) {
			s := string(r)
			if r != ' ' {
				if i%2 == f.index {
					s = strings.ToUpper(s)
				} else {
					s = strings.ToLower(s)
				}
			}
			b.WriteString(s)
		}
		f.last = b.String()
		f.index = (f.index + 1) % 2

	case "random_case":
		var b strings.Builder
		for _, r := range content {
			if rand.Intn(2) == 0 {
				b.WriteString(strings.ToUpper(string(r)))
			} else {
				b.WriteString(strings.ToLower(string(r)))
			}
		}
		f.last = b.String()

	case "random_hide":
		var b strings.Builder
		for _, r := range content {
			if rand.Intn(2) == 0 {
				b.WriteRune(' ')
			} else {
				b.WriteRune(r)
			}
		}
		f.last = b.String()

	case "each_one":
		parts := strings.Split(content, ";")
		f.last = parts[f.index%len(parts)]
		f.index = (f.index + 1) % len(parts)

	case "blink":
		if f.last == "" {
			f.last = content
		} else {
			f.last = ""
		}

	default:
		f.last = content
	}

	f.at = time.Now()
	return f.last, true, nil
}

// joinRunes interleaves sep between every rune of s.
func joinRunes(s, sep string) string {
	runes := []rune(s)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = string(r)
	}
	return strings.Join(parts, sep)
}
