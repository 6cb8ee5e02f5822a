package registry

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/chatterbox-vr/chatterbox/internal/module"
)

// The two placeholder grammars. Outer placeholders split their segments on
// ';', inner ones on ':' so they can live inside an outer argument without
// the delimiters colliding.
var (
	outerPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	innerPattern = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
)

// batchJoiner glues ResolveMany inputs into a single pass. It is a CJK
// codepoint that plausibly never appears in user templates; everything in a
// batch shares one recursion-epoch view, which matters when a module's output
// for one string must be computed once and reused for another in the same
// tick.
const batchJoiner = "䡁"

func grammar(syntax module.Syntax) (*regexp.Regexp, string, string) {
	if syntax == module.SyntaxInner {
		return innerPattern, ":", "[[nl]]"
	}
	return outerPattern, ";", "{{nl}}"
}

// Resolve expands every placeholder in text. Each distinct raw token is
// resolved once per pass and substituted with a single scan, so a token's
// resolved value is never re-scanned for placeholders. Per-placeholder
// failures degrade to sentinels or the literal token; Resolve itself only
// fails on context cancellation.
func (r *Registry) Resolve(ctx context.Context, text string, syntax module.Syntax, ignored []module.Override) (string, error) {
	pattern, delim, nlAlias := grammar(syntax)

	matches := pattern.FindAllStringSubmatch(text, -1)
	results := map[string]string{nlAlias: "\n"}
	premium := r.Premium(ctx)

	for _, m := range matches {
		raw, capture := m[0], m[1]
		if _, done := results[raw]; done {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		results[raw] = r.resolveToken(ctx, raw, capture, delim, syntax, ignored, premium)
	}

	return pattern.ReplaceAllStringFunc(text, func(raw string) string {
		if resolved, found := results[raw]; found {
			return resolved
		}
		return raw
	}), nil
}

// ResolveMany batches multiple strings through one resolve pass.
func (r *Registry) ResolveMany(ctx context.Context, texts []string, syntax module.Syntax, ignored []module.Override) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resolved, err := r.Resolve(ctx, strings.Join(texts, batchJoiner), syntax, ignored)
	if err != nil {
		return nil, err
	}
	return strings.Split(resolved, batchJoiner), nil
}

// resolveToken resolves one distinct raw token. It never lets a module
// failure escape: errors and panics degrade to the literal token.
func (r *Registry) resolveToken(ctx context.Context, raw, capture, delim string, syntax module.Syntax, ignored []module.Override, premium bool) (result string) {
	segments := strings.Split(capture, delim)
	moduleID := segments[0]
	key := ""
	if len(segments) > 1 {
		key = segments[1]
	}
	args := segments[2:]

	for _, override := range ignored {
		if override.ModuleID == moduleID && override.Key == key {
			if override.Return != nil {
				return *override.Return
			}
			return raw
		}
	}

	tuple := tupleKey(moduleID, key, args)
	if r.guard.isSuppressed(tuple) {
		return fmt.Sprintf("(Ignored: %s)", raw)
	}
	if overThreshold, first := r.guard.record(tuple); overThreshold {
		if first {
			slog.Error("Suppressing recursive placeholder dispatch",
				"module", moduleID, "key", key, "threshold", r.guard.threshold)
			r.notifySuppressed(ctx, moduleID, key, r.guard.threshold)
		}
		// Deliberate backpressure: the call that trips the guard eats the
		// stall so a runaway template cannot busy-loop the render timer.
		select {
		case <-time.After(r.stall):
		case <-ctx.Done():
		}
		return fmt.Sprintf("(Ignored: %s)", raw)
	}

	m, found := r.Module(moduleID)
	if !found {
		// Unknown module ids are not errors; the token passes through so the
		// user can see exactly what didn't resolve.
		return raw
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Placeholder dispatch panicked", "token", raw, "panic", rec)
			result = raw
		}
	}()

	text, ok, err := m.Placeholder(ctx, key, args)
	if err != nil {
		slog.Error("Failed to replace placeholder", "token", raw, "error", err)
		return raw
	}
	if !ok {
		return fmt.Sprintf("(Missing: %s)", raw)
	}
	if m.Descriptor().Premium && !premium {
		return fmt.Sprintf("(Premium Module: %s)", raw)
	}
	return text
}
