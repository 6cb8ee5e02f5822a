// Package mathexpr evaluates arithmetic expressions inside templates.
package mathexpr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/d5/tengo/v2"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
)

// Module evaluates expressions with the tengo script engine. Expressions are
// user-authored; tengo gives them real arithmetic without giving them the
// host process.
type Module struct {
	*module.Base
}

// New creates the math module.
func New(store kvstore.Store, resolver module.Resolver) *Module {
	desc := module.Descriptor{
		ID:          "math",
		Name:        "Math",
		Description: "Math module, used to perform mathematical operations.",
		ExamplePlaceholders: []module.ExamplePlaceholder{
			{Placeholder: "expr;4+4", Description: "Evaluate a mathematical expression. Example: `{{math;expr;2+2}}` will return `4`."},
		},
	}
	return &Module{Base: module.NewBase(desc, store, resolver)}
}

// Placeholder implements module.Module. Arguments are re-joined on ';' so an
// expression may itself contain the outer argument delimiter.
func (m *Module) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	filled, err := m.Resolver().ResolveMany(ctx, args, module.SyntaxInner, nil)
	if err != nil {
		return "", false, err
	}
	expr := strings.Join(filled, ";")
	if key != "expr" {
		return expr, true, nil
	}

	result, err := tengo.Eval(ctx, expr, nil)
	if err != nil {
		return "", false, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	return formatResult(result), true, nil
}

func formatResult(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return fmt.Sprint(v)
	}
}
