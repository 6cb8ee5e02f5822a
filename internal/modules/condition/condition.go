// Package condition provides comparison placeholders so templates can branch
// on other modules' output.
package condition

import (
	"context"
	"strconv"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
)

// Module compares two inner-resolved values and yields one of two results.
type Module struct {
	*module.Base
}

// New creates the condition module.
func New(store kvstore.Store, resolver module.Resolver) *Module {
	desc := module.Descriptor{
		ID:          "condition",
		Name:        "Condition",
		Description: "Condition module, used to compare values and return a result based on the comparison. Supports inline placeholders.",
		ExamplePlaceholders: []module.ExamplePlaceholder{
			{Placeholder: "==;1;1;true;false", Description: "Check if two values are equal."},
			{Placeholder: "!=;1;1;true;false", Description: "Check if two values are not equal."},
			{Placeholder: ">;1;1;true;false", Description: "Check if the first value is greater than the second value."},
			{Placeholder: "<;1;1;true;false", Description: "Check if the first value is less than the second value."},
			{Placeholder: ">=;1;1;true;false", Description: "Check if the first value is greater than or equal to the second value."},
			{Placeholder: "<=;1;1;true;false", Description: "Check if the first value is less than or equal to the second value."},
			{Placeholder: "&&;true;false;true;false", Description: "Check if both values are truthy."},
			{Placeholder: "||;true;false;true;false", Description: "Check if at least one value is truthy."},
		},
	}
	return &Module{Base: module.NewBase(desc, store, resolver)}
}

// Placeholder implements module.Module.
func (m *Module) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	filled, err := m.Resolver().ResolveMany(ctx, args, module.SyntaxInner, nil)
	if err != nil {
		return "", false, err
	}

	a := arg(filled, 0)
	b := arg(filled, 1)
	trueValue := arg(filled, 2)
	falseValue := arg(filled, 3)

	pick := func(cond bool) string {
		if cond {
			return trueValue
		}
		return falseValue
	}

	switch key {
	case "==":
		return pick(a == b), true, nil
	case "!=":
		return pick(a != b), true, nil
	case ">":
		return pick(num(a) > num(b)), true, nil
	case "<":
		return pick(num(a) < num(b)), true, nil
	case ">=":
		return pick(num(a) >= num(b)), true, nil
	case "<=":
		return pick(num(a) <= num(b)), true, nil
	case "&&":
		return pick(truthy(a) && truthy(b)), true, nil
	case "||":
		return pick(truthy(a) || truthy(b)), true, nil
	}
	return key, true, nil
}

func arg(args []string, index int) string {
	if index >= len(args) {
		return ""
	}
	return args[index]
}

func num(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// truthy mirrors template expectations: empty, "0" and "false" are false.
func truthy(s string) bool {
	switch s {
	case "", "0", "false":
		return false
	}
	return true
}
