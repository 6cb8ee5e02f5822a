// Package entitlement answers whether the current user may use premium
// modules. The real backend lives in an external account service; the core
// only consumes this interface.
package entitlement

import "context"

// Checker reports premium entitlement. Roles widen the check: a user holding
// any of the given roles is treated as entitled even without a subscription.
type Checker interface {
	IsPremium(ctx context.Context, roles ...string) (bool, error)
}

// Static is a fixed entitlement, resolved once from configuration. Useful for
// offline use and tests.
type Static struct {
	Premium bool
	Roles   map[string]bool
}

// NewStatic builds a Static checker granting the given roles.
func NewStatic(premium bool, roles ...string) *Static {
	set := make(map[string]bool, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	return &Static{Premium: premium, Roles: set}
}

// IsPremium implements Checker.
func (s *Static) IsPremium(ctx context.Context, roles ...string) (bool, error) {
	if s.Premium {
		return true, nil
	}
	for _, r := range roles {
		if s.Roles[r] {
			return true, nil
		}
	}
	return false, nil
}
