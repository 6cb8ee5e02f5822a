package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is a namespaced key/value capability. Keys follow the
// "<prefix>;<owner>" convention (e.g. "Chatterbox;ModuleConfigs;time");
// each namespace is exclusively owned by the component that writes it.
//
// Get must provide default-on-miss semantics without writing the default
// back: a value only exists once something explicitly Sets it.
type Store interface {
	// Get returns the stored value for key, or def if the key is unset.
	Get(ctx context.Context, key string, def []byte) ([]byte, error)

	// Set persists value under key. The write must be durable before Set
	// returns so a template edit is never lost on crash.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an unset key is not an error.
	Delete(ctx context.Context, key string) error
}

// GetJSON reads key and unmarshals it into out. When the key is unset, out is
// left exactly as the caller initialized it (the caller's defaults stand).
func GetJSON(ctx context.Context, s Store, key string, out any) error {
	raw, err := s.Get(ctx, key, nil)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

// SetJSON marshals value and persists it under key.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
