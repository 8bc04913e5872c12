// Package match implements the coarse action-type matching shared by the
// classifier rules, rollback handler lookup and executor lookup.
//
// A pattern containing glob characters is matched with doublestar. Any other
// pattern matches when either string contains the other, case-insensitively,
// so "dca" matches "dca_buy" and "dca_buy_limit" matches "dca_buy". This is a
// known coarse policy kept for compatibility with existing handler keys.
package match

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern reports whether actionType matches pattern.
func Pattern(actionType, pattern string) bool {
	t := strings.ToLower(strings.TrimSpace(actionType))
	p := strings.ToLower(strings.TrimSpace(pattern))
	if t == "" || p == "" {
		return false
	}

	if IsGlob(p) {
		ok, err := doublestar.Match(p, t)
		return err == nil && ok
	}
	return strings.Contains(t, p) || strings.Contains(p, t)
}

// Any returns the first pattern actionType matches.
func Any(actionType string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if Pattern(actionType, p) {
			return p, true
		}
	}
	return "", false
}

// IsGlob reports whether p uses glob syntax.
func IsGlob(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

// Registry maps action types to values with exact-then-pattern lookup.
// Lookup order for pattern matches is registration order. Not safe for
// concurrent use; callers guard it.
type Registry[T any] struct {
	values map[string]T
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{values: make(map[string]T)}
}

// Set registers v for key, replacing an earlier value for the same key.
func (r *Registry[T]) Set(key string, v T) {
	if _, exists := r.values[key]; !exists {
		r.order = append(r.order, key)
	}
	r.values[key] = v
}

// Lookup finds the value for actionType: exact key first, then the first
// registered key that matches as a pattern.
func (r *Registry[T]) Lookup(actionType string) (T, string, bool) {
	if v, ok := r.values[actionType]; ok {
		return v, actionType, true
	}
	for _, key := range r.order {
		if Pattern(actionType, key) {
			return r.values[key], key, true
		}
	}
	var zero T
	return zero, "", false
}

// Keys returns registered keys in registration order.
func (r *Registry[T]) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered keys.
func (r *Registry[T]) Len() int {
	return len(r.order)
}
