package am

import (
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/fixpoint"
	"github.com/teranos/orx/unfold"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if _, err := unfold.ParseOrder(c.Unfold.Order); err != nil {
		return errors.Wrap(err, "unfold.order")
	}
	if _, err := fixpoint.ParseFailurePolicy(c.Fixpoint.FailurePolicy); err != nil {
		return errors.Wrap(err, "fixpoint.failure_policy")
	}

	// 0 = unbounded, negative = invalid
	if c.Fixpoint.MaxRounds < 0 {
		return errors.NewInvalidRequestError("fixpoint.max_rounds must be >= 0, got %d", c.Fixpoint.MaxRounds)
	}
	// 0 = backend default
	if c.Fixpoint.CacheSize < 0 {
		return errors.NewInvalidRequestError("fixpoint.cache_size must be >= 0, got %d", c.Fixpoint.CacheSize)
	}
	if c.Catalog.DebounceMS < 0 {
		return errors.NewInvalidRequestError("catalog.debounce_ms must be >= 0, got %d", c.Catalog.DebounceMS)
	}

	switch c.Log.Theme {
	case "", "none", "plain", "color":
	default:
		return errors.WithHint(
			errors.NewInvalidRequestError("unknown log.theme %q", c.Log.Theme),
			"use none, plain or color")
	}
	return nil
}
