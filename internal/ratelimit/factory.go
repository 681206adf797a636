package ratelimit

import (
	"maps"
	"slices"

	"github.com/indyzai/api-gateway/internal/config"
)

// ClassesFromConfig converts configured classes into limiter classes,
// sorted by name.
func ClassesFromConfig(cfg map[string]config.RateLimitClass) []Class {
	classes := make([]Class, 0, len(cfg))
	for _, name := range slices.Sorted(maps.Keys(cfg)) {
		c := cfg[name]
		classes = append(classes, Class{
			Name:           name,
			Window:         c.Window.Duration(),
			Max:            c.Max,
			Code:           c.Code,
			SkipSuccessful: c.SkipSuccessful,
		})
	}
	return classes
}

// NewFromConfig creates a limiter with every class in cfg.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Limiter, error) {
	return NewLimiter(ClassesFromConfig(cfg.RateLimits), opts...)
}
