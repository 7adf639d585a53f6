package module

import (
	"sarbatch/internal/platform/config"
)

// Options holds configuration for the registry
type Options struct {
	InsertChunk int `validate:"gte=1,lte=10000"`
}

// FromConfig reads the registry options with the CORE_REGISTRY_ prefix
func FromConfig(cfg config.Conf) Options {
	rg := cfg.Prefix("CORE_REGISTRY_")
	return Options{
		InsertChunk: rg.MayInt("INSERT_CHUNK", 500),
	}
}
