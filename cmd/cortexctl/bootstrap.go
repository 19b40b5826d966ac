package main

import (
	"fmt"

	"github.com/cortexfed/cortex/internal/config"
)

// bootstrap loads path's shard manifest into the package-level
// MetaCortex. A missing manifest parses as empty (config.Load), so
// commands that only need an empty registry still run.
func bootstrap(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return config.Apply(mc, cfg)
}
