package main

import (
	"fmt"

	"github.com/nexuscore/orcruntime/internal/config"
)

// resolveConfig loads path if given, otherwise returns the documented
// built-in defaults. A configured provider API key is still required
// before the runtime can be built; that is checked once the command
// actually needs a language model, not here.
func resolveConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}
