package domainkernel

import "github.com/dmkernel/domainkernel/internal/kconfig"

// DefaultConfig returns the tunables a diskless development boot uses.
// Re-exported at the package root the way the teacher re-exports its
// internal/constants defaults.
func DefaultConfig() kconfig.Config {
	return kconfig.DefaultConfig()
}
