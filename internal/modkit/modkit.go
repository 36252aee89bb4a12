// Package modkit is the glue every service module is built from: the Module
// interface the binaries mount, the shared Deps bundle, and the option list
// modules accept at construction
package modkit

import (
	"taplist/internal/modkit/httpkit"
)

// Module is what a service package hands back to the binaries. Kept small
// so modules only couple through ports
type Module interface {
	// MountRoutes attaches the module's endpoints under the shared router
	MountRoutes(r httpkit.Router)

	// Ports exposes the module's cross-module port set, or nil
	Ports() any

	// Name identifies the module in logs and the registry
	Name() string
}
