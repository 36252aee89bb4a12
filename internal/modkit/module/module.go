// Package module holds the module contract and the boot-time ports registry.
// It is a sibling of modkit so a module's ports type never has to import the
// kit that builds it
package module

import (
	"taplist/internal/modkit/httpkit"
)

// Module mirrors modkit.Module for registry callers
type Module interface {
	MountRoutes(r httpkit.Router)
	Ports() any
	Name() string
}
