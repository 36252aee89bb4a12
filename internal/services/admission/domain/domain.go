// Package domain defines the admission (fixed-window rate limit) types and ports
package domain

import (
	"context"

	"taplist/internal/platform/net/middleware"
)

// Decision is the verdict of one fixed-window check
type Decision = middleware.AdmissionDecision

// Port is the admission seam used by HTTP middleware and the cleanup pipeline
type Port interface {
	Check(ctx context.Context, key string) Decision
}
