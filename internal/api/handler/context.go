package handler

import (
	"context"

	"github.com/trafficlens/trafficlens/internal/api/middleware"
)

// GetOperator retrieves the authenticated operator from the context.
// This is a convenience wrapper around middleware.GetOperator.
func GetOperator(ctx context.Context) string {
	return middleware.GetOperator(ctx)
}
