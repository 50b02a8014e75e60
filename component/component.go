// Package component manages lifecycle for the service's long-lived parts
// (admin server, cache persistence) with deterministic start/stop ordering.
package component

import "context"

// Component represents a lifecycle-managed part of the service.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error
}
