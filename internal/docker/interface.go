package docker

import (
	"context"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/events"
)

// API defines the subset of Docker operations the container-event source
// adapter (C4) needs. Implemented by Client for production, and by a fake
// for testing.
type API interface {
	ListContainers(ctx context.Context) ([]container.Summary, error)
	InspectContainer(ctx context.Context, id string) (container.InspectResponse, error)
	Events(ctx context.Context) (<-chan events.Message, <-chan error)
	Close() error
}

// Verify Client implements API at compile time.
var _ API = (*Client)(nil)
