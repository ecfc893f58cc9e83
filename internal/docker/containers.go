package docker

import (
	"context"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/events"
	"github.com/moby/moby/client"
)

// ListContainers returns all running containers, used for the initial
// sync before the event stream takes over.
func (c *Client) ListContainers(ctx context.Context) ([]container.Summary, error) {
	opts := client.ContainerListOptions{
		Filters: make(client.Filters).Add("status", "running"),
	}
	result, err := c.api.ContainerList(ctx, opts)
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// InspectContainer returns full container details by ID, used to read the
// labels a newly started container carries.
func (c *Client) InspectContainer(ctx context.Context, id string) (container.InspectResponse, error) {
	result, err := c.api.ContainerInspect(ctx, id, client.ContainerInspectOptions{})
	if err != nil {
		return container.InspectResponse{}, err
	}
	return result.Container, nil
}

// Events subscribes to the container lifecycle event stream, scoped to
// container-level start/stop/die/destroy actions. The returned channels are
// closed by the daemon when ctx is cancelled.
func (c *Client) Events(ctx context.Context) (<-chan events.Message, <-chan error) {
	filters := make(client.Filters).
		Add("type", string(events.ContainerEventType)).
		Add("event", "start").
		Add("event", "stop").
		Add("event", "die").
		Add("event", "destroy")

	return c.api.Events(ctx, client.EventsOptions{Filters: filters})
}
