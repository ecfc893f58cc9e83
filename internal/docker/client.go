// Package docker wraps the subset of the Docker Engine API this daemon
// needs to discover locally running containers and watch their lifecycle:
// listing, inspecting, and the container event stream. It is the transport
// underneath the container-event source adapter (C4).
package docker

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/moby/moby/client"

	"github.com/localdns/syncd/internal/tlsutil"
)

// Client wraps the Docker API client.
type Client struct {
	api *client.Client
}

// NewClient creates a Docker client connected to the given socket or TCP
// endpoint. If tlsCfg is non-nil and fully populated, mTLS is configured for
// TCP connections (e.g. a socket-proxy sidecar or a remote daemon).
func NewClient(dockerSock string, tlsCfg *tlsutil.Config) (*Client, error) {
	var opts []client.Opt

	switch {
	case strings.HasPrefix(dockerSock, "tcp://"), strings.HasPrefix(dockerSock, "tcps://"):
		opts = append(opts, client.WithHost(dockerSock))

		if tlsCfg.Enabled() {
			tlsConfig, err := tlsCfg.Load()
			if err != nil {
				return nil, fmt.Errorf("configure Docker TLS: %w", err)
			}
			if u, parseErr := url.Parse(dockerSock); parseErr == nil {
				tlsConfig.ServerName = u.Hostname()
			}
			opts = append(opts, client.WithHTTPClient(&http.Client{
				Transport: &http.Transport{
					TLSClientConfig:       tlsConfig,
					IdleConnTimeout:       90 * time.Second,
					TLSHandshakeTimeout:   10 * time.Second,
					ResponseHeaderTimeout: 30 * time.Second,
				},
			}))
		}
	default:
		opts = append(opts,
			client.WithHost("unix://"+dockerSock),
			client.WithHTTPClient(&http.Client{
				Transport: &http.Transport{
					DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
						return net.DialTimeout("unix", dockerSock, 30*time.Second)
					},
				},
			}),
		)
	}

	api, err := client.New(opts...)
	if err != nil {
		return nil, err
	}

	return &Client{api: api}, nil
}

// Ping checks that the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.Ping(ctx, client.PingOptions{})
	return err
}

// Close releases the Docker client resources.
func (c *Client) Close() error {
	return c.api.Close()
}
