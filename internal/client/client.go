// Package client talks to a running daemon over its control socket.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service a daemon reports on.
const ServiceName = "chordd"

// ErrNotRunning is returned when nothing answers on the socket.
var ErrNotRunning = errors.New("daemon not running")

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn   *grpc.ClientConn
	Health healthpb.HealthClient
}

// New dials the daemon's Unix domain socket. The connection is lazy: an absent
// daemon shows up on the first call.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{
		conn:   conn,
		Health: healthpb.NewHealthClient(conn),
	}, nil
}

// Serving reports whether the daemon is listening for sequences.
func (c *Client) Serving(ctx context.Context) (bool, error) {
	resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, wrap(err)
	}
	return resp.Status == healthpb.HealthCheckResponse_SERVING, nil
}

// Watch calls fn with every serving change until ctx is done or the daemon
// goes away.
func (c *Client) Watch(ctx context.Context, fn func(serving bool)) error {
	stream, err := c.Health.Watch(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return wrap(err)
	}
	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return wrap(err)
		}
		fn(resp.Status == healthpb.HealthCheckResponse_SERVING)
	}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func wrap(err error) error {
	if status.Code(err) == codes.Unavailable {
		return fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	return err
}
