//go:build integration

package containers

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const redisImage = "redis:7-alpine"

// RedisContainer is a disposable Redis server.
type RedisContainer struct {
	container testcontainers.Container
	addr      string
}

// NewRedisContainer starts Redis.
func NewRedisContainer(ctx context.Context) (*RedisContainer, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	return &RedisContainer{container: container, addr: net.JoinHostPort(host, port.Port())}, nil
}

// Addr returns host:port of the server.
func (c *RedisContainer) Addr() string {
	return c.addr
}

// Client returns a client closed when the test ends.
func (c *RedisContainer) Client(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: c.addr})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// Terminate removes the container.
func (c *RedisContainer) Terminate(ctx context.Context) error {
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate Redis container: %w", err)
	}
	return nil
}
