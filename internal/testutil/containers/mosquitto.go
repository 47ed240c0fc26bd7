//go:build integration

//nolint:misspell // Mosquitto is the official Eclipse project name
package containers

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	mosquittoImage  = "eclipse-mosquitto:2.0"
	mosquittoConfig = "listener 1883\nallow_anonymous true\n"
	mqttTimeout     = 10 * time.Second
)

// MosquittoContainer is an anonymous Mosquitto broker.
type MosquittoContainer struct {
	container testcontainers.Container
	brokerURL string
}

// NewMosquittoContainer starts a broker accepting anonymous clients.
func NewMosquittoContainer(ctx context.Context) (*MosquittoContainer, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        mosquittoImage,
			ExposedPorts: []string{"1883/tcp"},
			Cmd:          []string{"mosquitto", "-c", "/mosquitto-test.conf"},
			Files: []testcontainers.ContainerFile{{
				Reader:            strings.NewReader(mosquittoConfig),
				ContainerFilePath: "/mosquitto-test.conf",
				FileMode:          0o644,
			}},
			WaitingFor: wait.ForLog("mosquitto version").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Mosquitto container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "1883")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	return &MosquittoContainer{
		container: container,
		brokerURL: fmt.Sprintf("tcp://%s:%s", host, port.Port()),
	}, nil
}

// BrokerURL returns the tcp:// URL of the broker.
func (c *MosquittoContainer) BrokerURL() string {
	return c.brokerURL
}

// Client returns a connected paho client, disconnected when the test ends.
func (c *MosquittoContainer) Client(t *testing.T, clientID string) paho.Client {
	t.Helper()
	opts := paho.NewClientOptions()
	opts.AddBroker(c.brokerURL)
	opts.SetClientID(clientID)
	opts.SetConnectTimeout(mqttTimeout)
	opts.SetAutoReconnect(false)
	opts.SetCleanSession(true)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		t.Fatalf("connect timeout for client %s", clientID)
	}
	if err := token.Error(); err != nil {
		t.Fatalf("failed to connect client %s: %v", clientID, err)
	}
	t.Cleanup(func() { client.Disconnect(250) })
	return client
}

// Terminate removes the container.
func (c *MosquittoContainer) Terminate(ctx context.Context) error {
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate Mosquitto container: %w", err)
	}
	return nil
}
