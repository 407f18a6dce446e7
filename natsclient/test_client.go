package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestClient provides a testcontainers-based NATS server with a connected Client
type TestClient struct {
	container testcontainers.Container
	Client    *Client
	URL       string
	cfg       *testConfig
}

type testConfig struct {
	natsVersion  string
	timeout      time.Duration
	startTimeout time.Duration
	username     string
	password     string
}

// TestOption configures NewTestClient
type TestOption func(*testConfig)

// WithNATSVersion specifies the NATS server image tag
func WithNATSVersion(version string) TestOption {
	return func(cfg *testConfig) {
		cfg.natsVersion = version
	}
}

// WithTestTimeout sets the connection timeout for test clients
func WithTestTimeout(timeout time.Duration) TestOption {
	return func(cfg *testConfig) {
		cfg.timeout = timeout
	}
}

// WithStartTimeout sets the container startup timeout
func WithStartTimeout(timeout time.Duration) TestOption {
	return func(cfg *testConfig) {
		cfg.startTimeout = timeout
	}
}

// WithFastStartup configures the shortest timeouts that still start reliably
func WithFastStartup() TestOption {
	return func(cfg *testConfig) {
		cfg.timeout = 2 * time.Second
		cfg.startTimeout = 10 * time.Second
	}
}

// WithServerCredentials starts the server with user/password auth and
// connects test clients with the same credentials.
func WithServerCredentials(username, password string) TestOption {
	return func(cfg *testConfig) {
		cfg.username = username
		cfg.password = password
	}
}

// NewTestClient starts a NATS container and returns a connected client.
// Both are cleaned up with t.Cleanup.
func NewTestClient(t testing.TB, opts ...TestOption) *TestClient {
	t.Helper()

	cfg := &testConfig{
		natsVersion:  "2.11.7-alpine",
		timeout:      5 * time.Second,
		startTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx := context.Background()

	args := []string{
		"--port", "4222",
		"--http_port", "8222",
	}
	if cfg.username != "" {
		args = append(args, "--user", cfg.username, "--pass", cfg.password)
	}

	req := testcontainers.ContainerRequest{
		Image:        "nats:" + cfg.natsVersion,
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          args,
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(cfg.startTimeout),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start NATS container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	tc := &TestClient{
		container: container,
		URL:       fmt.Sprintf("nats://%s:%s", host, port.Port()),
		cfg:       cfg,
	}
	tc.Client = tc.NewPeer(t)

	return tc
}

// NewPeer connects an additional client to the same server, for tests that
// need separate publishing and subscribing connections.
func (tc *TestClient) NewPeer(t testing.TB, opts ...ClientOption) *Client {
	t.Helper()

	base := []ClientOption{
		WithTimeout(tc.cfg.timeout),
		WithMaxReconnects(0),
		WithHealthInterval(0),
	}
	if tc.cfg.username != "" {
		base = append(base, WithCredentials(tc.cfg.username, tc.cfg.password))
	}

	client, err := NewClient(tc.URL, append(base, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create NATS client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), tc.cfg.timeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Failed to connect to NATS: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close(context.Background())
	})

	return client
}

// IsReady checks if the primary client is connected
func (tc *TestClient) IsReady() bool {
	return tc.Client.IsHealthy()
}
