package natsclient

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/magicportal/errors"
	"github.com/c360/magicportal/metric"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://a:4222,nats://b:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://a:4222,nats://b:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Contains(t, client.Name(), "magicportal-")
}

func TestNewClient_UniqueNames(t *testing.T) {
	a, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	b, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.NotEqual(t, a.Name(), b.Name())
}

func TestNewClient_BadOption(t *testing.T) {
	_, err := NewClient("nats://localhost:4222", WithName(""))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	client, err := NewClient("nats://invalid:4222")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		client.recordFailure()
	}
	assert.NotEqual(t, StatusCircuitOpen, client.Status())

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(5), client.Failures())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Equal(t, int32(0), client.Failures())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestCircuitBreaker_ExponentialBackoff(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithMaxBackoff(4*time.Second))
	require.NoError(t, err)

	assert.Equal(t, time.Second, client.Backoff())

	expected := []time.Duration{2 * time.Second, 4 * time.Second, 4 * time.Second}
	for _, want := range expected {
		for i := 0; i < 5; i++ {
			client.recordFailure()
		}
		assert.Equal(t, want, client.Backoff())
	}
}

func TestCircuitBreaker_RejectsConnect(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.True(t, errors.Is(err, errors.ErrConnection))
}

func TestConnect_Unreachable(t *testing.T) {
	client, err := NewClient("nats://127.0.0.1:1", WithTimeout(500*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConnection))
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, int32(1), client.Failures())
}

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		name           string
		initialStatus  ConnectionStatus
		action         func(*Client)
		expectedStatus ConnectionStatus
	}{
		{"disconnected to connecting", StatusDisconnected, func(c *Client) { c.setStatus(StatusConnecting) }, StatusConnecting},
		{"connecting to connected", StatusConnecting, func(c *Client) { c.setStatus(StatusConnected) }, StatusConnected},
		{"connected to reconnecting", StatusConnected, func(c *Client) { c.handleDisconnect(nil, nil) }, StatusReconnecting},
		{"closed handler", StatusConnected, func(c *Client) { c.handleClosed(nil) }, StatusDisconnected},
		{"any to circuit open", StatusConnected, func(c *Client) {
			for i := 0; i < 5; i++ {
				c.recordFailure()
			}
		}, StatusCircuitOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient("nats://localhost:4222")
			require.NoError(t, err)
			client.setStatus(tt.initialStatus)

			tt.action(client)

			assert.Equal(t, tt.expectedStatus, client.Status())
		})
	}
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestConcurrentSafety(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	var wg sync.WaitGroup
	iterations := 100

	wg.Add(4)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.setStatus(StatusConnected)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_ = client.Status()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.recordFailure()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.resetCircuit()
		}
	}()
	wg.Wait()

	assert.Contains(t, []ConnectionStatus{
		StatusDisconnected,
		StatusConnecting,
		StatusConnected,
		StatusReconnecting,
		StatusCircuitOpen,
	}, client.Status())
}

func TestNotConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx := context.Background()
	assert.ErrorIs(t, client.Publish(ctx, "239.0.0.1:5000", []byte("x")), ErrNotConnected)

	_, err = client.SubscribeStream(ctx, "239.0.0.1:5000")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClose_Idempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithCredentials("u", "p"), WithToken("t"))
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))
	assert.Empty(t, client.password)
	assert.Empty(t, client.token)

	_, err = client.SubscribeStream(context.Background(), "x")
	assert.True(t, errors.IsInvalid(err))
}

func TestConnectionOptions(t *testing.T) {
	plain, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	secured, err := NewClient("nats://localhost:4222",
		WithCredentials("bridge", "secret"),
		WithToken("tok"),
		WithTLS("", "", ""),
	)
	require.NoError(t, err)

	// user info, token and Secure each add one option
	assert.Len(t, secured.ConnectionOptions(), len(plain.ConnectionOptions())+3)
}

func TestWithMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	client, err := NewClient("nats://localhost:4222", WithMetrics(registry))
	require.NoError(t, err)

	client.setStatus(StatusConnected)
	assert.Equal(t, 1.0, testutil.ToFloat64(registry.CoreMetrics().NATSConnected))

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(registry.CoreMetrics().NATSCircuitBreaker))
	assert.Equal(t, 0.0, testutil.ToFloat64(registry.CoreMetrics().NATSConnected))
}

func TestWithMetrics_NilRegistry(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithMetrics(nil))
	require.NoError(t, err)
	assert.NotPanics(t, func() { client.setStatus(StatusConnected) })
}

func TestHealthChangeCallback(t *testing.T) {
	changes := make(chan bool, 2)
	client, err := NewClient("nats://localhost:4222", WithHealthChangeCallback(func(h bool) { changes <- h }))
	require.NoError(t, err)

	client.handleDisconnect(nil, nil)

	select {
	case healthy := <-changes:
		assert.False(t, healthy)
	case <-time.After(time.Second):
		t.Fatal("health callback not invoked")
	}
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	logger.Printf("connected to %s", "nats://x")
	logger.Errorf("failed: %v", "boom")
	logger.Debugf("hidden %d", 1)

	out := buf.String()
	assert.Contains(t, out, "connected to nats://x")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "component=natsclient")
	assert.NotContains(t, out, "hidden")
}

func TestPublish_BuffersWhileReconnecting(t *testing.T) {
	srv := newStubServer(t, false)

	client, err := NewClient(srv.URL(),
		WithReconnectWait(time.Minute),
		WithHealthInterval(0),
	)
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))
	require.Equal(t, StatusConnected, client.Status())

	srv.dropClients()
	require.Eventually(t, func() bool {
		return client.Status() == StatusReconnecting
	}, 5*time.Second, 10*time.Millisecond)

	// held in the reconnect buffer instead of failing the caller
	assert.NoError(t, client.Publish(context.Background(), "239.0.0.1:5000", []byte("during outage")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = client.Close(ctx)

	assert.ErrorIs(t, client.Publish(context.Background(), "239.0.0.1:5000", []byte("after close")), ErrNotConnected)
}

func TestConnect_CancelledDuringHandshakeClosesConnection(t *testing.T) {
	srv := newStubServer(t, true)

	client, err := NewClient(srv.URL(), WithHealthInterval(0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = client.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConnection))

	// let the abandoned handshake finish; the late connection must be closed
	srv.release()

	select {
	case <-srv.gone:
	case <-time.After(5 * time.Second):
		t.Fatal("late connection was not closed")
	}

	client.mu.RLock()
	defer client.mu.RUnlock()
	assert.Nil(t, client.conn)
	assert.NotEqual(t, StatusConnected, client.Status())
}

func TestSubscribeStream_UnsubscribeReleasesSubscription(t *testing.T) {
	srv := newStubServer(t, false)

	client, err := NewClient(srv.URL(), WithHealthInterval(0))
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Close(ctx)
	})

	first, err := client.SubscribeStream(context.Background(), "239.0.0.1:5000")
	require.NoError(t, err)
	second, err := client.SubscribeStream(context.Background(), "239.0.0.2:5000")
	require.NoError(t, err)

	subCount := func() int {
		client.mu.RLock()
		defer client.mu.RUnlock()
		return len(client.subs)
	}
	require.Equal(t, 2, subCount())

	require.NoError(t, first.Unsubscribe())
	assert.Equal(t, 1, subCount())

	require.NoError(t, first.Unsubscribe(), "second unsubscribe is a no-op")
	assert.Equal(t, 1, subCount())

	require.NoError(t, second.Unsubscribe())
	assert.Equal(t, 0, subCount())
}
