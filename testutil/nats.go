package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/c360/magicportal/natsclient"
)

// streamBuffer is how many undelivered messages a mock stream holds before
// new ones are dropped, like a slow consumer on a real connection.
const streamBuffer = 1024

// MockNATSClient is an in-memory bus for testing. Published messages are
// recorded per subject and delivered to every open stream on that subject.
// Thread-safe for concurrent use from multiple goroutines.
type MockNATSClient struct {
	mu         sync.RWMutex
	messages   map[string][][]byte
	streams    map[string][]*mockStream
	publishErr error
	subErr     error
	closed     bool
}

// NewMockNATSClient creates a new mock NATS client.
func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{
		messages: make(map[string][][]byte),
		streams:  make(map[string][]*mockStream),
	}
}

// Publish records data on subject and delivers a copy to each stream
// (matches natsclient.Client signature).
func (c *MockNATSClient) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}
	if c.publishErr != nil {
		return c.publishErr
	}

	// callers may reuse their buffer
	msg := make([]byte, len(data))
	copy(msg, data)
	c.messages[subject] = append(c.messages[subject], msg)

	for _, s := range c.streams[subject] {
		s.deliver(msg)
	}
	return nil
}

// SubscribeStream opens a stream on subject (matches natsclient.Client signature).
func (c *MockNATSClient) SubscribeStream(ctx context.Context, subject string) (natsclient.MessageStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}
	if c.subErr != nil {
		return nil, c.subErr
	}

	s := &mockStream{
		client:  c,
		subject: subject,
		msgs:    make(chan []byte, streamBuffer),
		done:    make(chan struct{}),
	}
	c.streams[subject] = append(c.streams[subject], s)
	return s, nil
}

// SetPublishError makes every following Publish fail with err. nil restores
// normal behaviour.
func (c *MockNATSClient) SetPublishError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishErr = err
}

// SetSubscribeError makes every following SubscribeStream fail with err.
func (c *MockNATSClient) SetSubscribeError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subErr = err
}

// CloseSubject ends every stream on subject as if the bus had closed the
// subscription.
func (c *MockNATSClient) CloseSubject(subject string) {
	c.mu.Lock()
	streams := c.streams[subject]
	delete(c.streams, subject)
	c.mu.Unlock()

	for _, s := range streams {
		s.close()
	}
}

// SubscriberCount returns the number of open streams on subject.
func (c *MockNATSClient) SubscriberCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.streams[subject])
}

// GetMessages returns all messages published on a subject.
func (c *MockNATSClient) GetMessages(subject string) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs := c.messages[subject]
	if msgs == nil {
		return nil
	}
	result := make([][]byte, len(msgs))
	copy(result, msgs)
	return result
}

// GetMessageCount returns the number of messages on a subject.
func (c *MockNATSClient) GetMessageCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages[subject])
}

// ClearAll clears all recorded messages.
func (c *MockNATSClient) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = make(map[string][][]byte)
}

// Close closes the mock client and every open stream.
func (c *MockNATSClient) Close() error {
	c.mu.Lock()
	c.closed = true
	all := c.streams
	c.streams = make(map[string][]*mockStream)
	c.mu.Unlock()

	for _, streams := range all {
		for _, s := range streams {
			s.close()
		}
	}
	return nil
}

// IsClosed returns whether the client is closed.
func (c *MockNATSClient) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *MockNATSClient) remove(s *mockStream) {
	c.mu.Lock()
	defer c.mu.Unlock()

	streams := c.streams[s.subject]
	for i, other := range streams {
		if other == s {
			c.streams[s.subject] = append(streams[:i:i], streams[i+1:]...)
			return
		}
	}
}

type mockStream struct {
	client  *MockNATSClient
	subject string
	msgs    chan []byte
	done    chan struct{}
	once    sync.Once
}

// deliver is called with the client lock held.
func (s *mockStream) deliver(msg []byte) {
	select {
	case <-s.done:
	case s.msgs <- msg:
	default:
	}
}

func (s *mockStream) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *mockStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-s.done:
		return nil, natsclient.ErrStreamClosed
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, natsclient.ErrStreamClosed
	case msg := <-s.msgs:
		return msg, nil
	}
}

func (s *mockStream) Unsubscribe() error {
	s.client.remove(s)
	s.close()
	return nil
}

// WaitForSubscribers waits until subject has at least count open streams.
func WaitForSubscribers(t *testing.T, client *MockNATSClient, subject string, count int, timeout time.Duration) {
	t.Helper()
	waitFor(t, timeout, func() bool {
		return client.SubscriberCount(subject) >= count
	}, "timeout waiting for %d subscribers on subject %s", count, subject)
}

// WaitForMessage is a test helper that waits for a message on a subject and
// returns the latest one.
func WaitForMessage(t *testing.T, client *MockNATSClient, subject string, timeout time.Duration) []byte {
	t.Helper()
	WaitForMessageCount(t, client, subject, 1, timeout)
	messages := client.GetMessages(subject)
	return messages[len(messages)-1]
}

// WaitForMessageCount waits for a specific number of messages (with timeout).
func WaitForMessageCount(t *testing.T, client *MockNATSClient, subject string, count int, timeout time.Duration) {
	t.Helper()
	waitFor(t, timeout, func() bool {
		return client.GetMessageCount(subject) >= count
	}, "timeout waiting for %d messages on subject %s", count, subject)
}

// AssertNoMessages checks that no messages were published on a subject.
func AssertNoMessages(t *testing.T, client *MockNATSClient, subject string) {
	t.Helper()

	messages := client.GetMessages(subject)
	if len(messages) > 0 {
		t.Fatalf("expected no messages on subject %s, got %d", subject, len(messages))
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, format string, args ...any) {
	t.Helper()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if cond() {
			return
		}
		select {
		case <-deadline.C:
			t.Fatalf(format, args...)
			return
		case <-ticker.C:
		}
	}
}
