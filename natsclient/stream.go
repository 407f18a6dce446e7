package natsclient

import (
	"context"
	stderrors "errors"

	"github.com/nats-io/nats.go"
)

// MessageStream is a pull-style view of a subscription.
type MessageStream interface {
	// Next blocks until a message arrives, ctx is done, or the stream ends.
	// It returns ctx.Err() on cancellation and ErrStreamClosed once the
	// subscription or its connection has been closed.
	Next(ctx context.Context) ([]byte, error)
	// Unsubscribe ends the stream. Further calls to Next return ErrStreamClosed.
	Unsubscribe() error
}

type natsStream struct {
	sub     *nats.Subscription
	release func(*nats.Subscription)
}

func (s *natsStream) Next(ctx context.Context) ([]byte, error) {
	for {
		msg, err := s.sub.NextMsgWithContext(ctx)
		switch {
		case err == nil:
			return msg.Data, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case stderrors.Is(err, nats.ErrSlowConsumer):
			// the client already dropped the overflow, keep reading
			continue
		case stderrors.Is(err, nats.ErrBadSubscription), stderrors.Is(err, nats.ErrConnectionClosed):
			return nil, ErrStreamClosed
		default:
			return nil, err
		}
	}
}

func (s *natsStream) Unsubscribe() error {
	if s.release != nil {
		s.release(s.sub)
	}
	if !s.sub.IsValid() {
		return nil
	}
	err := s.sub.Unsubscribe()
	if stderrors.Is(err, nats.ErrBadSubscription) || stderrors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}
