// Package worker drains detached outbound tasks.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"studiodesk/internal/queue"
)

// Logouter revokes a token on the remote API.
type Logouter interface {
	Logout(ctx context.Context, token string) error
}

// QueueRevoker hands logout revocations to the queue instead of calling
// the API inline.
type QueueRevoker struct {
	Q queue.Queue
}

func (r QueueRevoker) Revoke(ctx context.Context, token string) error {
	return r.Q.Publish(ctx, queue.Message{Type: queue.TypeLogout, Body: []byte(token)})
}

// Run consumes q until ctx is done. Failures are logged and never retried.
func Run(ctx context.Context, q queue.Queue, api Logouter, logger *zap.Logger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	logger.Info("worker started, waiting for messages")
	for msg := range messages {
		handle(ctx, msg, api, logger)
	}
	logger.Info("worker stopped")
	return nil
}

func handle(ctx context.Context, msg queue.Message, api Logouter, logger *zap.Logger) {
	switch msg.Type {
	case queue.TypeLogout:
		callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := api.Logout(callCtx, string(msg.Body)); err != nil {
			logger.Warn("server logout failed", zap.Error(err))
			return
		}
		logger.Debug("server logout done")
	default:
		logger.Warn("unknown message type", zap.String("type", msg.Type))
	}
}
