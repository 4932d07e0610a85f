package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/taskhub/internal/auth"
	"github.com/hugh/taskhub/pkg/crypto"
	"github.com/hugh/taskhub/pkg/queue"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher queues codes for email delivery by the worker.
type Dispatcher struct {
	client    Enqueuer
	encryptor *crypto.Encryptor
	ttl       time.Duration
}

var _ auth.CodeDispatcher = (*Dispatcher)(nil)

// NewDispatcher builds a dispatcher whose tasks are dropped after ttl, the
// lifetime of the code they carry.
func NewDispatcher(client Enqueuer, encryptor *crypto.Encryptor, ttl time.Duration) *Dispatcher {
	return &Dispatcher{client: client, encryptor: encryptor, ttl: ttl}
}

func (d *Dispatcher) DispatchCode(ctx context.Context, userID uint, email, code string) error {
	sealed, err := d.encryptor.Seal(code)
	if err != nil {
		return fmt.Errorf("sealing code: %w", err)
	}

	task, err := NewOTPDeliverTask(OTPDeliverPayload{
		UserID:     userID,
		Email:      email,
		SealedCode: sealed,
	})
	if err != nil {
		return err
	}

	opts := []asynq.Option{asynq.Queue(queue.QueueCritical), asynq.MaxRetry(3)}
	if d.ttl > 0 {
		opts = append(opts, asynq.Deadline(time.Now().Add(d.ttl)))
	}

	if _, err := d.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeOTPDeliver, err)
	}
	return nil
}
