// Package kafka publishes fee instructions to a Kafka topic for the payment
// system to settle.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"certreg/internal/payment/models"
	"certreg/pkg/domain"
	"certreg/pkg/platform/circuit"
	"certreg/pkg/requestcontext"
)

// Producer is the subset of *kgo.Client used by the gateway.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Gateway writes each instruction synchronously. A call succeeds once the
// broker acknowledges the record; a produce error is a failed call. The
// breaker tracks consecutive failures so health checks can report a degraded
// payment path.
type Gateway struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	logger   *slog.Logger
	timeout  time.Duration
}

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(g *Gateway) {
		if b != nil {
			g.breaker = b
		}
	}
}

// WithTimeout bounds each produce call when the caller's context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

func New(producer Producer, topic string, opts ...Option) *Gateway {
	g := &Gateway{
		producer: producer,
		topic:    topic,
		breaker:  circuit.New("payments-kafka", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(1)),
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Transfer(ctx context.Context, amount uint64, from, to domain.Principal) (bool, error) {
	return g.publish(ctx, models.Instruction{
		Kind:   models.KindTransfer,
		Amount: amount,
		From:   from,
		To:     to,
	})
}

func (g *Gateway) ConfirmFeePayment(ctx context.Context, amount uint64, payer domain.Principal) (bool, error) {
	return g.publish(ctx, models.Instruction{
		Kind:   models.KindFeeConfirmation,
		Amount: amount,
		From:   payer,
	})
}

// Degraded reports whether recent produce calls have been failing.
func (g *Gateway) Degraded() bool {
	return g.breaker.IsOpen()
}

func (g *Gateway) publish(ctx context.Context, in models.Instruction) (bool, error) {
	in.ID = uuid.NewString()
	in.RequestID = requestcontext.RequestID(ctx)
	in.CreatedAt = requestcontext.Now(ctx).UTC()

	value, err := json.Marshal(in)
	if err != nil {
		return false, fmt.Errorf("encode payment instruction: %w", err)
	}
	record := &kgo.Record{
		Topic: g.topic,
		Key:   []byte(in.From.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(in.Kind)},
			{Key: "instruction_id", Value: []byte(in.ID)},
		},
	}

	if _, ok := ctx.Deadline(); !ok && g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened && g.logger != nil {
			g.logger.ErrorContext(ctx, "payment gateway degraded",
				"breaker", g.breaker.Name(),
				"request_id", in.RequestID,
			)
		}
		return false, fmt.Errorf("produce %s instruction: %w", in.Kind, err)
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed && g.logger != nil {
		g.logger.InfoContext(ctx, "payment gateway recovered",
			"breaker", g.breaker.Name(),
			"request_id", in.RequestID,
		)
	}
	return true, nil
}
