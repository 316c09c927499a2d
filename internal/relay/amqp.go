package relay

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// Reconnection parameters
	baseReconnectDelay = 1 * time.Second
	maxReconnectDelay  = 30 * time.Second
)

// amqpTransport implements RPC over RabbitMQ: requests are published to the
// subject queue with ReplyTo set to an exclusive reply queue, and replies are
// matched back by correlation id.
type amqpTransport struct {
	url    string
	logger *zap.Logger

	mu         sync.Mutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	replyQueue string
	pending    map[string]chan []byte
	closed     bool
	closeCh    chan struct{}
}

// NewAMQPTransport dials RabbitMQ and sets up the reply queue.
func NewAMQPTransport(url string, logger *zap.Logger) (Transport, error) {
	t := &amqpTransport{
		url:     url,
		logger:  logger,
		pending: make(map[string]chan []byte),
		closeCh: make(chan struct{}),
	}
	if err := t.connect(); err != nil {
		return nil, err
	}

	// Watch for connection closures and reconnect
	go t.watchConnection()
	return t, nil
}

func (t *amqpTransport) connect() error {
	conn, err := amqp.Dial(t.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}

	// Server-named, exclusive, auto-delete reply queue.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: declare reply queue: %w", err)
	}

	replies, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: consume replies: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.channel = ch
	t.replyQueue = q.Name
	t.mu.Unlock()

	go t.dispatch(replies)

	t.logger.Info("RabbitMQ relay transport initialized", zap.String("reply_queue", q.Name))
	return nil
}

// dispatch routes replies to waiting requests until the delivery channel closes.
func (t *amqpTransport) dispatch(replies <-chan amqp.Delivery) {
	for d := range replies {
		t.mu.Lock()
		waiter, ok := t.pending[d.CorrelationId]
		delete(t.pending, d.CorrelationId)
		t.mu.Unlock()

		if !ok {
			t.logger.Debug("Dropping unmatched relay reply", zap.String("correlation_id", d.CorrelationId))
			continue
		}
		waiter <- d.Body
	}
}

// watchConnection monitors the connection and reconnects on failure.
func (t *amqpTransport) watchConnection() {
	for {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		conn := t.conn
		t.mu.Unlock()

		// Block until the connection closes
		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if !ok {
			return
		}
		t.logger.Warn("RabbitMQ relay connection lost, reconnecting...", zap.String("reason", reason.Error()))

		for attempt := 0; ; attempt++ {
			select {
			case <-t.closeCh:
				return
			case <-time.After(backoff(attempt)):
			}

			if err := t.connect(); err != nil {
				t.logger.Warn("RabbitMQ reconnect failed", zap.Error(err), zap.Int("attempt", attempt+1))
				continue
			}
			t.logger.Info("RabbitMQ relay reconnected")
			break
		}
	}
}

func (t *amqpTransport) Request(ctx context.Context, subject string, payload []byte) ([]byte, error) {
	corrID := uuid.NewString()
	waiter := make(chan []byte, 1)

	t.mu.Lock()
	ch, replyQueue := t.channel, t.replyQueue
	if ch == nil || t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("rabbitmq: channel not available (reconnecting)")
	}
	t.pending[corrID] = waiter
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, corrID)
		t.mu.Unlock()
	}()

	err := ch.PublishWithContext(ctx,
		"",      // default exchange
		subject, // routing key = runner queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: corrID,
			ReplyTo:       replyQueue,
			Timestamp:     time.Now(),
			Body:          payload,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: publish: %w", err)
	}

	select {
	case body := <-waiter:
		return body, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("rabbitmq: awaiting reply: %w", ctx.Err())
	}
}

func (t *amqpTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	close(t.closeCh)

	if t.channel != nil {
		t.channel.Close()
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

// ServeAMQP consumes relay requests from the subject queue and publishes each
// reply to its ReplyTo queue. It blocks until ctx is cancelled and reconnects
// with exponential backoff on connection loss.
func ServeAMQP(ctx context.Context, url, subject string, exec Executor, logger *zap.Logger) error {
	if subject == "" {
		subject = DefaultSubject
	}
	r := NewResponder(exec, logger)

	for attempt := 0; ; attempt++ {
		err := serveAMQPOnce(ctx, url, subject, r, logger)
		if ctx.Err() != nil {
			return nil
		}
		delay := backoff(attempt)
		logger.Warn("AMQP relay runner lost connection, reconnecting...", zap.Error(err), zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func serveAMQPOnce(ctx context.Context, url, subject string, r *Responder, logger *zap.Logger) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	// Set prefetch to 1: only deliver one unacknowledged message per runner.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("amqp qos: %w", err)
	}
	if _, err := ch.QueueDeclare(subject, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	deliveries, err := ch.Consume(subject, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	logger.Info("Relay runner listening", zap.String("transport", "amqp"), zap.String("queue", subject))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			reply := r.Handle(ctx, d.Body)
			if d.ReplyTo != "" {
				err := ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
					ContentType:   "application/json",
					CorrelationId: d.CorrelationId,
					Body:          reply,
				})
				if err != nil {
					logger.Error("Failed to publish relay reply", zap.Error(err), zap.String("correlation_id", d.CorrelationId))
					d.Nack(false, true)
					continue
				}
			}
			d.Ack(false)
		}
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Min(
		float64(baseReconnectDelay)*math.Pow(2, float64(attempt)),
		float64(maxReconnectDelay),
	))
}
