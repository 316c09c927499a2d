package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type natsTransport struct {
	nc *nats.Conn
}

// NewNATSTransport connects to a NATS server for request/reply relaying.
func NewNATSTransport(url string, logger *zap.Logger) (Transport, error) {
	nc, err := nats.Connect(url,
		nats.Name("codepad-relay"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}
	return &natsTransport{nc: nc}, nil
}

func (t *natsTransport) Request(ctx context.Context, subject string, payload []byte) ([]byte, error) {
	msg, err := t.nc.RequestWithContext(ctx, subject, payload)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, fmt.Errorf("nats: no paired runner on %s: %w", subject, err)
		}
		return nil, fmt.Errorf("nats: request: %w", err)
	}
	return msg.Data, nil
}

func (t *natsTransport) Close() error {
	t.nc.Close()
	return nil
}

// ServeNATS answers relay requests on subject with exec until ctx is cancelled.
func ServeNATS(ctx context.Context, url, subject string, exec Executor, logger *zap.Logger) error {
	if subject == "" {
		subject = DefaultSubject
	}

	nc, err := nats.Connect(url, nats.Name("codepad-runner"))
	if err != nil {
		return fmt.Errorf("nats: connect: %w", err)
	}
	defer nc.Close()

	r := NewResponder(exec, logger)
	sub, err := nc.QueueSubscribe(subject, "codepad-runners", func(msg *nats.Msg) {
		reply := r.Handle(ctx, msg.Data)
		if err := msg.Respond(reply); err != nil {
			logger.Error("Failed to send relay reply", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("nats: subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	logger.Info("Relay runner listening", zap.String("transport", "nats"), zap.String("subject", subject))
	<-ctx.Done()
	return nil
}
