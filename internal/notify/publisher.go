// internal/notify/publisher.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	nats "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
)

// Publisher пересылает события лаунчпада в NATS JetStream.
// Nats-Msg-Id берется из ключа идемпотентности, поэтому повторная
// отправка одного выпуска дедуплицируется самим стримом.
type Publisher struct {
	cfg    Config
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger
}

var _ graduation.Notifier = (*Publisher)(nil)

// NewPublisher connects to NATS and makes sure the stream exists.
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("launchpad-notifier"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	p := &Publisher{cfg: cfg, nc: nc, js: js, logger: logger.Named("notify")}
	if err := p.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureStream() error {
	_, err := p.js.StreamInfo(p.cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", p.cfg.Stream, err)
	}
	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:     p.cfg.Stream,
		Subjects: []string{p.cfg.SubjectRoot + ".>"},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", p.cfg.Stream, err)
	}
	p.logger.Info("JetStream stream created", zap.String("stream", p.cfg.Stream))
	return nil
}

// Subject returns the subject an event type is published on.
func (p *Publisher) Subject(t events.EventType) string {
	return p.cfg.SubjectRoot + "." + string(t)
}

// NotifyGraduated publishes a graduation event.
func (p *Publisher) NotifyGraduated(ctx context.Context, ev *graduation.Event) error {
	if ev == nil {
		return errors.New("nil graduation event")
	}
	env, id := graduationMessage(ev)
	return p.publish(ctx, p.Subject(events.TokenGraduated), id, env)
}

// HandleEvent forwards bus events to JetStream.
func (p *Publisher) HandleEvent(ctx context.Context, e events.Event) error {
	env, id, ok := eventMessage(e)
	if !ok {
		return nil
	}
	return p.publish(ctx, p.Subject(e.Type()), id, env)
}

// Subscribe forwards every non-graduation event type from the bus.
func (p *Publisher) Subscribe(bus *events.Bus) []events.Subscription {
	types := []events.EventType{
		events.TokenCreated,
		events.TradeApplied,
		events.TradeFailed,
		events.GraduationFailed,
		events.FundsWithdrawn,
	}
	subs := make([]events.Subscription, 0, len(types))
	for _, t := range types {
		subs = append(subs, bus.SubscribeFunc(t, p.HandleEvent))
	}
	return subs
}

func (p *Publisher) publish(ctx context.Context, subject, msgID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	if msgID != "" {
		msg.Header.Set(nats.MsgIdHdr, msgID)
	}

	pubCtx, cancel := p.WithTimeout(ctx)
	defer cancel()

	ack, err := p.js.PublishMsg(msg, nats.Context(pubCtx), nats.ExpectStream(p.cfg.Stream))
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if ack.Duplicate {
		p.logger.Debug("Duplicate message dropped by stream",
			zap.String("subject", subject),
			zap.String("msg_id", msgID))
	}
	return nil
}

// WithTimeout returns a context with the publisher's timeout applied.
func (p *Publisher) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := p.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return context.WithTimeout(parent, timeout)
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}
