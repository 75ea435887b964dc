package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrBrokerUnavailable is returned while another call is dialling the
// broker or a recent dial failed. Events are dropped rather than
// holding up the request that produced them.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// Publisher sends domain events to the parking.events queue. The broker
// connection is opened on first use and re-dialled after a failure, so
// a broker that is down at startup does not stop the API. Dialling
// happens outside the lock with a short timeout; after a failed dial
// the publisher backs off for redialAfter before trying again.
type Publisher struct {
	url         string
	logger      *slog.Logger
	dial        func(url string) (*amqp.Connection, error)
	redialAfter time.Duration

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	dialing  bool
	nextDial time.Time
}

const (
	dialTimeout   = 2 * time.Second
	redialBackoff = 5 * time.Second
)

func NewPublisher(url string, logger *slog.Logger) *Publisher {
	return &Publisher{
		url:         url,
		logger:      logger,
		dial:        dialBroker,
		redialAfter: redialBackoff,
	}
}

func dialBroker(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
}

// Publish marshals ev and publishes it as a persistent message. Errors
// are returned so the caller can log them; the connection is dropped so
// the next call dials again.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	msg, err := newPublishing(ev)
	if err != nil {
		return err
	}
	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ch.PublishWithContext(ctx,
		"",          // default exchange
		EventsQueue, // routing key = queue name
		false,       // mandatory
		false,       // immediate
		msg,
	); err != nil {
		if p.ch == ch {
			p.reset()
		}
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// channel returns the open channel, dialling and declaring the queue
// when needed. Only one caller dials at a time; the others fail fast.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.dialing || time.Now().Before(p.nextDial) {
		p.mu.Unlock()
		return nil, ErrBrokerUnavailable
	}
	p.reset()
	p.dialing = true
	p.mu.Unlock()

	conn, ch, err := p.connect(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.nextDial = time.Now().Add(p.redialAfter)
		return nil, err
	}
	p.conn, p.ch = conn, ch
	p.logger.Info("rabbitmq publisher connected", "queue", EventsQueue)
	return ch, nil
}

func (p *Publisher) connect(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	conn, err := p.dial(p.url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declareEventsQueue(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// queueDeclarer is the part of *amqp.Channel used to declare the queue.
type queueDeclarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

// declareEventsQueue ensures the queue exists (idempotent). Durable so
// messages survive broker restarts.
func declareEventsQueue(ch queueDeclarer) error {
	if _, err := ch.QueueDeclare(
		EventsQueue, // name
		true,        // durable
		false,       // autoDelete
		false,       // exclusive
		false,       // noWait
		nil,         // args
	); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	return nil
}

func newPublishing(ev Event) (amqp.Publishing, error) {
	if ev.Type == "" {
		return amqp.Publishing{}, errors.New("event type is required")
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Type:         string(ev.Type),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}, nil
}
