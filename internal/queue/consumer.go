package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// VisitorNotifier records that a visitor's notification went out.
type VisitorNotifier interface {
	MarkNotified(ctx context.Context, id uint64) error
}

// Consumer is the notification worker. It drains parking.events and
// appends one line per event to <dir>/notifications.log, which stands
// in for the email, calendar invite and wallet pass senders.
type Consumer struct {
	url      string
	dir      string
	visitors VisitorNotifier
	logger   *slog.Logger

	mu sync.Mutex // serialises writes to the log file
}

func NewConsumer(url, dir string, visitors VisitorNotifier, logger *slog.Logger) *Consumer {
	return &Consumer{url: url, dir: dir, visitors: visitors, logger: logger}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled,
// reconnecting with exponential backoff when the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("notification consumer: dial failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("notification consumer: consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("notification consumer: set QoS failed", "error", err)
	}
	if err := declareEventsQueue(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(EventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.logger.Info("notification consumer started", "queue", EventsQueue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.HandleMessage(ctx, d.Body); err != nil {
				c.logger.Error("notification consumer: handle message failed", "error", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage processes one delivery body.
func (c *Consumer) HandleMessage(ctx context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line, err := notificationLine(ev)
	if err != nil {
		return err
	}
	if err := c.appendLine(line); err != nil {
		return err
	}
	if ev.Type == VisitorCreated && ev.VisitorBookingID != 0 {
		if err := c.visitors.MarkNotified(ctx, ev.VisitorBookingID); err != nil {
			return fmt.Errorf("mark notified: %w", err)
		}
	}
	return nil
}

func (c *Consumer) appendLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, "notifications.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func notificationLine(ev Event) (string, error) {
	at := ev.OccurredAt.UTC().Format(time.RFC3339)
	switch ev.Type {
	case ReservationCreated, ReservationCancelled:
		return fmt.Sprintf("[%s] %s | reservation_id=%d | user_id=%d | spot=%q | date=%s\n",
			at, ev.Type, ev.ReservationID, ev.UserID, ev.SpotLabel, ev.Date), nil
	case CessionCreated:
		return fmt.Sprintf("[%s] %s | user_id=%d | spot=%q | days=%d | first=%s\n",
			at, ev.Type, ev.UserID, ev.SpotLabel, len(ev.Dates), ev.Date), nil
	case CessionCancelled:
		return fmt.Sprintf("[%s] %s | cession_id=%d | user_id=%d | spot_id=%d | date=%s\n",
			at, ev.Type, ev.CessionID, ev.UserID, ev.SpotID, ev.Date), nil
	case VisitorCreated, VisitorCancelled:
		return fmt.Sprintf("[%s] %s | visitor_booking_id=%d | visitor=%q <%s> | spot_id=%d | date=%s\n",
			at, ev.Type, ev.VisitorBookingID, ev.VisitorName, ev.VisitorEmail, ev.SpotID, ev.Date), nil
	default:
		return "", fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
