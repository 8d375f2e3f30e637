package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AuditConsumer binds a durable queue to every reservation event and
// appends one line per event to an audit log file.
type AuditConsumer struct {
	URL      string
	Exchange string
	Queue    string
	Path     string
	Log      *zap.Logger
}

// Run keeps consuming until ctx is cancelled, re-dialling the broker with
// exponential backoff (capped at 30s) whenever the connection drops.
func (a *AuditConsumer) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(a.URL)
		if err != nil {
			a.Log.Warn("audit-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = a.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		a.Log.Warn("audit-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
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

func (a *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		a.Log.Warn("audit-consumer: set QoS failed", zap.Error(err))
	}
	if err := ch.ExchangeDeclare(a.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(a.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(a.Queue, bindAll, a.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, a.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	a.Log.Info("audit-consumer: consuming", zap.String("queue", a.Queue))

	for d := range msgs {
		if err := AppendAudit(a.Path, d.Body); err != nil {
			a.Log.Error("audit-consumer: handle message failed", zap.Error(err))
			_ = d.Nack(false, false) // do not requeue poison messages
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// AppendAudit decodes one message and appends its audit line to path.
func AppendAudit(path string, body []byte) error {
	var m ReservationMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if m.Event == "" || m.ReservationID == "" {
		return errors.New("message without event or reservation id")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatAudit(m)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// FormatAudit renders a single newline-terminated audit line.
func FormatAudit(m ReservationMessage) string {
	transition := m.Status
	if m.PreviousStatus != "" {
		transition = m.PreviousStatus + "->" + m.Status
	}
	return fmt.Sprintf("[%s] %s | ref=%s | id=%s | court=%d | venue=%d | user=%d | slot=%s %s-%s | status=%s | price=%d cents | actor=%s#%d\n",
		m.OccurredAt, m.Event, m.Reference, m.ReservationID, m.CourtID, m.VenueID, m.UserID,
		m.Date, m.Start, m.End, transition, m.PriceCents, m.ActorRole, m.ActorID)
}
