package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/pantry-assistant/internal/expiry"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AlertPublisher forwards expiry alerts to a durable queue so other
// household devices or services can pick them up.
type AlertPublisher struct {
	conn  *amqp.Connection
	ch    channel
	queue string
}

type AlertMessage struct {
	UserID  string    `json:"user_id"`
	Names   []string  `json:"names"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func NewAlertPublisher(url, queue string) (*AlertPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := declareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AlertPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// declareQueues declares queue and its dead-letter queue, queue + ".dlq".
func declareQueues(ch *amqp.Channel, queue string) error {
	dlq := queue + ".dlq"
	if _, err := ch.QueueDeclare(
		dlq,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// rejected alerts go to the DLQ
	_, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlq,
		},
	)
	return err
}

func (p *AlertPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func encodeAlert(a expiry.Alert) ([]byte, error) {
	return json.Marshal(AlertMessage{
		UserID:  a.UserID,
		Names:   a.Names,
		Message: a.Message(),
		At:      a.At.UTC(),
	})
}

// Notify implements expiry.Notifier.
func (p *AlertPublisher) Notify(ctx context.Context, a expiry.Alert) error {
	body, err := encodeAlert(a)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    a.At,
		},
	)
}
