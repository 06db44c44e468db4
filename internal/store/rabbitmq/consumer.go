package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/pantry-assistant/internal/logger"
)

// AlertHandler processes one decoded alert. A returned error dead-letters
// the message.
type AlertHandler func(ctx context.Context, m AlertMessage) error

// AlertConsumer reads expiry alerts published by AlertPublisher.
type AlertConsumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	deliveries  <-chan amqp.Delivery
	concurrency int
	logger      *slog.Logger
}

func NewAlertConsumer(url, queue string, concurrency int, l *slog.Logger) (*AlertConsumer, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	fail := func(err error) (*AlertConsumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if err := declareQueues(ch, queue); err != nil {
		return fail(err)
	}
	if err := ch.Qos(concurrency, 0, false); err != nil {
		return fail(err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fail(err)
	}

	return &AlertConsumer{
		conn:        conn,
		ch:          ch,
		deliveries:  msgs,
		concurrency: concurrency,
		logger:      l,
	}, nil
}

// Run handles deliveries until ctx is done or the broker closes the channel.
func (c *AlertConsumer) Run(ctx context.Context, handle AlertHandler) error {
	return consume(ctx, c.deliveries, c.concurrency, handle, c.logger)
}

func (c *AlertConsumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// consume fans deliveries out to a fixed pool of workers. Malformed bodies
// and handler failures are nacked without requeue so they land in the DLQ.
func consume(ctx context.Context, msgs <-chan amqp.Delivery, concurrency int, handle AlertHandler, l *slog.Logger) error {
	l = logger.OrDefault(l)
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m AlertMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.UserID == "" {
					l.Warn("bad alert message", slog.Int("worker", workerID), slog.Any("error", err))
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handle(ctx, m); err != nil {
					l.Warn("alert handler failed",
						slog.Int("worker", workerID),
						slog.String("user_id", m.UserID),
						slog.Duration("cost", time.Since(start)),
						slog.String("error", err.Error()),
					)
					_ = d.Nack(false, false)
					continue
				}
				if err := d.Ack(false); err != nil {
					l.Warn("ack failed", slog.Int("worker", workerID), slog.String("error", err.Error()))
				}
			}
		}(i)
	}

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case d, ok := <-msgs:
			if !ok {
				err = errors.New("rabbitmq: delivery channel closed")
				break loop
			}
			jobs <- d
		}
	}
	close(jobs)
	wg.Wait()
	return err
}
