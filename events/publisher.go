package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"takealot_sync/models"
)

const DefaultPriceQueue = "product.price_changed"

// RabbitMQPublisher sends price change events to a durable queue.
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	mu      sync.Mutex
}

func NewRabbitMQPublisher(url, queue string) (*RabbitMQPublisher, error) {
	if queue == "" {
		queue = DefaultPriceQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &RabbitMQPublisher{conn: conn, channel: channel, queue: queue}, nil
}

func (p *RabbitMQPublisher) PublishPriceChanged(ctx context.Context, event models.PriceChangedEvent) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         EventPriceChanged,
			MessageId:    event.ProductID.String() + ":" + event.OccurredAt.Format(time.RFC3339Nano),
			Body:         body,
			Timestamp:    event.OccurredAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

const EventPriceChanged = "product.price_changed"

// envelope is the message body consumers receive.
type envelope struct {
	Type string                   `json:"type"`
	Data models.PriceChangedEvent `json:"data"`
}

func Encode(event models.PriceChangedEvent) ([]byte, error) {
	body, err := json.Marshal(envelope{Type: EventPriceChanged, Data: event})
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

func (Noop) PublishPriceChanged(context.Context, models.PriceChangedEvent) error { return nil }
