package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	jww "github.com/spf13/jwalterweatherman"
)

const appID = "crewlink"

// ErrClosed is returned once the broker connection has gone away.
var ErrClosed = errors.New("amqp connection closed")

// Publisher publishes JSON messages to the topic exchange. Delivery jobs, websocket
// lifecycle events and audit records all go through it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error
	// Status is "amqp" for a live broker, otherwise "noop: <reason>".
	Status() string
	Close() error
}

// NewPublisher dials amqpURL and declares exchange as a durable topic exchange. A
// missing URL or an unreachable broker yields a publisher that logs and drops.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		return newNoop("empty amqp url")
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return newNoop(err.Error())
	}
	ch, err := declare(conn, exchange)
	if err != nil {
		_ = conn.Close()
		return newNoop(err.Error())
	}

	p := &amqpPublisher{conn: conn, ch: ch, exchange: exchange}
	go p.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))
	jww.INFO.Printf("rabbitmq connected exchange=%s", exchange)
	return p
}

func declare(conn *amqp.Connection, exchange string) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, errors.Wrapf(err, "declare exchange %s", exchange)
	}
	return ch, nil
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string

	mu     sync.RWMutex
	closed bool
}

func (p *amqpPublisher) watch(closes <-chan *amqp.Error) {
	if err, ok := <-closes; ok && err != nil {
		jww.ERROR.Printf("rabbitmq connection lost: %v", err)
	}
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return p.PublishJSON(ctx, routingKey, event, nil)
}

func (p *amqpPublisher) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	msg, err := newPublishing(message, headers)
	if err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		jww.ERROR.Printf("rabbitmq publish failed routing_key=%s: %v", routingKey, err)
		return errors.Wrapf(err, "publish %s", routingKey)
	}
	return nil
}

func newPublishing(message interface{}, headers map[string]string) (amqp.Publishing, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return amqp.Publishing{}, errors.Wrap(err, "encode message")
	}
	table := make(amqp.Table, len(headers))
	for key, value := range headers {
		table[key] = value
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		AppId:        appID,
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         body,
	}, nil
}

func (p *amqpPublisher) Status() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return "amqp (closed)"
	}
	return "amqp"
}

func (p *amqpPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		jww.WARN.Printf("rabbitmq channel close: %v", err)
	}
	return p.conn.Close()
}

// noopPublisher stands in when no broker is configured or reachable. Messages are
// encoded, so bad payloads still fail, then logged and dropped.
type noopPublisher struct {
	reason string
}

func newNoop(reason string) noopPublisher {
	jww.WARN.Printf("rabbitmq disabled, using noop: %s", reason)
	return noopPublisher{reason: reason}
}

func (n noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return n.PublishJSON(ctx, routingKey, event, nil)
}

func (noopPublisher) PublishJSON(_ context.Context, routingKey string, message interface{}, headers map[string]string) error {
	msg, err := newPublishing(message, headers)
	if err != nil {
		return err
	}
	jww.DEBUG.Printf("rabbitmq noop publish routing_key=%s bytes=%d request_id=%s", routingKey, len(msg.Body), headers["x-request-id"])
	return nil
}

func (n noopPublisher) Status() string {
	return "noop: " + n.reason
}

func (noopPublisher) Close() error {
	return nil
}
