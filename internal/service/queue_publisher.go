// Package service provides functions to publish domain events to RabbitMQ.
// Errors are logged and returned so callers can ignore failures without
// interrupting the main request flow.
package service

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    q "github.com/vaskular/vaskular-backend/internal/queue"
)

// Publisher sends score events to the broker at URL.  A connection is dialed
// per publish; submit traffic is low and this keeps no state between
// requests.
type Publisher struct {
    URL string
}

// dialTimeout bounds connect plus handshake when ctx carries no deadline.
const dialTimeout = 10 * time.Second

// NewPublisher returns a Publisher for the given AMQP URL.
func NewPublisher(url string) *Publisher {
    return &Publisher{URL: url}
}

// PublishScoresRecorded publishes event to the scores.recorded queue as a
// persistent JSON message.  The connection and AMQP handshake finish before
// ctx's deadline or fail.  It never panics; any error is logged and returned.
func (p *Publisher) PublishScoresRecorded(ctx context.Context, event q.ScoresRecordedEvent) error {
    conn, err := p.dial(ctx)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        q.ScoresQueueName, // name
        true,              // durable
        false,             // autoDelete
        false,             // exclusive
        false,             // noWait
        nil,               // args
    ); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    event.EventID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", q.ScoresQueueName, false, false, pub); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}

// dial opens a connection whose TCP connect and handshake share ctx's
// remaining time.  amqp.Dial alone would wait up to 30s on a silent broker.
func (p *Publisher) dial(ctx context.Context) (*amqp.Connection, error) {
    timeout := dialTimeout
    if dl, ok := ctx.Deadline(); ok {
        timeout = time.Until(dl)
    }
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    if timeout <= 0 {
        return nil, context.DeadlineExceeded
    }
    return amqp.DialConfig(p.URL, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(timeout),
    })
}
