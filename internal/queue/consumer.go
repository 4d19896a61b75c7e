package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "strconv"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// ScoresLogFile is the file inside the log directory that receives one line
// per consumed event.
const ScoresLogFile = "scores.log"

// StartScoresConsumer connects to RabbitMQ, declares the scores.recorded
// queue (durable) and consumes it, appending each event to logDir/scores.log.
// Broken connections are redialed with exponential backoff capped at 30s.
// It returns only when ctx is cancelled.
func StartScoresConsumer(ctx context.Context, url, logDir string) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("scores-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, logDir)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("scores-consumer: consume loop ended: %v; reconnecting", err)
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("scores-consumer: set QoS failed: %v", err)
    }
    if _, err := ch.QueueDeclare(ScoresQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(ScoresQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := HandleMessage(d.Body, logDir); err != nil {
                log.Printf("scores-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false) // reject without requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleMessage decodes one event and appends a single line describing it to
// logDir/scores.log, creating the directory if needed.
func HandleMessage(body []byte, logDir string) error {
    var ev ScoresRecordedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.UserID == "" {
        return errors.New("event has no user_id")
    }
    if err := os.MkdirAll(logDir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", logDir, err)
    }
    f, err := os.OpenFile(filepath.Join(logDir, ScoresLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders ev as one newline-terminated log line.
func FormatLine(ev ScoresRecordedEvent) string {
    f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
    return fmt.Sprintf("[%s] Scores recorded | event_id=%s | score_id=%d | user_id=%q | circulation=%s | oxygen=%s | swelling_risk=%s | fatigue=%s\n",
        ev.RecordedAt.UTC().Format(time.RFC3339), ev.EventID, ev.ScoreID, ev.UserID,
        f(ev.Circulation), f(ev.Oxygen), f(ev.SwellingRisk), f(ev.Fatigue))
}
