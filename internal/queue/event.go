// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

import "time"

// ScoresQueueName is the durable queue score events are routed to.
const ScoresQueueName = "scores.recorded"

// ScoresRecordedEvent is published after a score record is appended.  It
// carries the full record so downstream consumers can log, notify or feed
// analytics without querying the primary database.
type ScoresRecordedEvent struct {
    EventID      string    `json:"event_id"`
    ScoreID      int64     `json:"score_id"`
    UserID       string    `json:"user_id"`
    Circulation  float64   `json:"circulation"`
    Oxygen       float64   `json:"oxygen"`
    SwellingRisk float64   `json:"swelling_risk"`
    Fatigue      float64   `json:"fatigue"`
    RecordedAt   time.Time `json:"recorded_at"`
}
