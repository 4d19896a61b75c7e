package model

import "time"

// ScoreRecord is one submitted set of wellness scores for a user.
// Records are append-only: the store assigns ID and Timestamp on insert
// and nothing ever updates or deletes a row.  This struct corresponds to
// a row in the `health_scores` table.
//
// Fields:
//  ID           – auto-increment primary key, never reused.
//  UserID       – opaque caller-supplied identifier, not unique.
//  Circulation  – percent, range is not enforced.
//  Oxygen       – percent, range is not enforced.
//  SwellingRisk – percent, range is not enforced.
//  Fatigue      – percent, range is not enforced.
//  Timestamp    – insert time assigned by the database.
type ScoreRecord struct {
    ID           int64     `json:"id"`            // health_scores.id
    UserID       string    `json:"user_id"`       // health_scores.user_id
    Circulation  float64   `json:"circulation"`   // health_scores.circulation
    Oxygen       float64   `json:"oxygen"`        // health_scores.oxygen
    SwellingRisk float64   `json:"swelling_risk"` // health_scores.swelling_risk
    Fatigue      float64   `json:"fatigue"`       // health_scores.fatigue
    Timestamp    time.Time `json:"timestamp"`     // health_scores.timestamp
}
