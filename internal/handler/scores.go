package handler

import (
    "context"  // context bounds database and side-effect calls
    "errors"   // errors matches sentinel values from lower layers
    "log"      // log reports best-effort failures
    "net/http" // net/http provides status codes
    "strings"  // strings formats validation details
    "time"     // time sets per-call timeouts

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/vaskular/vaskular-backend/internal/advisor"
    "github.com/vaskular/vaskular-backend/internal/metrics"
    "github.com/vaskular/vaskular-backend/internal/model"
    "github.com/vaskular/vaskular-backend/internal/queue"
    "github.com/vaskular/vaskular-backend/internal/repository"
)

// Response messages.
const (
    MsgScoresRecorded = "Health scores recorded successfully!"
    MsgNoDataForUser  = "No health data found for this user"
    MsgNoData         = "No health data found"
    MsgStorageError   = "Internal server error"
    MsgAdvisorError   = "Recovery advisor unavailable"
)

// dbTimeout bounds every store call made by a handler.
const dbTimeout = 5 * time.Second

// ScoreStore is the persistence the score handlers need.
// *repository.ScoreRepo implements it.
type ScoreStore interface {
    Append(ctx context.Context, userID string, circulation, oxygen, swellingRisk, fatigue float64) (int64, error)
    Latest(ctx context.Context, userID string) (*model.ScoreRecord, error)
    Recent(ctx context.Context, userID string, limit int) ([]*model.ScoreRecord, error)
}

// EventPublisher receives an event for every recorded submission.
type EventPublisher interface {
    PublishScoresRecorded(ctx context.Context, event queue.ScoresRecordedEvent) error
}

// CacheInvalidator drops cached responses for request paths.
type CacheInvalidator interface {
    Invalidate(ctx context.Context, paths ...string) error
}

// ScoreHandler serves the submit, recovery plan and history endpoints.
// Events and Cache are optional; when set they are notified after each
// successful submit and their failures are only logged.
type ScoreHandler struct {
    Scores  ScoreStore
    Advisor advisor.Advisor
    Events  EventPublisher
    Cache   CacheInvalidator
}

// NewScoreHandler constructs a ScoreHandler and panics if a required
// dependency is nil.
func NewScoreHandler(scores ScoreStore, adv advisor.Advisor) *ScoreHandler {
    if scores == nil || adv == nil {
        panic("nil dependency passed to NewScoreHandler")
    }
    return &ScoreHandler{Scores: scores, Advisor: adv}
}

func detail(c echo.Context, status int, msg string) error {
    return c.JSON(status, echo.Map{"detail": msg})
}

// HistoryPath returns the request path serving userID's history.  It names
// the cached responses to drop after a submit.
func HistoryPath(userID string) string { return "/get_history/" + userID }

// SubmitScores handles POST /submit_scores/ and appends one record.
func (h *ScoreHandler) SubmitScores(c echo.Context) error {
    var req submitScoresReq
    if err := c.Bind(&req); err != nil {
        return detail(c, http.StatusUnprocessableEntity, "invalid request body")
    }
    if missing := req.missing(); len(missing) > 0 {
        return detail(c, http.StatusUnprocessableEntity, "missing or empty fields: "+strings.Join(missing, ", "))
    }
    userID := string(*req.UserID)
    circulation, oxygen := float64(*req.Circulation), float64(*req.Oxygen)
    swellingRisk, fatigue := float64(*req.SwellingRisk), float64(*req.Fatigue)

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    id, err := h.Scores.Append(ctx, userID, circulation, oxygen, swellingRisk, fatigue)
    if err != nil {
        c.Logger().Errorf("submit scores for %q: %v", userID, err)
        return detail(c, http.StatusInternalServerError, MsgStorageError)
    }
    metrics.IncScoresRecorded()

    h.afterSubmit(c.Request().Context(), queue.ScoresRecordedEvent{
        EventID:      uuid.NewString(),
        ScoreID:      id,
        UserID:       userID,
        Circulation:  circulation,
        Oxygen:       oxygen,
        SwellingRisk: swellingRisk,
        Fatigue:      fatigue,
        RecordedAt:   time.Now().UTC(),
    })
    return c.JSON(http.StatusOK, echo.Map{"message": MsgScoresRecorded})
}

// afterSubmit runs the optional side effects of a recorded submission.  They
// get their own deadline so a cancelled client does not skip invalidation.
func (h *ScoreHandler) afterSubmit(parent context.Context, ev queue.ScoresRecordedEvent) {
    ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 3*time.Second)
    defer cancel()
    if h.Cache != nil {
        if err := h.Cache.Invalidate(ctx, HistoryPath(ev.UserID)); err != nil {
            log.Printf("submit: cache invalidation for %q failed: %v", ev.UserID, err)
        }
    }
    if h.Events != nil {
        if err := h.Events.PublishScoresRecorded(ctx, ev); err != nil {
            log.Printf("submit: publish event %s failed: %v", ev.EventID, err)
        }
    }
}

// GetRecoveryPlan handles GET /get_recovery_plan/:user_id.  The newest record
// is sent to the advisor and its text returned verbatim.
func (h *ScoreHandler) GetRecoveryPlan(c echo.Context) error {
    userID := c.Param("user_id")

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    rec, err := h.Scores.Latest(ctx, userID)
    cancel()
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            metrics.IncRecoveryPlan(metrics.OutcomeNotFound)
            return detail(c, http.StatusNotFound, MsgNoDataForUser)
        }
        metrics.IncRecoveryPlan(metrics.OutcomeStorage)
        c.Logger().Errorf("latest scores for %q: %v", userID, err)
        return detail(c, http.StatusInternalServerError, MsgStorageError)
    }

    plan, err := h.Advisor.Advise(c.Request().Context(), rec)
    if err != nil {
        metrics.IncRecoveryPlan(metrics.OutcomeAdvisor)
        c.Logger().Errorf("advise %q: %v", userID, err)
        return detail(c, http.StatusBadGateway, MsgAdvisorError)
    }
    metrics.IncRecoveryPlan(metrics.OutcomeOK)
    return c.JSON(http.StatusOK, echo.Map{"recovery_plan": plan})
}

// GetHistory handles GET /get_history/:user_id and returns up to ten
// records, newest first.
func (h *ScoreHandler) GetHistory(c echo.Context) error {
    userID := c.Param("user_id")

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    history, err := h.Scores.Recent(ctx, userID, repository.DefaultHistoryLimit)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return detail(c, http.StatusNotFound, MsgNoData)
        }
        c.Logger().Errorf("history for %q: %v", userID, err)
        return detail(c, http.StatusInternalServerError, MsgStorageError)
    }
    return c.JSON(http.StatusOK, echo.Map{"history": history})
}
