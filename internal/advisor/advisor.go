// Package advisor turns a score record into a recovery recommendation by
// asking an external chat-completion service.
package advisor

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/vaskular/vaskular-backend/internal/model"
)

// SystemPrompt frames every completion request.
const SystemPrompt = "You are a fitness recovery expert."

// ErrExternalService is returned when the completion service is unreachable,
// times out, rejects the request or sends back nothing usable.  Handlers map
// it to 502 without exposing the provider's error text.
var ErrExternalService = errors.New("external completion service error")

// Advisor produces a recovery plan for a single record.
type Advisor interface {
	Advise(ctx context.Context, rec *model.ScoreRecord) (string, error)
}

// RenderPrompt builds the user message for rec.  Values are written with the
// shortest representation that round-trips, so 80 renders as "80" and 95.5
// as "95.5".
func RenderPrompt(rec *model.ScoreRecord) string {
	var b strings.Builder
	b.WriteString("Based on these health scores: ")
	b.WriteString("Circulation: " + formatPercent(rec.Circulation) + ", ")
	b.WriteString("Oxygen: " + formatPercent(rec.Oxygen) + ", ")
	b.WriteString("Swelling Risk: " + formatPercent(rec.SwellingRisk) + ", ")
	b.WriteString("Fatigue: " + formatPercent(rec.Fatigue) + ", ")
	b.WriteString("what should this athlete do for optimal recovery?")
	return b.String()
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
