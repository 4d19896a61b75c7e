package handler

import (
    "encoding/json"
    "fmt"
    "math"
    "strconv"
    "strings"
)

// score is a float64 that also accepts numeric strings, so "80" and 80 bind
// to the same value.  Range is not checked.  A JSON null never reaches
// UnmarshalJSON; it leaves the *score field nil and counts as missing.
type score float64

func (s *score) UnmarshalJSON(b []byte) error {
    raw := strings.TrimSpace(string(b))
    if strings.HasPrefix(raw, `"`) {
        var str string
        if err := json.Unmarshal(b, &str); err != nil {
            return err
        }
        raw = strings.TrimSpace(str)
    }
    f, err := strconv.ParseFloat(raw, 64)
    if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
        return fmt.Errorf("not a number: %s", raw)
    }
    *s = score(f)
    return nil
}

// userID is a string that also accepts a JSON number, kept in its literal
// form, so 42 binds as "42".  Whitespace is significant.
type userID string

func (u *userID) UnmarshalJSON(b []byte) error {
    var str string
    if err := json.Unmarshal(b, &str); err == nil {
        *u = userID(str)
        return nil
    }
    var num json.Number
    if err := json.Unmarshal(b, &num); err != nil {
        return fmt.Errorf("user_id must be a string or number: %s", b)
    }
    *u = userID(num.String())
    return nil
}

// submitScoresReq is the POST /submit_scores/ body.  Pointers distinguish a
// missing field from an explicit zero.
type submitScoresReq struct {
    UserID       *userID `json:"user_id"`
    Circulation  *score  `json:"circulation"`
    Oxygen       *score  `json:"oxygen"`
    SwellingRisk *score  `json:"swelling_risk"`
    Fatigue      *score  `json:"fatigue"`
}

// missing lists the required fields absent from the body, in body order.  An
// empty user_id counts as absent since no request path can name it.
func (r *submitScoresReq) missing() []string {
    var out []string
    if r.UserID == nil || *r.UserID == "" {
        out = append(out, "user_id")
    }
    if r.Circulation == nil {
        out = append(out, "circulation")
    }
    if r.Oxygen == nil {
        out = append(out, "oxygen")
    }
    if r.SwellingRisk == nil {
        out = append(out, "swelling_risk")
    }
    if r.Fatigue == nil {
        out = append(out, "fatigue")
    }
    return out
}
