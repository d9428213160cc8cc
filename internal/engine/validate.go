package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Validated is the typed payload of a successful validation. Exactly one
// concrete type exists per validation target so callers can switch
// exhaustively.
type Validated interface {
	validated()
}

// Amount is a validated positive amount in cents.
type Amount struct {
	Cents int64
}

// Description is validated non-empty short text.
type Description struct {
	Text string
}

// Date is a validated calendar day.
type Date struct {
	Day time.Time
}

func (Amount) validated()      {}
func (Description) validated() {}
func (Date) validated()        {}

// ValidationResult reports one validation outcome. Err is a user-facing
// message, present exactly when OK is false.
type ValidationResult struct {
	OK    bool
	Err   string
	Value Validated
}

func valid(v Validated) ValidationResult {
	return ValidationResult{OK: true, Value: v}
}

func invalid(format string, args ...interface{}) ValidationResult {
	return ValidationResult{Err: fmt.Sprintf(format, args...)}
}

const maxDescriptionLen = 200

// ValidateAmount parses a currency-like token into cents. Rejects
// non-numeric and non-positive values.
func ValidateAmount(raw string) ValidationResult {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return invalid("no amount found")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return invalid("%q is not a valid amount", raw)
	}
	if f <= 0 {
		return invalid("amount must be greater than zero, got %s", raw)
	}
	cents := int64(math.Round(f * 100))
	if cents == 0 {
		// "0.004" is positive but rounds below one cent.
		return invalid("amount must be at least one cent, got %s", raw)
	}
	return valid(Amount{Cents: cents})
}

// ValidateDescription trims and checks the free-text description.
func ValidateDescription(raw string) ValidationResult {
	s := strings.TrimSpace(raw)
	if s == "" {
		return invalid("description is empty; tell me what the expense was for")
	}
	if len(s) > maxDescriptionLen {
		s = s[:maxDescriptionLen]
	}
	return valid(Description{Text: s})
}

// ValidateDate resolves a date token against now. An empty token defaults to
// today; an unparseable token is rejected rather than silently defaulted.
func ValidateDate(token string, now time.Time) ValidationResult {
	if strings.TrimSpace(token) == "" {
		return valid(Date{Day: dayOf(now)})
	}
	day, err := ResolveDate(token, now)
	if err != nil {
		return invalid("%v", err)
	}
	return valid(Date{Day: day})
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
