package ledger

import (
	"context"
	"fmt"
	"time"
)

// Expense is one validated ledger record. Records are immutable once stored;
// the only mutations the ledger supports are Add and Delete.
type Expense struct {
	ID          string
	Date        time.Time
	AmountCents int64
	Description string
	CreatedAt   time.Time
}

// Period identifies one calendar month of the ledger.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Start returns the first instant of the period in loc.
func (p Period) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
}

// End returns the first instant of the following period in loc.
func (p Period) End(loc *time.Location) time.Time {
	return p.Start(loc).AddDate(0, 1, 0)
}

// Prev returns the preceding period.
func (p Period) Prev() Period {
	t := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return Period{Year: t.Year(), Month: t.Month()}
}

// String renders the period as "2026-08".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Label renders the period as "August 2026".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", p.Month.String(), p.Year)
}

// Selector describes which records a delete should match. Empty fields are
// wildcards; callers must set at least one.
type Selector struct {
	Description string     // case-insensitive substring of the description
	Date        *time.Time // match records on this calendar day
}

// IsZero reports whether the selector matches nothing in particular.
func (s Selector) IsZero() bool {
	return s.Description == "" && s.Date == nil
}

// Ledger is the storage contract the engine reads from and mutates through.
// Add and Delete are the only mutation entry points.
type Ledger interface {
	Records(ctx context.Context, p Period) ([]Expense, error)
	Total(ctx context.Context, p Period) (int64, error)
	Add(ctx context.Context, e Expense) error
	Delete(ctx context.Context, p Period, sel Selector) (int, error)
}

// DescriptionTotal is one line of a per-period breakdown.
type DescriptionTotal struct {
	Description string
	TotalCents  int64
}

// Summary is a compact per-period view used for cross-period analysis.
// It carries aggregates only, never raw records.
type Summary struct {
	Period     Period
	TotalCents int64
	Count      int
	Top        []DescriptionTotal
}

// Summarizer is implemented by stores that can aggregate periods cheaply.
type Summarizer interface {
	Summaries(ctx context.Context, periods []Period) ([]Summary, error)
}
