package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Store is the sqlite-backed ledger.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

// NewStore wraps db as a Ledger. loc determines period boundaries.
func NewStore(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{db: db, loc: loc}
}

var ErrEmptySelector = errors.New("ledger: delete selector matches everything")

func (s *Store) Records(ctx context.Context, p Period) ([]Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, date, amount, description, created_at
	FROM expenses
	WHERE date >= ? AND date < ?
	ORDER BY date ASC, created_at ASC`,
		p.Start(s.loc), p.End(s.loc))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Date, &e.AmountCents, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Total(ctx context.Context, p Period) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(amount) FROM expenses WHERE date >= ? AND date < ?`,
		p.Start(s.loc), p.End(s.loc)).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

func (s *Store) Add(ctx context.Context, e Expense) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO expenses(id, date, amount, description, created_at)
	VALUES(?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		e.ID, e.Date, e.AmountCents, e.Description)
	return err
}

// Delete removes records in period p matching sel and returns how many went.
// Zero means no match; more than one means the selector was ambiguous. Both
// outcomes are the caller's to report.
func (s *Store) Delete(ctx context.Context, p Period, sel Selector) (int, error) {
	if sel.IsZero() {
		return 0, ErrEmptySelector
	}

	where := []string{"date >= ?", "date < ?"}
	args := []interface{}{p.Start(s.loc), p.End(s.loc)}

	if sel.Description != "" {
		where = append(where, "description LIKE ?")
		args = append(args, "%"+sel.Description+"%")
	}
	if sel.Date != nil {
		day := time.Date(sel.Date.Year(), sel.Date.Month(), sel.Date.Day(), 0, 0, 0, 0, s.loc)
		where = append(where, "date >= ? AND date < ?")
		args = append(args, day, day.AddDate(0, 0, 1))
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM expenses WHERE "+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Summaries aggregates each requested period in one pass per period.
func (s *Store) Summaries(ctx context.Context, periods []Period) ([]Summary, error) {
	out := make([]Summary, 0, len(periods))
	for _, p := range periods {
		sum, err := s.summarize(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

const topDescriptions = 5

func (s *Store) summarize(ctx context.Context, p Period) (Summary, error) {
	sum := Summary{Period: p}

	var total sql.NullInt64
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(amount) FROM expenses WHERE date >= ? AND date < ?`,
		p.Start(s.loc), p.End(s.loc))
	if err := row.Scan(&sum.Count, &total); err != nil {
		return Summary{}, err
	}
	sum.TotalCents = total.Int64

	rows, err := s.db.QueryContext(ctx, `
	SELECT description, SUM(amount) AS total
	FROM expenses
	WHERE date >= ? AND date < ?
	GROUP BY lower(description)
	ORDER BY total DESC, description ASC
	LIMIT ?`,
		p.Start(s.loc), p.End(s.loc), topDescriptions)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var dt DescriptionTotal
		if err := rows.Scan(&dt.Description, &dt.TotalCents); err != nil {
			return Summary{}, err
		}
		sum.Top = append(sum.Top, dt)
	}
	return sum, rows.Err()
}
