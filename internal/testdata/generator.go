package testdata

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/jdelaney/spendlog/internal/ledger"
)

var sampleDescriptions = []string{
	"groceries", "gas", "coffee", "lunch", "rent",
	"internet", "gym", "takeaway", "movies", "pharmacy",
}

// Seed fills the ledger with demo expenses spread over the current and the
// previous month, so both the fast path and the cross-period path have data
// to chew on.
func Seed(ctx context.Context, l ledger.Ledger, now time.Time) error {
	rng := rand.New(rand.NewSource(now.UnixNano()))

	for monthsBack := 0; monthsBack < 2; monthsBack++ {
		base := now.AddDate(0, -monthsBack, 0)
		for i := 0; i < 15; i++ {
			day := rng.Intn(base.Day()) + 1
			e := ledger.Expense{
				ID:          uuid.NewString(),
				Date:        time.Date(base.Year(), base.Month(), day, 0, 0, 0, 0, base.Location()),
				AmountCents: int64(rng.Intn(12000) + 300),
				Description: sampleDescriptions[rng.Intn(len(sampleDescriptions))],
			}
			if err := l.Add(ctx, e); err != nil {
				return err
			}
		}
	}
	return nil
}
