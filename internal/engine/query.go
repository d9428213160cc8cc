package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/jdelaney/spendlog/internal/ledger"
)

// The fast path: a closed grammar of query shapes answered in closed form
// over the current period's snapshot. No model I/O, no blocking beyond the
// snapshot the caller already read. Anything the grammar doesn't recognize
// falls through to the cross-period router.

var crossPeriodTokens = []string{"compare", "vs", "versus", "trend", "trends", "annual", "annualized", "yearly"}

var crossPeriodPhrases = []string{
	"last month", "previous month", "month over month", "past months",
	"each month", "per month", "every month", "this year", "last year",
	"over time", "month on month",
}

func isCrossPeriod(in normalizedInput) bool {
	if in.hasToken(crossPeriodTokens...) {
		return true
	}
	for _, p := range crossPeriodPhrases {
		if in.hasPhrase(p) {
			return true
		}
	}
	return false
}

// queryShape is one recognized grammar shape. Shapes are evaluated top-down;
// the first match wins, so ordering is part of the grammar.
type queryShape struct {
	name   string
	match  func(in normalizedInput) bool
	answer func(e *Engine, in normalizedInput, recs []ledger.Expense) string
}

func queryShapes() []queryShape {
	return []queryShape{
		{
			name:   "ratio",
			match:  func(in normalizedInput) bool { return in.hasToken("ratio") },
			answer: (*Engine).answerRatio,
		},
		{
			name: "percentage",
			match: func(in normalizedInput) bool {
				return in.hasToken("percentage", "percent") && filterToken(in) != ""
			},
			answer: (*Engine).answerPercentage,
		},
		{
			name: "extremum-max",
			match: func(in normalizedInput) bool {
				return in.hasToken("largest", "biggest", "highest") || in.hasPhrase("most expensive")
			},
			answer: (*Engine).answerLargest,
		},
		{
			name: "extremum-min",
			match: func(in normalizedInput) bool {
				return in.hasToken("smallest", "lowest", "cheapest") || in.hasPhrase("least expensive")
			},
			answer: (*Engine).answerSmallest,
		},
		{
			name:   "average",
			match:  func(in normalizedInput) bool { return in.hasToken("average", "avg", "mean") },
			answer: (*Engine).answerAverage,
		},
		{
			name: "count",
			match: func(in normalizedInput) bool {
				return in.hasPhrase("how many") || in.hasPhrase("number of") || in.hasToken("count")
			},
			answer: (*Engine).answerCount,
		},
		{
			name: "breakdown",
			match: func(in normalizedInput) bool {
				return in.hasToken("breakdown", "categories", "top") ||
					in.hasPhrase("by category") || in.hasPhrase("where did my money go")
			},
			answer: (*Engine).answerBreakdown,
		},
		{
			name: "filtered-total",
			match: func(in normalizedInput) bool {
				return filterToken(in) != "" &&
					in.hasToken("spend", "spending", "spent", "cost", "costs", "much", "total")
			},
			answer: (*Engine).answerFilteredTotal,
		},
		{
			name: "total",
			match: func(in normalizedInput) bool {
				return in.hasToken("total", "sum", "altogether", "overall", "spent", "spend") ||
					in.hasPhrase("how much")
			},
			answer: (*Engine).answerTotal,
		},
	}
}

// tryAnswer runs the fast path. ok is false when the query is cross-period
// or matches no shape, which is the signal to escalate.
func (e *Engine) tryAnswer(in normalizedInput, recs []ledger.Expense, th *thinker) (string, bool) {
	if isCrossPeriod(in) {
		th.step("cross-period vocabulary detected")
		return "", false
	}
	for _, s := range queryShapes() {
		if s.match(in) {
			th.step("fast path shape: %s", s.name)
			return s.answer(e, in, recs), true
		}
	}
	return "", false
}

func (e *Engine) monthLabel() string {
	return e.now().Month().String()
}

func (e *Engine) noExpenses() string {
	return fmt.Sprintf("You have no expenses recorded for %s yet.", e.monthLabel())
}

func sumCents(recs []ledger.Expense) int64 {
	var total int64
	for _, r := range recs {
		total += r.AmountCents
	}
	return total
}

// largest returns the maximum expense; ties go to the earliest date, then to
// ledger order. Records arrive date-ascending, so keeping the first strict
// maximum satisfies both tie-breaks.
func largest(recs []ledger.Expense) ledger.Expense {
	best := recs[0]
	for _, r := range recs[1:] {
		if r.AmountCents > best.AmountCents {
			best = r
		}
	}
	return best
}

func smallest(recs []ledger.Expense) ledger.Expense {
	best := recs[0]
	for _, r := range recs[1:] {
		if r.AmountCents < best.AmountCents {
			best = r
		}
	}
	return best
}

func (e *Engine) answerLargest(in normalizedInput, recs []ledger.Expense) string {
	if len(recs) == 0 {
		return e.noExpenses()
	}
	r := largest(recs)
	return fmt.Sprintf("Your largest expense in %s is %s for %s on %s.",
		e.monthLabel(), e.money(r.AmountCents), r.Description, r.Date.Format("Jan 2"))
}

func (e *Engine) answerSmallest(in normalizedInput, recs []ledger.Expense) string {
	if len(recs) == 0 {
		return e.noExpenses()
	}
	r := smallest(recs)
	return fmt.Sprintf("Your smallest expense in %s is %s for %s on %s.",
		e.monthLabel(), e.money(r.AmountCents), r.Description, r.Date.Format("Jan 2"))
}

func (e *Engine) answerTotal(in normalizedInput, recs []ledger.Expense) string {
	if len(recs) == 0 {
		return e.noExpenses()
	}
	return fmt.Sprintf("You've spent %s across %d expense%s in %s.",
		e.money(sumCents(recs)), len(recs), plural(len(recs)), e.monthLabel())
}

func (e *Engine) answerCount(in normalizedInput, recs []ledger.Expense) string {
	return fmt.Sprintf("You have %d expense%s recorded in %s.",
		len(recs), plural(len(recs)), e.monthLabel())
}

func (e *Engine) answerAverage(in normalizedInput, recs []ledger.Expense) string {
	if len(recs) == 0 {
		return e.noExpenses()
	}
	total := sumCents(recs)
	switch {
	case in.hasToken("day", "daily"):
		days := e.now().Day()
		return fmt.Sprintf("You're averaging %s per day so far in %s (%s over %d day%s).",
			e.money(total/int64(days)), e.monthLabel(), e.money(total), days, plural(days))
	case in.hasToken("week", "weekly"):
		weeks := (e.now().Day() + 6) / 7
		return fmt.Sprintf("You're averaging %s per week so far in %s (%s over %d week%s).",
			e.money(total/int64(weeks)), e.monthLabel(), e.money(total), weeks, plural(weeks))
	default:
		return fmt.Sprintf("Your average expense in %s is %s (%s across %d record%s).",
			e.monthLabel(), e.money(total/int64(len(recs))), e.money(total), len(recs), plural(len(recs)))
	}
}

func (e *Engine) answerBreakdown(in normalizedInput, recs []ledger.Expense) string {
	if len(recs) == 0 {
		return e.noExpenses()
	}
	totals := make(map[string]int64)
	for _, r := range recs {
		totals[strings.ToLower(r.Description)] += r.AmountCents
	}
	type line struct {
		desc  string
		cents int64
	}
	lines := make([]line, 0, len(totals))
	for d, c := range totals {
		lines = append(lines, line{desc: d, cents: c})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].cents != lines[j].cents {
			return lines[i].cents > lines[j].cents
		}
		return lines[i].desc < lines[j].desc
	})
	if len(lines) > topDescriptionsShown {
		lines = lines[:topDescriptionsShown]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top spending in %s:", e.monthLabel())
	for i, l := range lines {
		fmt.Fprintf(&b, "\n%d. %s — %s", i+1, l.desc, e.money(l.cents))
	}
	return b.String()
}

const topDescriptionsShown = 5

func (e *Engine) answerFilteredTotal(in normalizedInput, recs []ledger.Expense) string {
	token := filterToken(in)
	matched := matchRecords(recs, token)
	if len(matched) == 0 {
		return fmt.Sprintf("No expenses matching %q in %s — %s total for that.",
			token, e.monthLabel(), e.money(0))
	}
	return fmt.Sprintf("You've spent %s on %s across %d expense%s in %s.",
		e.money(sumCents(matched)), token, len(matched), plural(len(matched)), e.monthLabel())
}

func (e *Engine) answerPercentage(in normalizedInput, recs []ledger.Expense) string {
	if len(recs) == 0 {
		return e.noExpenses()
	}
	token := filterToken(in)
	matched := matchRecords(recs, token)
	total := sumCents(recs)
	part := sumCents(matched)
	if total == 0 {
		return e.noExpenses()
	}
	pct := float64(part) / float64(total) * 100
	return fmt.Sprintf("%s makes up %.1f%% of your %s spending (%s of %s).",
		token, pct, e.monthLabel(), e.money(part), e.money(total))
}

func (e *Engine) answerRatio(in normalizedInput, recs []ledger.Expense) string {
	if len(recs) < 2 {
		return fmt.Sprintf("I need at least two expenses in %s to compute a ratio.", e.monthLabel())
	}
	hi, lo := largest(recs), smallest(recs)
	if lo.AmountCents == 0 {
		return fmt.Sprintf("Your smallest expense (%s) is zero, so the ratio is undefined.", lo.Description)
	}
	ratio := float64(hi.AmountCents) / float64(lo.AmountCents)
	return fmt.Sprintf("Your largest expense (%s, %s) is %.1fx your smallest (%s, %s).",
		hi.Description, e.money(hi.AmountCents), ratio, lo.Description, e.money(lo.AmountCents))
}

// filterTokenStops end the filter phrase: "spend on gas this month" → "gas".
var filterTokenStops = map[string]struct{}{
	"this": {}, "that": {}, "so": {}, "far": {}, "month": {}, "week": {},
	"today": {}, "yesterday": {}, "during": {}, "in": {}, "of": {}, "my": {},
	"spending": {}, "total": {},
}

// filterToken pulls the subject out of "spend on X" / "total for X" phrasings.
func filterToken(in normalizedInput) string {
	for i, t := range in.tokens {
		if t != "on" && t != "for" && t != "about" {
			continue
		}
		var words []string
		for _, next := range in.tokens[i+1:] {
			if _, stop := filterTokenStops[next]; stop {
				break
			}
			words = append(words, next)
			if len(words) == 2 {
				break
			}
		}
		if len(words) > 0 {
			return strings.Join(words, " ")
		}
	}
	return ""
}

// matchRecords finds records whose description contains the token,
// case-insensitively. When nothing matches exactly, a small edit distance on
// individual words catches typos like "grocerys".
func matchRecords(recs []ledger.Expense, token string) []ledger.Expense {
	token = strings.ToLower(strings.TrimRight(token, ".!?,"))
	if token == "" {
		return nil
	}

	var out []ledger.Expense
	for _, r := range recs {
		if strings.Contains(strings.ToLower(r.Description), token) {
			out = append(out, r)
		}
	}
	if len(out) > 0 {
		return out
	}

	if len(token) < 4 {
		return nil
	}
	maxDist := 1
	if len(token) >= 6 {
		maxDist = 2
	}
	for _, r := range recs {
		for _, word := range strings.Fields(strings.ToLower(r.Description)) {
			if levenshtein.ComputeDistance(word, token) <= maxDist {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
