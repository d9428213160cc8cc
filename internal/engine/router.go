package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jdelaney/spendlog/internal/ledger"
	"github.com/jdelaney/spendlog/internal/llm"
)

// The cross-period router: assembles a bounded context of period summaries,
// asks the model, and guards the answer. Every failure mode resolves to a
// deterministic fallback or a stated degraded response — raw model artifacts
// never reach the user.

const (
	comparePeriods = 2
	trendPeriods   = 6
)

// implicatedPeriods picks how far back the query reaches. Plain comparisons
// need two months; trend/yearly vocabulary widens the window.
func implicatedPeriods(in normalizedInput, current ledger.Period) []ledger.Period {
	n := comparePeriods
	if in.hasToken("trend", "trends", "annual", "annualized", "yearly") ||
		in.hasPhrase("this year") || in.hasPhrase("over time") || in.hasPhrase("past months") {
		n = trendPeriods
	}
	periods := make([]ledger.Period, n)
	p := current
	for i := n - 1; i >= 0; i-- {
		periods[i] = p
		p = p.Prev()
	}
	return periods
}

// summaries builds the per-period aggregates, using the store's own
// aggregation when available and falling back to recomputing from records.
func (e *Engine) summaries(ctx context.Context, periods []ledger.Period) ([]ledger.Summary, error) {
	if s, ok := e.ledger.(ledger.Summarizer); ok {
		return s.Summaries(ctx, periods)
	}

	out := make([]ledger.Summary, 0, len(periods))
	for _, p := range periods {
		recs, err := e.ledger.Records(ctx, p)
		if err != nil {
			return nil, err
		}
		sum := ledger.Summary{Period: p, Count: len(recs)}
		totals := make(map[string]int64)
		for _, r := range recs {
			sum.TotalCents += r.AmountCents
			totals[strings.ToLower(r.Description)] += r.AmountCents
		}
		for d, c := range totals {
			sum.Top = append(sum.Top, ledger.DescriptionTotal{Description: d, TotalCents: c})
		}
		out = append(out, sum)
	}
	return out, nil
}

// summaryContext renders summaries as the plain-text data block the model
// sees. Aggregates only — raw records never go into a prompt.
func (e *Engine) summaryContext(sums []ledger.Summary) string {
	var b strings.Builder
	for _, s := range sums {
		fmt.Fprintf(&b, "%s: total %s over %d expenses", s.Period.Label(), e.money(s.TotalCents), s.Count)
		if len(s.Top) > 0 {
			var tops []string
			for i, t := range s.Top {
				if i == 3 {
					break
				}
				tops = append(tops, fmt.Sprintf("%s %s", t.Description, e.money(t.TotalCents)))
			}
			fmt.Fprintf(&b, " (top: %s)", strings.Join(tops, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

var digitRe = regexp.MustCompile(`\d`)

// acceptAnswer decides whether model output can be shown to the user.
// Code-like or instruction-like text is out; so is an answer with no figure
// in it, since every cross-period question here is quantitative and a
// plausible-looking but shapeless answer is worse than the fallback.
func acceptAnswer(answer string) bool {
	if strings.TrimSpace(answer) == "" {
		return false
	}
	if llm.LooksLikeCode(answer) || llm.LooksLikeInstructions(answer) {
		return false
	}
	return digitRe.MatchString(answer)
}

// periodDelta is the deterministic fallback: a straight latest-vs-previous
// comparison computed from the same summaries the model saw.
func (e *Engine) periodDelta(sums []ledger.Summary) string {
	if len(sums) == 0 {
		return "I don't have any ledger data to compare yet."
	}
	cur := sums[len(sums)-1]
	if len(sums) == 1 {
		return fmt.Sprintf("%s: %s over %d expense%s. I don't have an earlier month to compare against.",
			cur.Period.Label(), e.money(cur.TotalCents), cur.Count, plural(cur.Count))
	}
	prev := sums[len(sums)-2]

	diff := cur.TotalCents - prev.TotalCents
	switch {
	case prev.TotalCents == 0 && cur.TotalCents == 0:
		return fmt.Sprintf("No spending recorded in either %s or %s.", prev.Period.Label(), cur.Period.Label())
	case prev.TotalCents == 0:
		return fmt.Sprintf("You spent %s in %s; %s had nothing recorded.",
			e.money(cur.TotalCents), cur.Period.Label(), prev.Period.Label())
	case diff >= 0:
		pct := float64(diff) / float64(prev.TotalCents) * 100
		return fmt.Sprintf("You spent %s in %s vs %s in %s — up %s (%.1f%%).",
			e.money(cur.TotalCents), cur.Period.Label(),
			e.money(prev.TotalCents), prev.Period.Label(),
			e.money(diff), pct)
	default:
		pct := float64(-diff) / float64(prev.TotalCents) * 100
		return fmt.Sprintf("You spent %s in %s vs %s in %s — down %s (%.1f%%).",
			e.money(cur.TotalCents), cur.Period.Label(),
			e.money(prev.TotalCents), prev.Period.Label(),
			e.money(-diff), pct)
	}
}

func (e *Engine) handleCrossPeriod(ctx context.Context, in normalizedInput, th *thinker) QueryResult {
	periods := implicatedPeriods(in, ledger.PeriodOf(e.now()))
	sums, err := e.summaries(ctx, periods)
	if err != nil {
		e.log.Error().Err(err).Msg("period summaries failed")
		return QueryResult{
			Response: "Something went wrong reading your ledger, so I can't answer that right now.",
			Intent:   IntentQuery,
		}
	}
	th.step("context prepared: %d period summaries", len(sums))

	if e.provider == nil {
		th.step("no model configured, using deterministic comparison")
		return QueryResult{Response: e.periodDelta(sums), Intent: IntentQuery}
	}

	th.step("model invoked: %s", e.provider.Name())
	mctx, cancel := context.WithTimeout(ctx, e.modelTimeout)
	defer cancel()
	resp, err := e.provider.Analyze(mctx, llm.AnalyzeRequest{
		Question: in.raw,
		Context:  e.summaryContext(sums),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			th.step("model timed out, degraded response")
			return QueryResult{
				Response: "The analysis model didn't respond in time. Here's the direct comparison instead: " + e.periodDelta(sums),
				Intent:   IntentQuery,
			}
		}
		e.log.Warn().Err(err).Msg("model analysis failed")
		th.step("model call failed, deterministic fallback")
		return QueryResult{
			Response: "I couldn't reach the analysis model, so here's the direct comparison: " + e.periodDelta(sums),
			Intent:   IntentQuery,
		}
	}

	if !acceptAnswer(resp.Answer) {
		e.log.Warn().Str("answer", truncate(resp.Answer, 120)).Msg("model answer rejected")
		th.step("model output rejected, deterministic fallback")
		return QueryResult{Response: e.periodDelta(sums), Intent: IntentQuery}
	}

	th.step("model answer accepted")
	return QueryResult{Response: strings.TrimSpace(resp.Answer), Intent: IntentQuery}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
