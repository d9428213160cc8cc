package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jdelaney/spendlog/internal/ledger"
)

// Extraction turns ADD/DELETE directives into validated ledger mutations.
// A batch is comma/"and"-separated; each item parses independently so one
// malformed item never sinks its siblings.

var amountPattern = regexp.MustCompile(`(?:\$\s*)?\d+(?:,\d{3})*(?:\.\d{1,2})?`)
var dollarAmountPattern = regexp.MustCompile(`\$\s*\d+(?:,\d{3})*(?:\.\d{1,2})?`)
var digitPattern = regexp.MustCompile(`\d`)

// splitDirectives breaks a batch utterance into independent directives.
// Commas split unless they group digits inside one number ("$1,200" is one
// amount, not two directives); " and " splits only when both sides carry
// their own numeric token, so "fish and chips $12" stays whole.
func splitDirectives(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != ',' || groupingComma(text, i) {
			continue
		}
		out = append(out, splitOnAnd(strings.TrimSpace(text[start:i]))...)
		start = i + 1
	}
	out = append(out, splitOnAnd(strings.TrimSpace(text[start:]))...)

	filtered := out[:0]
	for _, s := range out {
		if s != "" {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// groupingComma reports whether the comma at i is a thousands separator:
// a digit on the left and exactly three digits on the right.
func groupingComma(text string, i int) bool {
	if i == 0 || !isDigit(text[i-1]) {
		return false
	}
	j := i + 1
	for j < len(text) && isDigit(text[j]) {
		j++
	}
	return j-i-1 == 3
}

func splitOnAnd(part string) []string {
	lower := strings.ToLower(part)
	idx := strings.Index(lower, " and ")
	if idx < 0 {
		return []string{part}
	}
	left, right := part[:idx], part[idx+len(" and "):]
	if digitPattern.MatchString(left) && digitPattern.MatchString(right) {
		return append([]string{strings.TrimSpace(left)}, splitOnAnd(strings.TrimSpace(right))...)
	}
	return []string{part}
}

// findAmount locates the most likely currency token: a $-prefixed number if
// one exists, otherwise the first bare number. Date tokens must be removed
// before calling.
func findAmount(text string) (token string, rest string, ok bool) {
	loc := dollarAmountPattern.FindStringIndex(text)
	if loc == nil {
		loc = amountPattern.FindStringIndex(text)
	}
	if loc == nil {
		return "", text, false
	}
	token = text[loc[0]:loc[1]]
	rest = strings.TrimSpace(text[:loc[0]] + " " + text[loc[1]:])
	return token, rest, true
}

var leadingStopwords = map[string]struct{}{
	"add": {}, "create": {}, "new": {}, "enter": {}, "record": {}, "log": {}, "save": {},
	"expense": {}, "an": {}, "a": {}, "i": {}, "please": {}, "bought": {}, "paid": {},
	"purchased": {}, "spent": {},
}

var trailingStopwords = map[string]struct{}{
	"on": {}, "for": {}, "at": {}, "the": {}, "from": {}, "of": {},
}

// cleanDescription trims command verbs off the front and dangling
// prepositions off the back, keeping the middle untouched.
func cleanDescription(s string) string {
	fields := strings.Fields(s)
	for len(fields) > 0 {
		if _, ok := leadingStopwords[strings.ToLower(fields[0])]; !ok {
			break
		}
		fields = fields[1:]
	}
	for len(fields) > 0 {
		last := strings.ToLower(fields[len(fields)-1])
		_, lead := leadingStopwords[last]
		_, trail := trailingStopwords[last]
		if !lead && !trail {
			break
		}
		fields = fields[:len(fields)-1]
	}
	// Drop leading prepositions left behind by amount/date removal ("for lunch").
	for len(fields) > 0 {
		if _, ok := trailingStopwords[strings.ToLower(fields[0])]; !ok {
			break
		}
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

// parseAddDirective extracts one validated expense from one directive.
// The returned message is empty on success and user-facing on rejection.
func parseAddDirective(text string, now time.Time) (ledger.Expense, string) {
	dateTok, rest, hasDate := extractDateToken(text)

	var day time.Time
	if hasDate {
		vr := ValidateDate(dateTok, now)
		if !vr.OK {
			return ledger.Expense{}, vr.Err
		}
		day = vr.Value.(Date).Day
	} else {
		day = dayOf(now)
	}

	amountTok, rest, found := findAmount(rest)
	if !found {
		return ledger.Expense{}, "no amount found; include a number like $12.50"
	}
	va := ValidateAmount(amountTok)
	if !va.OK {
		return ledger.Expense{}, va.Err
	}

	vd := ValidateDescription(cleanDescription(rest))
	if !vd.OK {
		return ledger.Expense{}, vd.Err
	}

	return ledger.Expense{
		ID:          uuid.NewString(),
		Date:        day,
		AmountCents: va.Value.(Amount).Cents,
		Description: vd.Value.(Description).Text,
	}, ""
}

func (e *Engine) handleAdd(ctx context.Context, in normalizedInput, th *thinker) QueryResult {
	segs := splitDirectives(in.raw)
	th.step("extracted %d directive(s)", len(segs))

	var added int
	var oks, fails []string
	for _, seg := range segs {
		exp, msg := parseAddDirective(seg, e.now())
		if msg != "" {
			fails = append(fails, fmt.Sprintf("%q: %s", seg, msg))
			continue
		}
		if err := e.ledger.Add(ctx, exp); err != nil {
			e.log.Error().Err(err).Str("description", exp.Description).Msg("ledger add failed")
			fails = append(fails, fmt.Sprintf("%q: the ledger rejected it, nothing was saved", seg))
			continue
		}
		added++
		oks = append(oks, fmt.Sprintf("%s %s on %s",
			e.money(exp.AmountCents), exp.Description, exp.Date.Format("Jan 2")))
	}
	th.step("added %d of %d item(s)", added, len(segs))

	var b strings.Builder
	switch {
	case added == 0 && len(fails) == 0:
		b.WriteString("I couldn't find an expense in that. Try something like \"add $12.50 lunch\".")
	case added > 0:
		b.WriteString(fmt.Sprintf("Added %d expense%s: %s.", added, plural(added), strings.Join(oks, "; ")))
	}
	if len(fails) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("Skipped: " + strings.Join(fails, "; ") + ".")
	}

	return QueryResult{
		Response:      b.String(),
		Intent:        IntentAdd,
		ExpensesAdded: added,
	}
}

// parseDeleteSelector builds a selector from a delete directive. Match
// resolution itself belongs to the ledger.
func parseDeleteSelector(text string, now time.Time) (ledger.Selector, string) {
	dateTok, rest, hasDate := extractDateToken(text)

	var sel ledger.Selector
	if hasDate {
		vr := ValidateDate(dateTok, now)
		if !vr.OK {
			return ledger.Selector{}, vr.Err
		}
		day := vr.Value.(Date).Day
		sel.Date = &day
	}

	fields := strings.Fields(rest)
	kept := fields[:0]
	for _, f := range fields {
		trimmed := strings.Trim(f, ".!?,'’\"")
		switch strings.ToLower(trimmed) {
		case "delete", "remove", "erase", "clear", "undo", "the", "my", "that",
			"expense", "entry", "record", "from", "for", "on", "please", "s", "":
			continue
		}
		kept = append(kept, trimmed)
	}
	sel.Description = strings.TrimSpace(strings.Join(kept, " "))

	if sel.IsZero() {
		return ledger.Selector{}, "tell me what to delete, e.g. \"delete the coffee expense\" or \"delete yesterday's lunch\""
	}
	return sel, ""
}

func (e *Engine) handleDelete(ctx context.Context, in normalizedInput, th *thinker) QueryResult {
	sel, msg := parseDeleteSelector(in.raw, e.now())
	if msg != "" {
		return QueryResult{Response: msg, Intent: IntentDelete}
	}

	period := ledger.PeriodOf(e.now())
	if sel.Date != nil {
		period = ledger.PeriodOf(*sel.Date)
	}
	th.step("delete selector: %s", describeSelector(sel))

	n, err := e.ledger.Delete(ctx, period, sel)
	if err != nil {
		e.log.Error().Err(err).Msg("ledger delete failed")
		return QueryResult{
			Response: "Something went wrong talking to the ledger; nothing was deleted.",
			Intent:   IntentDelete,
		}
	}
	th.step("ledger deleted %d record(s)", n)

	var response string
	switch {
	case n == 0:
		response = fmt.Sprintf("I couldn't find an expense matching %s.", describeSelector(sel))
	case n == 1:
		response = fmt.Sprintf("Deleted 1 expense matching %s.", describeSelector(sel))
	default:
		response = fmt.Sprintf("Deleted %d expenses matching %s — that description matched more than one entry.", n, describeSelector(sel))
	}

	return QueryResult{
		Response:        response,
		Intent:          IntentDelete,
		ExpensesDeleted: n,
	}
}

func describeSelector(sel ledger.Selector) string {
	var parts []string
	if sel.Description != "" {
		parts = append(parts, fmt.Sprintf("%q", sel.Description))
	}
	if sel.Date != nil {
		parts = append(parts, sel.Date.Format("Jan 2"))
	}
	return strings.Join(parts, " on ")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
