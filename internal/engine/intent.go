package engine

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/jdelaney/spendlog/internal/llm"
)

// Intent is the classification of one user input.
type Intent string

const (
	IntentAdd     Intent = "add"
	IntentDelete  Intent = "delete"
	IntentQuery   Intent = "query"
	IntentGeneral Intent = "general"
)

// normalizedInput carries both the raw text (extraction needs the original
// casing and punctuation) and a lowercased, punctuation-stripped token view
// for keyword matching.
type normalizedInput struct {
	raw    string
	lower  string
	tokens []string
	set    map[string]struct{}
}

func normalizeInput(raw string) normalizedInput {
	lower := strings.ToLower(strings.TrimSpace(raw))
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, lower)
	tokens := strings.Fields(stripped)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return normalizedInput{raw: raw, lower: lower, tokens: tokens, set: set}
}

// hasToken matches whole tokens only. "log" must not match inside "catalog".
func (in normalizedInput) hasToken(words ...string) bool {
	for _, w := range words {
		if _, ok := in.set[w]; ok {
			return true
		}
	}
	return false
}

// hasPhrase matches a multi-word keyword against consecutive tokens.
func (in normalizedInput) hasPhrase(phrase string) bool {
	want := strings.Fields(phrase)
	if len(want) == 0 || len(want) > len(in.tokens) {
		return false
	}
	for i := 0; i+len(want) <= len(in.tokens); i++ {
		match := true
		for j, w := range want {
			if in.tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

var greetingSet = map[string]struct{}{
	"hello": {}, "hi": {}, "hey": {}, "yo": {}, "hiya": {},
	"thanks": {}, "thank you": {}, "ty": {}, "cheers": {},
	"ok": {}, "okay": {}, "cool": {}, "nice": {},
	"bye": {}, "goodbye": {}, "good morning": {}, "good evening": {}, "good night": {},
}

var generalPhrases = []string{
	"what can you do", "how do you work", "who are you", "what are you",
	"how does this work", "help me get started",
}

var addKeywords = []string{"add", "create", "enter", "record", "log", "save", "bought", "paid", "purchased"}

var deleteKeywords = []string{"delete", "remove", "erase", "clear", "undo"}

var queryTokens = []string{
	"what", "whats", "how", "when", "which", "where", "why",
	"show", "list", "total", "sum", "average", "avg",
	"largest", "smallest", "biggest", "highest", "lowest", "cheapest",
	"count", "compare", "spend", "spending", "spent", "cost", "breakdown",
	"percentage", "percent", "ratio",
}

func isGreeting(in normalizedInput) bool {
	key := strings.Join(in.tokens, " ")
	_, ok := greetingSet[key]
	return ok
}

func isGeneralQuestion(in normalizedInput) bool {
	if in.hasToken("help") {
		return true
	}
	for _, p := range generalPhrases {
		if in.hasPhrase(p) {
			return true
		}
	}
	return false
}

func hasQueryIndicator(in normalizedInput) bool {
	if strings.Contains(in.raw, "?") {
		return true
	}
	return in.hasToken(queryTokens...)
}

// ruleClassify runs the deterministic keyword rules in priority order.
// The bool result is false only when no rule fired, which is the signal to
// escalate to the model.
func ruleClassify(in normalizedInput) (Intent, bool) {
	switch {
	case len(in.tokens) == 0:
		return IntentGeneral, true
	case isGreeting(in):
		return IntentGeneral, true
	case isGeneralQuestion(in):
		return IntentGeneral, true
	case (in.hasToken(addKeywords...) || in.hasPhrase("new expense")) && !hasQueryIndicator(in):
		return IntentAdd, true
	case in.hasToken(deleteKeywords...):
		return IntentDelete, true
	case hasQueryIndicator(in):
		return IntentQuery, true
	}
	return IntentGeneral, false
}

// escalationTimeout bounds the best-effort model classification so an
// unclassifiable input cannot stall the whole exchange.
const escalationTimeout = 5 * time.Second

// classify resolves the intent, asking the model only for the ambiguous tail.
// It never mutates anything and always returns a value: if the model is
// unavailable or unhelpful, the input is treated as GENERAL so nothing in the
// ledger can change on a guess.
func (e *Engine) classify(ctx context.Context, in normalizedInput, th *thinker) Intent {
	if intent, ok := ruleClassify(in); ok {
		th.step("intent detected: %s", intent)
		return intent
	}
	if e.provider == nil {
		th.step("intent ambiguous, no model configured, defaulting to general")
		return IntentGeneral
	}

	th.step("intent ambiguous, asking %s", e.provider.Name())
	ctx, cancel := context.WithTimeout(ctx, escalationTimeout)
	defer cancel()
	resp, err := e.provider.ClassifyIntent(ctx, llm.IntentRequest{Input: in.raw})
	if err != nil {
		e.log.Debug().Err(err).Msg("intent escalation failed")
		th.step("model classification failed, defaulting to general")
		return IntentGeneral
	}
	switch Intent(resp.Intent) {
	case IntentAdd, IntentDelete, IntentQuery, IntentGeneral:
		th.step("model classified intent: %s", resp.Intent)
		return Intent(resp.Intent)
	}
	return IntentGeneral
}
