package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jdelaney/spendlog/internal/ledger"
	"github.com/jdelaney/spendlog/internal/llm"
	"github.com/jdelaney/spendlog/internal/session"
)

// QueryResult is the engine's sole output shape. At most one of
// ExpensesAdded/ExpensesDeleted is nonzero; both are zero for query and
// general intents.
type QueryResult struct {
	Response        string
	Intent          Intent
	ThinkingSteps   []string
	ExpensesAdded   int
	ExpensesDeleted int
}

// Engine answers free-text commands and questions against a ledger.
// Process is synchronous and not safe for concurrent use against the same
// ledger; callers serialize invocations per ledger instance.
type Engine struct {
	ledger       ledger.Ledger
	provider     llm.Provider
	recorder     *session.Recorder
	log          zerolog.Logger
	currency     string
	modelTimeout time.Duration
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithProvider sets the model provider for escalation and analysis.
// Without one the engine stays fully deterministic.
func WithProvider(p llm.Provider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithRecorder sets the session recorder. Without one exchanges are not
// persisted.
func WithRecorder(r *session.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithCurrencySymbol sets the symbol used in responses.
func WithCurrencySymbol(sym string) Option {
	return func(e *Engine) { e.currency = sym }
}

// WithModelTimeout bounds the blocking model call on the cross-period path.
func WithModelTimeout(d time.Duration) Option {
	return func(e *Engine) { e.modelTimeout = d }
}

// WithClock overrides the time source. Tests pin "today" with this.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine over l.
func New(l ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger:       l,
		log:          zerolog.Nop(),
		currency:     "$",
		modelTimeout: 20 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// thinker collects thinking steps and forwards each to the optional callback.
type thinker struct {
	steps []string
	cb    func(string)
}

func (t *thinker) step(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	t.steps = append(t.steps, s)
	if t.cb != nil {
		t.cb(s)
	}
}

// Process handles one exchange. It never returns an error and never panics
// past the boundary: every failure resolves to a well-formed QueryResult.
func (e *Engine) Process(ctx context.Context, input string, think func(string)) (res QueryResult) {
	th := &thinker{cb: think}
	start := e.now()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("input", input).Msg("recovered in Process")
			res = QueryResult{
				Response: "Something went wrong handling that. Your ledger is untouched.",
				Intent:   IntentGeneral,
			}
		}
		res.ThinkingSteps = th.steps
		e.record(input, res, start)
	}()

	in := normalizeInput(input)
	if len(in.tokens) == 0 {
		res = QueryResult{
			Response: "Tell me about an expense or ask me a question — try \"add $12.50 lunch\" or \"what's my total?\".",
			Intent:   IntentGeneral,
		}
		return res
	}

	intent := e.classify(ctx, in, th)
	switch intent {
	case IntentAdd:
		res = e.handleAdd(ctx, in, th)
	case IntentDelete:
		res = e.handleDelete(ctx, in, th)
	case IntentQuery:
		res = e.handleQuery(ctx, in, th)
	default:
		res = e.handleGeneral(in)
	}
	return res
}

// handleQuery reads the current period's snapshot, tries the fast path and
// escalates to the cross-period router when the grammar declines.
func (e *Engine) handleQuery(ctx context.Context, in normalizedInput, th *thinker) QueryResult {
	recs, err := e.ledger.Records(ctx, ledger.PeriodOf(e.now()))
	if err != nil {
		e.log.Error().Err(err).Msg("ledger read failed")
		return QueryResult{
			Response: "Something went wrong reading your ledger, so I can't answer that right now.",
			Intent:   IntentQuery,
		}
	}
	th.step("ledger snapshot: %d record(s)", len(recs))

	if answer, ok := e.tryAnswer(in, recs, th); ok {
		return QueryResult{Response: answer, Intent: IntentQuery}
	}
	th.step("fast path declined, routing to analysis")
	return e.handleCrossPeriod(ctx, in, th)
}

// handleGeneral answers greetings and capability questions. No ledger call
// happens on this path.
func (e *Engine) handleGeneral(in normalizedInput) QueryResult {
	var response string
	switch {
	case isGreeting(in):
		response = "Hi! I track your expenses. Add one (\"add $8 coffee\"), delete one, or ask me things like \"what's my largest expense?\"."
	case isGeneralQuestion(in):
		response = "I keep a ledger of your expenses. You can add entries (\"add $50 groceries, $30 gas\"), " +
			"delete them (\"delete the coffee expense\"), and ask questions — totals, averages, breakdowns, " +
			"or comparisons like \"this month vs last month\"."
	default:
		response = "I'm not sure what you meant. Try \"add $12.50 lunch\", \"delete the gas expense\", or \"what's my total this month?\"."
	}
	return QueryResult{Response: response, Intent: IntentGeneral}
}

func (e *Engine) record(input string, res QueryResult, ts time.Time) {
	if e.recorder == nil {
		return
	}
	err := e.recorder.Record(session.Exchange{
		Timestamp:       ts,
		UserInput:       input,
		AIResponse:      res.Response,
		Intent:          string(res.Intent),
		ThinkingSteps:   res.ThinkingSteps,
		ExpensesAdded:   res.ExpensesAdded,
		ExpensesDeleted: res.ExpensesDeleted,
	})
	if err != nil {
		e.log.Error().Err(err).Msg("session record failed")
	}
}

func (e *Engine) money(cents int64) string {
	return fmt.Sprintf("%s%d.%02d", e.currency, cents/100, cents%100)
}
