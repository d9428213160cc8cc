package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jdelaney/spendlog/internal/llm"
)

func TestRuleClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		intent Intent
		fired  bool
	}{
		{"hello", IntentGeneral, true},
		{"Thanks", IntentGeneral, true},
		{"what can you do?", IntentGeneral, true},
		{"help", IntentGeneral, true},
		{"add $12.50 lunch", IntentAdd, true},
		{"I bought coffee for 4.50", IntentAdd, true},
		{"log $30 gas", IntentAdd, true},
		{"new expense: 15 dollars parking", IntentAdd, true},
		{"delete the coffee expense", IntentDelete, true},
		{"remove yesterday's lunch", IntentDelete, true},
		{"what's my total?", IntentQuery, true},
		{"Spending on gas?", IntentQuery, true},
		{"show me a breakdown", IntentQuery, true},
		{"how much did I spend on groceries", IntentQuery, true},
		{"largest expense", IntentQuery, true},
		// Add verbs with question marks read as queries, not mutations.
		{"how much did I add this month?", IntentQuery, true},
		// Nothing fires: escalation territory.
		{"the weather is nice", IntentGeneral, false},
		{"groceries", IntentGeneral, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			intent, fired := ruleClassify(normalizeInput(tt.input))
			require.Equal(t, tt.fired, fired)
			if fired {
				require.Equal(t, tt.intent, intent)
			}
		})
	}
}

func TestHasTokenWholeWordsOnly(t *testing.T) {
	t.Parallel()

	in := normalizeInput("browsing the catalog")
	require.False(t, in.hasToken("log"))
	require.True(t, in.hasToken("catalog"))
}

func TestHasPhrase(t *testing.T) {
	t.Parallel()

	in := normalizeInput("how much did I spend last month?")
	require.True(t, in.hasPhrase("last month"))
	require.False(t, in.hasPhrase("month last"))
	require.False(t, in.hasPhrase("this month"))
}

func TestClassifyEscalatesToModel(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{intent: llm.IntentResponse{Intent: "delete", Confidence: 0.9}}
	e := testEngine(t, &fakeLedger{}, WithProvider(p))

	th := &thinker{}
	intent := e.classify(context.Background(), normalizeInput("get rid of that last one"), th)
	require.Equal(t, IntentDelete, intent)
}

func TestClassifyModelFailureDefaultsGeneral(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{intentErr: errors.New("connection refused")}
	e := testEngine(t, &fakeLedger{}, WithProvider(p))

	intent := e.classify(context.Background(), normalizeInput("hmm interesting"), &thinker{})
	require.Equal(t, IntentGeneral, intent)
}

func TestClassifyModelGarbageDefaultsGeneral(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{intent: llm.IntentResponse{Intent: "purchase"}}
	e := testEngine(t, &fakeLedger{}, WithProvider(p))

	intent := e.classify(context.Background(), normalizeInput("hmm interesting"), &thinker{})
	require.Equal(t, IntentGeneral, intent)
}

func TestClassifyNoModelDefaultsGeneral(t *testing.T) {
	t.Parallel()

	e := testEngine(t, &fakeLedger{})
	intent := e.classify(context.Background(), normalizeInput("the weather is nice"), &thinker{})
	require.Equal(t, IntentGeneral, intent)
}
