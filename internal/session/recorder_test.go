package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRecorderWritesFileImmediately(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r, err := NewRecorder(dir, "llama3.2:3b", zerolog.Nop())
	require.NoError(t, err)

	// The session file exists before any exchange happens.
	sess, err := Load(r.Path())
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Equal(t, "llama3.2:3b", sess.Model)
	require.Nil(t, sess.SessionEnd)
	require.Empty(t, sess.Conversations)

	base := filepath.Base(r.Path())
	require.True(t, strings.HasPrefix(base, "session-"), base)
	require.True(t, strings.HasSuffix(base, ".json"), base)
}

func TestRecorderAppendsExchanges(t *testing.T) {
	t.Parallel()

	r, err := NewRecorder(t.TempDir(), "fake", zerolog.Nop())
	require.NoError(t, err)

	first := Exchange{
		Timestamp:     time.Now(),
		UserInput:     "add $8 coffee",
		AIResponse:    "Added 1 expense: $8.00 coffee on Aug 15.",
		Intent:        "add",
		ThinkingSteps: []string{"intent detected: add"},
		ExpensesAdded: 1,
	}
	require.NoError(t, r.Record(first))
	require.NoError(t, r.Record(Exchange{UserInput: "what's my total?", Intent: "query"}))

	sess, err := Load(r.Path())
	require.NoError(t, err)
	require.Len(t, sess.Conversations, 2)
	require.Equal(t, "add $8 coffee", sess.Conversations[0].UserInput)
	require.Equal(t, 1, sess.Conversations[0].ExpensesAdded)
	require.Equal(t, "query", sess.Conversations[1].Intent)
}

func TestRecorderClose(t *testing.T) {
	t.Parallel()

	r, err := NewRecorder(t.TempDir(), "fake", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.Record(Exchange{UserInput: "hello", Intent: "general"}))
	require.NoError(t, r.Close())

	sess, err := Load(r.Path())
	require.NoError(t, err)
	require.NotNil(t, sess.SessionEnd)
	require.False(t, sess.SessionEnd.Before(sess.SessionStart))
	require.Len(t, sess.Conversations, 1)
}

func TestRecorderNoTempFileLeftBehind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r, err := NewRecorder(dir, "fake", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.Record(Exchange{UserInput: "hi"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.False(t, strings.HasSuffix(entries[0].Name(), ".tmp"))
}

func TestRecorderJSONShape(t *testing.T) {
	t.Parallel()

	r, err := NewRecorder(t.TempDir(), "fake", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.Record(Exchange{UserInput: "add $8 coffee", Intent: "add", ExpensesAdded: 1}))

	raw, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	for _, key := range []string{
		`"session_start"`, `"session_end"`, `"model"`, `"conversations"`,
		`"user_input"`, `"ai_response"`, `"intent"`, `"thinking_steps"`,
		`"expenses_added"`, `"expenses_deleted"`,
	} {
		require.Contains(t, string(raw), key)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
