package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Exchange is one user turn and its outcome.
type Exchange struct {
	Timestamp       time.Time `json:"timestamp"`
	UserInput       string    `json:"user_input"`
	AIResponse      string    `json:"ai_response"`
	Intent          string    `json:"intent"`
	ThinkingSteps   []string  `json:"thinking_steps"`
	ExpensesAdded   int       `json:"expenses_added"`
	ExpensesDeleted int       `json:"expenses_deleted"`
}

// Session is the append-only record of one engine lifetime.
type Session struct {
	ID            string     `json:"id"`
	SessionStart  time.Time  `json:"session_start"`
	SessionEnd    *time.Time `json:"session_end"`
	Model         string     `json:"model"`
	Conversations []Exchange `json:"conversations"`
}

// Recorder owns the session and writes it to one JSON file. The file is
// rewritten after every exchange so a crash never loses more than the turn
// in flight.
type Recorder struct {
	mu   sync.Mutex
	path string
	sess Session
	log  zerolog.Logger
}

// NewRecorder starts a session and creates its file under dir.
func NewRecorder(dir, model string, log zerolog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir session dir: %w", err)
	}
	start := time.Now()
	id := uuid.NewString()
	r := &Recorder{
		path: filepath.Join(dir, fmt.Sprintf("session-%s-%s.json", start.Format("20060102-150405"), id[:8])),
		sess: Session{
			ID:           id,
			SessionStart: start,
			Model:        model,
		},
		log: log,
	}
	if err := r.flushLocked(); err != nil {
		return nil, err
	}
	return r, nil
}

// Record appends an exchange and flushes to disk.
func (r *Recorder) Record(ex Exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sess.Conversations = append(r.sess.Conversations, ex)
	if err := r.flushLocked(); err != nil {
		r.log.Error().Err(err).Str("path", r.path).Msg("session flush failed")
		return err
	}
	return nil
}

// Close stamps the session end and flushes one last time.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := time.Now()
	r.sess.SessionEnd = &end
	return r.flushLocked()
}

// Path returns the session file path.
func (r *Recorder) Path() string {
	return r.path
}

// flushLocked writes the whole session atomically: temp file, then rename,
// so a partially written file can never shadow a readable one.
func (r *Recorder) flushLocked() error {
	data, err := json.MarshalIndent(r.sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return nil
}

// Load reads a session file back. Used for diagnosis and tests.
func Load(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("parse session %s: %w", filepath.Base(path), err)
	}
	return s, nil
}
