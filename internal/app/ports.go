package app

import (
	"context"
	"time"

	"quizlive/internal/domain"
)

// QuizRepository loads immutable quiz snapshots (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultSink receives the final standings once per finished session. Calls
// are fire-and-forget from the core's perspective: a sink failure is logged
// and never blocks delivery of the finish event to clients.
type ResultSink interface {
	RecordFinalResult(ctx context.Context, summary domain.SessionSummary) error
}

// NopResultSink discards summaries; used when no persistence is configured.
type NopResultSink struct{}

func (NopResultSink) RecordFinalResult(context.Context, domain.SessionSummary) error { return nil }

// Presence marks active session codes in a shared store so sibling instances
// can see liveness. Optional; a nil Presence disables the markers.
type Presence interface {
	Mark(ctx context.Context, code string) error
	Clear(ctx context.Context, code string) error
}

// Config tunes per-session behavior.
type Config struct {
	// GracePeriod keeps the answer window open past the deadline for late
	// network delivery; grace answers score without time bonus.
	GracePeriod time.Duration
	// RevealHold is how long an auto-next session sits in reveal before
	// advancing on its own.
	RevealHold time.Duration
	// Retention is how long a finished session stays resolvable before the
	// registry garbage-collects it and frees its code.
	Retention time.Duration
	// CodeLength is the generated session code length.
	CodeLength int
	// DefaultTimeLimit applies to questions that do not carry their own.
	DefaultTimeLimit time.Duration
	Score            ScoreConfig
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		GracePeriod:      2 * time.Second,
		RevealHold:       5 * time.Second,
		Retention:        10 * time.Minute,
		CodeLength:       6,
		DefaultTimeLimit: 30 * time.Second,
		Score:            DefaultScoreConfig(),
	}
}

func (c Config) questionLimit(q domain.Question) time.Duration {
	if q.TimeLimitMs > 0 {
		return time.Duration(q.TimeLimitMs) * time.Millisecond
	}
	return c.DefaultTimeLimit
}
