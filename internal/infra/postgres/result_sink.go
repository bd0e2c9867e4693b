package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"quizlive/internal/domain"
)

// ResultSink persists final standings of finished sessions. The core calls
// it fire-and-forget; a write failure here never reaches clients.
type ResultSink struct {
	pool *pgxpool.Pool
}

func NewResultSink(pool *pgxpool.Pool) *ResultSink {
	return &ResultSink{pool: pool}
}

func (s *ResultSink) RecordFinalResult(ctx context.Context, summary domain.SessionSummary) error {
	standings, err := json.Marshal(summary.Standings)
	if err != nil {
		return fmt.Errorf("marshal standings: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO session_results (code, quiz_id, finished_at, standings) VALUES ($1, $2, $3, $4::jsonb)`,
		summary.Code, summary.QuizID, summary.FinishedAt, string(standings),
	)
	if err != nil {
		return fmt.Errorf("insert session result: %w", err)
	}
	return nil
}
