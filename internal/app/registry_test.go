package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizlive/internal/app"
	"quizlive/internal/domain"
	"quizlive/internal/infra/memory"
)

func newTestRegistry(cfg app.Config) *app.Registry {
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": twoQuestionQuiz(),
	}), 5*time.Minute)
	return app.NewRegistry(repo, nil, nil, cfg)
}

func TestEnsureCreatesAndReusesSessions(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(app.DefaultConfig())

	created, err := registry.Ensure(ctx, "", "quiz-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(created.Code()) != 6 {
		t.Fatalf("expected 6-char code, got %q", created.Code())
	}

	same, err := registry.Ensure(ctx, created.Code(), "quiz-1")
	if err != nil {
		t.Fatalf("ensure existing: %v", err)
	}
	if same != created {
		t.Fatalf("expected idempotent reuse of %s", created.Code())
	}

	other, err := registry.Ensure(ctx, "", "quiz-1")
	if err != nil {
		t.Fatalf("ensure second: %v", err)
	}
	if other.Code() == created.Code() {
		t.Fatalf("expected unique codes, both got %s", created.Code())
	}
	if registry.Len() != 2 {
		t.Fatalf("expected 2 active sessions, got %d", registry.Len())
	}
}

func TestEnsureUnknownCodeWithoutQuizFails(t *testing.T) {
	registry := newTestRegistry(app.DefaultConfig())
	if _, err := registry.Ensure(context.Background(), "NOSUCH", ""); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEnsureQuizUnavailable(t *testing.T) {
	registry := newTestRegistry(app.DefaultConfig())
	_, err := registry.Ensure(context.Background(), "", "quiz-missing")
	if !errors.Is(err, domain.ErrQuizUnavailable) {
		t.Fatalf("expected ErrQuizUnavailable, got %v", err)
	}
}

func TestFinishedSessionIsGarbageCollected(t *testing.T) {
	ctx := context.Background()
	cfg := app.DefaultConfig()
	cfg.Retention = 20 * time.Millisecond
	registry := newTestRegistry(cfg)

	session, err := registry.Ensure(ctx, "", "quiz-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	code := session.Code()

	host := newFakeClient("c-host")
	join(t, session, host, "h1", "Helen", false)
	for i := 0; i < 2; i++ {
		if err := session.StartQuestion("h1"); err != nil {
			t.Fatalf("start q%d: %v", i+1, err)
		}
		if err := session.ForceReveal("h1"); err != nil {
			t.Fatalf("reveal q%d: %v", i+1, err)
		}
		if err := session.AdvanceNext("h1"); err != nil {
			t.Fatalf("advance q%d: %v", i+1, err)
		}
	}
	if session.Status() != domain.StatusFinished {
		t.Fatalf("expected finished, got %s", session.Status())
	}

	// Still resolvable inside the retention window.
	if _, ok := registry.Get(code); !ok {
		t.Fatalf("expected session resolvable during retention")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := registry.Get(code); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("finished session never garbage-collected")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
