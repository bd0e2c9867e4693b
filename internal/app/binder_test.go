package app_test

import (
	"context"
	"testing"

	"quizlive/internal/app"
	"quizlive/internal/domain"
)

func TestBinderJoinAndDispatch(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(app.DefaultConfig())
	binder := app.NewBinder(registry)

	host := newFakeClient("c-host")
	binder.Join(ctx, host, domain.Identity{ID: "h1"}, "", "quiz-1", "Helen", false)
	if !binder.Bound("c-host") {
		t.Fatalf("expected host connection bound")
	}
	state := host.last(t, domain.EventSessionState).Payload.(domain.SessionStatePayload)

	alice := newFakeClient("c-alice")
	binder.Join(ctx, alice, domain.Identity{ID: "a1"}, state.Code, "", "Alice", false)
	if !binder.Bound("c-alice") {
		t.Fatalf("expected alice bound via code")
	}

	// Non-host start is rejected with a typed rejection event.
	binder.Dispatch("c-alice", app.Command{Type: app.CmdStartQuestion})
	rejected := alice.last(t, "start_question_rejected").Payload.(domain.RejectedPayload)
	if rejected.Code != "NotHost" {
		t.Fatalf("expected NotHost rejection, got %+v", rejected)
	}

	binder.Dispatch("c-host", app.Command{Type: app.CmdStartQuestion})
	if len(alice.byType(domain.EventQuestionStarted)) != 1 {
		t.Fatalf("expected question_started after host dispatch")
	}

	binder.Dispatch("c-alice", app.Command{
		Type:       app.CmdSubmitAnswer,
		QuestionID: "q1",
		Value:      domain.AnswerValue{OptionID: "o2"},
	})
	ack := alice.last(t, domain.EventAnswerAck).Payload.(domain.AnswerAckPayload)
	if !ack.Accepted || !ack.Correct {
		t.Fatalf("expected accepted correct ack, got %+v", ack)
	}
}

func TestBinderJoinUnknownCodeRejected(t *testing.T) {
	registry := newTestRegistry(app.DefaultConfig())
	binder := app.NewBinder(registry)

	client := newFakeClient("c1")
	binder.Join(context.Background(), client, domain.Identity{ID: "u1"}, "NOSUCH", "", "Nick", false)

	rejected := client.last(t, "join_session_rejected").Payload.(domain.RejectedPayload)
	if rejected.Code != "SessionNotFound" {
		t.Fatalf("expected SessionNotFound, got %+v", rejected)
	}
	if binder.Bound("c1") {
		t.Fatalf("failed join must not bind the connection")
	}
}

func TestBinderRejoinDetachesPreviousSession(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(app.DefaultConfig())
	binder := app.NewBinder(registry)

	host := newFakeClient("c-host")
	binder.Join(ctx, host, domain.Identity{ID: "h1"}, "", "quiz-1", "Helen", false)
	state := host.last(t, domain.EventSessionState).Payload.(domain.SessionStatePayload)

	drifter := newFakeClient("c-drift")
	binder.Join(ctx, drifter, domain.Identity{ID: "d1"}, state.Code, "", "Drew", false)

	// The same connection moves to a fresh session.
	binder.Join(ctx, drifter, domain.Identity{ID: "d1"}, "", "quiz-1", "Drew", false)

	disc := host.last(t, domain.EventParticipantDisconnected).Payload.(domain.ParticipantDisconnectedPayload)
	if disc.ParticipantID != "d1" {
		t.Fatalf("expected old session to see d1 disconnect, got %+v", disc)
	}

	// Broadcasts in the old session no longer reach the moved connection.
	binder.Dispatch("c-host", app.Command{Type: app.CmdStartQuestion})
	if got := len(host.byType(domain.EventQuestionStarted)); got != 1 {
		t.Fatalf("old session should still run, got %d starts", got)
	}
	if got := len(drifter.byType(domain.EventQuestionStarted)); got != 0 {
		t.Fatalf("moved connection still receives old session broadcasts: %d", got)
	}
}

func TestBinderDisconnectUnbinds(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(app.DefaultConfig())
	binder := app.NewBinder(registry)

	client := newFakeClient("c1")
	binder.Join(ctx, client, domain.Identity{ID: "u1"}, "", "quiz-1", "Nick", false)
	if !binder.Bound("c1") {
		t.Fatalf("expected bound")
	}

	binder.Disconnect("c1")
	if binder.Bound("c1") {
		t.Fatalf("expected unbound after disconnect")
	}
	// Dispatch from an unbound connection is dropped, not panicking.
	binder.Dispatch("c1", app.Command{Type: app.CmdStartQuestion})
}

func TestBinderDispatchUnknownCommand(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(app.DefaultConfig())
	binder := app.NewBinder(registry)

	client := newFakeClient("c1")
	binder.Join(ctx, client, domain.Identity{ID: "u1"}, "", "quiz-1", "Nick", false)

	binder.Dispatch("c1", app.Command{Type: "bogus"})
	rejected := client.last(t, "bogus_rejected").Payload.(domain.RejectedPayload)
	if rejected.Code != "Internal" {
		t.Fatalf("expected Internal code for unknown command, got %+v", rejected)
	}
}
