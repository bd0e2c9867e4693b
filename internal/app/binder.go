package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"quizlive/internal/domain"
)

// Command names accepted from clients.
const (
	CmdJoinSession      = "join_session"
	CmdStartQuestion    = "start_question"
	CmdSubmitAnswer     = "submit_answer"
	CmdForceReveal      = "force_reveal"
	CmdAdvanceNext      = "advance_next"
	CmdToggleAutoNext   = "toggle_auto_next"
	CmdToggleSpectReact = "toggle_spectator_reactions"
	CmdTransferHost     = "transfer_host"
	CmdReaction         = "reaction"
)

// Command is a decoded client command minus the join, which carries its own
// arguments. Fields beyond Type are populated per command family.
type Command struct {
	Type                string
	QuestionID          string
	Value               domain.AnswerValue
	ClientTimestamp     int64
	Enabled             bool
	TargetParticipantID string
	Emoji               string
}

type binding struct {
	session       *Session
	participantID string
	client        Client
}

// Binder maps live connections to (session, participant) and is the single
// entry point transports dispatch through. Failed commands produce a
// "<command>_rejected" event unicast back to the origin connection; they
// never mutate session state and never silently drop.
type Binder struct {
	registry *Registry

	mu       sync.Mutex
	bindings map[string]binding
}

// NewBinder wires a binder to its session registry.
func NewBinder(registry *Registry) *Binder {
	return &Binder{
		registry: registry,
		bindings: make(map[string]binding),
	}
}

// Join resolves (or creates, when quizID is set) the session for code and
// binds the connection to it under the verified identity. On success the
// joining connection receives a full state snapshot from the session. A
// connection already bound elsewhere is detached from its previous session
// first, so it stops receiving that session's broadcasts; a failed join
// leaves any existing binding untouched.
func (b *Binder) Join(ctx context.Context, client Client, identity domain.Identity, code, quizID, nickname string, spectator bool) {
	session, err := b.registry.Ensure(ctx, code, quizID)
	if err == nil {
		err = session.Join(client, identity, nickname, spectator)
	}
	if err != nil {
		client.Send(domain.Rejected(CmdJoinSession, err))
		return
	}

	b.mu.Lock()
	prev, rebound := b.bindings[client.ID()]
	b.bindings[client.ID()] = binding{
		session:       session,
		participantID: identity.ID,
		client:        client,
	}
	b.mu.Unlock()

	if rebound && prev.session != session {
		prev.session.Disconnect(client.ID())
	}
}

// Dispatch routes a command from a bound connection to its session. A panic
// inside one session's command handling is contained here so it cannot
// stall or crash unrelated sessions.
func (b *Binder) Dispatch(connID string, cmd Command) {
	b.mu.Lock()
	bound, ok := b.bindings[connID]
	b.mu.Unlock()
	if !ok {
		return
	}

	err := b.execute(bound, cmd)
	if err != nil {
		bound.client.Send(domain.Rejected(cmd.Type, err))
	}
}

func (b *Binder) execute(bound binding, cmd Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("binder: command %s on session %s panicked: %v", cmd.Type, bound.session.Code(), r)
			err = fmt.Errorf("internal error")
		}
	}()

	pid := bound.participantID
	switch cmd.Type {
	case CmdStartQuestion:
		return bound.session.StartQuestion(pid)
	case CmdSubmitAnswer:
		return bound.session.SubmitAnswer(pid, cmd.QuestionID, cmd.Value, cmd.ClientTimestamp)
	case CmdForceReveal:
		return bound.session.ForceReveal(pid)
	case CmdAdvanceNext:
		return bound.session.AdvanceNext(pid)
	case CmdToggleAutoNext:
		return bound.session.ToggleAutoNext(pid, cmd.Enabled)
	case CmdToggleSpectReact:
		return bound.session.ToggleSpectatorReactions(pid, cmd.Enabled)
	case CmdTransferHost:
		return bound.session.TransferHost(pid, cmd.TargetParticipantID)
	case CmdReaction:
		return bound.session.SendReaction(pid, cmd.Emoji)
	default:
		return fmt.Errorf("unsupported command %q", cmd.Type)
	}
}

// Disconnect releases a connection's binding and tells its session. The
// participant survives server-side; a later Join with the same identity
// rebinds and resyncs.
func (b *Binder) Disconnect(connID string) {
	b.mu.Lock()
	bound, ok := b.bindings[connID]
	delete(b.bindings, connID)
	b.mu.Unlock()
	if ok {
		bound.session.Disconnect(connID)
	}
}

// Bound reports whether a connection currently has a session binding.
func (b *Binder) Bound(connID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.bindings[connID]
	return ok
}
