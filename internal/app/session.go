package app

import (
	"context"
	"log"
	"sync"
	"time"

	"quizlive/internal/domain"
)

// Session is the single authority over one live quiz run. Every command —
// client-originated or timer-fired — runs under s.mu, so commands for one
// session are strictly serialized while unrelated sessions proceed in
// parallel. All validation happens before any mutation; a failed command
// leaves the session untouched.
type Session struct {
	code   string
	quizID string
	quiz   domain.Quiz
	cfg    Config
	now    func() time.Time

	gateway  *Gateway
	sched    scheduler
	sink     ResultSink
	onFinish func(code string)

	mu                 sync.Mutex
	status             domain.Status
	questionIndex      int
	hostID             string
	autoNext           bool
	spectatorReactions bool
	questionStartedAt  time.Time
	deadline           time.Time
	gen                uint64
	participants       map[string]*domain.Participant
	answers            map[string]map[string]*domain.AnswerRecord
}

// NewSession builds a session in the lobby phase around an immutable quiz
// snapshot. onFinish is invoked once when the session turns terminal.
func NewSession(code string, quiz domain.Quiz, cfg Config, sink ResultSink, onFinish func(code string)) *Session {
	return NewSessionWithClock(code, quiz, cfg, sink, onFinish, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(code string, quiz domain.Quiz, cfg Config, sink ResultSink, onFinish func(code string), now func() time.Time) *Session {
	if sink == nil {
		sink = NopResultSink{}
	}
	if onFinish == nil {
		onFinish = func(string) {}
	}
	return &Session{
		code:         code,
		quizID:       quiz.ID,
		quiz:         quiz,
		cfg:          cfg,
		now:          now,
		gateway:      NewGateway(),
		sink:         sink,
		onFinish:     onFinish,
		status:       domain.StatusLobby,
		participants: make(map[string]*domain.Participant),
		answers:      make(map[string]map[string]*domain.AnswerRecord),
	}
}

// Code returns the immutable session code.
func (s *Session) Code() string { return s.code }

// Status returns the current phase.
func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Join registers a new participant or rebinds a reconnecting one, then
// unicasts a full state snapshot to the joining connection. The first
// participant of a fresh session becomes host. Score and role survive
// reconnects; a reconnect never creates a second participant.
func (s *Session) Join(client Client, identity domain.Identity, nickname string, spectator bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusFinished {
		return domain.ErrSessionFinished
	}

	now := s.now()
	p, existing := s.participants[identity.ID]
	if existing {
		p.ConnectionID = client.ID()
		p.LastSeenAt = now
		if nickname != "" {
			p.Nickname = nickname
		}
	} else {
		role := domain.RolePlayer
		if spectator {
			role = domain.RoleSpectator
		}
		if len(s.participants) == 0 {
			role = domain.RoleHost
			s.hostID = identity.ID
		}
		if nickname == "" {
			nickname = identity.Name
		}
		p = &domain.Participant{
			ID:           identity.ID,
			Nickname:     nickname,
			Role:         role,
			ConnectionID: client.ID(),
			LastSeenAt:   now,
		}
		s.participants[identity.ID] = p
	}

	s.gateway.Attach(client)
	if existing {
		// The disconnect was announced; the return trip must be too.
		s.broadcastExceptLocked(client.ID(), domain.Event{
			Type:    domain.EventParticipantReconnected,
			Payload: domain.ParticipantReconnectedPayload{ParticipantID: p.ID},
		})
	} else {
		s.broadcastExceptLocked(client.ID(), domain.Event{
			Type: domain.EventParticipantJoined,
			Payload: domain.ParticipantJoinedPayload{
				ParticipantID: p.ID,
				Nickname:      p.Nickname,
				Role:          p.Role,
			},
		})
	}
	s.gateway.Unicast(client.ID(), domain.Event{
		Type:    domain.EventSessionState,
		Payload: s.snapshotLocked(p.ID),
	})
	return nil
}

// StartQuestion loads the question at the current index and opens its answer
// window. Host-only; legal from lobby (including the post-advance ready
// state) and from reveal, which replays the current index.
func (s *Session) StartQuestion(participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHostLocked(participantID); err != nil {
		return err
	}
	if s.status != domain.StatusLobby && s.status != domain.StatusReveal {
		return s.phaseErrLocked()
	}
	return s.startQuestionLocked()
}

func (s *Session) startQuestionLocked() error {
	if s.questionIndex >= len(s.quiz.Questions) {
		return domain.ErrQuizUnavailable
	}
	q := s.quiz.Questions[s.questionIndex]
	limit := s.cfg.questionLimit(q)

	s.status = domain.StatusQuestion
	s.questionStartedAt = s.now()
	s.deadline = s.questionStartedAt.Add(limit)
	// Replaying a question voids its previous answers.
	delete(s.answers, q.ID)

	s.gen++
	gen := s.gen
	// The timer fires after the grace window so late-but-in-grace answers
	// still find the session in the question phase.
	s.sched.arm(limit+s.cfg.GracePeriod, func() { s.onDeadline(gen) })

	s.gateway.Broadcast(domain.Event{
		Type: domain.EventQuestionStarted,
		Payload: domain.QuestionStartedPayload{
			QuestionIndex:  s.questionIndex,
			TotalQuestions: len(s.quiz.Questions),
			Question:       domain.ViewOf(q, s.cfg.DefaultTimeLimit.Milliseconds()),
		},
	})
	return nil
}

// SubmitAnswer validates and scores one submission. Accepts at most one
// answer per participant per question, only while the question is live and
// within deadline+grace; grace answers score without time bonus.
func (s *Session) SubmitAnswer(participantID, questionID string, value domain.AnswerValue, clientTS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return domain.ErrUnknownParticipant
	}
	if p.Role == domain.RoleSpectator {
		return domain.ErrSpectatorsCannotAnswer
	}
	if s.status != domain.StatusQuestion {
		return s.phaseErrLocked()
	}
	q := s.quiz.Questions[s.questionIndex]
	if questionID != q.ID {
		return domain.ErrQuestionMismatch
	}
	received := s.now()
	if received.After(s.deadline.Add(s.cfg.GracePeriod)) {
		return domain.ErrAnswerWindowClosed
	}
	if _, dup := s.answers[q.ID][participantID]; dup {
		return domain.ErrDuplicateAnswer
	}
	correct, weight, err := evaluateAnswer(q, value)
	if err != nil {
		return err
	}

	delta := Score(s.cfg.Score, correct, received.Sub(s.questionStartedAt), s.cfg.questionLimit(q), weight)
	record := &domain.AnswerRecord{
		ParticipantID:    participantID,
		QuestionID:       q.ID,
		Value:            value,
		ClientTimestamp:  clientTS,
		ServerReceivedAt: received,
		Correct:          correct,
		ScoreDelta:       delta,
	}
	if s.answers[q.ID] == nil {
		s.answers[q.ID] = make(map[string]*domain.AnswerRecord)
	}
	s.answers[q.ID][participantID] = record
	p.Score += delta
	p.LastSeenAt = received

	s.gateway.Unicast(p.ConnectionID, domain.Event{
		Type: domain.EventAnswerAck,
		Payload: domain.AnswerAckPayload{
			Accepted:   true,
			Correct:    correct,
			ScoreDelta: delta,
		},
	})
	s.gateway.Broadcast(domain.Event{
		Type:    domain.EventLeaderboardUpdate,
		Payload: domain.LeaderboardUpdatePayload{Entries: Rank(s.participants)},
	})
	return nil
}

// ForceReveal closes the answer window early. Host-only. A reveal request
// while already in reveal is a no-op success: the manual path and the timer
// path converge here and whichever is processed first wins.
func (s *Session) ForceReveal(participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHostLocked(participantID); err != nil {
		return err
	}
	if s.status == domain.StatusReveal {
		return nil
	}
	if s.status != domain.StatusQuestion {
		return s.phaseErrLocked()
	}
	s.revealLocked()
	return nil
}

// onDeadline is the scheduler's question-timeout command. A stale generation
// means another transition already happened; the fire is then a no-op.
func (s *Session) onDeadline(gen uint64) {
	defer s.recoverCommand("question deadline")
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.status != domain.StatusQuestion {
		return
	}
	s.revealLocked()
}

func (s *Session) revealLocked() {
	q := s.quiz.Questions[s.questionIndex]

	s.status = domain.StatusReveal
	s.deadline = time.Time{}
	s.gen++
	s.sched.cancel()

	s.gateway.Broadcast(domain.Event{
		Type: domain.EventQuestionReveal,
		Payload: domain.QuestionRevealPayload{
			QuestionIndex:    s.questionIndex,
			QuestionID:       q.ID,
			CorrectOptionIDs: q.CorrectOptionIDs(),
			CorrectOrder:     q.CorrectOrder,
			AcceptedAnswers:  q.TextAnswers,
			AnswerCount:      len(s.answers[q.ID]),
		},
	})

	if s.autoNext {
		gen := s.gen
		s.sched.arm(s.cfg.RevealHold, func() { s.onRevealHold(gen) })
	}
}

// onRevealHold auto-advances an auto-next session out of reveal.
func (s *Session) onRevealHold(gen uint64) {
	defer s.recoverCommand("reveal hold")
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.status != domain.StatusReveal {
		return
	}
	s.advanceLocked()
}

// AdvanceNext moves past the current reveal: to the next question's ready
// state (or straight into it when auto-next is on), or to finished after the
// last question. Host-only when invoked manually.
func (s *Session) AdvanceNext(participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHostLocked(participantID); err != nil {
		return err
	}
	if s.status != domain.StatusReveal {
		return s.phaseErrLocked()
	}
	s.advanceLocked()
	return nil
}

func (s *Session) advanceLocked() {
	s.gen++
	s.sched.cancel()

	if s.questionIndex+1 >= len(s.quiz.Questions) {
		s.finishLocked()
		return
	}
	s.questionIndex++
	s.status = domain.StatusLobby
	if s.autoNext {
		if err := s.startQuestionLocked(); err != nil {
			log.Printf("session %s: auto start question %d: %v", s.code, s.questionIndex, err)
		}
	}
}

func (s *Session) finishLocked() {
	s.status = domain.StatusFinished
	s.deadline = time.Time{}
	standings := Rank(s.participants)

	s.gateway.Broadcast(domain.Event{
		Type:    domain.EventSessionFinished,
		Payload: domain.SessionFinishedPayload{Standings: standings},
	})

	summary := domain.SessionSummary{
		Code:       s.code,
		QuizID:     s.quizID,
		FinishedAt: s.now(),
		Standings:  standings,
	}
	// Fire and forget: the live outcome is never held hostage to downstream
	// persistence.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.sink.RecordFinalResult(ctx, summary); err != nil {
			log.Printf("session %s: record final result: %v", s.code, err)
		}
	}()
	s.onFinish(s.code)
}

// ToggleAutoNext flips host-driven auto advancement. Host-only.
func (s *Session) ToggleAutoNext(participantID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHostLocked(participantID); err != nil {
		return err
	}
	s.autoNext = enabled
	s.gateway.Broadcast(domain.Event{
		Type:    domain.EventAutoNextToggled,
		Payload: domain.ToggledPayload{Enabled: enabled},
	})
	if s.status == domain.StatusReveal {
		if enabled {
			gen := s.gen
			s.sched.arm(s.cfg.RevealHold, func() { s.onRevealHold(gen) })
		} else {
			// Disarm the pending auto-advance; the session now holds in
			// reveal until an explicit advance_next.
			s.gen++
			s.sched.cancel()
		}
	}
	return nil
}

// ToggleSpectatorReactions flips the emit-time gate on spectator reactions.
// Host-only.
func (s *Session) ToggleSpectatorReactions(participantID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHostLocked(participantID); err != nil {
		return err
	}
	s.spectatorReactions = enabled
	s.gateway.Broadcast(domain.Event{
		Type:    domain.EventSpectatorReactions,
		Payload: domain.ToggledPayload{Enabled: enabled},
	})
	return nil
}

// TransferHost hands host authority to another current participant. The
// previous host becomes a player. Host-only.
func (s *Session) TransferHost(fromParticipantID, toParticipantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusFinished {
		return domain.ErrSessionFinished
	}
	if err := s.requireHostLocked(fromParticipantID); err != nil {
		return err
	}
	target, ok := s.participants[toParticipantID]
	if !ok {
		return domain.ErrUnknownParticipant
	}
	if toParticipantID == fromParticipantID {
		return nil
	}

	s.participants[fromParticipantID].Role = domain.RolePlayer
	target.Role = domain.RoleHost
	s.hostID = toParticipantID

	s.gateway.Broadcast(domain.Event{
		Type:    domain.EventHostChanged,
		Payload: domain.HostChangedPayload{HostID: toParticipantID},
	})
	return nil
}

// SendReaction fans a participant's reaction out, subject to the spectator
// gate applied at the gateway.
func (s *Session) SendReaction(participantID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusFinished {
		return domain.ErrSessionFinished
	}
	p, ok := s.participants[participantID]
	if !ok {
		return domain.ErrUnknownParticipant
	}
	s.gateway.BroadcastReaction(domain.Event{
		Type:    domain.EventReactionBroadcast,
		Payload: domain.ReactionBroadcastPayload{ParticipantID: participantID, Emoji: emoji},
	}, p.Role, s.spectatorReactions)
	return nil
}

// Disconnect unbinds a dropped connection. The participant stays in the
// session with their score; host authority is deliberately not
// auto-transferred — it takes an explicit TransferHost.
func (s *Session) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gateway.Detach(connID)
	for _, p := range s.participants {
		if p.ConnectionID == connID {
			p.ConnectionID = ""
			p.LastSeenAt = s.now()
			s.gateway.Broadcast(domain.Event{
				Type:    domain.EventParticipantDisconnected,
				Payload: domain.ParticipantDisconnectedPayload{ParticipantID: p.ID},
			})
			return
		}
	}
}

func (s *Session) requireHostLocked(participantID string) error {
	if s.status == domain.StatusFinished {
		return domain.ErrSessionFinished
	}
	p, ok := s.participants[participantID]
	if !ok {
		return domain.ErrUnknownParticipant
	}
	if p.Role != domain.RoleHost {
		return domain.ErrNotHost
	}
	return nil
}

func (s *Session) phaseErrLocked() error {
	if s.status == domain.StatusFinished {
		return domain.ErrSessionFinished
	}
	return domain.ErrInvalidPhase
}

func (s *Session) snapshotLocked(forParticipantID string) domain.SessionStatePayload {
	views := make([]domain.ParticipantView, 0, len(s.participants))
	for _, p := range s.participants {
		views = append(views, domain.ParticipantView{
			ID:        p.ID,
			Nickname:  p.Nickname,
			Role:      p.Role,
			Connected: p.Connected(),
			Score:     p.Score,
		})
	}

	var remaining int64
	var question *domain.QuestionView
	if s.status == domain.StatusQuestion {
		if d := s.deadline.Sub(s.now()); d > 0 {
			remaining = d.Milliseconds()
		}
		view := domain.ViewOf(s.quiz.Questions[s.questionIndex], s.cfg.DefaultTimeLimit.Milliseconds())
		question = &view
	}

	me := s.participants[forParticipantID]
	return domain.SessionStatePayload{
		Code:               s.code,
		QuizID:             s.quizID,
		Status:             s.status,
		QuestionIndex:      s.questionIndex,
		TotalQuestions:     len(s.quiz.Questions),
		RemainingMs:        remaining,
		HostID:             s.hostID,
		AutoNext:           s.autoNext,
		SpectatorReactions: s.spectatorReactions,
		Question:           question,
		Participants:       views,
		YouParticipantID:   forParticipantID,
		IsHost:             me != nil && me.Role == domain.RoleHost,
		IsSpectator:        me != nil && me.Role == domain.RoleSpectator,
	}
}

func (s *Session) broadcastExceptLocked(connID string, ev domain.Event) {
	s.gateway.BroadcastExcept(connID, ev)
}

// recoverCommand keeps a panicking timer command from taking the process —
// and every other session — down with it.
func (s *Session) recoverCommand(name string) {
	if r := recover(); r != nil {
		log.Printf("session %s: %s panicked: %v", s.code, name, r)
	}
}
