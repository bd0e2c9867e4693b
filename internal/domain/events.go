package domain

// Event is the envelope fanned out to connected clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Event types emitted by the session state machine.
const (
	EventSessionState            = "session_state"
	EventParticipantJoined       = "participant_joined"
	EventParticipantReconnected  = "participant_reconnected"
	EventParticipantDisconnected = "participant_disconnected"
	EventQuestionStarted         = "question_started"
	EventQuestionReveal          = "question_reveal"
	EventLeaderboardUpdate       = "leaderboard_update"
	EventSessionFinished         = "session_finished"
	EventHostChanged             = "host_changed"
	EventAutoNextToggled         = "auto_next_toggled"
	EventSpectatorReactions      = "spectator_reactions_toggled"
	EventAnswerAck               = "answer_ack"
	EventReactionBroadcast       = "reaction_broadcast"
)

// ParticipantView is the per-participant slice of a state snapshot.
type ParticipantView struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Role      Role   `json:"role"`
	Connected bool   `json:"connected"`
	Score     int    `json:"score"`
}

// QuestionView is a question stripped of its answer key before it reaches
// clients.
type QuestionView struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Prompt      string       `json:"prompt"`
	Options     []OptionView `json:"options,omitempty"`
	TimeLimitMs int64        `json:"timeLimitMs"`
}

// OptionView hides the correctness flag and weight of an option.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SessionStatePayload is the full resync snapshot sent to a (re)joining
// connection. RemainingMs is meaningful only while a question is live.
type SessionStatePayload struct {
	Code               string            `json:"code"`
	QuizID             string            `json:"quizId"`
	Status             Status            `json:"status"`
	QuestionIndex      int               `json:"questionIndex"`
	TotalQuestions     int               `json:"totalQuestions"`
	RemainingMs        int64             `json:"remainingMs"`
	HostID             string            `json:"hostId"`
	AutoNext           bool              `json:"autoNext"`
	SpectatorReactions bool              `json:"spectatorReactions"`
	Question           *QuestionView     `json:"question,omitempty"`
	Participants       []ParticipantView `json:"participants"`
	YouParticipantID   string            `json:"youParticipantId"`
	IsHost             bool              `json:"isHost"`
	IsSpectator        bool              `json:"isSpectator"`
}

// ParticipantJoinedPayload announces a new participant to everyone else.
type ParticipantJoinedPayload struct {
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
	Role          Role   `json:"role"`
}

// ParticipantReconnectedPayload lets clients un-grey a participant whose
// connection came back.
type ParticipantReconnectedPayload struct {
	ParticipantID string `json:"participantId"`
}

// ParticipantDisconnectedPayload lets clients grey out a dropped participant.
type ParticipantDisconnectedPayload struct {
	ParticipantID string `json:"participantId"`
}

// QuestionStartedPayload carries the live question minus its answer key.
type QuestionStartedPayload struct {
	QuestionIndex  int          `json:"questionIndex"`
	TotalQuestions int          `json:"totalQuestions"`
	Question       QuestionView `json:"question"`
}

// QuestionRevealPayload exposes the answer key after the window closes.
type QuestionRevealPayload struct {
	QuestionIndex    int      `json:"questionIndex"`
	QuestionID       string   `json:"questionId"`
	CorrectOptionIDs []string `json:"correctOptionIds,omitempty"`
	CorrectOrder     []string `json:"correctOrder,omitempty"`
	AcceptedAnswers  []string `json:"acceptedAnswers,omitempty"`
	AnswerCount      int      `json:"answerCount"`
}

// LeaderboardUpdatePayload carries freshly ranked standings.
type LeaderboardUpdatePayload struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// SessionFinishedPayload carries the final standings of a terminal session.
type SessionFinishedPayload struct {
	Standings []LeaderboardEntry `json:"standings"`
}

// HostChangedPayload announces a host authority transfer.
type HostChangedPayload struct {
	HostID string `json:"hostId"`
}

// ToggledPayload announces a boolean session setting change.
type ToggledPayload struct {
	Enabled bool `json:"enabled"`
}

// AnswerAckPayload is the private acknowledgment for a submission.
type AnswerAckPayload struct {
	Accepted   bool   `json:"accepted"`
	Correct    bool   `json:"correct,omitempty"`
	ScoreDelta int    `json:"scoreDelta,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ReactionBroadcastPayload fans a participant's reaction out to the session.
type ReactionBroadcastPayload struct {
	ParticipantID string `json:"participantId"`
	Emoji         string `json:"emoji"`
}

// RejectedPayload is the body of every "<command>_rejected" event.
type RejectedPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Rejected builds the rejection event for a failed command family.
func Rejected(command string, err error) Event {
	return Event{
		Type:    command + "_rejected",
		Payload: RejectedPayload{Code: ErrorCode(err), Message: err.Error()},
	}
}

// ViewOf strips the answer key off a question for client delivery.
func ViewOf(q Question, defaultLimitMs int64) QuestionView {
	opts := make([]OptionView, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, OptionView{ID: o.ID, Text: o.Text})
	}
	limit := q.TimeLimitMs
	if limit <= 0 {
		limit = defaultLimitMs
	}
	return QuestionView{
		ID:          q.ID,
		Type:        q.Type,
		Prompt:      q.Prompt,
		Options:     opts,
		TimeLimitMs: limit,
	}
}
