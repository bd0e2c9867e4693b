package domain

import "time"

// Status is the phase a session is currently in.
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusQuestion Status = "question"
	StatusReveal   Status = "reveal"
	StatusFinished Status = "finished"
)

// Role distinguishes the host from players and read-only spectators.
type Role string

const (
	RoleHost      Role = "host"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// QuestionType selects which answer value shape a question accepts.
type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionFreeText       QuestionType = "free_text"
	QuestionOrdering       QuestionType = "ordering"
)

// Identity is a verified participant identity supplied by the auth boundary.
type Identity struct {
	ID    string
	Name  string
	Guest bool
}

// Participant is a host, player, or spectator bound to a session. The ID is
// connection-independent so it survives reconnects; ConnectionID is empty
// while disconnected.
type Participant struct {
	ID           string    `json:"id"`
	Nickname     string    `json:"nickname"`
	Role         Role      `json:"role"`
	ConnectionID string    `json:"-"`
	Score        int       `json:"score"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
}

// Connected reports whether the participant currently has a live connection.
func (p *Participant) Connected() bool {
	return p.ConnectionID != ""
}

// Option is a selectable answer for choice questions. A zero Weight counts
// as 1.0 so plain quizzes never need to spell weights out.
type Option struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Correct bool    `json:"correct"`
	Weight  float64 `json:"weight,omitempty"`
}

// EffectiveWeight normalizes the zero value to a full weight.
func (o Option) EffectiveWeight() float64 {
	if o.Weight == 0 {
		return 1
	}
	return o.Weight
}

// Question is one entry of an immutable quiz snapshot.
type Question struct {
	ID           string       `json:"id"`
	Type         QuestionType `json:"type"`
	Prompt       string       `json:"prompt"`
	Options      []Option     `json:"options,omitempty"`
	TextAnswers  []string     `json:"textAnswers,omitempty"`
	CorrectOrder []string     `json:"correctOrder,omitempty"`
	TimeLimitMs  int64        `json:"timeLimitMs"`
}

// CorrectOptionIDs returns the ids of all options flagged correct.
func (q Question) CorrectOptionIDs() []string {
	ids := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		if opt.Correct {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// Quiz is the immutable ordered snapshot a session plays through.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// AnswerValue is a tagged variant: exactly one field is populated, matching
// the live question's declared type.
type AnswerValue struct {
	OptionID         string   `json:"optionId,omitempty"`
	OptionIDs        []string `json:"optionIds,omitempty"`
	TextAnswer       string   `json:"textAnswer,omitempty"`
	OrderedOptionIDs []string `json:"orderedOptionIds,omitempty"`
}

// AnswerRecord captures one accepted submission. At most one exists per
// (participant, question).
type AnswerRecord struct {
	ParticipantID    string      `json:"participantId"`
	QuestionID       string      `json:"questionId"`
	Value            AnswerValue `json:"value"`
	ClientTimestamp  int64       `json:"clientTimestamp"`
	ServerReceivedAt time.Time   `json:"serverReceivedAt"`
	Correct          bool        `json:"correct"`
	ScoreDelta       int         `json:"scoreDelta"`
}

// LeaderboardEntry is a derived standings row; recomputed on demand, never
// stored, so it cannot drift from participant state.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
	Score         int    `json:"score"`
	Rank          int    `json:"rank"`
}

// SessionSummary is handed to the result sink once when a session finishes.
type SessionSummary struct {
	Code       string             `json:"code"`
	QuizID     string             `json:"quizId"`
	FinishedAt time.Time          `json:"finishedAt"`
	Standings  []LeaderboardEntry `json:"standings"`
}
