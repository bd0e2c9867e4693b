package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no active session matches a code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionFinished is returned for commands against a terminal session.
	ErrSessionFinished = errors.New("session already finished")
	// ErrInvalidPhase is returned when a command is illegal in the current phase.
	ErrInvalidPhase = errors.New("command not allowed in current phase")
	// ErrNotHost is returned when a host-only command comes from a non-host.
	ErrNotHost = errors.New("command requires host role")
	// ErrUnknownParticipant is returned when a participant id is not in the session.
	ErrUnknownParticipant = errors.New("participant not found in session")
	// ErrDuplicateAnswer is returned on a second submission for the same question.
	ErrDuplicateAnswer = errors.New("question already answered")
	// ErrAnswerWindowClosed is returned for answers past the deadline grace window.
	ErrAnswerWindowClosed = errors.New("answer window closed")
	// ErrQuizUnavailable indicates the quiz snapshot could not be loaded.
	ErrQuizUnavailable = errors.New("quiz unavailable")
	// ErrQuestionMismatch is returned when an answer targets a question that is not live.
	ErrQuestionMismatch = errors.New("answer does not match live question")
	// ErrAnswerTypeMismatch is returned when the answer value shape does not fit the question type.
	ErrAnswerTypeMismatch = errors.New("answer value does not match question type")
	// ErrSpectatorsCannotAnswer rejects score-bearing submissions from spectators.
	ErrSpectatorsCannotAnswer = errors.New("spectators cannot submit answers")
)

// ErrorCode maps command errors to the stable codes carried by rejection
// events. Unrecognized errors map to "Internal".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "SessionNotFound"
	case errors.Is(err, ErrSessionFinished):
		return "SessionFinished"
	case errors.Is(err, ErrInvalidPhase):
		return "InvalidPhase"
	case errors.Is(err, ErrNotHost):
		return "NotHost"
	case errors.Is(err, ErrUnknownParticipant):
		return "UnknownParticipant"
	case errors.Is(err, ErrDuplicateAnswer):
		return "DuplicateAnswer"
	case errors.Is(err, ErrAnswerWindowClosed):
		return "AnswerWindowClosed"
	case errors.Is(err, ErrQuizUnavailable):
		return "QuizUnavailable"
	case errors.Is(err, ErrQuestionMismatch):
		return "QuestionMismatch"
	case errors.Is(err, ErrAnswerTypeMismatch):
		return "AnswerTypeMismatch"
	case errors.Is(err, ErrSpectatorsCannotAnswer):
		return "SpectatorsCannotAnswer"
	default:
		return "Internal"
	}
}
