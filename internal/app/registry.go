package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"quizlive/internal/domain"
)

// codeCharset omits lookalike characters so codes survive being read aloud.
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Registry is the process-wide table of active sessions keyed by their short
// code. It is an injected object, not ambient state, so tests can run
// multiple registries side by side. Lookups take a read lock only; unrelated
// sessions never block each other.
type Registry struct {
	quizzes  QuizRepository
	sink     ResultSink
	presence Presence
	cfg      Config
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	rnd      *rand.Rand
}

// NewRegistry builds a registry. presence may be nil.
func NewRegistry(quizzes QuizRepository, sink ResultSink, presence Presence, cfg Config) *Registry {
	return &Registry{
		quizzes:  quizzes,
		sink:     sink,
		presence: presence,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Ensure returns the active session for code when one exists, otherwise
// creates a new session for quizID under a freshly generated code. The quiz
// snapshot is fetched exactly once here, so later commands never block on
// the provider. A known-stale code without a quizID is a lookup failure,
// not an implicit create.
func (r *Registry) Ensure(ctx context.Context, code, quizID string) (*Session, error) {
	if code != "" {
		if session, ok := r.Get(code); ok {
			return session, nil
		}
		if quizID == "" {
			return nil, domain.ErrSessionNotFound
		}
	}
	if quizID == "" {
		return nil, domain.ErrSessionNotFound
	}

	quiz, err := r.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQuizUnavailable, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	newCode, err := r.generateCodeLocked()
	if err != nil {
		return nil, err
	}
	session := NewSessionWithClock(newCode, quiz, r.cfg, r.sink, r.retire, r.now)
	r.sessions[newCode] = session

	if r.presence != nil {
		if err := r.presence.Mark(ctx, newCode); err != nil {
			log.Printf("registry: mark presence for %s: %v", newCode, err)
		}
	}
	return session, nil
}

// Get resolves an active session by code.
func (r *Registry) Get(code string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[strings.ToUpper(code)]
	return session, ok
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// retire runs when a session finishes: after the retention window the
// session is dropped and its code becomes reusable.
func (r *Registry) retire(code string) {
	time.AfterFunc(r.cfg.Retention, func() {
		r.mu.Lock()
		delete(r.sessions, code)
		r.mu.Unlock()
		if r.presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.presence.Clear(ctx, code); err != nil {
				log.Printf("registry: clear presence for %s: %v", code, err)
			}
		}
	})
}

func (r *Registry) generateCodeLocked() (string, error) {
	length := r.cfg.CodeLength
	if length <= 0 {
		length = 6
	}
	for attempt := 0; attempt < 100; attempt++ {
		buf := make([]byte, length)
		for i := range buf {
			buf[i] = codeCharset[r.rnd.Intn(len(codeCharset))]
		}
		code := string(buf)
		if _, taken := r.sessions[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique session code")
}
