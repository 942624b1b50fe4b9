package assistant

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"b2b-analyst/internal/models"
)

const defaultMaxSessions = 1000

// History is one conversation. It keeps at most max turns, dropping the
// oldest first.
type History struct {
	mu    sync.Mutex
	turns []models.Turn
	max   int
}

func NewHistory(limit int) *History {
	return &History{max: limit}
}

// Append adds turns as one unit.
func (h *History) Append(turns ...models.Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
	if over := len(h.turns) - h.max; over > 0 {
		h.turns = append([]models.Turn(nil), h.turns[over:]...)
	}
}

// Recent returns a copy of the last n turns, oldest first.
func (h *History) Recent(n int) []models.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 {
		return nil
	}
	start := max(len(h.turns)-n, 0)
	return append([]models.Turn(nil), h.turns[start:]...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

type session struct {
	history  *History
	lastUsed time.Time
}

// Sessions maps session ids to histories. When full, the least recently used
// session is evicted.
type Sessions struct {
	mu          sync.Mutex
	sessions    map[string]*session
	maxTurns    int
	maxSessions int
}

func NewSessions(maxTurns, maxSessions int) *Sessions {
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	return &Sessions{
		sessions:    make(map[string]*session),
		maxTurns:    maxTurns,
		maxSessions: maxSessions,
	}
}

// Get returns the history for id, creating it when needed. An empty id gets a
// fresh uuid, which is returned.
func (s *Sessions) Get(id string) (string, *History) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if sess, ok := s.sessions[id]; ok {
		sess.lastUsed = time.Now()
		return id, sess.history
	}

	if len(s.sessions) >= s.maxSessions {
		s.evictOldest()
	}
	sess := &session{history: NewHistory(s.maxTurns), lastUsed: time.Now()}
	s.sessions[id] = sess
	return id, sess.history
}

// Reset clears the history for id. It reports whether the session existed.
func (s *Sessions) Reset(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		sess.history.Clear()
	}
	return ok
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Sessions) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, sess := range s.sessions {
		if oldestID == "" || sess.lastUsed.Before(oldest) {
			oldestID, oldest = id, sess.lastUsed
		}
	}
	delete(s.sessions, oldestID)
}
