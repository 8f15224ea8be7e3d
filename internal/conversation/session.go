package conversation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wvdi-ph/drivebot/internal/leads"
	"github.com/wvdi-ph/drivebot/pkg/logging"
)

const (
	// DefaultSessionTTL is how long a session lives from creation, regardless
	// of activity. Leads flushed to the external store survive expiry.
	DefaultSessionTTL = 30 * time.Minute

	// DefaultSweepInterval is how often expired sessions are collected.
	DefaultSweepInterval = 10 * time.Minute

	// recentMessageWindow bounds how many trailing turns the server retains.
	// The caller's request payload is the source of truth for the transcript.
	recentMessageWindow = 10
)

// Session is server-side conversation state keyed by an opaque id the client
// round-trips.
type Session struct {
	ID             string        `json:"id"`
	Lead           leads.Lead    `json:"lead"`
	RecentMessages []ChatMessage `json:"recentMessages"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// SessionStore resolves and persists sessions. Implementations must mint a
// fresh session when the id is empty or unknown.
type SessionStore interface {
	GetOrCreate(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, session *Session) error
	Sweep(ctx context.Context) (int, error)
}

// NewSessionID mints an opaque session identifier. Timestamp plus random
// suffix keeps collisions negligible over a session lifetime.
func NewSessionID() string {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "session_" + uuid.NewString()
	}
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}

// MemoryStore keeps sessions in a mutex-guarded map with an absolute TTL from
// creation. Lookups hand out copies and Put overwrites the stored session, so
// callers never share mutable state; concurrent turns on one session resolve
// last-writer-wins. Suitable for a single instance; use RedisStore when
// running more than one.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an in-process session store. A non-positive ttl
// falls back to DefaultSessionTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetOrCreate returns the live session for id, or mints a new one when id is
// empty, unknown, or already past its TTL.
func (s *MemoryStore) GetOrCreate(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if session, ok := s.sessions[id]; ok && s.now().Sub(session.CreatedAt) <= s.ttl {
			return cloneSession(session), nil
		}
	}

	session := &Session{
		ID:        NewSessionID(),
		Lead:      leads.NewLead(),
		CreatedAt: s.now(),
	}
	s.sessions[session.ID] = cloneSession(session)
	return session, nil
}

// Put stores a copy of the session under its id.
func (s *MemoryStore) Put(_ context.Context, session *Session) error {
	s.mu.Lock()
	s.sessions[session.ID] = cloneSession(session)
	s.mu.Unlock()
	return nil
}

// Sweep deletes every session older than the TTL and returns how many were
// removed.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, session := range s.sessions {
		if now.Sub(session.CreatedAt) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the current number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartSweeper runs periodic sweeps until the context is cancelled.
func StartSweeper(ctx context.Context, store SessionStore, interval time.Duration, logger *logging.Logger) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = logging.Default()
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.Sweep(ctx)
				if err != nil {
					logger.Error("session sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					logger.Info("swept expired sessions", "removed", removed)
				}
			}
		}
	}()
}

func cloneSession(session *Session) *Session {
	clone := *session
	clone.Lead = session.Lead.Clone()
	if session.RecentMessages != nil {
		clone.RecentMessages = make([]ChatMessage, len(session.RecentMessages))
		copy(clone.RecentMessages, session.RecentMessages)
	}
	return &clone
}

// truncateHistory returns the trailing window of the supplied history.
func truncateHistory(messages []ChatMessage) []ChatMessage {
	if len(messages) <= recentMessageWindow {
		return messages
	}
	return messages[len(messages)-recentMessageWindow:]
}
