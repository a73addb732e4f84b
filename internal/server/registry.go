package server

import (
	"log"
	"sync"
	"time"

	"github.com/labops/coord/internal/stats"
	"github.com/labops/coord/internal/types"
)

// Registry maps authenticated identities to their live sessions. It is an
// explicit object owned by the CoordServer, never a package-level global.
// A user may hold several concurrent sessions (multiple tabs/devices); the
// user counts as online while at least one session is live.
type Registry struct {
	log     *log.Logger
	stats   stats.StatsProvider
	mu      sync.RWMutex
	userMap map[int]map[*Session]struct{}
}

func NewRegistry(logger *log.Logger, st stats.StatsProvider) *Registry {
	return &Registry{
		log:     logger,
		stats:   st,
		userMap: make(map[int]map[*Session]struct{}),
	}
}

// Admit adds a session, replies with the full current online set and, if
// this is the user's first session, announces the user to everyone else.
func (r *Registry) Admit(s *Session) {
	r.mu.Lock()
	first := r.userMap[s.user.Id] == nil
	if first {
		r.userMap[s.user.Id] = make(map[*Session]struct{})
	}
	r.userMap[s.user.Id][s] = struct{}{}
	r.mu.Unlock()

	r.log.Printf("admitted session for %q", s.user.Username)
	r.stats.Incr("ActiveSessions")
	s.touch()

	s.queueMessage(newEvent(&Event{
		OnlineUsers: &OnlineUsers{Users: r.OnlineUsers()},
	}))

	if first {
		r.notifyOnline(s.user, s)
	}
}

// Remove drops a session. When the last session for a user goes away, the
// offline announcement fans out to all remaining sessions.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	sessions, ok := r.userMap[s.user.Id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := sessions[s]; !ok {
		r.mu.Unlock()
		return
	}

	delete(sessions, s)
	last := len(sessions) == 0
	if last {
		delete(r.userMap, s.user.Id)
	}
	r.mu.Unlock()

	r.log.Printf("removed session for %q", s.user.Username)
	r.stats.Decr("ActiveSessions")

	if last {
		r.notifyOffline(s.user)
	}
}

func (r *Registry) SessionsFor(userId int) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.userMap[userId]))
	for s := range r.userMap[userId] {
		sessions = append(sessions, s)
	}
	return sessions
}

func (r *Registry) OnlineUsers() []types.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]types.User, 0, len(r.userMap))
	for _, sessions := range r.userMap {
		for s := range sessions {
			users = append(users, s.user)
			break
		}
	}
	return users
}

// Broadcast queues a message to every live session, honoring SkipSession.
func (r *Registry) Broadcast(msg *ServerMessage) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sessions := range r.userMap {
		for s := range sessions {
			if s == msg.SkipSession {
				continue
			}
			s.queueMessage(msg)
		}
	}
}

// Sweep removes sessions whose last heartbeat is older than maxIdle and
// closes them. Removal triggers the same offline fan-out as an explicit
// disconnect.
func (r *Registry) Sweep(maxIdle time.Duration, now time.Time) []*Session {
	cutoff := now.Add(-maxIdle)

	r.mu.RLock()
	var idle []*Session
	for _, sessions := range r.userMap {
		for s := range sessions {
			if s.lastBeat().Before(cutoff) {
				idle = append(idle, s)
			}
		}
	}
	r.mu.RUnlock()

	for _, s := range idle {
		r.log.Printf("session for %q timed out", s.user.Username)
		r.Remove(s)
		s.stopSession()
	}
	return idle
}

// CloseAll stops every session; used on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	var all []*Session
	for _, sessions := range r.userMap {
		for s := range sessions {
			all = append(all, s)
		}
	}
	r.userMap = make(map[int]map[*Session]struct{})
	r.mu.Unlock()

	for _, s := range all {
		s.stopSession()
	}
}
