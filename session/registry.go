package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lrc-editor-go/logcolors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Registry keeps live sessions by id and expires idle ones
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	opts     Options
	now      func() time.Time
}

// NewRegistry creates a registry. Sessions idle longer than ttl are removed
// by Sweep; ttl <= 0 disables expiry.
func NewRegistry(ttl time.Duration, opts Options) *Registry {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		opts:     opts,
		now:      now,
	}
}

// Create starts a new empty session
func (r *Registry) Create() *Session {
	id := uuid.NewString()
	s := New(id, r.opts)

	r.mu.Lock()
	r.sessions[id] = &entry{session: s, lastSeen: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()

	log.Infof("%s %s Created (%d live)", logcolors.LogSession, logcolors.Session(id), n)
	return s
}

// Get returns a live session and refreshes its idle timer
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, newError("get session", KindNotFound, fmt.Errorf("%w: %s", ErrNotFound, id))
	}
	e.lastSeen = r.now()
	return e.session, nil
}

// Delete resets and removes a session
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return newError("delete session", KindNotFound, fmt.Errorf("%w: %s", ErrNotFound, id))
	}
	e.session.Reset()
	return nil
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the ttl and returns how many
// were removed
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	var expired []*Session
	r.mu.Lock()
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Reset()
		log.Infof("%s Expired session %s", logcolors.LogSessionSweep, logcolors.Session(s.ID()))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.ttl <= 0 {
		log.Infof("%s Session expiry disabled", logcolors.LogSessionSweep)
		return
	}
	log.Infof("%s Sweeping every %v (ttl %v)", logcolors.LogSessionSweep, interval, r.ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Infof("%s Removed %d idle session(s), %d live", logcolors.LogSessionSweep, n, r.Len())
			}
		}
	}
}
