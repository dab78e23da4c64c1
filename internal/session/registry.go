package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Registry holds one Session per signed-in user and fans their transitions out
// to subscribers.
type Registry struct {
	mu       sync.Mutex
	resolver Resolver
	sessions map[uuid.UUID]*Session
	subsMu   sync.RWMutex
	subs     map[int]func(Transition)
	nextSub  int
}

func NewRegistry(resolver Resolver) *Registry {
	return &Registry{
		resolver: resolver,
		sessions: make(map[uuid.UUID]*Session),
		subs:     make(map[int]func(Transition)),
	}
}

// Get returns the user's session, creating an uninitialized one if needed.
func (r *Registry) Get(userID uuid.UUID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		s = New(r.resolver)
		s.notify = r.broadcast
		r.sessions[userID] = s
	}
	return s
}

// Ensure returns a ready session for the identity, resolving it first when the
// process has not seen this user yet (for example after a restart) or when the
// token no longer matches.
func (r *Registry) Ensure(ctx context.Context, id Identity, token string) (*Session, error) {
	s := r.Get(id.UserID)
	if s.State() == StateReady && s.Token() == token {
		return s, nil
	}
	if err := s.HandleEvent(ctx, Event{Type: EventRestored, Identity: id, Token: token}); err != nil {
		return nil, err
	}
	return s, nil
}

// Publish routes an identity provider event to the user's session.
func (r *Registry) Publish(ctx context.Context, ev Event) error {
	s := r.Get(ev.Identity.UserID)
	return s.HandleEvent(ctx, ev)
}

// SignOut clears the user's session and forgets it.
func (r *Registry) SignOut(userID uuid.UUID) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()
	if ok {
		s.SignOut()
	}
}

// Subscribe registers fn for every transition. The returned func unsubscribes.
func (r *Registry) Subscribe(fn func(Transition)) func() {
	r.subsMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subsMu.Unlock()
	return func() {
		r.subsMu.Lock()
		delete(r.subs, id)
		r.subsMu.Unlock()
	}
}

func (r *Registry) broadcast(t Transition) {
	r.subsMu.RLock()
	fns := make([]func(Transition), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subsMu.RUnlock()
	for _, fn := range fns {
		fn(t)
	}
}
