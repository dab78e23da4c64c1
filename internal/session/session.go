// Package session owns the per-user request context: who is signed in, their
// profile and the warehouse they are working in. A Session only hands out a
// Scope once all three are resolved, and sign-out clears them together.
package session

import (
	"context"
	"errors"
	"sync"

	"go-warehouse-ws/pkg/apperror"

	"github.com/google/uuid"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateResolving     State = "resolving"
	StateReady         State = "ready"
	StateSignedOut     State = "signed_out"
)

type EventType string

const (
	EventSignedIn          EventType = "signed_in"
	EventSignedOut         EventType = "signed_out"
	EventRestored          EventType = "restored"
	EventWarehouseSelected EventType = "warehouse_selected"
	EventProfileUpdated    EventType = "profile_updated"
)

var (
	ErrNotReady    = apperror.Unauthorized("session is not ready")
	ErrNoWarehouse = apperror.Validation("no warehouse selected")
	ErrSuperseded  = apperror.Conflict("session changed while it was being resolved")
)

type Identity struct {
	UserID       uuid.UUID
	Email        string
	TokenVersion string
}

type Profile struct {
	UserID      uuid.UUID  `json:"user_id"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	RoleCode    string     `json:"role_code"`
	Privileges  []string   `json:"privileges"`
	WarehouseID *uuid.UUID `json:"warehouse_id,omitempty"`
}

type Warehouse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Code string    `json:"code"`
}

// Resolver loads what a session needs after an identity change. A nil
// warehouse with a nil error means the user has not selected one.
type Resolver interface {
	ResolveProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	ResolveWarehouse(ctx context.Context, profile *Profile) (*Warehouse, error)
}

type Event struct {
	Type     EventType
	Identity Identity
	Token    string
}

// Transition is published to registry subscribers on every state change.
type Transition struct {
	UserID      uuid.UUID  `json:"user_id"`
	From        State      `json:"from"`
	To          State      `json:"to"`
	Event       EventType  `json:"event"`
	WarehouseID *uuid.UUID `json:"warehouse_id,omitempty"`
}

type Session struct {
	mu         sync.RWMutex
	resolver   Resolver
	notify     func(Transition)
	state      State
	generation uint64
	token      string
	identity   *Identity
	profile    *Profile
	warehouse  *Warehouse
}

func New(resolver Resolver) *Session {
	return &Session{resolver: resolver, state: StateUninitialized}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token is the bearer token the session was resolved for.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// HandleEvent applies an identity provider notification. Every event except
// sign-out re-resolves profile and warehouse before the session becomes ready.
// If a newer event arrives while resolving, the older one returns ErrSuperseded
// and leaves the newer result in place.
func (s *Session) HandleEvent(ctx context.Context, ev Event) error {
	if ev.Type == EventSignedOut {
		s.SignOut()
		return nil
	}

	s.mu.Lock()
	from := s.state
	s.state = StateResolving
	s.generation++
	gen := s.generation
	s.mu.Unlock()
	if from != StateResolving {
		s.publish(Transition{UserID: ev.Identity.UserID, From: from, To: StateResolving, Event: ev.Type})
	}

	profile, warehouse, err := s.resolve(ctx, ev.Identity.UserID)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		s.clearLocked(StateUninitialized)
		s.mu.Unlock()
		s.publish(Transition{UserID: ev.Identity.UserID, From: StateResolving, To: StateUninitialized, Event: ev.Type})
		return err
	}
	id := ev.Identity
	s.identity = &id
	s.token = ev.Token
	s.profile = profile
	s.warehouse = warehouse
	s.state = StateReady
	s.mu.Unlock()

	t := Transition{UserID: id.UserID, From: StateResolving, To: StateReady, Event: ev.Type}
	if warehouse != nil {
		t.WarehouseID = &warehouse.ID
	}
	s.publish(t)
	return nil
}

func (s *Session) resolve(ctx context.Context, userID uuid.UUID) (*Profile, *Warehouse, error) {
	if s.resolver == nil {
		return nil, nil, errors.New("session: no resolver configured")
	}
	profile, err := s.resolver.ResolveProfile(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	warehouse, err := s.resolver.ResolveWarehouse(ctx, profile)
	if err != nil {
		return nil, nil, err
	}
	return profile, warehouse, nil
}

// SignOut clears token, identity, profile and warehouse in one step.
func (s *Session) SignOut() {
	s.mu.Lock()
	from := s.state
	var userID uuid.UUID
	if s.identity != nil {
		userID = s.identity.UserID
	}
	s.generation++
	s.clearLocked(StateSignedOut)
	s.mu.Unlock()
	if from != StateSignedOut {
		s.publish(Transition{UserID: userID, From: from, To: StateSignedOut, Event: EventSignedOut})
	}
}

func (s *Session) clearLocked(state State) {
	s.token = ""
	s.identity = nil
	s.profile = nil
	s.warehouse = nil
	s.state = state
}

func (s *Session) publish(t Transition) {
	if s.notify != nil {
		s.notify(t)
	}
}

// Scope snapshots a ready session for one request.
func (s *Session) Scope() (Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateReady || s.identity == nil || s.profile == nil {
		return Scope{}, ErrNotReady
	}
	sc := Scope{
		UserID:     s.identity.UserID,
		Email:      s.identity.Email,
		FullName:   s.profile.FullName,
		RoleCode:   s.profile.RoleCode,
		Privileges: append([]string(nil), s.profile.Privileges...),
	}
	if s.warehouse != nil {
		w := *s.warehouse
		sc.Warehouse = &w
	}
	return sc, nil
}

// Scope is the immutable per-request view of a ready session that services
// receive instead of reading ambient state.
type Scope struct {
	UserID     uuid.UUID
	Email      string
	FullName   string
	RoleCode   string
	Privileges []string
	Warehouse  *Warehouse
}

// RequireWarehouse returns the selected warehouse id or ErrNoWarehouse.
func (s Scope) RequireWarehouse() (uuid.UUID, error) {
	if s.Warehouse == nil || s.Warehouse.ID == uuid.Nil {
		return uuid.Nil, ErrNoWarehouse
	}
	return s.Warehouse.ID, nil
}

// Actor is the audit name written to created_by/updated_by columns.
func (s Scope) Actor() string {
	if s.FullName != "" {
		return s.FullName
	}
	return s.Email
}

func (s Scope) HasPrivilege(code string) bool {
	for _, p := range s.Privileges {
		if p == code {
			return true
		}
	}
	return false
}

// IsNoWarehouse reports whether err is the no-warehouse-selected state.
func IsNoWarehouse(err error) bool {
	return errors.Is(err, ErrNoWarehouse)
}
