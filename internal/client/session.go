package client

import (
	"sync"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/family"
)

// DefaultName is used when neither the profile nor the identity metadata
// carries a display name.
const DefaultName = "User"

// User is the application-level view of an account, derived from identity
// metadata with an optional profile overlay.
type User struct {
	ID       string
	Name     string
	Role     auth.Role
	ParentID string
	Avatar   string
}

// defaultAvatar returns the deterministic placeholder for an account.
func defaultAvatar(id string) string {
	return "https://i.pravatar.cc/150?u=" + id
}

// DeriveUser builds the application user for a session. Profile fields win
// over metadata, metadata over defaults.
func DeriveUser(sess auth.Session, profile *family.Profile) User {
	u := User{
		ID:       sess.UserID,
		Name:     sess.Metadata.Name,
		Role:     sess.Metadata.Role,
		ParentID: sess.Metadata.ParentID,
		Avatar:   sess.Metadata.Avatar,
	}
	if profile != nil {
		if profile.Name != "" {
			u.Name = profile.Name
		}
		if profile.Avatar != "" {
			u.Avatar = profile.Avatar
		}
	}
	if u.Name == "" {
		u.Name = DefaultName
	}
	if u.Role == "" {
		u.Role = auth.RoleParent
	}
	if u.Avatar == "" {
		u.Avatar = defaultAvatar(u.ID)
	}
	return u
}

// SessionState holds the signed-in user, the locally known account roster
// and change subscribers. Derivations are sequenced: a derivation begun
// before a newer one commits is discarded, so a slow profile fetch can never
// clobber a fresher session.
type SessionState struct {
	mu      sync.Mutex
	seq     uint64
	current *User
	roster  []User
	subs    map[int]func(*User)
	nextSub int
}

// NewSessionState seeds the roster with the built-in demo accounts.
func NewSessionState() *SessionState {
	return &SessionState{
		roster: []User{
			{ID: "parent-1", Name: "Parent User", Role: auth.RoleParent, Avatar: defaultAvatar("parent-1")},
			{ID: "child-1", Name: "Child User", Role: auth.RoleChild, ParentID: "parent-1", Avatar: defaultAvatar("child-1")},
		},
		subs: make(map[int]func(*User)),
	}
}

// Current returns the signed-in user, or nil.
func (s *SessionState) Current() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}

// Roster returns the known accounts.
func (s *SessionState) Roster() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, len(s.roster))
	copy(out, s.roster)
	return out
}

// Subscribe registers a listener invoked on every user change. The returned
// function removes the subscription.
func (s *SessionState) Subscribe(fn func(*User)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// BeginDerivation marks the start of a user derivation and returns its
// sequence number. Commit calls carrying an older number are ignored.
func (s *SessionState) BeginDerivation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Commit installs a derived user if no newer derivation has begun. It
// reports whether the value was applied.
func (s *SessionState) Commit(seq uint64, u User) bool {
	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return false
	}
	s.current = &u
	s.addOrReplaceLocked(u)
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(&u)
	}
	return true
}

// Clear drops the signed-in user, superseding any in-flight derivation.
func (s *SessionState) Clear() {
	s.mu.Lock()
	s.seq++
	s.current = nil
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(nil)
	}
}

// SwitchAccount makes a roster account current without a server round trip.
func (s *SessionState) SwitchAccount(id string) bool {
	s.mu.Lock()
	var found *User
	for i := range s.roster {
		if s.roster[i].ID == id {
			u := s.roster[i]
			found = &u
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		return false
	}
	s.seq++
	s.current = found
	subs := s.snapshotSubsLocked()
	u := *found
	s.mu.Unlock()

	for _, fn := range subs {
		fn(&u)
	}
	return true
}

// AddOrReplace upserts a roster entry keyed by user id.
func (s *SessionState) AddOrReplace(u User) {
	s.mu.Lock()
	s.addOrReplaceLocked(u)
	s.mu.Unlock()
}

func (s *SessionState) addOrReplaceLocked(u User) {
	for i := range s.roster {
		if s.roster[i].ID == u.ID {
			s.roster[i] = u
			return
		}
	}
	s.roster = append(s.roster, u)
}

func (s *SessionState) snapshotSubsLocked() []func(*User) {
	out := make([]func(*User), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
