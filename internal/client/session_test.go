package client

import (
	"testing"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/family"
)

func TestDeriveUserPrecedence(t *testing.T) {
	sess := auth.Session{
		UserID: "user-1",
		Email:  "p@example.com",
		Metadata: auth.UserMetadata{
			Name:   "Old",
			Role:   auth.RoleParent,
			Avatar: "https://example.com/meta.png",
		},
	}

	// The profile overlay wins over metadata.
	profile := &family.Profile{ID: "user-1", Name: "Alex", Avatar: "https://example.com/profile.png"}
	u := DeriveUser(sess, profile)
	if u.Name != "Alex" {
		t.Fatalf("profile name should win, got %q", u.Name)
	}
	if u.Avatar != "https://example.com/profile.png" {
		t.Fatalf("profile avatar should win, got %q", u.Avatar)
	}

	// Without an overlay, metadata applies.
	u = DeriveUser(sess, nil)
	if u.Name != "Old" || u.Avatar != "https://example.com/meta.png" {
		t.Fatalf("metadata should apply: %+v", u)
	}

	// Empty profile fields fall through to metadata.
	u = DeriveUser(sess, &family.Profile{ID: "user-1"})
	if u.Name != "Old" {
		t.Fatalf("empty overlay field should fall through, got %q", u.Name)
	}
}

func TestDeriveUserDefaults(t *testing.T) {
	u := DeriveUser(auth.Session{UserID: "user-9"}, nil)
	if u.Name != DefaultName {
		t.Fatalf("expected fallback name, got %q", u.Name)
	}
	if u.Role != auth.RoleParent {
		t.Fatalf("expected parent default role, got %q", u.Role)
	}
	if u.Avatar != "https://i.pravatar.cc/150?u=user-9" {
		t.Fatalf("unexpected default avatar: %q", u.Avatar)
	}
}

func TestStaleDerivationDiscarded(t *testing.T) {
	s := NewSessionState()

	first := s.BeginDerivation()
	second := s.BeginDerivation()

	// The newer derivation commits first.
	if !s.Commit(second, User{ID: "user-2", Name: "Fresh"}) {
		t.Fatalf("newest derivation should commit")
	}
	// The older one must be dropped even though it finishes later.
	if s.Commit(first, User{ID: "user-1", Name: "Stale"}) {
		t.Fatalf("stale derivation should be discarded")
	}
	if got := s.Current(); got == nil || got.Name != "Fresh" {
		t.Fatalf("unexpected current user: %+v", got)
	}
}

func TestClearSupersedesInFlightDerivation(t *testing.T) {
	s := NewSessionState()
	seq := s.BeginDerivation()
	s.Clear()

	if s.Commit(seq, User{ID: "user-1"}) {
		t.Fatalf("derivation begun before Clear should not apply")
	}
	if s.Current() != nil {
		t.Fatalf("expected no user after Clear")
	}
}

func TestRosterSeededAndDeduped(t *testing.T) {
	s := NewSessionState()

	roster := s.Roster()
	if len(roster) != 2 {
		t.Fatalf("expected 2 seeded accounts, got %d", len(roster))
	}
	if roster[0].ID != "parent-1" || roster[1].ID != "child-1" {
		t.Fatalf("unexpected seed accounts: %+v", roster)
	}
	if roster[1].ParentID != "parent-1" {
		t.Fatalf("seeded child should link to seeded parent")
	}

	// Committing a user with a known id replaces, not appends.
	seq := s.BeginDerivation()
	s.Commit(seq, User{ID: "parent-1", Name: "Renamed", Role: auth.RoleParent})
	roster = s.Roster()
	if len(roster) != 2 {
		t.Fatalf("expected replace, roster grew to %d", len(roster))
	}
	if roster[0].Name != "Renamed" {
		t.Fatalf("roster entry not replaced: %+v", roster[0])
	}

	// New ids append.
	s.AddOrReplace(User{ID: "user-3", Name: "New"})
	if len(s.Roster()) != 3 {
		t.Fatalf("expected append for unknown id")
	}
}

func TestSwitchAccount(t *testing.T) {
	s := NewSessionState()

	if !s.SwitchAccount("child-1") {
		t.Fatalf("expected switch to seeded account")
	}
	if got := s.Current(); got == nil || got.ID != "child-1" {
		t.Fatalf("unexpected current: %+v", got)
	}
	if s.SwitchAccount("missing") {
		t.Fatalf("unknown account must not switch")
	}
	// Failed switch keeps the previous user.
	if got := s.Current(); got == nil || got.ID != "child-1" {
		t.Fatalf("failed switch should not clear user: %+v", got)
	}
}

func TestSubscribeNotifications(t *testing.T) {
	s := NewSessionState()
	var notified []*User
	unsub := s.Subscribe(func(u *User) { notified = append(notified, u) })

	seq := s.BeginDerivation()
	s.Commit(seq, User{ID: "user-1"})
	s.Clear()
	unsub()
	seq = s.BeginDerivation()
	s.Commit(seq, User{ID: "user-2"})

	if len(notified) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notified))
	}
	if notified[0] == nil || notified[0].ID != "user-1" {
		t.Fatalf("unexpected first notification: %+v", notified[0])
	}
	if notified[1] != nil {
		t.Fatalf("clear should notify with nil user")
	}
}

func TestInviteLinkContract(t *testing.T) {
	c := New("http://localhost:0")

	// No signed-in user: empty link.
	if link := c.GenerateChildInviteLink("https://kidboost.app"); link != "" {
		t.Fatalf("expected empty link without user, got %q", link)
	}

	// Child accounts do not get invite links.
	seq := c.session.BeginDerivation()
	c.session.Commit(seq, User{ID: "kid-1", Role: auth.RoleChild, ParentID: "parent-1"})
	if link := c.GenerateChildInviteLink("https://kidboost.app"); link != "" {
		t.Fatalf("expected empty link for child, got %q", link)
	}

	// Parents get origin + parentId query.
	seq = c.session.BeginDerivation()
	c.session.Commit(seq, User{ID: "parent-7", Role: auth.RoleParent})
	link := c.GenerateChildInviteLink("https://kidboost.app/")
	if link != "https://kidboost.app/?parentId=parent-7" {
		t.Fatalf("unexpected link: %q", link)
	}

	qr := QRImageURL(link)
	want := "https://api.qrserver.com/v1/create-qr-code/?size=200x200&data=https%3A%2F%2Fkidboost.app%2F%3FparentId%3Dparent-7"
	if qr != want {
		t.Fatalf("unexpected qr url:\n got %q\nwant %q", qr, want)
	}
	if QRImageURL("") != "" {
		t.Fatalf("empty link should yield empty qr url")
	}
}
