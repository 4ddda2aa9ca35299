package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/finflow/authcore/apperr"
	"github.com/finflow/authcore/credential"
	"github.com/finflow/authcore/identity"
)

type fakeGateway struct {
	mu          sync.Mutex
	refreshRes  identity.RefreshTokenResponse
	refreshErr  error
	profile     identity.UserProfile
	profileErr  error
	onProfile   func()
	networkHits atomic.Int32
}

func (g *fakeGateway) RefreshToken(context.Context) (identity.RefreshTokenResponse, error) {
	g.networkHits.Add(1)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refreshRes, g.refreshErr
}

func (g *fakeGateway) GetProfile(context.Context) (identity.UserProfile, error) {
	g.networkHits.Add(1)
	g.mu.Lock()
	hook := g.onProfile
	profile, err := g.profile, g.profileErr
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return profile, err
}

func collect(t *testing.T, ch <-chan State, n int) []State {
	t.Helper()
	out := make([]State, 0, n)
	for len(out) < n {
		select {
		case s, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d states: %v", len(out), out)
			}
			out = append(out, s)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d states: %v", len(out), out)
		}
	}
	return out
}

func TestRestoreWithStoredToken(t *testing.T) {
	store := credential.NewMemoryStore()
	_ = store.SetAccessToken(context.Background(), "abc")
	gw := &fakeGateway{profileErr: apperr.Network("offline", nil)}
	c := New(store, gw)

	c.RestoreSession(context.Background())

	if got := c.State(); got != Authenticated("abc") {
		t.Fatalf("expected authenticated(abc), got %v", got)
	}
	if _, ok := c.CurrentUser(); ok {
		t.Fatal("failed profile load must not set a user")
	}
}

func TestRestoreWithoutToken(t *testing.T) {
	gw := &fakeGateway{}
	c := New(credential.NewMemoryStore(), gw)
	c.RestoreSession(context.Background())

	if got := c.State(); got != Unauthenticated() {
		t.Fatalf("expected unauthenticated, got %v", got)
	}
	if gw.networkHits.Load() != 0 {
		t.Fatal("restore without token must not touch the network")
	}
}

func TestLoginLoadsProfile(t *testing.T) {
	store := credential.NewMemoryStore()
	gw := &fakeGateway{profile: identity.UserProfile{ID: "u1", Username: "alice"}}
	c := New(store, gw)

	if err := c.Login(context.Background(), identity.LoginResponse{Token: "t1", Username: "alice"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if c.State() != Authenticated("t1") {
		t.Fatalf("unexpected state %v", c.State())
	}
	if tok, _ := store.AccessToken(context.Background()); tok != "t1" {
		t.Fatalf("token not persisted: %q", tok)
	}
	if u, ok := c.CurrentUser(); !ok || u.ID != "u1" {
		t.Fatalf("unexpected user %+v %v", u, ok)
	}
	if err := c.Login(context.Background(), identity.LoginResponse{}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateCurrentUserIgnoredAfterSessionEnds(t *testing.T) {
	store := credential.NewMemoryStore()
	_ = store.SetAccessToken(context.Background(), "a")
	c := New(store, &fakeGateway{})
	c.RestoreSession(context.Background())

	c.HandleSessionExpired()
	c.UpdateCurrentUser(identity.UserProfile{ID: "u1"})
	if _, ok := c.CurrentUser(); ok {
		t.Fatal("expired session must not accept a current user")
	}

	_ = c.Logout(context.Background())
	c.UpdateCurrentUser(identity.UserProfile{ID: "u1"})
	if _, ok := c.CurrentUser(); ok {
		t.Fatal("logged out session must not accept a current user")
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	store := credential.NewMemoryStore()
	_ = store.Save(context.Background(), credential.Credentials{AccessToken: "a", RefreshToken: "r"})
	c := New(store, &fakeGateway{})
	c.RestoreSession(context.Background())
	c.UpdateCurrentUser(identity.UserProfile{ID: "u1"})

	for i := 0; i < 2; i++ {
		if err := c.Logout(context.Background()); err != nil {
			t.Fatalf("logout %d: %v", i, err)
		}
		if c.State() != Unauthenticated() {
			t.Fatalf("logout %d: state %v", i, c.State())
		}
	}
	creds, _ := credential.Load(context.Background(), store)
	if !creds.Empty() {
		t.Fatalf("store not cleared: %+v", creds)
	}
	if _, ok := c.CurrentUser(); ok {
		t.Fatal("user must be cleared")
	}
}

func TestRefreshSessionSuccess(t *testing.T) {
	store := credential.NewMemoryStore()
	_ = store.SetAccessToken(context.Background(), "old")
	gw := &fakeGateway{refreshRes: identity.RefreshTokenResponse{Token: "new"}}
	c := New(store, gw)
	c.RestoreSession(context.Background())

	states, cancel := c.Subscribe(context.Background())
	defer cancel()
	if err := c.RefreshSession(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got := collect(t, states, 3)
	want := []State{Authenticated("old"), Refreshing(), Authenticated("new")}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("state %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestRefreshFailureExpiresSession(t *testing.T) {
	store := credential.NewMemoryStore()
	_ = store.SetAccessToken(context.Background(), "old")
	refreshErr := apperr.Unauthorized("session refresh failed", nil)
	c := New(store, &fakeGateway{refreshErr: refreshErr})
	c.RestoreSession(context.Background())

	err := c.RefreshSession(context.Background())
	if !errors.Is(err, refreshErr) {
		t.Fatalf("expected refresh error to be re-raised, got %v", err)
	}
	if c.State() != SessionExpired() {
		t.Fatalf("expected session expired, got %v", c.State())
	}
	if err := c.RefreshSession(context.Background()); !errors.Is(err, apperr.ErrUnauthorized) || c.State() != SessionExpired() {
		t.Fatalf("refresh must not leave session expired, got %v / %v", err, c.State())
	}

	c.RestoreSession(context.Background())
	if c.State() != Authenticated("old") {
		t.Fatalf("restore should re-authenticate from the stored token, got %v", c.State())
	}
}

func TestExpiryDuringProfileLoadDoesNotDeadlock(t *testing.T) {
	store := credential.NewMemoryStore()
	_ = store.SetAccessToken(context.Background(), "abc")
	gw := &fakeGateway{profile: identity.UserProfile{ID: "u1"}}
	c := New(store, gw)
	gw.onProfile = c.HandleSessionExpired

	done := make(chan struct{})
	go func() {
		c.RestoreSession(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("restore deadlocked")
	}
	if c.State() != SessionExpired() {
		t.Fatalf("expected session expired, got %v", c.State())
	}
	if _, ok := c.CurrentUser(); ok {
		t.Fatal("expired session must not keep a user")
	}
}

func TestSubscribeDeliversCurrentThenOrderedChanges(t *testing.T) {
	store := credential.NewMemoryStore()
	_ = store.SetAccessToken(context.Background(), "abc")
	c := New(store, &fakeGateway{profileErr: errors.New("offline")})

	states, cancel := c.Subscribe(context.Background())
	defer cancel()

	c.RestoreSession(context.Background())
	c.HandleSessionExpired()
	c.HandleSessionExpired()
	_ = c.Logout(context.Background())

	got := collect(t, states, 4)
	want := []State{Loading(), Authenticated("abc"), SessionExpired(), Unauthenticated()}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("state %d: got %v want %v (all %v)", i, got[i], want[i], got)
		}
	}
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	c := New(credential.NewMemoryStore(), &fakeGateway{})
	slow, cancelSlow := c.Subscribe(context.Background())
	defer cancelSlow()
	fast, cancelFast := c.Subscribe(context.Background())
	defer cancelFast()

	for i := 0; i < 100; i++ {
		c.HandleSessionExpired()
		_ = c.Logout(context.Background())
	}

	got := collect(t, fast, 201)
	if got[0] != Loading() || got[200] != Unauthenticated() {
		t.Fatalf("unexpected fast sequence ends %v %v", got[0], got[200])
	}
	if first := collect(t, slow, 1); first[0] != Loading() {
		t.Fatalf("slow subscriber lost its first value: %v", first[0])
	}
}

func TestCancelStopsDeliveryAndReleasesSubscriber(t *testing.T) {
	c := New(credential.NewMemoryStore(), &fakeGateway{})

	states, cancel := c.Subscribe(context.Background())
	collect(t, states, 1)
	cancel()
	cancel()
	c.HandleSessionExpired()

	waitClosed(t, states)
	waitFor(t, func() bool { return c.Subscribers() == 0 })

	ctx, cancelCtx := context.WithCancel(context.Background())
	states, stop := c.Subscribe(ctx)
	defer stop()
	collect(t, states, 1)
	cancelCtx()
	waitClosed(t, states)
	waitFor(t, func() bool { return c.Subscribers() == 0 })
}

func TestCloseEndsSubscriptions(t *testing.T) {
	c := New(credential.NewMemoryStore(), &fakeGateway{})
	states, cancel := c.Subscribe(context.Background())
	defer cancel()
	collect(t, states, 1)

	c.Close()
	waitClosed(t, states)

	late, lateCancel := c.Subscribe(context.Background())
	defer lateCancel()
	if _, ok := <-late; ok {
		t.Fatal("subscription after close must be closed")
	}
}

func waitClosed(t *testing.T, ch <-chan State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed")
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
