package authtest

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/finflow/authcore/jwt"
	"github.com/google/uuid"
)

// OTPCode is the code every send-otp call "emails".
const OTPCode = "123456"

// User is an account known to the backend.
type User struct {
	ID            string
	Username      string
	Password      string
	Email         string
	FirstName     string
	LastName      string
	DOB           string
	Roles         []string
	GoogleIDToken string
}

type session struct {
	userID string
	signed bool
}

// Backend is a stateful fake of the FinFlow API.
type Backend struct {
	server *httptest.Server
	tokens *jwt.Manager

	mu            sync.Mutex
	users         map[string]*User // by username
	access        map[string]session
	refresh       map[string]string // refresh token -> user id
	otps          map[string]string // email|purpose -> otp
	followUps     map[string]string // follow-up token -> email|purpose
	calls         map[string]int
	lastAuth      map[string]string
	forced401     int
	failRefresh   bool
	failLogout    bool
	offline       bool
	refreshDelay  time.Duration
	nextAccess    string
	nextRefresh   string
	refreshCalled int
}

// NewBackend starts a backend that is shut down with t.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("signing key: %v", err)
	}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    key,
		Issuer:        "finflow-authtest",
	})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}

	b := &Backend{
		tokens:    tokens,
		users:     map[string]*User{},
		access:    map[string]session{},
		refresh:   map[string]string{},
		otps:      map[string]string{},
		followUps: map[string]string{},
		calls:     map[string]int{},
		lastAuth:  map[string]string{},
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the base URL of the server.
func (b *Backend) URL() string {
	return b.server.URL
}

// AddUser registers u, assigning an id when empty.
func (b *Backend) AddUser(u User) User {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if len(u.Roles) == 0 {
		u.Roles = []string{"USER"}
	}
	stored := u
	b.users[u.Username] = &stored
	return stored
}

// IssueTokens creates a session for username as if it had logged in.
func (b *Backend) IssueTokens(username string) (access, refresh string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[username]
	if !ok {
		return "", ""
	}
	return b.issueLocked(u)
}

// ExpireAccess makes token fail with 401 from now on.
func (b *Backend) ExpireAccess(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.access, token)
}

// ForceUnauthorized makes the next n authenticated requests fail with 401
// regardless of the bearer.
func (b *Backend) ForceUnauthorized(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forced401 = n
}

// SetFailRefresh makes every refresh answer 401.
func (b *Backend) SetFailRefresh(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRefresh = fail
}

// SetFailLogout makes logout answer 500.
func (b *Backend) SetFailLogout(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failLogout = fail
}

// SetRefreshDelay slows every refresh call down by d.
func (b *Backend) SetRefreshDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshDelay = d
}

// SetOffline drops every connection without a response while set.
func (b *Backend) SetOffline(offline bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offline = offline
}

// SetNextTokens fixes the tokens returned by the next issuance.
func (b *Backend) SetNextTokens(access, refresh string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextAccess = access
	b.nextRefresh = refresh
}

// RefreshCalls counts POST /auth/refresh requests.
func (b *Backend) RefreshCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalled
}

// Calls counts requests to path.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// LastAuthorization returns the Authorization header of the latest request
// to path.
func (b *Backend) LastAuthorization(path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastAuth[path]
}

func (b *Backend) issueLocked(u *User) (string, string) {
	access, refresh := b.nextAccess, b.nextRefresh
	b.nextAccess, b.nextRefresh = "", ""

	signed := false
	if access == "" {
		token, err := b.tokens.CreateAccess(u.ID, u.Username)
		if err != nil {
			panic(err)
		}
		access, signed = token, true
	}
	if refresh == "" {
		refresh = uuid.NewString()
	}
	b.access[access] = session{userID: u.ID, signed: signed}
	b.refresh[refresh] = u.ID
	return access, refresh
}

func (b *Backend) userByIDLocked(id string) *User {
	for _, u := range b.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (b *Backend) userByEmailLocked(email string) *User {
	for _, u := range b.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

// authenticate resolves the bearer of r. Callers hold b.mu.
func (b *Backend) authenticateLocked(r *http.Request) *User {
	if b.forced401 > 0 {
		b.forced401--
		return nil
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil
	}
	s, ok := b.access[token]
	if !ok {
		return nil
	}
	if s.signed {
		if _, err := b.tokens.ParseAccess(token); err != nil {
			return nil
		}
	}
	return b.userByIDLocked(s.userID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status, code int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
		"code":   code,
	})
}

func writeLegacy(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{"code": code, "message": message, "result": nil})
}

func decodeBody(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}
