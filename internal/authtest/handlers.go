package authtest

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	codeUserNotFound    = 1002
	codeInvalidInput    = 1003
	codeUnauthenticated = 1006
	codeTokenInvalid    = 1010
	codeTokenExpired    = 1011
)

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.handleLogin)
	mux.HandleFunc("POST /auth/google", b.handleGoogle)
	mux.HandleFunc("POST /auth/register", b.handleRegister)
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc("POST /auth/logout", b.handleLogout)
	mux.HandleFunc("POST /auth/send-otp", b.handleSendOTP)
	mux.HandleFunc("POST /auth/verify-otp", b.handleVerifyOTP)
	mux.HandleFunc("POST /auth/reset-password", b.handleResetPassword)
	mux.HandleFunc("GET /auth/check-user", b.handleCheckUser)
	mux.HandleFunc("GET /users/my-profile", b.handleGetProfile)
	mux.HandleFunc("PUT /users/my-profile", b.handleUpdateProfile)
	return b.observe(mux)
}

// observe records calls and drops connections while offline.
func (b *Backend) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		b.lastAuth[r.URL.Path] = r.Header.Get("Authorization")
		offline := b.offline
		b.mu.Unlock()

		if offline {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
					return
				}
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginResponse struct {
	Email        string `json:"email"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Type         string `json:"type"`
	Username     string `json:"username"`
	ExpiresIn    int    `json:"expiresIn"`
}

func (b *Backend) loginResponseLocked(u *User) loginResponse {
	access, refresh := b.issueLocked(u)
	return loginResponse{
		Email:        u.Email,
		Token:        access,
		RefreshToken: refresh,
		Type:         "Bearer",
		Username:     u.Username,
		ExpiresIn:    int(b.tokens.AccessTTL() / time.Second),
	}
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(r, &req) {
		writeProblem(w, http.StatusBadRequest, codeInvalidInput, "malformed request")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[req.Username]
	if !ok || u.Password != req.Password {
		writeProblem(w, http.StatusUnauthorized, codeUnauthenticated, "Invalid username or password")
		return
	}
	writeJSON(w, http.StatusOK, b.loginResponseLocked(u))
}

func (b *Backend) handleGoogle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if !decodeBody(r, &req) || req.IDToken == "" {
		writeProblem(w, http.StatusBadRequest, codeInvalidInput, "idToken is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.GoogleIDToken != "" && u.GoogleIDToken == req.IDToken {
			writeJSON(w, http.StatusOK, b.loginResponseLocked(u))
			return
		}
	}
	writeProblem(w, http.StatusUnauthorized, codeTokenInvalid, "Invalid Google token")
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string  `json:"username"`
		Email     string  `json:"email"`
		Password  string  `json:"password"`
		FirstName *string `json:"firstName"`
		LastName  *string `json:"lastName"`
		DOB       *string `json:"dob"`
	}
	if !decodeBody(r, &req) || req.Username == "" || req.Email == "" || req.Password == "" {
		writeProblem(w, http.StatusBadRequest, codeInvalidInput, "username, email and password are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	scope, ok := b.followUps[r.Header.Get("X-Registration-Token")]
	if !ok || scope != req.Email+"|register" {
		writeProblem(w, http.StatusForbidden, 1007, "Invalid registration token")
		return
	}
	delete(b.followUps, r.Header.Get("X-Registration-Token"))
	if _, exists := b.users[req.Username]; exists || b.userByEmailLocked(req.Email) != nil {
		writeLegacy(w, http.StatusConflict, codeInvalidInput, "User already exists")
		return
	}

	u := &User{ID: uuid.NewString(), Username: req.Username, Email: req.Email, Password: req.Password, Roles: []string{"USER"}}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if req.DOB != nil {
		u.DOB = *req.DOB
	}
	b.users[u.Username] = u
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Registered"})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	ok := decodeBody(r, &req)

	b.mu.Lock()
	b.refreshCalled++
	delay, fail := b.refreshDelay, b.failRefresh
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if !ok || fail {
		writeProblem(w, http.StatusUnauthorized, codeTokenExpired, "Refresh token expired")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	userID, known := b.refresh[req.RefreshToken]
	u := b.userByIDLocked(userID)
	if !known || u == nil {
		writeProblem(w, http.StatusUnauthorized, codeTokenInvalid, "Invalid refresh token")
		return
	}
	delete(b.refresh, req.RefreshToken)
	access, refresh := b.issueLocked(u)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":        access,
		"refreshToken": refresh,
		"type":         "Bearer",
		"expiresIn":    int(b.tokens.AccessTTL() / time.Second),
	})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failLogout {
		writeProblem(w, http.StatusInternalServerError, 9999, "logout unavailable")
		return
	}
	u := b.authenticateLocked(r)
	if u == nil {
		writeProblem(w, http.StatusUnauthorized, codeUnauthenticated, "Unauthenticated")
		return
	}
	for token, s := range b.access {
		if s.userID == u.ID {
			delete(b.access, token)
		}
	}
	for token, id := range b.refresh {
		if id == u.ID {
			delete(b.refresh, token)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		Purpose string `json:"purpose"`
	}
	if !decodeBody(r, &req) || req.Email == "" {
		writeProblem(w, http.StatusBadRequest, codeInvalidInput, "email is required")
		return
	}
	if req.Purpose == "" {
		req.Purpose = "register"
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if req.Purpose == "reset_password" && b.userByEmailLocked(req.Email) == nil {
		writeLegacy(w, http.StatusNotFound, codeUserNotFound, "User not found")
		return
	}
	b.otps[req.Email+"|"+req.Purpose] = OTPCode
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent"})
}

func (b *Backend) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		OTP     string `json:"otp"`
		Purpose string `json:"purpose"`
	}
	if !decodeBody(r, &req) {
		writeProblem(w, http.StatusBadRequest, codeInvalidInput, "malformed request")
		return
	}
	if req.Purpose == "" {
		req.Purpose = "register"
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	scope := req.Email + "|" + req.Purpose
	if want, ok := b.otps[scope]; !ok || want != req.OTP {
		writeProblem(w, http.StatusBadRequest, codeInvalidInput, "Invalid OTP")
		return
	}
	delete(b.otps, scope)
	followUp := uuid.NewString()
	b.followUps[followUp] = scope
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP verified", "registrationToken": followUp})
}

func (b *Backend) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if !decodeBody(r, &req) || req.Password == "" || req.Password != req.ConfirmPassword {
		writeProblem(w, http.StatusBadRequest, codeInvalidInput, "Passwords do not match")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	token := r.Header.Get("X-Reset-Token")
	email, ok := strings.CutSuffix(b.followUps[token], "|reset_password")
	if !ok {
		writeProblem(w, http.StatusForbidden, 1007, "Invalid reset token")
		return
	}
	delete(b.followUps, token)
	u := b.userByEmailLocked(email)
	if u == nil {
		writeLegacy(w, http.StatusNotFound, codeUserNotFound, "User not found")
		return
	}
	u.Password = req.Password
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

func (b *Backend) handleCheckUser(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	b.mu.Lock()
	exists := email != "" && b.userByEmailLocked(email) != nil
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

type profileBody struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName *string  `json:"firstName,omitempty"`
	LastName  *string  `json:"lastName,omitempty"`
	DOB       *string  `json:"dob,omitempty"`
	Roles     []string `json:"roles"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func profileOf(u *User) profileBody {
	return profileBody{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: optional(u.FirstName),
		LastName:  optional(u.LastName),
		DOB:       optional(u.DOB),
		Roles:     append([]string(nil), u.Roles...),
	}
}

func (b *Backend) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.authenticateLocked(r)
	if u == nil {
		writeProblem(w, http.StatusUnauthorized, codeTokenExpired, "Token expired")
		return
	}
	writeJSON(w, http.StatusOK, profileOf(u))
}

func (b *Backend) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		DOB       string `json:"dob"`
	}
	if !decodeBody(r, &req) {
		writeProblem(w, http.StatusBadRequest, codeInvalidInput, "malformed request")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.authenticateLocked(r)
	if u == nil {
		writeProblem(w, http.StatusUnauthorized, codeTokenExpired, "Token expired")
		return
	}
	u.FirstName, u.LastName, u.DOB = req.FirstName, req.LastName, req.DOB
	writeJSON(w, http.StatusOK, profileOf(u))
}
