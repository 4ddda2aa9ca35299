package session

// Phase is the kind of a State.
type Phase uint8

const (
	PhaseLoading Phase = iota
	PhaseAuthenticated
	PhaseUnauthenticated
	PhaseRefreshing
	PhaseSessionExpired
)

// String returns the wire name of p.
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseRefreshing:
		return "refreshing"
	case PhaseSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// State is the authentication state. Token is set only when Phase is
// PhaseAuthenticated.
type State struct {
	Phase Phase
	Token string
}

// Loading is the state before the stored session has been read.
func Loading() State { return State{Phase: PhaseLoading} }

// Unauthenticated is the state without a session.
func Unauthenticated() State { return State{Phase: PhaseUnauthenticated} }

// Refreshing is the state while the access token is being replaced.
func Refreshing() State { return State{Phase: PhaseRefreshing} }

// SessionExpired is the state after the session could not be recovered.
func SessionExpired() State { return State{Phase: PhaseSessionExpired} }

// Authenticated is the state of a session holding token.
func Authenticated(token string) State {
	return State{Phase: PhaseAuthenticated, Token: token}
}

// IsAuthenticated reports whether s holds a usable session.
func (s State) IsAuthenticated() bool {
	return s.Phase == PhaseAuthenticated
}

// String formats s without revealing the token.
func (s State) String() string {
	if s.Phase == PhaseAuthenticated {
		return "authenticated(" + redact(s.Token) + ")"
	}
	return s.Phase.String()
}

func redact(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "…"
}
