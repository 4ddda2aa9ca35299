package jwt

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned by Peek for input that is not a JWT.
var ErrMalformedToken = errors.New("malformed token")

// Peek decodes the payload segment of token without verifying it.
func Peek(token string) (map[string]any, error) {
	if claims, err := peekStrict(token); err == nil {
		return claims, nil
	}

	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, ErrMalformedToken
	}
	payload := parts[1]
	if rem := len(payload) % 4; rem != 0 {
		payload += strings.Repeat("=", 4-rem)
	}

	raw, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, ErrMalformedToken
		}
	}

	var claims map[string]any
	if err := json.Unmarshal(raw, &claims); err != nil || claims == nil {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// peekStrict handles well-formed three-segment tokens.
func peekStrict(token string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// SubjectHint returns the "sub" claim of token, falling back to "username".
// It reports false when neither is a non-empty string.
func SubjectHint(token string) (string, bool) {
	claims, err := Peek(token)
	if err != nil {
		return "", false
	}
	for _, name := range []string{"sub", "username"} {
		if v, ok := claims[name].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}
