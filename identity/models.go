package identity

// LoginRequest is the body of a password login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by both login endpoints.
type LoginResponse struct {
	Email        string `json:"email"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Type         string `json:"type"`
	Username     string `json:"username"`
	ExpiresIn    *int   `json:"expiresIn,omitempty"`
}

// Authenticated reports whether the response carries an access token.
func (r LoginResponse) Authenticated() bool {
	return r.Token != ""
}

// GoogleLoginRequest carries a Google ID token.
type GoogleLoginRequest struct {
	IDToken string `json:"idToken"`
}

// RegisterRequest is the body of an account registration.
type RegisterRequest struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	DOB       *string `json:"dob,omitempty"`
}

// RegisterResponse is the message-only registration reply.
type RegisterResponse struct {
	Message string `json:"message"`
}

// UserProfile is the signed-in user's account data.
type UserProfile struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName *string  `json:"firstName,omitempty"`
	LastName  *string  `json:"lastName,omitempty"`
	DOB       *string  `json:"dob,omitempty"`
	Roles     []string `json:"roles"`
}

// UpdateProfileRequest holds the editable profile fields.
type UpdateProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	DOB       string `json:"dob"`
}

// RefreshTokenRequest is the body of a token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshTokenResponse carries the rotated tokens.
type RefreshTokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Type         string `json:"type"`
	ExpiresIn    *int   `json:"expiresIn,omitempty"`
}

// OTPPurpose scopes a one-time password to a flow.
type OTPPurpose string

const (
	OTPPurposeRegister      OTPPurpose = "register"
	OTPPurposeResetPassword OTPPurpose = "reset_password"
)

// SendOTPRequest asks for a one-time password for a flow.
type SendOTPRequest struct {
	Email   string     `json:"email"`
	Purpose OTPPurpose `json:"purpose,omitempty"`
}

// VerifyOTPRequest submits a one-time password.
type VerifyOTPRequest struct {
	Email   string     `json:"email"`
	OTP     string     `json:"otp"`
	Purpose OTPPurpose `json:"purpose,omitempty"`
}

// VerifyOTPResponse carries the follow-up token for the flow the OTP was
// sent for. The field name is historical: it is also the reset token.
type VerifyOTPResponse struct {
	Message           string `json:"message"`
	RegistrationToken string `json:"registrationToken"`
}

// ResetPasswordRequest sets a new password.
type ResetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type userExistenceResponse struct {
	Exists bool `json:"exists"`
}
