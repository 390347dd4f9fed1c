// Package session holds the per-browser session state machine and the route guard.
package session

import (
	"context"
	"errors"
	"slices"
)

// DefaultElevatedGroup is the group granting elevated privileges.
const DefaultElevatedGroup = "admin"

// User is an authenticated principal as reported by the provider.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Groups   []string `json:"groups"`
}

// InGroup reports whether the user belongs to group.
func (u *User) InGroup(group string) bool {
	return u != nil && slices.Contains(u.Groups, group)
}

// Session is the observable session of one browser.
type Session struct {
	User      *User `json:"user"`
	IsLoading bool  `json:"is_loading"`

	elevatedGroup string
}

// IsAuthenticated reports whether a user is signed in.
func (s Session) IsAuthenticated() bool {
	return s.User != nil
}

// IsElevated reports whether the signed-in user holds the elevated group.
func (s Session) IsElevated() bool {
	group := s.elevatedGroup
	if group == "" {
		group = DefaultElevatedGroup
	}
	return s.User.InGroup(group)
}

// State is a node of the session state machine.
type State int

const (
	// StateUnknown is the initial state, before the first session check resolves.
	StateUnknown State = iota
	// StateAnonymous means no user is signed in.
	StateAnonymous
	// StateRotationRequired means sign-in succeeded but a new credential must be set.
	StateRotationRequired
	// StateAuthenticated means a user is signed in.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateRotationRequired:
		return "rotation_required"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// NextStep is the follow-up a sign-in requires.
type NextStep string

const (
	NextStepDone             NextStep = "done"
	NextStepRotateCredential NextStep = "rotate_credential"
)

// SignInResult is the discriminated outcome of a sign-in.
// Token is set when Step is NextStepDone; Challenge when a rotation is required.
type SignInResult struct {
	Step      NextStep `json:"next_step"`
	Token     string   `json:"-"`
	Challenge string   `json:"-"`
}

// Done reports whether the sign-in completed.
func (r SignInResult) Done() bool {
	return r.Step == NextStepDone
}

// SignUpInput carries the fields of a new account.
type SignUpInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Provider is the session collaborator. Every operation may fail with a
// provider-specific error; UserMessage turns those into display text.
type Provider interface {
	CurrentSession(ctx context.Context, token string) (*User, error)
	SignIn(ctx context.Context, username, password string) (SignInResult, error)
	SignOut(ctx context.Context, token string) error
	SignUp(ctx context.Context, in SignUpInput) error
	ConfirmSignUp(ctx context.Context, username, code string) error
	ResetPassword(ctx context.Context, username string) error
	ConfirmResetPassword(ctx context.Context, username, code, newPassword string) error
	CompleteForcedRotation(ctx context.Context, challenge, newPassword string) (SignInResult, error)
}

// Errors a Provider reports for well-known conditions.
var (
	ErrNoSession          = errors.New("no active session")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotConfirmed   = errors.New("user is not confirmed")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrCodeMismatch       = errors.New("confirmation code mismatch")
	ErrCodeExpired        = errors.New("confirmation code expired")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrChallengeInvalid   = errors.New("challenge is invalid or expired")
	ErrNoChallenge        = errors.New("no credential rotation pending")
	ErrInvalidInput       = errors.New("invalid input")
)
