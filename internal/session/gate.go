package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/report-zone/mfe-demo-sub000/internal/channel"
	"github.com/report-zone/mfe-demo-sub000/internal/errmsg"
	"github.com/report-zone/mfe-demo-sub000/internal/routes"
	"github.com/report-zone/mfe-demo-sub000/internal/telemetry"
)

// GateOptions configures a Gate.
type GateOptions struct {
	ElevatedGroup string
	SignInPath    string
	HomePath      string
	CheckTimeout  time.Duration
	Logger        *zerolog.Logger
}

func (o *GateOptions) setDefaults() {
	if o.ElevatedGroup == "" {
		o.ElevatedGroup = DefaultElevatedGroup
	}
	if o.SignInPath == "" {
		o.SignInPath = "/sign-in"
	}
	if o.HomePath == "" {
		o.HomePath = "/"
	}
	if o.CheckTimeout <= 0 {
		o.CheckTimeout = 5 * time.Second
	}
}

// Gate is the session state machine of one browser.
type Gate struct {
	provider Provider
	opts     GateOptions
	log      zerolog.Logger
	shared   *channel.SharedData

	mu        sync.RWMutex
	state     State
	user      *User
	token     string
	challenge string
}

// NewGate creates a gate in StateUnknown.
func NewGate(p Provider, opts GateOptions) *Gate {
	opts.setDefaults()
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Gate{
		provider: p,
		opts:     opts,
		log:      logger,
		shared:   channel.NewSharedData(channel.NewLocalBus(&logger)),
	}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Session returns a snapshot of the session.
func (g *Gate) Session() Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Session{
		User:          g.user,
		IsLoading:     g.state == StateUnknown,
		elevatedGroup: g.opts.ElevatedGroup,
	}
}

// Token returns the provider token of the signed-in user, if any.
func (g *Gate) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// SetToken restores a token (e.g. from a cookie) and resets the gate to
// StateUnknown so the next CheckSession validates it.
func (g *Gate) SetToken(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token == token {
		return
	}
	g.token = token
	g.user = nil
	g.state = StateUnknown
}

// Shared returns the session-scoped shared data.
func (g *Gate) Shared() *channel.SharedData {
	return g.shared
}

// CheckSession asks the provider for the current user. Any failure leaves
// the gate Anonymous; a failure other than ErrNoSession is logged.
func (g *Gate) CheckSession(ctx context.Context) Session {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerSession, "session.CheckSession")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.opts.CheckTimeout)
	defer cancel()

	token := g.Token()
	var (
		user *User
		err  error
	)
	if token == "" {
		err = ErrNoSession
	} else {
		user, err = g.provider.CurrentSession(ctx, token)
		if err == nil && user == nil {
			err = ErrNoSession
		}
	}

	g.mu.Lock()
	if g.token == token {
		if err != nil {
			g.user = nil
			g.token = ""
			if g.state != StateRotationRequired {
				g.state = StateAnonymous
			}
		} else {
			g.user = user
			g.state = StateAuthenticated
			g.challenge = ""
		}
	}
	state := g.state
	g.mu.Unlock()

	span.SetAttributes(attribute.String(telemetry.AttrSessionState, state.String()))
	if err != nil && !errors.Is(err, ErrNoSession) {
		telemetry.RecordError(span, err)
		g.log.Warn().Err(err).Msg("session check failed")
	}
	return g.Session()
}

// SignIn delegates to the provider. On completion the token is kept and the
// session must be re-checked; a required rotation moves the gate to
// StateRotationRequired.
func (g *Gate) SignIn(ctx context.Context, username, password string) (SignInResult, error) {
	res, err := g.provider.SignIn(ctx, username, password)
	if err != nil {
		g.fail(err, "sign in", username)
		return SignInResult{}, err
	}
	g.applySignIn(res)
	return res, nil
}

// CompleteForcedRotation sets the new credential for a pending rotation.
func (g *Gate) CompleteForcedRotation(ctx context.Context, newPassword string) (SignInResult, error) {
	g.mu.RLock()
	challenge, state := g.challenge, g.state
	g.mu.RUnlock()
	if state != StateRotationRequired || challenge == "" {
		g.fail(ErrNoChallenge, "complete forced rotation", "")
		return SignInResult{}, ErrNoChallenge
	}

	res, err := g.provider.CompleteForcedRotation(ctx, challenge, newPassword)
	if err != nil {
		g.fail(err, "complete forced rotation", "")
		return SignInResult{}, err
	}
	g.applySignIn(res)
	return res, nil
}

func (g *Gate) applySignIn(res SignInResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch res.Step {
	case NextStepRotateCredential:
		g.user = nil
		g.token = ""
		g.challenge = res.Challenge
		g.state = StateRotationRequired
	default:
		g.token = res.Token
		g.challenge = ""
		g.user = nil
		g.state = StateUnknown
	}
}

// SignOut ends the session. On failure the gate is left unchanged.
func (g *Gate) SignOut(ctx context.Context) error {
	token := g.Token()
	if token != "" {
		if err := g.provider.SignOut(ctx, token); err != nil {
			g.fail(err, "sign out", "")
			return err
		}
	}
	g.mu.Lock()
	g.user = nil
	g.token = ""
	g.challenge = ""
	g.state = StateAnonymous
	g.mu.Unlock()
	g.shared.Clear()
	return nil
}

// SignUp registers a new account.
func (g *Gate) SignUp(ctx context.Context, in SignUpInput) error {
	if err := g.provider.SignUp(ctx, in); err != nil {
		g.fail(err, "sign up", in.Username)
		return err
	}
	return nil
}

// ConfirmSignUp confirms a new account with the code delivered to the user.
func (g *Gate) ConfirmSignUp(ctx context.Context, username, code string) error {
	if err := g.provider.ConfirmSignUp(ctx, username, code); err != nil {
		g.fail(err, "confirm sign up", username)
		return err
	}
	return nil
}

// ResetPassword starts a password reset.
func (g *Gate) ResetPassword(ctx context.Context, username string) error {
	if err := g.provider.ResetPassword(ctx, username); err != nil {
		g.fail(err, "reset password", username)
		return err
	}
	return nil
}

// ConfirmResetPassword completes a password reset.
func (g *Gate) ConfirmResetPassword(ctx context.Context, username, code, newPassword string) error {
	if err := g.provider.ConfirmResetPassword(ctx, username, code, newPassword); err != nil {
		g.fail(err, "confirm reset password", username)
		return err
	}
	return nil
}

func (g *Gate) fail(err error, op, username string) {
	ev := g.log.Error().Err(err).Str("op", op).Str("state", g.State().String())
	if username != "" {
		ev = ev.Str("username", username)
	}
	ev.Msg("session operation failed")
}

// DecisionKind is the verdict of the route guard.
type DecisionKind int

const (
	Allow DecisionKind = iota
	Defer
	Redirect
)

func (k DecisionKind) String() string {
	switch k {
	case Defer:
		return "defer"
	case Redirect:
		return "redirect"
	default:
		return "allow"
	}
}

// Decision is the guard outcome. Location is set for Redirect.
type Decision struct {
	Kind     DecisionKind
	Location string
}

// Admit decides whether a route with the given access level may render.
// While the first session check is outstanding, protected routes are deferred.
func (g *Gate) Admit(access routes.Access) Decision {
	if access == routes.Public || access == "" {
		return Decision{Kind: Allow}
	}

	state := g.State()
	if state == StateUnknown {
		return Decision{Kind: Defer}
	}

	s := g.Session()
	if state != StateAuthenticated || !s.IsAuthenticated() {
		return Decision{Kind: Redirect, Location: g.opts.SignInPath}
	}
	if access == routes.Elevated && !s.IsElevated() {
		return Decision{Kind: Redirect, Location: g.opts.HomePath}
	}
	return Decision{Kind: Allow}
}

// UserMessage turns a provider error into display text.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserNotFound):
		return "Incorrect username or password."
	case errors.Is(err, ErrUserNotConfirmed):
		return "Your account is not confirmed yet. Check your email for a confirmation code."
	case errors.Is(err, ErrUserExists):
		return "An account with this username already exists."
	case errors.Is(err, ErrCodeMismatch):
		return "Invalid confirmation code, please try again."
	case errors.Is(err, ErrCodeExpired):
		return "The confirmation code has expired. Request a new one."
	case errors.Is(err, ErrWeakPassword):
		return "Password must be at least 8 characters and include upper and lower case letters and a number."
	case errors.Is(err, ErrChallengeInvalid), errors.Is(err, ErrNoChallenge):
		return "Your sign-in attempt expired. Sign in again."
	case errors.Is(err, ErrInvalidInput):
		return strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": ")
	case errors.Is(err, context.DeadlineExceeded):
		return "The sign-in service did not respond in time."
	default:
		return errmsg.Message(err)
	}
}
