// Package auth is the local session provider: accounts in the database,
// bcrypt password hashes and signed session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/report-zone/mfe-demo-sub000/internal/db/models"
	"github.com/report-zone/mfe-demo-sub000/internal/repository"
	"github.com/report-zone/mfe-demo-sub000/internal/session"
)

const (
	// DefaultCodeTTL bounds confirmation codes and rotation challenges.
	DefaultCodeTTL = 15 * time.Minute

	// DefaultGroup is assigned to self-registered accounts.
	DefaultGroup = "users"

	minPasswordLength = 8
)

// CodeSender delivers confirmation codes to users.
type CodeSender interface {
	SendCode(ctx context.Context, user *models.User, purpose, code string) error
}

// LogSender writes codes to the log. Suitable for development only.
type LogSender struct {
	Logger zerolog.Logger
}

// SendCode implements CodeSender.
func (s LogSender) SendCode(_ context.Context, user *models.User, purpose, code string) error {
	s.Logger.Info().
		Str("username", user.Username).
		Str("email", user.Email).
		Str("purpose", purpose).
		Str("code", code).
		Msg("confirmation code issued")
	return nil
}

// Dependencies are the repositories the provider works on.
type Dependencies struct {
	Users       repository.UserRepository
	Codes       repository.CodeRepository
	RevokedJTIs repository.RevokedJTIRepository
}

// Options configures a LocalProvider.
type Options struct {
	Tokens  *TokenIssuer
	Sender  CodeSender
	CodeTTL time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Logger     *zerolog.Logger
}

// LocalProvider implements session.Provider against the local database.
type LocalProvider struct {
	deps    Dependencies
	tokens  *TokenIssuer
	sender  CodeSender
	codeTTL time.Duration
	cost    int
	log     zerolog.Logger
	now     func() time.Time
}

var _ session.Provider = (*LocalProvider)(nil)

// NewLocalProvider creates a LocalProvider.
func NewLocalProvider(deps Dependencies, opts Options) (*LocalProvider, error) {
	if deps.Users == nil || deps.Codes == nil || deps.RevokedJTIs == nil {
		return nil, errors.New("local provider requires user, code and revoked jti repositories")
	}
	if opts.Tokens == nil {
		return nil, errors.New("local provider requires a token issuer")
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Sender == nil {
		opts.Sender = LogSender{Logger: logger}
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = DefaultCodeTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &LocalProvider{
		deps:    deps,
		tokens:  opts.Tokens,
		sender:  opts.Sender,
		codeTTL: opts.CodeTTL,
		cost:    opts.BcryptCost,
		log:     logger,
		now:     time.Now,
	}, nil
}

// CurrentSession validates token and returns its user.
func (p *LocalProvider) CurrentSession(ctx context.Context, token string) (*session.User, error) {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return nil, session.ErrNoSession
	}
	revoked, err := p.deps.RevokedJTIs.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, session.ErrNoSession
	}

	user, err := p.deps.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, session.ErrNoSession
		}
		return nil, err
	}
	if user.Disabled() {
		return nil, session.ErrNoSession
	}
	return toSessionUser(user), nil
}

// SignIn checks the credentials. Accounts flagged for rotation receive a challenge instead of a token.
func (p *LocalProvider) SignIn(ctx context.Context, username, password string) (session.SignInResult, error) {
	user, err := p.deps.Users.GetByUsername(ctx, normalizeUsername(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return session.SignInResult{}, session.ErrInvalidCredentials
		}
		return session.SignInResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return session.SignInResult{}, session.ErrInvalidCredentials
	}
	if user.Disabled() {
		return session.SignInResult{}, session.ErrInvalidCredentials
	}
	if !user.Confirmed() {
		return session.SignInResult{}, session.ErrUserNotConfirmed
	}

	if user.MustRotate {
		challenge, hash, err := GenerateChallenge()
		if err != nil {
			return session.SignInResult{}, err
		}
		if err := p.deps.Codes.Invalidate(ctx, user.ID, models.CodePurposeRotation); err != nil {
			return session.SignInResult{}, err
		}
		if err := p.deps.Codes.Create(ctx, p.newCode(user.ID, models.CodePurposeRotation, hash)); err != nil {
			return session.SignInResult{}, err
		}
		return session.SignInResult{Step: session.NextStepRotateCredential, Challenge: challenge}, nil
	}

	return p.complete(ctx, user)
}

// SignOut revokes the token's JTI. A token that no longer verifies is already unusable.
func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return nil
	}
	return p.deps.RevokedJTIs.Create(ctx, &models.RevokedJTI{
		JTI:     claims.ID,
		Subject: claims.Subject,
		Exp:     claims.ExpiresAt.Time,
	})
}

// SignUp registers an unconfirmed account and sends a confirmation code.
func (p *LocalProvider) SignUp(ctx context.Context, in session.SignUpInput) error {
	username := normalizeUsername(in.Username)
	if username == "" {
		return fmt.Errorf("%w: username is required", session.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email address %q", session.ErrInvalidInput, in.Email)
	}
	if err := CheckPassword(in.Password); err != nil {
		return err
	}

	if _, err := p.deps.Users.GetByUsername(ctx, username); err == nil {
		return session.ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: string(hash),
		Groups:       []string{DefaultGroup},
	}
	if err := p.deps.Users.Create(ctx, user); err != nil {
		return err
	}
	return p.issueCode(ctx, user, models.CodePurposeSignUp)
}

// ConfirmSignUp confirms an account with its sign-up code.
func (p *LocalProvider) ConfirmSignUp(ctx context.Context, username, code string) error {
	user, err := p.lookup(ctx, username)
	if err != nil {
		return err
	}
	if user.Confirmed() {
		return nil
	}
	if err := p.consume(ctx, user.ID, models.CodePurposeSignUp, code); err != nil {
		return err
	}
	return p.deps.Users.Confirm(ctx, user.ID)
}

// ResetPassword sends a reset code, replacing any outstanding one.
func (p *LocalProvider) ResetPassword(ctx context.Context, username string) error {
	user, err := p.lookup(ctx, username)
	if err != nil {
		return err
	}
	if err := p.deps.Codes.Invalidate(ctx, user.ID, models.CodePurposeReset); err != nil {
		return err
	}
	return p.issueCode(ctx, user, models.CodePurposeReset)
}

// ConfirmResetPassword sets a new password using a reset code.
func (p *LocalProvider) ConfirmResetPassword(ctx context.Context, username, code, newPassword string) error {
	if err := CheckPassword(newPassword); err != nil {
		return err
	}
	user, err := p.lookup(ctx, username)
	if err != nil {
		return err
	}
	if err := p.consume(ctx, user.ID, models.CodePurposeReset, code); err != nil {
		return err
	}
	return p.setPassword(ctx, user.ID, newPassword, false)
}

// CompleteForcedRotation sets the new credential for a rotation challenge and signs the user in.
func (p *LocalProvider) CompleteForcedRotation(ctx context.Context, challenge, newPassword string) (session.SignInResult, error) {
	if err := CheckPassword(newPassword); err != nil {
		return session.SignInResult{}, err
	}
	hash := HashSecret(challenge)
	code, err := p.deps.Codes.GetLive(ctx, models.CodePurposeRotation, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return session.SignInResult{}, session.ErrChallengeInvalid
		}
		return session.SignInResult{}, err
	}
	if err := p.consume(ctx, code.UserID, models.CodePurposeRotation, challenge); err != nil {
		return session.SignInResult{}, session.ErrChallengeInvalid
	}
	if err := p.setPassword(ctx, code.UserID, newPassword, false); err != nil {
		return session.SignInResult{}, err
	}

	user, err := p.deps.Users.GetByID(ctx, code.UserID)
	if err != nil {
		return session.SignInResult{}, err
	}
	return p.complete(ctx, user)
}

// CreateUserInput describes an administrator-created account.
type CreateUserInput struct {
	Username   string
	Email      string
	Password   string
	Groups     []string
	MustRotate bool
}

// CreateUser adds a confirmed account. With MustRotate the first sign-in requires a new password.
func (p *LocalProvider) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	username := normalizeUsername(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", session.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address %q", session.ErrInvalidInput, in.Email)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", session.ErrInvalidInput)
	}
	if _, err := p.deps.Users.GetByUsername(ctx, username); err == nil {
		return nil, session.ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := p.now().UTC()
	groups := in.Groups
	if len(groups) == 0 {
		groups = []string{DefaultGroup}
	}
	user := &models.User{
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: string(hash),
		Groups:       groups,
		MustRotate:   in.MustRotate,
		ConfirmedAt:  &now,
	}
	if err := p.deps.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (p *LocalProvider) complete(ctx context.Context, user *models.User) (session.SignInResult, error) {
	token, _, err := p.tokens.Issue(user.ID, user.Username, user.Email, user.Groups)
	if err != nil {
		return session.SignInResult{}, err
	}
	if err := p.deps.Users.UpdateLastLogin(ctx, user.ID); err != nil {
		p.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}
	return session.SignInResult{Step: session.NextStepDone, Token: token}, nil
}

func (p *LocalProvider) lookup(ctx context.Context, username string) (*models.User, error) {
	user, err := p.deps.Users.GetByUsername(ctx, normalizeUsername(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, session.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (p *LocalProvider) consume(ctx context.Context, userID, purpose, code string) error {
	if _, err := p.deps.Codes.Consume(ctx, userID, purpose, HashSecret(strings.TrimSpace(code))); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return session.ErrCodeMismatch
		}
		return err
	}
	return nil
}

func (p *LocalProvider) issueCode(ctx context.Context, user *models.User, purpose string) error {
	code, hash, err := GenerateCode()
	if err != nil {
		return err
	}
	if err := p.deps.Codes.Create(ctx, p.newCode(user.ID, purpose, hash)); err != nil {
		return err
	}
	return p.sender.SendCode(ctx, user, purpose, code)
}

func (p *LocalProvider) newCode(userID, purpose, hash string) *models.VerificationCode {
	return &models.VerificationCode{
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  hash,
		ExpiresAt: p.now().Add(p.codeTTL),
	}
}

func (p *LocalProvider) setPassword(ctx context.Context, userID, password string, mustRotate bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return p.deps.Users.SetPasswordHash(ctx, userID, string(hash), mustRotate)
}

// CheckPassword enforces the password policy.
func CheckPassword(password string) error {
	if len(password) < minPasswordLength {
		return session.ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return session.ErrWeakPassword
	}
	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func toSessionUser(u *models.User) *session.User {
	groups := append([]string(nil), u.Groups...)
	if groups == nil {
		groups = []string{}
	}
	return &session.User{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Groups:   groups,
	}
}
