package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/report-zone/mfe-demo-sub000/internal/routes"
)

// mockProvider is an in-memory Provider keyed by token.
type mockProvider struct {
	mu         sync.Mutex
	users      map[string]*User
	passwords  map[string]string
	rotate     map[string]bool
	signInErr  error
	signOutErr error
	checkErr   error
	checks     int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		users:     map[string]*User{},
		passwords: map[string]string{},
		rotate:    map[string]bool{},
	}
}

func (m *mockProvider) addUser(u *User, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users["tok-"+u.Username] = u
	m.passwords[u.Username] = password
}

func (m *mockProvider) CurrentSession(_ context.Context, token string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks++
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	u, ok := m.users[token]
	if !ok {
		return nil, ErrNoSession
	}
	return u, nil
}

func (m *mockProvider) SignIn(_ context.Context, username, password string) (SignInResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signInErr != nil {
		return SignInResult{}, m.signInErr
	}
	if m.passwords[username] != password {
		return SignInResult{}, ErrInvalidCredentials
	}
	if m.rotate[username] {
		return SignInResult{Step: NextStepRotateCredential, Challenge: "challenge-" + username}, nil
	}
	return SignInResult{Step: NextStepDone, Token: "tok-" + username}, nil
}

func (m *mockProvider) SignOut(context.Context, string) error { return m.signOutErr }

func (m *mockProvider) SignUp(_ context.Context, in SignUpInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.passwords[in.Username]; ok {
		return ErrUserExists
	}
	m.passwords[in.Username] = in.Password
	return nil
}

func (m *mockProvider) ConfirmSignUp(_ context.Context, _ string, code string) error {
	if code != "123456" {
		return ErrCodeMismatch
	}
	return nil
}

func (m *mockProvider) ResetPassword(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.passwords[username]; !ok {
		return ErrUserNotFound
	}
	return nil
}

func (m *mockProvider) ConfirmResetPassword(_ context.Context, username, code, newPassword string) error {
	if code != "123456" {
		return ErrCodeMismatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwords[username] = newPassword
	return nil
}

func (m *mockProvider) CompleteForcedRotation(_ context.Context, challenge, newPassword string) (SignInResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.rotate {
		if challenge == "challenge-"+name {
			delete(m.rotate, name)
			m.passwords[name] = newPassword
			return SignInResult{Step: NextStepDone, Token: "tok-" + name}, nil
		}
	}
	return SignInResult{}, ErrChallengeInvalid
}

func signedInGate(t *testing.T, p *mockProvider, username string) *Gate {
	t.Helper()
	g := NewGate(p, GateOptions{})
	res, err := g.SignIn(context.Background(), username, "pw")
	require.NoError(t, err)
	require.True(t, res.Done())
	g.CheckSession(context.Background())
	return g
}

func TestGate_InitialStateDefers(t *testing.T) {
	g := NewGate(newMockProvider(), GateOptions{})
	assert.Equal(t, StateUnknown, g.State())
	assert.True(t, g.Session().IsLoading)

	assert.Equal(t, Decision{Kind: Defer}, g.Admit(routes.Protected))
	assert.Equal(t, Decision{Kind: Defer}, g.Admit(routes.Elevated))
	assert.Equal(t, Decision{Kind: Allow}, g.Admit(routes.Public))
}

func TestGate_CheckSessionWithoutTokenIsAnonymous(t *testing.T) {
	p := newMockProvider()
	g := NewGate(p, GateOptions{})

	s := g.CheckSession(context.Background())
	assert.False(t, s.IsAuthenticated())
	assert.False(t, s.IsLoading)
	assert.Equal(t, StateAnonymous, g.State())
	assert.Equal(t, 0, p.checks)
}

func TestGate_AdminScenarios(t *testing.T) {
	p := newMockProvider()
	p.addUser(&User{Username: "alice", Groups: []string{"admin"}}, "pw")
	p.addUser(&User{Username: "bob", Groups: []string{"users"}}, "pw")

	anonymous := NewGate(p, GateOptions{SignInPath: "/sign-in", HomePath: "/"})
	anonymous.CheckSession(context.Background())

	tests := []struct {
		name   string
		gate   *Gate
		access routes.Access
		want   Decision
	}{
		{name: "anonymous to admin", gate: anonymous, access: routes.Elevated, want: Decision{Kind: Redirect, Location: "/sign-in"}},
		{name: "anonymous to protected", gate: anonymous, access: routes.Protected, want: Decision{Kind: Redirect, Location: "/sign-in"}},
		{name: "non-elevated to admin", gate: signedInGate(t, p, "bob"), access: routes.Elevated, want: Decision{Kind: Redirect, Location: "/"}},
		{name: "non-elevated to protected", gate: signedInGate(t, p, "bob"), access: routes.Protected, want: Decision{Kind: Allow}},
		{name: "elevated to admin", gate: signedInGate(t, p, "alice"), access: routes.Elevated, want: Decision{Kind: Allow}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.gate.Admit(tt.access))
		})
	}
}

func TestGate_SignInThenCheck(t *testing.T) {
	p := newMockProvider()
	p.addUser(&User{Username: "alice", Email: "a@example.com", Groups: []string{"admin"}}, "pw")
	g := NewGate(p, GateOptions{})

	res, err := g.SignIn(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, NextStepDone, res.Step)
	assert.Equal(t, StateUnknown, g.State(), "session must be re-checked after sign-in")

	s := g.CheckSession(context.Background())
	require.True(t, s.IsAuthenticated())
	assert.True(t, s.IsElevated())
	assert.Equal(t, "a@example.com", s.User.Email)
	assert.Equal(t, StateAuthenticated, g.State())
}

func TestGate_ForcedRotation(t *testing.T) {
	p := newMockProvider()
	p.addUser(&User{Username: "carol"}, "temp")
	p.rotate["carol"] = true
	g := NewGate(p, GateOptions{})

	res, err := g.SignIn(context.Background(), "carol", "temp")
	require.NoError(t, err)
	assert.Equal(t, NextStepRotateCredential, res.Step)
	assert.Equal(t, StateRotationRequired, g.State())
	assert.Equal(t, Decision{Kind: Redirect, Location: "/sign-in"}, g.Admit(routes.Protected))

	g.CheckSession(context.Background())
	assert.Equal(t, StateRotationRequired, g.State(), "rotation survives a session check")

	res, err = g.CompleteForcedRotation(context.Background(), "N3wPassword")
	require.NoError(t, err)
	assert.True(t, res.Done())

	s := g.CheckSession(context.Background())
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, StateAuthenticated, g.State())
}

func TestGate_CompleteRotationWithoutChallenge(t *testing.T) {
	g := NewGate(newMockProvider(), GateOptions{})
	_, err := g.CompleteForcedRotation(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestGate_ErrorsAreLoggedAndReturned(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	p := newMockProvider()
	providerErr := errors.New("identity pool unavailable")
	p.signInErr = providerErr
	g := NewGate(p, GateOptions{Logger: &logger})

	_, err := g.SignIn(context.Background(), "alice", "pw")
	assert.Same(t, providerErr, err)
	assert.Contains(t, buf.String(), `"op":"sign in"`)
	assert.Contains(t, buf.String(), `"username":"alice"`)
	assert.Contains(t, buf.String(), "identity pool unavailable")

	buf.Reset()
	err = g.SignUp(context.Background(), SignUpInput{Username: "dave", Password: "pw"})
	require.NoError(t, err)
	err = g.SignUp(context.Background(), SignUpInput{Username: "dave", Password: "pw"})
	assert.ErrorIs(t, err, ErrUserExists)
	assert.Contains(t, buf.String(), `"op":"sign up"`)

	assert.ErrorIs(t, g.ConfirmSignUp(context.Background(), "dave", "000000"), ErrCodeMismatch)
	assert.ErrorIs(t, g.ResetPassword(context.Background(), "nobody"), ErrUserNotFound)
	assert.ErrorIs(t, g.ConfirmResetPassword(context.Background(), "dave", "1", "x"), ErrCodeMismatch)
	require.NoError(t, g.ConfirmResetPassword(context.Background(), "dave", "123456", "Better1pass"))
}

func TestGate_SignOut(t *testing.T) {
	p := newMockProvider()
	p.addUser(&User{Username: "bob"}, "pw")
	g := signedInGate(t, p, "bob")
	require.NoError(t, g.Shared().Set("draft", "x"))

	p.signOutErr = errors.New("network down")
	require.Error(t, g.SignOut(context.Background()))
	assert.Equal(t, StateAuthenticated, g.State(), "failed sign-out keeps the session")

	p.signOutErr = nil
	require.NoError(t, g.SignOut(context.Background()))
	assert.Equal(t, StateAnonymous, g.State())
	assert.Empty(t, g.Token())
	assert.Equal(t, 0, g.Shared().Len())
}

func TestGate_CheckSessionProviderFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	p := newMockProvider()
	p.checkErr = errors.New("token endpoint 500")
	g := NewGate(p, GateOptions{Logger: &logger})
	g.SetToken("tok-x")

	s := g.CheckSession(context.Background())
	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, StateAnonymous, g.State())
	assert.Contains(t, buf.String(), "session check failed")
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Incorrect username or password.", UserMessage(ErrInvalidCredentials))
	assert.Equal(t, "Incorrect username or password.", UserMessage(errors.Join(errors.New("ctx"), ErrUserNotFound)))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
}

func TestManager(t *testing.T) {
	p := newMockProvider()
	p.addUser(&User{Username: "bob"}, "pw")
	m := NewManager(p, ManagerOptions{MaxSessions: 2, TTL: time.Minute})

	id, g, created := m.Acquire("")
	require.True(t, created)
	require.NotEmpty(t, id)

	id2, g2, created := m.Acquire(id)
	assert.False(t, created)
	assert.Equal(t, id, id2)
	assert.Same(t, g, g2)

	_, g3, created := m.Acquire("stale-id")
	assert.True(t, created)
	assert.NotSame(t, g, g3)
	assert.Equal(t, 2, m.Len())

	rid, rg := m.Restore(context.Background(), "tok-bob")
	assert.NotEmpty(t, rid)
	assert.True(t, rg.Session().IsAuthenticated())
	assert.Equal(t, 2, m.Len(), "bounded by MaxSessions")

	m.Remove(rid)
	_, ok := m.Get(rid)
	assert.False(t, ok)
}

func TestManager_Rotate(t *testing.T) {
	p := newMockProvider()
	p.addUser(&User{Username: "bob"}, "pw")
	m := NewManager(p, ManagerOptions{TTL: time.Minute})

	id, g, _ := m.Acquire("")
	newID, ok := m.Rotate(id)
	require.True(t, ok)
	assert.NotEqual(t, id, newID)

	_, ok = m.Get(id)
	assert.False(t, ok)
	got, ok := m.Get(newID)
	require.True(t, ok)
	assert.Same(t, g, got)
	assert.Equal(t, 1, m.Len())

	_, ok = m.Rotate("unknown")
	assert.False(t, ok)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	g := NewGate(newMockProvider(), GateOptions{})
	got, ok := FromContext(WithGate(context.Background(), g))
	require.True(t, ok)
	assert.Same(t, g, got)
}
