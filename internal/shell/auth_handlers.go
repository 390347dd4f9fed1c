package shell

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/report-zone/mfe-demo-sub000/internal/session"
)

// SessionResponse is the body of GET /api/session and of successful sign-ins.
type SessionResponse struct {
	User      *session.User `json:"user"`
	IsLoading bool          `json:"is_loading"`
	State     string        `json:"state"`
	Elevated  bool          `json:"elevated"`
}

// SignInResponse reports the step following a sign-in.
type SignInResponse struct {
	NextStep session.NextStep `json:"next_step"`
	Session  *SessionResponse `json:"session,omitempty"`
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

type rotateRequest struct {
	NewPassword string `json:"new_password"`
	Next        string `json:"next"`
}

type confirmRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type resetRequest struct {
	Username string `json:"username"`
}

type confirmResetRequest struct {
	Username    string `json:"username"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func sessionResponse(g *session.Gate) *SessionResponse {
	s := g.Session()
	return &SessionResponse{
		User:      s.User,
		IsLoading: s.IsLoading,
		State:     g.State().String(),
		Elevated:  s.IsAuthenticated() && s.IsElevated(),
	}
}

// authStatus maps provider errors onto HTTP statuses.
func authStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials), errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, session.ErrUserNotConfirmed):
		return http.StatusForbidden, "NOT_CONFIRMED"
	case errors.Is(err, session.ErrUserExists):
		return http.StatusConflict, "USER_EXISTS"
	case errors.Is(err, session.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND"
	case errors.Is(err, session.ErrCodeMismatch), errors.Is(err, session.ErrCodeExpired):
		return http.StatusBadRequest, "CODE_INVALID"
	case errors.Is(err, session.ErrWeakPassword), errors.Is(err, session.ErrInvalidInput):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, session.ErrChallengeInvalid), errors.Is(err, session.ErrNoChallenge):
		return http.StatusConflict, "CHALLENGE_INVALID"
	default:
		return http.StatusInternalServerError, "PROVIDER_ERROR"
	}
}

// authFailed answers a failed auth operation: form posts go back to the
// sign-in page with the message, API callers get a JSON error.
func (s *Shell) authFailed(w http.ResponseWriter, r *http.Request, err error, next string) {
	if isForm(r) {
		q := url.Values{}
		q.Set("error", session.UserMessage(err))
		if next != "" {
			q.Set("next", next)
		}
		http.Redirect(w, r, s.opts.SignInPath+"?"+q.Encode(), http.StatusSeeOther)
		return
	}
	status, code := authStatus(err)
	writeError(w, status, code, session.UserMessage(err))
}

// completeSignIn stores the token cookie and re-checks the session, which
// moves the gate to Authenticated.
func (s *Shell) completeSignIn(w http.ResponseWriter, r *http.Request, gate *session.Gate, res session.SignInResult, next string) {
	if !res.Done() {
		if isForm(r) {
			q := url.Values{}
			if next != "" {
				q.Set("next", next)
			}
			http.Redirect(w, r, s.opts.SignInPath+"?"+q.Encode(), http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, SignInResponse{NextStep: res.Step})
		return
	}

	if id, ok := s.opts.Sessions.Rotate(sessionIDOf(r)); ok {
		s.setCookie(w, s.opts.CookieName, id, time.Time{})
	}
	s.setCookie(w, s.tokenCookieName(), gate.Token(), time.Time{})
	gate.CheckSession(r.Context())

	if isForm(r) {
		http.Redirect(w, r, s.safeNext(next), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, SignInResponse{NextStep: res.Step, Session: sessionResponse(gate)})
}

func (s *Shell) handleSession(w http.ResponseWriter, r *http.Request) {
	gate := s.gateOf(r)
	if gate.State() == session.StateUnknown {
		gate.CheckSession(r.Context())
	}
	writeJSON(w, http.StatusOK, sessionResponse(gate))
}

func (s *Shell) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeInput(w, r, &req) {
		return
	}
	gate := s.gateOf(r)
	res, err := gate.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		s.authFailed(w, r, err, req.Next)
		return
	}
	s.completeSignIn(w, r, gate, res, req.Next)
}

func (s *Shell) handleRotate(w http.ResponseWriter, r *http.Request) {
	var req rotateRequest
	if !decodeInput(w, r, &req) {
		return
	}
	gate := s.gateOf(r)
	res, err := gate.CompleteForcedRotation(r.Context(), req.NewPassword)
	if err != nil {
		s.authFailed(w, r, err, req.Next)
		return
	}
	s.completeSignIn(w, r, gate, res, req.Next)
}

func (s *Shell) handleSignOut(w http.ResponseWriter, r *http.Request) {
	gate := s.gateOf(r)
	if err := gate.SignOut(r.Context()); err != nil {
		status, code := authStatus(err)
		writeError(w, status, code, session.UserMessage(err))
		return
	}
	s.clearCookie(w, s.tokenCookieName())
	if isForm(r) {
		http.Redirect(w, r, s.opts.HomePath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(gate))
}

func (s *Shell) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req session.SignUpInput
	if !decodeInput(w, r, &req) {
		return
	}
	if err := s.gateOf(r).SignUp(r.Context(), req); err != nil {
		status, code := authStatus(err)
		writeError(w, status, code, session.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "confirmation_required"})
}

func (s *Shell) handleConfirmSignUp(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeInput(w, r, &req) {
		return
	}
	if err := s.gateOf(r).ConfirmSignUp(r.Context(), req.Username, req.Code); err != nil {
		status, code := authStatus(err)
		writeError(w, status, code, session.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (s *Shell) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeInput(w, r, &req) {
		return
	}
	if err := s.gateOf(r).ResetPassword(r.Context(), req.Username); err != nil {
		status, code := authStatus(err)
		writeError(w, status, code, session.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "code_sent"})
}

func (s *Shell) handleConfirmResetPassword(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if !decodeInput(w, r, &req) {
		return
	}
	if err := s.gateOf(r).ConfirmResetPassword(r.Context(), req.Username, req.Code, req.NewPassword); err != nil {
		status, code := authStatus(err)
		writeError(w, status, code, session.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password_reset"})
}
