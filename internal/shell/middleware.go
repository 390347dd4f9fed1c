package shell

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/report-zone/mfe-demo-sub000/internal/environment"
	"github.com/report-zone/mfe-demo-sub000/internal/session"
)

// tokenCookieSuffix names the cookie holding the provider token, so a browser
// whose gate expired can be restored without signing in again.
const tokenCookieSuffix = "_token"

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			event := logger.Info()
			if status >= 500 {
				event = logger.Error()
			} else if status >= 400 {
				event = logger.Warn()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Str("client_ip", r.RemoteAddr).
				Int("bytes", ww.BytesWritten()).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http_request")
		})
	}
}

// withHostname records the request host for the environment resolver.
func withHostname(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		ctx := environment.WithHostname(r.Context(), host)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionMiddleware attaches the browser's gate to the request context,
// creating one (and its cookie) on first contact.
func (s *Shell) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipSession(r) {
			next.ServeHTTP(w, r)
			return
		}

		var id string
		if c, err := r.Cookie(s.opts.CookieName); err == nil {
			id = c.Value
		}

		gate, ok := s.opts.Sessions.Get(id)
		if !ok {
			if c, err := r.Cookie(s.tokenCookieName()); err == nil && c.Value != "" {
				id, gate = s.opts.Sessions.Restore(r.Context(), c.Value)
				if gate.State() != session.StateAuthenticated {
					s.clearCookie(w, s.tokenCookieName())
				}
			} else {
				id, gate, _ = s.opts.Sessions.Acquire("")
			}
			s.setCookie(w, s.opts.CookieName, id, time.Time{})
		}

		ctx := session.WithGate(r.Context(), gate)
		ctx = context.WithValue(ctx, sessionIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// shouldSkipSession matches the paths mounted without a gate: /health and
// single-file /modules/{panel}.js requests. Anything else, /healthz included,
// reaches the page handler with a gate.
func shouldSkipSession(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	if r.URL.Path == "/health" {
		return true
	}
	file, ok := strings.CutPrefix(r.URL.Path, "/modules/")
	return ok && file != "" && !strings.Contains(file, "/")
}

func (s *Shell) tokenCookieName() string {
	return s.opts.CookieName + tokenCookieSuffix
}

func (s *Shell) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Shell) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

type sessionIDKey struct{}

// sessionIDOf returns the gate id the session middleware resolved for r.
func sessionIDOf(r *http.Request) string {
	id, _ := r.Context().Value(sessionIDKey{}).(string)
	return id
}

// gateOf returns the request's gate. Requests the session middleware skipped
// get a detached anonymous gate that is never stored.
func (s *Shell) gateOf(r *http.Request) *session.Gate {
	if g, ok := session.FromContext(r.Context()); ok {
		return g
	}
	return s.opts.Sessions.Detached()
}
