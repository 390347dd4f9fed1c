package shell

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/report-zone/mfe-demo-sub000/internal/loader"
	"github.com/report-zone/mfe-demo-sub000/internal/registry"
	"github.com/report-zone/mfe-demo-sub000/internal/routes"
	"github.com/report-zone/mfe-demo-sub000/internal/session"
	"github.com/report-zone/mfe-demo-sub000/internal/theme"
)

const (
	viewReady    = "ready"
	viewLoading  = "loading"
	viewError    = "error"
	viewNotFound = "not_found"
	viewSignIn   = "sign_in"

	outcomeRedirect = "redirect"
	outcomePending  = "pending"
	outcomeFailed   = "failed"
)

type navItem struct {
	Name   string
	Title  string
	Href   string
	Active bool
}

type pageData struct {
	Title      string
	PanelTitle string
	Path       string
	SignInPath string
	HomePath   string
	Nav        []navItem
	User       *session.User
	Theme      theme.Definition
	Refresh    int
	RefreshURL string

	Panel    string
	Export   string
	EntryURL string
	Origin   string
	Error    string
	RetryURL string

	Next   string
	Rotate bool

	// Suggestion is the closest route to a path nothing matched.
	Suggestion string
}

// handlePage renders the chrome around the panel resolved for the path.
func (s *Shell) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gate := s.gateOf(r)
	path := r.URL.Path

	panel, access := routes.Unknown, routes.Public
	if rule, ok := s.opts.Routes.Match(path); ok {
		panel, access = rule.Panel, rule.Access
	}

	decision := gate.Admit(access)
	if decision.Kind == session.Defer {
		gate.CheckSession(ctx)
		decision = gate.Admit(access)
	}
	if decision.Kind == session.Redirect {
		s.opts.Metrics.RecordRender(ctx, panel, outcomeRedirect)
		location := decision.Location
		if location == s.opts.SignInPath {
			location += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		http.Redirect(w, r, location, http.StatusFound)
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.opts.RenderWait)
	comp, err := s.opts.Registry.GetLoader(panel)(loadCtx)
	cancel()

	// A request abandoned by the browser renders nothing.
	if ctx.Err() != nil {
		return
	}

	data := s.basePage(r, gate, panel)
	var (
		view   string
		status = http.StatusOK
	)
	switch {
	case err == nil && comp.NotFound:
		view, status = viewNotFound, http.StatusNotFound
		data.PanelTitle = "Not found"
		data.Suggestion, _ = s.opts.Routes.Suggest(path)
	case err == nil:
		view = viewReady
		data.Export = comp.Export
		data.EntryURL = comp.EntryURL
		data.Origin = comp.Origin.String()
	case isPending(err):
		view = viewLoading
		data.Refresh = int(DefaultRefreshWait.Seconds())
		data.RefreshURL = withoutRetry(r.URL)
	default:
		view, status = viewError, http.StatusBadGateway
		data.Error = loadFailureMessage(err)
		data.RetryURL = retryURL(r.URL)
		s.log.Warn().Err(err).Str("panel", panel).Msg("panel failed to load")
	}

	outcome := view
	switch view {
	case viewLoading:
		outcome = outcomePending
	case viewError:
		outcome = outcomeFailed
	}
	s.opts.Metrics.RecordRender(ctx, panel, outcome)
	s.render(w, status, view, data)
}

// isPending reports whether err only means the shared load is still running.
func isPending(err error) bool {
	var loadErr *loader.LoadError
	if errors.As(err, &loadErr) {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func loadFailureMessage(err error) string {
	var loadErr *loader.LoadError
	switch {
	case errors.As(err, &loadErr) && errors.Is(err, loader.ErrLoadTimeout):
		return "The panel took too long to load."
	case errors.As(err, &loadErr):
		return "The panel could not be fetched: " + loadErr.Err.Error()
	case errors.Is(err, registry.ErrNoExports):
		return "The panel module does not export a component."
	default:
		return err.Error()
	}
}

// withoutRetry is u with the retry flag dropped. A failed load is already
// evicted, so the flag only marks the link a user clicked.
func withoutRetry(u *url.URL) string {
	q := u.Query()
	q.Del("retry")
	if len(q) == 0 {
		return u.Path
	}
	return u.Path + "?" + q.Encode()
}

func retryURL(u *url.URL) string {
	q := u.Query()
	q.Set("retry", "1")
	return u.Path + "?" + q.Encode()
}

func (s *Shell) basePage(r *http.Request, gate *session.Gate, panel string) pageData {
	sess := gate.Session()
	data := pageData{
		Title:      s.opts.Title,
		Path:       r.URL.Path,
		SignInPath: s.opts.SignInPath,
		HomePath:   s.opts.HomePath,
		User:       sess.User,
		Theme:      s.opts.Themes.Current(),
		Panel:      panel,
	}
	if d, ok := s.opts.Registry.Get(panel); ok {
		data.PanelTitle = d.Title
	}
	data.Nav = s.navigation(panel, sess)
	return data
}

// navigation lists every registered panel reachable through a plain route.
// Elevated panels are only listed for elevated users.
func (s *Shell) navigation(active string, sess session.Session) []navItem {
	hrefs := make(map[string]string)
	accessOf := make(map[string]routes.Access)
	for _, rule := range s.opts.Routes.Rules() {
		if rule.Regexp != nil || rule.Pattern == "" {
			continue
		}
		if _, seen := hrefs[rule.Panel]; !seen {
			hrefs[rule.Panel] = rule.Pattern
			accessOf[rule.Panel] = rule.Access
		}
	}

	var nav []navItem
	for _, d := range s.opts.Registry.Descriptors() {
		href, ok := hrefs[d.Name]
		if !ok {
			continue
		}
		if accessOf[d.Name] == routes.Elevated && !sess.IsElevated() {
			continue
		}
		nav = append(nav, navItem{Name: d.Name, Title: d.Title, Href: href, Active: d.Name == active})
	}
	return nav
}

func (s *Shell) render(w http.ResponseWriter, status int, view string, data pageData) {
	var buf bytes.Buffer
	if err := views[view].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.log.Error().Err(err).Str("view", view).Msg("failed to render view")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// handleSignInPage renders the sign-in form, or the new password form while a
// rotation is pending.
func (s *Shell) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	gate := s.gateOf(r)
	if gate.State() == session.StateUnknown {
		gate.CheckSession(r.Context())
	}
	next := s.safeNext(r.URL.Query().Get("next"))
	if gate.State() == session.StateAuthenticated {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}

	data := s.basePage(r, gate, "")
	data.PanelTitle = "Sign in"
	data.Next = next
	data.Rotate = gate.State() == session.StateRotationRequired
	data.Error = r.URL.Query().Get("error")
	s.render(w, http.StatusOK, viewSignIn, data)
}

// safeNext keeps redirects on this host.
func (s *Shell) safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return s.opts.HomePath
	}
	return next
}
