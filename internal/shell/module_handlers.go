package shell

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/report-zone/mfe-demo-sub000/internal/loader"
	"github.com/report-zone/mfe-demo-sub000/internal/registry"
	"github.com/report-zone/mfe-demo-sub000/internal/routes"
	"github.com/report-zone/mfe-demo-sub000/internal/session"
)

// PanelResponse describes a registered panel.
type PanelResponse struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	NavOrder    int    `json:"nav_order"`
	EntryURL    string `json:"entry_url"`
	Origin      string `json:"origin"`
	ModuleURL   string `json:"module_url"`
	State       string `json:"state"`
}

type evictRequest struct {
	Panel string `json:"panel"`
	URL   string `json:"url"`
}

func (s *Shell) handlePanels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	descs := s.opts.Registry.Descriptors()
	out := make([]PanelResponse, 0, len(descs))
	for _, d := range descs {
		moduleURL := s.opts.Sources.URL(ctx, d.Name)
		out = append(out, PanelResponse{
			Name:        d.Name,
			Title:       d.Title,
			Description: d.Description,
			NavOrder:    d.NavOrder,
			EntryURL:    registry.EntryPath(d.Name),
			Origin:      s.opts.Sources.Resolver.Resolve(ctx, d.Name).Kind.String(),
			ModuleURL:   moduleURL,
			State:       s.opts.Sources.Loader.State(moduleURL).String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleModule serves the cached source of a panel module to the browser.
func (s *Shell) handleModule(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	panel, ok := strings.CutSuffix(file, ".js")
	if !ok || panel == "" {
		http.NotFound(w, r)
		return
	}
	if _, known := s.opts.Registry.Get(panel); !known {
		http.NotFound(w, r)
		return
	}

	comp, err := s.opts.Registry.GetLoader(panel)(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		status := http.StatusBadGateway
		var loadErr *loader.LoadError
		if !errors.As(err, &loadErr) && !errors.Is(err, registry.ErrNoExports) {
			status = http.StatusInternalServerError
		}
		s.log.Warn().Err(err).Str("panel", panel).Msg("module request failed")
		http.Error(w, loadFailureMessage(err), status)
		return
	}

	mod := comp.Module
	if mod.ETag != "" {
		w.Header().Set("ETag", mod.ETag)
		if match := r.Header.Get("If-None-Match"); match != "" && match == mod.ETag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Panel-Origin", comp.Origin.String())
	_, _ = w.Write(mod.Source)
}

// handleEvict clears module cache entries. An empty body clears everything.
func (s *Shell) handleEvict(w http.ResponseWriter, r *http.Request) {
	gate := s.gateOf(r)
	decision := gate.Admit(routes.Elevated)
	if decision.Kind == session.Defer {
		gate.CheckSession(r.Context())
		decision = gate.Admit(routes.Elevated)
	}
	if decision.Kind != session.Allow {
		if gate.Session().IsAuthenticated() {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "requires elevated privileges")
		} else {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in required")
		}
		return
	}

	var req evictRequest
	if r.ContentLength != 0 {
		if !decodeInput(w, r, &req) {
			return
		}
	}

	target := req.URL
	if target == "" && req.Panel != "" {
		target = s.opts.Sources.URL(r.Context(), req.Panel)
	}
	s.opts.Sources.Loader.Evict(target)

	scope := target
	if scope == "" {
		scope = "all"
	}
	s.log.Info().Str("scope", scope).Str("user", gate.Session().User.Username).Msg("module cache evicted")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"evicted": scope,
		"entries": s.opts.Sources.Loader.Len(),
	})
}
