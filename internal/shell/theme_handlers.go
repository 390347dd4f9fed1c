package shell

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/report-zone/mfe-demo-sub000/internal/theme"
)

// ThemesResponse lists the available themes and the applied one.
type ThemesResponse struct {
	Current     string             `json:"current"`
	Definitions []theme.Definition `json:"definitions"`
}

type selectThemeRequest struct {
	ID string `json:"id"`
}

type downloadRequest struct {
	Filename string `json:"filename"`
}

func themeStatus(err error) (int, string) {
	switch {
	case errors.Is(err, theme.ErrUnknownTheme):
		return http.StatusNotFound, "UNKNOWN_THEME"
	case errors.Is(err, theme.ErrReservedID):
		return http.StatusConflict, "RESERVED_ID"
	case errors.Is(err, theme.ErrInvalidDefinition):
		return http.StatusBadRequest, "INVALID_THEME"
	default:
		return http.StatusInternalServerError, "THEME_ERROR"
	}
}

func (s *Shell) handleThemes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ThemesResponse{
		Current:     s.opts.Themes.Current().ID,
		Definitions: s.opts.Themes.Definitions(),
	})
}

func (s *Shell) handleThemeCurrent(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Themes.Current())
}

func (s *Shell) handleThemeSelect(w http.ResponseWriter, r *http.Request) {
	var req selectThemeRequest
	if !decodeInput(w, r, &req) {
		return
	}
	def, err := s.opts.Themes.Select(r.Context(), req.ID)
	if err != nil {
		status, code := themeStatus(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Shell) handleThemeSave(w http.ResponseWriter, r *http.Request) {
	raw, ok := readRaw(w, r)
	if !ok {
		return
	}
	def, err := theme.Parse(raw)
	if err != nil {
		status, code := themeStatus(err)
		writeError(w, status, code, err)
		return
	}
	if id := chi.URLParam(r, "id"); def.ID != id {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "theme id does not match the path")
		return
	}
	saved, err := s.opts.Themes.SaveCustom(r.Context(), def)
	if err != nil {
		status, code := themeStatus(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Shell) handleThemeDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Themes.DeleteCustom(r.Context(), chi.URLParam(r, "id")); err != nil {
		status, code := themeStatus(err)
		writeError(w, status, code, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Shell) handleDownloads(w http.ResponseWriter, r *http.Request) {
	names, err := s.opts.Themes.DownloadedFilenames(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Shell) handleRecordDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if !decodeInput(w, r, &req) {
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "filename is required")
		return
	}
	existed, err := s.opts.Themes.RecordDownload(r.Context(), req.Filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filename": req.Filename, "existed": existed})
}
