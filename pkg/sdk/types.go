package sdk

import (
	"encoding/json"
	"time"
)

// Topics understood by the host bus.
const (
	TopicThemeChanged  = "theme:changed"
	TopicSharedChanged = "shared:changed"
)

// User is the signed-in principal.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Groups   []string `json:"groups"`
}

// Session is the session of the client's browser session.
type Session struct {
	User      *User  `json:"user"`
	IsLoading bool   `json:"is_loading"`
	State     string `json:"state"`
	Elevated  bool   `json:"elevated"`
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.User != nil
}

// SignInResult reports the step following a sign-in. Session is set once
// the sign-in completed.
type SignInResult struct {
	NextStep string   `json:"next_step"`
	Session  *Session `json:"session,omitempty"`
}

// RotationRequired reports whether a new password must be set before the
// sign-in completes.
func (r *SignInResult) RotationRequired() bool {
	return r.NextStep == "rotate_credential"
}

// SignUpInput carries the fields of a new account.
type SignUpInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Panel describes a registered panel and its module origin.
type Panel struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	NavOrder    int    `json:"nav_order"`
	EntryURL    string `json:"entry_url"`
	Origin      string `json:"origin"`
	ModuleURL   string `json:"module_url"`
	State       string `json:"state"`
}

// Palette holds the colours of a theme.
type Palette struct {
	Mode       string `json:"mode,omitempty"`
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary,omitempty"`
	Background string `json:"background"`
	Surface    string `json:"surface,omitempty"`
	Text       string `json:"text,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Theme is a named theme definition.
type Theme struct {
	ID         string                       `json:"id"`
	Name       string                       `json:"name"`
	Palette    Palette                      `json:"palette"`
	Shape      *Shape                       `json:"shape,omitempty"`
	Components map[string]map[string]string `json:"components,omitempty"`
}

// Shape holds the geometry settings of a theme.
type Shape struct {
	BorderRadius int `json:"borderRadius"`
}

// Themes lists every known theme and the selected one.
type Themes struct {
	Current     string  `json:"current"`
	Definitions []Theme `json:"definitions"`
}

// Event is a message received from the host bus.
type Event struct {
	Topic       string          `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EvictResult reports a module cache eviction.
type EvictResult struct {
	Status  string `json:"status"`
	Evicted string `json:"evicted"`
	Entries int    `json:"entries"`
}

// SharedChange is the payload of shared:changed events.
type SharedChange struct {
	Op    string          `json:"op"`
	Key   string          `json:"key,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}
