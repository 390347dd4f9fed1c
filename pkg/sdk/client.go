// Package sdk is a Go client for the panelhost HTTP API: the session
// endpoints, the persistent store, the host bus and the theme catalogue.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

// Client talks to one panelhost instance. Session cookies are kept in the
// client's cookie jar so consecutive calls share one browser session.
type Client struct {
	http    *http.Client
	baseURL string
}

// ClientOptions configures SDK client construction.
type ClientOptions struct {
	HTTPClient *http.Client
}

// ClientOption mutates ClientOptions.
type ClientOption func(*ClientOptions)

// WithHTTPClient overrides the HTTP client. A client without a cookie jar
// gets a fresh session on every call.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(opts *ClientOptions) {
		opts.HTTPClient = client
	}
}

// NewClient creates a client for the host at baseURL.
func NewClient(baseURL string, optFns ...ClientOption) *Client {
	opts := ClientOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		jar, _ := cookiejar.New(nil)
		opts.HTTPClient = &http.Client{Jar: jar}
	}
	return &Client{
		http:    opts.HTTPClient,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// APIError is a non-2xx response of the host.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("panelhost: %s (%d %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("panelhost: %s (%d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the host.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 from the host.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends the request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(b, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(b))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

func escape(segment string) string {
	return url.PathEscape(segment)
}

// Session returns the current session, validating it with the provider if
// the host has not done so yet.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SignIn signs in with a username and password.
func (c *Client) SignIn(ctx context.Context, username, password string) (*SignInResult, error) {
	var res SignInResult
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/sign-in", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CompleteRotation sets a new password after SignIn reported RotationRequired.
func (c *Client) CompleteRotation(ctx context.Context, newPassword string) (*SignInResult, error) {
	var res SignInResult
	body := map[string]string{"new_password": newPassword}
	if err := c.do(ctx, http.MethodPost, "/auth/rotate", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SignOut ends the session.
func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/sign-out", struct{}{}, nil)
}

// SignUp registers an account. The account must be confirmed with the code
// delivered to the user.
func (c *Client) SignUp(ctx context.Context, in SignUpInput) error {
	return c.do(ctx, http.MethodPost, "/auth/sign-up", in, nil)
}

// ConfirmSignUp confirms a new account.
func (c *Client) ConfirmSignUp(ctx context.Context, username, code string) error {
	body := map[string]string{"username": username, "code": code}
	return c.do(ctx, http.MethodPost, "/auth/confirm-sign-up", body, nil)
}

// ResetPassword sends a reset code to the user.
func (c *Client) ResetPassword(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "/auth/reset-password", map[string]string{"username": username}, nil)
}

// ConfirmResetPassword sets a new password with a reset code.
func (c *Client) ConfirmResetPassword(ctx context.Context, username, code, newPassword string) error {
	body := map[string]string{"username": username, "code": code, "new_password": newPassword}
	return c.do(ctx, http.MethodPost, "/auth/confirm-reset-password", body, nil)
}

// Panels lists the registered panels with their origin for this client.
func (c *Client) Panels(ctx context.Context) ([]Panel, error) {
	var panels []Panel
	if err := c.do(ctx, http.MethodGet, "/api/panels", nil, &panels); err != nil {
		return nil, err
	}
	return panels, nil
}

// Evict drops the cached module of panel, or every module when panel is empty.
// Requires an elevated session.
func (c *Client) Evict(ctx context.Context, panel string) (*EvictResult, error) {
	var body any
	if panel != "" {
		body = map[string]string{"panel": panel}
	}
	var res EvictResult
	if err := c.do(ctx, http.MethodPost, "/admin/cache/evict", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetValue reads a persistent store key. ok is false when the key is not set.
func (c *Client) GetValue(ctx context.Context, key string) (value string, ok bool, err error) {
	var entry struct {
		Value string `json:"value"`
	}
	err = c.do(ctx, http.MethodGet, "/api/store/"+escape(key), nil, &entry)
	if IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

// SetValue writes a persistent store key.
func (c *Client) SetValue(ctx context.Context, key, value string) error {
	return c.do(ctx, http.MethodPut, "/api/store/"+escape(key), map[string]string{"value": value}, nil)
}

// RemoveValue deletes a persistent store key.
func (c *Client) RemoveValue(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/api/store/"+escape(key), nil, nil)
}

// Publish sends payload to every subscriber of topic.
func (c *Client) Publish(ctx context.Context, topic string, payload any) error {
	return c.do(ctx, http.MethodPost, "/api/events/"+escape(topic), payload, nil)
}

// Shared returns a snapshot of the session's shared data.
func (c *Client) Shared(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	if err := c.do(ctx, http.MethodGet, "/api/shared", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetShared decodes one shared value into out. ok is false when it is not set.
func (c *Client) GetShared(ctx context.Context, key string, out any) (ok bool, err error) {
	err = c.do(ctx, http.MethodGet, "/api/shared/"+escape(key), nil, out)
	if IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// SetShared stores a session-scoped value and notifies shared:changed subscribers.
func (c *Client) SetShared(ctx context.Context, key string, value any) error {
	return c.do(ctx, http.MethodPut, "/api/shared/"+escape(key), value, nil)
}

// DeleteShared removes a session-scoped value.
func (c *Client) DeleteShared(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/api/shared/"+escape(key), nil, nil)
}

// ClearShared removes every session-scoped value.
func (c *Client) ClearShared(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/shared", nil, nil)
}

// Themes lists built-in and custom themes.
func (c *Client) Themes(ctx context.Context) (*Themes, error) {
	var t Themes
	if err := c.do(ctx, http.MethodGet, "/api/themes", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CurrentTheme returns the applied theme.
func (c *Client) CurrentTheme(ctx context.Context) (*Theme, error) {
	var t Theme
	if err := c.do(ctx, http.MethodGet, "/api/themes/current", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SelectTheme persists the selection and broadcasts theme:changed.
func (c *Client) SelectTheme(ctx context.Context, id string) (*Theme, error) {
	var t Theme
	if err := c.do(ctx, http.MethodPut, "/api/themes/current", map[string]string{"id": id}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveTheme creates or replaces a custom theme.
func (c *Client) SaveTheme(ctx context.Context, t Theme) (*Theme, error) {
	if t.ID == "" {
		return nil, fmt.Errorf("theme id is required")
	}
	var saved Theme
	if err := c.do(ctx, http.MethodPut, "/api/themes/"+escape(t.ID), t, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteTheme removes a custom theme.
func (c *Client) DeleteTheme(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/themes/"+escape(id), nil, nil)
}

// DownloadedThemes returns the file names of previously exported themes.
func (c *Client) DownloadedThemes(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, "/api/themes/downloads", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// RecordThemeDownload remembers an exported file name. existed reports
// whether it had been recorded before.
func (c *Client) RecordThemeDownload(ctx context.Context, filename string) (existed bool, err error) {
	var res struct {
		Existed bool `json:"existed"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/themes/downloads", map[string]string{"filename": filename}, &res); err != nil {
		return false, err
	}
	return res.Existed, nil
}
