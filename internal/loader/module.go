package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DefaultMaxModuleBytes caps the size of a fetched module.
const DefaultMaxModuleBytes = 8 << 20

var (
	// ErrEmptyModule is returned for a module without a body.
	ErrEmptyModule = errors.New("module body is empty")
	// ErrNotModule is returned when the server answers with a document instead of a script.
	ErrNotModule = errors.New("response is not a javascript module")
	// ErrModuleTooLarge is returned when the body exceeds the size cap.
	ErrModuleTooLarge = errors.New("module exceeds size limit")
)

// Module is a fetched ES module and its exported surface.
type Module struct {
	URL         string
	Source      []byte
	Exports     []string
	ContentType string
	ETag        string
	FetchedAt   time.Time
}

// HasExport reports whether the module exports name.
func (m *Module) HasExport(name string) bool {
	for _, e := range m.Exports {
		if e == name {
			return true
		}
	}
	return false
}

// NewModule builds a Module from source, scanning its exports.
func NewModule(url string, source []byte) *Module {
	return &Module{
		URL:         url,
		Source:      source,
		Exports:     ScanExports(source),
		ContentType: "text/javascript; charset=utf-8",
		FetchedAt:   time.Now(),
	}
}

// HTTPFetcher fetches modules over HTTP(S).
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// NewHTTPFetcher returns a fetcher using client, or http.DefaultClient when nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client, MaxBytes: DefaultMaxModuleBytes}
}

// Fetch performs a GET of url. The response body is always closed.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Module, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/javascript, application/javascript, */*;q=0.1")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if isDocument(contentType) {
		return nil, fmt.Errorf("%w: content-type %q", ErrNotModule, contentType)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxModuleBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, ErrModuleTooLarge
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, ErrEmptyModule
	}

	mod := NewModule(url, body)
	if contentType != "" {
		mod.ContentType = contentType
	}
	mod.ETag = resp.Header.Get("ETag")
	return mod, nil
}

// isDocument catches CDNs that answer a missing file with the SPA index page.
func isDocument(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

var (
	exportDefaultRe = regexp.MustCompile(`(?m)^\s*export\s+default\b`)
	exportDeclRe    = regexp.MustCompile(`(?m)^\s*export\s+(?:async\s+)?(?:function\s*\*?|class|const|let|var)\s*([A-Za-z_$][\w$]*)`)
	exportListRe    = regexp.MustCompile(`(?m)^\s*export\s*\{([^}]*)\}`)
)

type exportPos struct {
	name string
	pos  int
}

// ScanExports lists the names a module exports, in source order.
// "default" is reported for a default export, including `export { x as default }`.
func ScanExports(source []byte) []string {
	var found []exportPos

	for _, loc := range exportDefaultRe.FindAllIndex(source, -1) {
		found = append(found, exportPos{name: "default", pos: loc[0]})
	}
	for _, m := range exportDeclRe.FindAllSubmatchIndex(source, -1) {
		found = append(found, exportPos{name: string(source[m[2]:m[3]]), pos: m[0]})
	}
	for _, m := range exportListRe.FindAllSubmatchIndex(source, -1) {
		for i, clause := range strings.Split(string(source[m[2]:m[3]]), ",") {
			name := exportedName(clause)
			if name != "" {
				found = append(found, exportPos{name: name, pos: m[0] + i})
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	seen := make(map[string]struct{}, len(found))
	exports := make([]string, 0, len(found))
	for _, e := range found {
		if _, ok := seen[e.name]; ok {
			continue
		}
		seen[e.name] = struct{}{}
		exports = append(exports, e.name)
	}
	return exports
}

func exportedName(clause string) string {
	fields := strings.Fields(clause)
	switch {
	case len(fields) == 1:
		return fields[0]
	case len(fields) == 3 && fields[1] == "as":
		return fields[2]
	default:
		return ""
	}
}
