// Package client builds SDK clients whose host session survives between panelctl runs.
package client

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/internal/sessionstore"
	"github.com/report-zone/mfe-demo-sub000/pkg/sdk"
)

// Provider yields an SDK client backed by the session store.
type Provider struct {
	serverURL string
	storeDir  string

	once   sync.Once
	jar    *cookiejar.Jar
	store  *sessionstore.FileStore
	client *sdk.Client
	err    error
	forget bool
}

// NewProvider constructs a Provider bound to serverURL. storeDir defaults to
// sessionstore.DefaultDir.
func NewProvider(serverURL, storeDir string) *Provider {
	return &Provider{serverURL: serverURL, storeDir: storeDir}
}

// SDKClient returns the client, restoring saved session cookies on first use.
func (p *Provider) SDKClient() (*sdk.Client, error) {
	p.once.Do(func() {
		u, err := url.Parse(p.serverURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			p.err = fmt.Errorf("invalid server URL %q", p.serverURL)
			return
		}

		dir := p.storeDir
		if dir == "" {
			if dir, err = sessionstore.DefaultDir(); err != nil {
				p.err = err
				return
			}
		}
		if p.store, err = sessionstore.NewFileStore(dir); err != nil {
			p.err = err
			return
		}

		p.jar, _ = cookiejar.New(nil)
		cookies, err := p.store.Load(p.serverURL)
		if err != nil {
			p.err = err
			return
		}
		p.jar.SetCookies(u, cookies)

		p.client = sdk.NewClient(p.serverURL, sdk.WithHTTPClient(&http.Client{Jar: p.jar}))
	})
	return p.client, p.err
}

// Persist saves the current session cookies. It is a no-op when no client was built.
func (p *Provider) Persist() error {
	if p.client == nil {
		return nil
	}
	if p.forget {
		return p.store.Save(p.serverURL, nil)
	}
	u, err := url.Parse(p.serverURL)
	if err != nil {
		return err
	}
	return p.store.Save(p.serverURL, p.jar.Cookies(u))
}

// Forget makes the next Persist drop the saved session of the server.
func (p *Provider) Forget() {
	p.forget = true
}
