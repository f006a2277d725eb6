// Package s3admin implements the narrow slice of ECS's admin/management
// REST surface spec.md §4.10 calls out explicitly: login/logout, user
// listing/creation, and per-user secret-key management. It shares reqengine's
// send/receive pipeline (signing bypassed, per spec.md's admin-mode rule) and
// xmlenc's response parsing with the s3 package, but never the same
// runtime.Context: the admin API listens on its own port (4443) and pinning
// it to the same session pool as the data-plane Connection risks handing an
// admin request a pooled *http.Client already dialed to the data port.
package s3admin

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"

	"github.com/emcecs/ecs-go-client/connection"
	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/reqengine"
	"github.com/emcecs/ecs-go-client/runtime"
)

// AdminPort is ECS's fixed management-API port (spec.md §4.10).
const AdminPort = 4443

// Client drives the admin API against one ECS management endpoint.
type Client struct {
	Engine *reqengine.Engine
	Conn   *connection.Connection

	mu    sync.RWMutex
	token string
}

// New returns a Client for host, dedicated to its own runtime.Context and
// session pool. user/password back the Basic-auth replay reqengine's
// 401/407 challenge path performs on Login (spec.md §4.6 phase 4); they are
// never used to sign a request body, only to answer the server's challenge.
func New(host string, candidates []string, user, password string, useTLS bool) *Client {
	conn := connection.DefaultConnection(runtime.New(), host, candidates)
	conn.Port = AdminPort
	conn.UseTLS = useTLS
	conn.AdminUser = user
	conn.AdminPassword = password
	// signing is bypassed for every admin request (SkipSigning on each
	// Request), so the credential provider is never consulted; it exists
	// only to satisfy Connection.Validate / Engine.Do's unconditional
	// refreshCredentials call.
	conn.WithStaticCredentials("", "")
	return &Client{Engine: reqengine.New(conn), Conn: conn}
}

// Token returns the X-SDS-AUTH-TOKEN captured by the last successful Login,
// or "" if not currently logged in.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, req *reqengine.Request) (*reqengine.Response, error) {
	req.SkipSigning = true
	return c.Engine.Do(ctx, connection.NewPerThreadState(), req)
}

// authedRequest builds a request carrying the current session token, failing
// if Login has not been called yet.
func (c *Client) authedRequest(method, path, rawQuery string) (*reqengine.Request, error) {
	tok := c.Token()
	if tok == "" {
		return nil, errors.New("s3admin: not logged in")
	}
	h := cos.NewHeaderMap()
	h.Set("accept", "*/*")
	h.Set("X-SDS-AUTH-TOKEN", tok)
	return &reqengine.Request{Method: method, Path: path, RawQuery: rawQuery, Header: h}, nil
}

// Login authenticates against /login, capturing the X-SDS-AUTH-TOKEN the
// server returns for every subsequent admin call (spec.md §4.10). The first
// attempt gets a 401 challenge since no credentials are sent up front;
// reqengine's own auth-replay path answers it with HTTP Basic using
// Conn.AdminUser/AdminPassword, exactly as it would for any other admin-mode
// 401.
func (c *Client) Login(ctx context.Context) error {
	h := cos.NewHeaderMap()
	h.Set("accept", "*/*")
	resp, err := c.do(ctx, &reqengine.Request{Method: http.MethodGet, Path: "/login", Header: h})
	if err != nil {
		return errors.Wrap(err, "s3admin: login")
	}
	tok, ok := resp.Header.Get("X-SDS-AUTH-TOKEN")
	if !ok || tok == "" {
		return errors.New("s3admin: login response carried no X-SDS-AUTH-TOKEN")
	}
	c.setToken(tok)
	return nil
}

// Logout invalidates the current session token.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.authedRequest(http.MethodGet, "/logout", "")
	if err != nil {
		return err
	}
	if _, err := c.do(ctx, req); err != nil {
		return errors.Wrap(err, "s3admin: logout")
	}
	c.setToken("")
	return nil
}
