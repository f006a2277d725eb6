// Package connection holds the client-side configuration root (Connection)
// and the per-request scratch state (PerThreadState) that replaces the
// source's thread-local maps with an explicit, request-scoped value (see
// SPEC_FULL.md's re-architecture notes).
package connection

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/emcecs/ecs-go-client/runtime"
)

// TLSProtocol is a bitmask selecting which TLS versions are offered, mirroring
// the source's protocol-mask connection option.
type TLSProtocol uint32

const (
	TLS10 TLSProtocol = 1 << iota
	TLS11
	TLS12
	TLS13
)

func (m TLSProtocol) minVersion() uint16 {
	switch {
	case m&TLS10 != 0:
		return tls.VersionTLS10
	case m&TLS11 != 0:
		return tls.VersionTLS11
	case m&TLS13 != 0 && m&TLS12 == 0:
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

// Proxy describes an optional upstream HTTP proxy, including proxy
// authentication credentials (spec.md §2 connection options).
type Proxy struct {
	Host     string
	Port     int
	User     string
	Password string
}

func (p *Proxy) url() string {
	if p == nil || p.Host == "" {
		return ""
	}
	return fmt.Sprintf("http://%s:%d", p.Host, p.Port)
}

// CredentialsProvider supplies an access key / secret pair, refreshed on
// demand. The aws-sdk-go credentials chain (env/profile/IAM) can be plugged
// in directly since it already satisfies this shape (spec.md's pluggable
// signing-credential source).
type CredentialsProvider interface {
	Retrieve() (accessKeyID, secret string, err error)
}

// staticCredentials is the default provider wrapping a fixed key pair.
type staticCredentials struct {
	accessKeyID, secret string
}

func (s staticCredentials) Retrieve() (string, string, error) {
	return s.accessKeyID, s.secret, nil
}

// awsSDKCredentials adapts an aws-sdk-go credentials.Credentials chain.
type awsSDKCredentials struct {
	chain *credentials.Credentials
}

func (a awsSDKCredentials) Retrieve() (string, string, error) {
	v, err := a.chain.Get()
	if err != nil {
		return "", "", errors.Wrap(err, "aws-sdk-go credentials provider")
	}
	return v.AccessKeyID, v.SecretAccessKey, nil
}

// NewAWSSDKCredentials wires an aws-sdk-go credential chain (e.g.
// credentials.NewEnvCredentials(), credentials.NewSharedCredentials(...)) in
// as the signing-credential source, bypassing this package's own static
// key/secret fields entirely.
func NewAWSSDKCredentials(chain *credentials.Credentials) CredentialsProvider {
	return awsSDKCredentials{chain: chain}
}

// Connection is the configuration root for one ECS endpoint: host label,
// candidate IPs, and every knob the source exposed as a connection option.
// Changing any field that materially affects the wire (IPs, port, TLS,
// proxy, credentials) must be followed by a call to Invalidate so pooled
// sessions are torn down (spec.md §4.3).
type Connection struct {
	Ctx *runtime.Context

	Host       string
	Candidates []string // host's candidate IPs, rotated by runtime.IPRoster
	Port       int
	UseTLS     bool
	TLSProto   TLSProtocol
	InsecureSkipVerify bool

	Region string
	V4Signing bool // false selects Signature V2

	Credentials CredentialsProvider

	// AdminUser/AdminPassword back a Basic auth replay on a 401/407 challenge
	// (spec.md §4.6 phase 4); S3-signed requests never hit this path since
	// the signature itself is the credential, but the admin management API
	// (s3admin) authenticates with a login token obtained this way.
	AdminUser     string
	AdminPassword string

	Proxy *Proxy

	UserAgent string

	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	MaxRetryCount    int
	RetryPauseMin    time.Duration
	RetryPauseMax    time.Duration
	MaxWriteSize     int64 // stored only; reqengine does not read it, so request bodies are neither capped nor sliced by it
	V4ChunkSize      int   // streaming chunk size, clamped to sign.MinChunkSize

	UploadBPS   int64 // 0 = unthrottled
	DownloadBPS int64

	BadIPAge time.Duration // 0 -> runtime.DefaultBadIPAge
}

// DefaultConnection returns a Connection with the source's documented
// defaults: TLS12, 3 retries, 30s connect timeout, 8KiB v4 chunks.
func DefaultConnection(ctx *runtime.Context, host string, candidates []string) *Connection {
	return &Connection{
		Ctx:            ctx,
		Host:           host,
		Candidates:     candidates,
		Port:           9021,
		UseTLS:         false,
		TLSProto:       TLS12,
		Region:         "us-east-1",
		V4Signing:      true,
		UserAgent:      "ecs-go-client/1.0",
		ConnectTimeout: 30 * time.Second,
		RequestTimeout: 0,
		MaxRetryCount:  3,
		RetryPauseMin:  250 * time.Millisecond,
		RetryPauseMax:  4 * time.Second,
		V4ChunkSize:    8 * 1024,
		BadIPAge:       runtime.DefaultBadIPAge,
	}
}

// WithStaticCredentials sets a fixed access key / secret pair, the default
// signing-credential source.
func (c *Connection) WithStaticCredentials(accessKeyID, secret string) *Connection {
	c.Credentials = staticCredentials{accessKeyID: accessKeyID, secret: secret}
	return c
}

// Validate checks required fields and internal consistency.
func (c *Connection) Validate() error {
	if c.Host == "" {
		return errors.New("connection: Host must not be empty")
	}
	if len(c.Candidates) == 0 {
		return errors.New("connection: at least one candidate IP is required")
	}
	if c.Credentials == nil {
		return errors.New("connection: no CredentialsProvider configured")
	}
	if c.MaxRetryCount < 0 {
		return errors.New("connection: MaxRetryCount must be >= 0")
	}
	return nil
}

// Clone returns a deep-enough copy safe to mutate independently (candidate
// slice and proxy are copied; the CredentialsProvider and runtime.Context are
// shared by reference since both are themselves safe for concurrent use).
func (c *Connection) Clone() *Connection {
	cp := *c
	cp.Candidates = append([]string(nil), c.Candidates...)
	if c.Proxy != nil {
		p := *c.Proxy
		cp.Proxy = &p
	}
	return &cp
}

// Invalidate tears down the pooled sessions tied to this connection's host,
// per spec.md §4.3's invalidation trigger list (IP set, port, TLS, proxy, or
// credentials changed). Bad-IP and throttle state are left unchanged.
func (c *Connection) Invalidate() {
	c.Ctx.Sessions.InvalidateHost(c.Host)
	glog.V(3).Infof("connection: invalidated pooled sessions for host %s", c.Host)
}

// ConfigureThrottle (re-)applies this Connection's bandwidth limits to the
// shared ThrottleSet. Call again after changing UploadBPS/DownloadBPS.
func (c *Connection) ConfigureThrottle() {
	if c.UploadBPS <= 0 && c.DownloadBPS <= 0 {
		c.Ctx.Throttle.Remove(c.Host)
		return
	}
	c.Ctx.Throttle.Configure(c.Host, c.UploadBPS, c.DownloadBPS)
}

// NewClient builds the *http.Client this Connection's SessionPool entries are
// minted with, dedicated to one (host, ip) pair. Dialing is pinned to ip
// while TLS verification (when UseTLS) still checks against Host, so IP
// rotation never disturbs certificate validation.
func (c *Connection) NewClient(host, ip string, epoch int64) *http.Client {
	dialer := &net.Dialer{Timeout: c.ConnectTimeout}
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", c.Port))

	transport := &http.Transport{
		Proxy: c.proxyFunc(),
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
		TLSClientConfig: &tls.Config{
			ServerName:         host,
			MinVersion:         c.TLSProto.minVersion(),
			InsecureSkipVerify: c.InsecureSkipVerify,
		},
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   c.RequestTimeout,
	}
}

func (c *Connection) proxyFunc() func(*http.Request) (*url.URL, error) {
	if c.Proxy == nil || c.Proxy.Host == "" {
		return nil
	}
	proxyURL, err := url.Parse(c.Proxy.url())
	if err != nil {
		glog.Warningf("connection: invalid proxy URL for host %s: %v", c.Host, err)
		return nil
	}
	if c.Proxy.User != "" {
		proxyURL.User = url.UserPassword(c.Proxy.User, c.Proxy.Password)
	}
	return http.ProxyURL(proxyURL)
}

// BaseURL returns the scheme://host:port prefix requests are built against.
func (c *Connection) BaseURL() string {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}
