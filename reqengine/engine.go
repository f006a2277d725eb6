package reqengine

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/emcecs/ecs-go-client/connection"
	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/runtime"
	"github.com/emcecs/ecs-go-client/sign"
)

// Recorder receives the engine's perf counters (spec.md §4.6: "bytes
// sent/received, thread state, queue rates"). metrics.Collector implements
// this; nil is a valid no-op default.
type Recorder interface {
	BytesSent(host string, n int64)
	BytesReceived(host string, n int64)
	RequestRetried(host string)
	RequestFailed(host string)
}

// Engine drives requests for one Connection.
type Engine struct {
	Conn    *connection.Connection
	Metrics Recorder

	credMu        sync.Mutex
	credAccessKey string
	credSecret    string
	keyCache      *sign.KeyCache
}

// New returns an Engine bound to conn.
func New(conn *connection.Connection) *Engine {
	return &Engine{Conn: conn, keyCache: &sign.KeyCache{}}
}

func (e *Engine) refreshCredentials() error {
	e.credMu.Lock()
	defer e.credMu.Unlock()
	ak, sk, err := e.Conn.Credentials.Retrieve()
	if err != nil {
		return errors.Wrap(err, "reqengine: retrieving signing credentials")
	}
	e.credAccessKey, e.credSecret = ak, sk
	return nil
}

func (e *Engine) record(fn func(Recorder)) {
	if e.Metrics != nil {
		fn(e.Metrics)
	}
}

// Do drives one logical request end-to-end, including the retry/failover
// policy of spec.md §4.6. pts carries the per-request used-IP set and retry
// counters across attempts.
func (e *Engine) Do(ctx context.Context, pts *connection.PerThreadState, req *Request) (*Response, error) {
	if err := e.refreshCredentials(); err != nil {
		return nil, err
	}

	conn := e.Conn
	isStream := req.UploadStream != nil || req.DownloadStream != nil
	timeoutRetries := 0
	failedIPs := make(map[string]cos.TransportClass)

	for {
		select {
		case <-ctx.Done():
			return nil, &cos.Result{Transport: cos.TransportOperationCancelled, HostAddr: conn.Host}
		default:
		}

		ip, ok := conn.Ctx.Roster.NextIP(conn.Host, conn.Candidates, pts.UsedIPs, time.Now(), effectiveBadIPAge(conn))
		if !ok {
			return nil, &cos.Result{Transport: cos.TransportNameResolutionFailure, Details: "no usable candidate IP remains", HostAddr: conn.Host}
		}

		resp, result := e.sendOnce(ctx, pts, ip, req)
		if result == nil {
			for failedIP, class := range failedIPs {
				conn.Ctx.Roster.MarkBad(conn.Host, failedIP, class, time.Now())
			}
			if len(pts.UsedIPs) > 0 {
				conn.Ctx.Roster.TestAllBad(conn.Host, conn.Candidates, time.Now(), effectiveBadIPAge(conn))
			}
			return resp, nil
		}

		if result.IsOperationAborted() {
			return nil, result
		}

		if result.Transport != cos.TransportNone {
			if result.Transport.QualifiesForBadIP() && len(conn.Candidates) > 1 {
				failedIPs[ip] = result.Transport
				pts.MarkUsed(ip)
			}
			if isStream {
				e.record(func(r Recorder) { r.RequestFailed(conn.Host) })
				return nil, result
			}
			if result.Transport == cos.TransportTimeout {
				timeoutRetries++
				if timeoutRetries > 2 {
					e.record(func(r Recorder) { r.RequestFailed(conn.Host) })
					return nil, result
				}
			}
			if !pts.CanRetry(conn.MaxRetryCount) {
				e.record(func(r Recorder) { r.RequestFailed(conn.Host) })
				return nil, result
			}
			pts.RetriesAttempted++
			e.record(func(r Recorder) { r.RequestRetried(conn.Host) })
			if !sleepPause(ctx, conn.RetryPauseMin) {
				return nil, &cos.Result{Transport: cos.TransportOperationCancelled, HostAddr: conn.Host}
			}
			continue
		}

		// Got a server response; result carries an HTTP or S3-level error.
		if result.HTTPStatus >= 500 {
			if isStream {
				e.record(func(r Recorder) { r.RequestFailed(conn.Host) })
				return nil, result
			}
			if !pts.CanRetry(conn.MaxRetryCount) {
				e.record(func(r Recorder) { r.RequestFailed(conn.Host) })
				return nil, result
			}
			pts.RetriesAttempted++
			e.record(func(r Recorder) { r.RequestRetried(conn.Host) })
			if !sleepPause(ctx, conn.RetryPauseMax) {
				return nil, &cos.Result{Transport: cos.TransportOperationCancelled, HostAddr: conn.Host}
			}
			continue
		}

		e.record(func(r Recorder) { r.RequestFailed(conn.Host) })
		return nil, result
	}
}

func effectiveBadIPAge(conn *connection.Connection) time.Duration {
	if conn.BadIPAge <= 0 {
		return runtime.DefaultBadIPAge
	}
	return conn.BadIPAge
}

func sleepPause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// sendOnce performs exactly one attempt against ip: lease a session, sign,
// transmit, receive, and (per spec.md §4.6 phase 4) replay at most three
// 401/407 auth cycles before giving up.
func (e *Engine) sendOnce(ctx context.Context, pts *connection.PerThreadState, ip string, req *Request) (*Response, *cos.Result) {
	conn := e.Conn
	session := conn.Ctx.Sessions.Lease(conn.Host, ip, conn.NewClient)

	killSession := false
	defer func() { conn.Ctx.Sessions.Release(session, killSession) }()

	for {
		requestTime := time.Now()
		plan := buildAndSign(e, req, ip, requestTime)

		httpReq, bodyCloser, berr := e.buildHTTPRequest(ctx, req, plan, ip)
		if berr != nil {
			return nil, &cos.Result{Details: berr.Error(), HostAddr: ip}
		}
		if bodyCloser != nil {
			defer bodyCloser()
		}

		var reachedServer bool
		trace := &httptrace.ClientTrace{
			GotConn: func(_ httptrace.GotConnInfo) { reachedServer = true },
		}
		httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), trace))

		httpResp, err := session.Client.Do(httpReq)
		if err != nil {
			class := classifyTransportErr(err, reachedServer)
			killSession = true
			return nil, &cos.Result{Transport: class, HostAddr: ip, Details: err.Error()}
		}

		if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusProxyAuthRequired {
			if e.replayAuth(req.Header, httpResp, pts) {
				io.Copy(io.Discard, httpResp.Body)
				httpResp.Body.Close()
				continue
			}
		}

		resp, result := e.drainResponse(conn, httpResp, req)
		if result != nil {
			if result.Transport != cos.TransportNone {
				killSession = true
			}
			result.SecureError = secureErrorBitmask(httpResp.TLS)
		}
		return resp, result
	}
}

// buildHTTPRequest constructs the outgoing *http.Request, wiring either the
// buffered payload, a v4-chunked stream reader, or a plain stream reader as
// its body. The returned closer (if non-nil) releases resources the body
// reader owns.
func (e *Engine) buildHTTPRequest(ctx context.Context, req *Request, plan signingPlan, ip string) (*http.Request, func(), error) {
	conn := e.Conn
	fullURL := fmt.Sprintf("%s://%s%s", scheme(conn.UseTLS), conn.Host, req.Path)
	if req.RawQuery != "" {
		fullURL += "?" + req.RawQuery
	}

	var body io.Reader
	var closer func()

	switch {
	case req.Payload != nil:
		body = bytes.NewReader(req.Payload)
	case req.UploadStream != nil && plan.v4Chunked:
		r := newChunkedUploadReader(req.UploadStream, plan, conn, e)
		body = r
		closer = r.Close
	case req.UploadStream != nil:
		r := newPlainUploadReader(req.UploadStream, conn, e)
		body = r
		closer = r.Close
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, nil, err
	}
	httpReq.Host = conn.Host
	httpReq.Header = toHTTPHeader(req.Header)
	return httpReq, closer, nil
}

func scheme(useTLS bool) string {
	if useTLS {
		return "https"
	}
	return "http"
}

// secureErrorBitmask inspects a completed TLS connection state for the
// classified failure bits spec.md §4.6 requires be OR'd in. Only meaningful
// when the handshake itself did not already abort the request.
func secureErrorBitmask(state *tls.ConnectionState) cos.SecureErrorBit {
	if state == nil || len(state.PeerCertificates) == 0 {
		return 0
	}
	var bits cos.SecureErrorBit
	cert := state.PeerCertificates[0]
	if cert.Issuer.String() == cert.Subject.String() {
		bits |= cos.SecureErrSelfSigned
	}
	if time.Now().After(cert.NotAfter) {
		bits |= cos.SecureErrExpired
	}
	return bits
}
