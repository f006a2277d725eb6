package reqengine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"

	"github.com/emcecs/ecs-go-client/cos"
)

// classifyTransportErr maps a net/http client error into the closed
// TransportClass taxonomy (spec.md §7). serverWasReached additionally
// reports whether the error occurred after TCP+TLS handshake completed
// (tracked by httptrace in sendOnce), since that information is not always
// recoverable from the error value alone.
func classifyTransportErr(err error, serverWasReached bool) cos.TransportClass {
	if err == nil {
		return cos.TransportNone
	}

	if errors.Is(err, context.Canceled) {
		return cos.TransportOperationCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return cos.TransportTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return cos.TransportTimeout
		}
		err = urlErr.Err
	}

	var tlsErr *tls.CertificateVerificationError
	if errors.As(err, &tlsErr) {
		return cos.TransportTLSHandshakeFailure
	}
	var x509Err x509.UnknownAuthorityError
	if errors.As(err, &x509Err) {
		return cos.TransportTLSHandshakeFailure
	}
	var x509Hostname x509.HostnameError
	if errors.As(err, &x509Hostname) {
		return cos.TransportTLSHandshakeFailure
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return cos.TransportNameResolutionFailure
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return cos.TransportTimeout
		}
		if isConnRefused(opErr) {
			return cos.TransportConnectionRefused
		}
		if isConnReset(opErr) {
			return cos.TransportConnectionReset
		}
	}

	if serverWasReached {
		return cos.TransportInvalidServerResponse
	}
	return cos.TransportConnectionRefused
}

func isConnRefused(opErr *net.OpError) bool {
	return containsErrText(opErr, "connection refused")
}

func isConnReset(opErr *net.OpError) bool {
	return containsErrText(opErr, "connection reset") || containsErrText(opErr, "broken pipe")
}

func containsErrText(err error, substr string) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
