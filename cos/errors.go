package cos

import (
	"crypto/x509"
	"fmt"
	"strings"
)

// S3Error is the closed enum of S3 semantic error codes, populated from a
// response's <Code> text via a case-insensitive lookup (spec.md §7). The enum
// intentionally does not attempt to be exhaustive of every code S3-compatible
// backends have ever emitted; it covers the set ECS and mainline S3 document,
// plus the two sentinels every classification must carry.
type S3Error int

const (
	ErrUnknown S3Error = iota
	ErrSuccess
	ErrAccessDenied
	ErrAccountProblem
	ErrAmbiguousGrantByEmailAddress
	ErrBadDigest
	ErrBucketAlreadyExists
	ErrBucketAlreadyOwnedByYou
	ErrBucketNotEmpty
	ErrCredentialsNotSupported
	ErrCrossLocationLoggingProhibited
	ErrEntityTooSmall
	ErrEntityTooLarge
	ErrExpiredToken
	ErrIllegalVersioningConfigurationException
	ErrIncompleteBody
	ErrIncorrectNumberOfFilesInPostRequest
	ErrInlineDataTooLarge
	ErrInternalError
	ErrInvalidAccessKeyId
	ErrInvalidAddressingHeader
	ErrInvalidArgument
	ErrInvalidBucketName
	ErrInvalidBucketState
	ErrInvalidDigest
	ErrInvalidEncryptionAlgorithmError
	ErrInvalidLocationConstraint
	ErrInvalidObjectState
	ErrInvalidPart
	ErrInvalidPartOrder
	ErrInvalidPayer
	ErrInvalidPolicyDocument
	ErrInvalidRange
	ErrInvalidRequest
	ErrInvalidSecurity
	ErrInvalidSOAPRequest
	ErrInvalidStorageClass
	ErrInvalidTargetBucketForLogging
	ErrInvalidToken
	ErrInvalidURI
	ErrKeyTooLongError
	ErrMalformedACLError
	ErrMalformedPOSTRequest
	ErrMalformedXML
	ErrMaxMessageLengthExceeded
	ErrMaxPostPreDataLengthExceededError
	ErrMetadataTooLarge
	ErrMethodNotAllowed
	ErrMissingAttachment
	ErrMissingContentLength
	ErrMissingRequestBodyError
	ErrMissingSecurityElement
	ErrMissingSecurityHeader
	ErrNoLoggingStatusForKey
	ErrNoSuchBucket
	ErrNoSuchBucketPolicy
	ErrNoSuchKey
	ErrNoSuchLifecycleConfiguration
	ErrNoSuchUpload
	ErrNoSuchVersion
	ErrNotImplemented
	ErrNotSignedUp
	ErrOperationAborted
	ErrPermanentRedirect
	ErrPreconditionFailed
	ErrRedirect
	ErrRequestIsNotMultiPartContent
	ErrRequestTimeout
	ErrRequestTimeTooSkewed
	ErrRequestTorrentOfBucketError
	ErrServerSideEncryptionConfigurationNotFoundError
	ErrServiceUnavailable
	ErrSignatureDoesNotMatch
	ErrSlowDown
	ErrTemporaryRedirect
	ErrTokenRefreshRequired
	ErrTooManyBuckets
	ErrUnexpectedContent
	ErrUnresolvableGrantByEmailAddress
	ErrUserKeyMustBeSpecified
)

var s3ErrorNames = map[string]S3Error{
	"":                                             ErrSuccess,
	"accessdenied":                                 ErrAccessDenied,
	"accountproblem":                               ErrAccountProblem,
	"ambiguousgrantbyemailaddress":                 ErrAmbiguousGrantByEmailAddress,
	"baddigest":                                    ErrBadDigest,
	"bucketalreadyexists":                          ErrBucketAlreadyExists,
	"bucketalreadyownedbyyou":                      ErrBucketAlreadyOwnedByYou,
	"bucketnotempty":                               ErrBucketNotEmpty,
	"credentialsnotsupported":                      ErrCredentialsNotSupported,
	"crosslocationloggingprohibited":               ErrCrossLocationLoggingProhibited,
	"entitytoosmall":                               ErrEntityTooSmall,
	"entitytoolarge":                               ErrEntityTooLarge,
	"expiredtoken":                                 ErrExpiredToken,
	"illegalversioningconfigurationexception":      ErrIllegalVersioningConfigurationException,
	"incompletebody":                               ErrIncompleteBody,
	"incorrectnumberoffilesinpostrequest":          ErrIncorrectNumberOfFilesInPostRequest,
	"inlinedatatoolarge":                           ErrInlineDataTooLarge,
	"internalerror":                                ErrInternalError,
	"invalidaccesskeyid":                           ErrInvalidAccessKeyId,
	"invalidaddressingheader":                      ErrInvalidAddressingHeader,
	"invalidargument":                              ErrInvalidArgument,
	"invalidbucketname":                            ErrInvalidBucketName,
	"invalidbucketstate":                           ErrInvalidBucketState,
	"invaliddigest":                                ErrInvalidDigest,
	"invalidencryptionalgorithmerror":              ErrInvalidEncryptionAlgorithmError,
	"invalidlocationconstraint":                    ErrInvalidLocationConstraint,
	"invalidobjectstate":                           ErrInvalidObjectState,
	"invalidpart":                                  ErrInvalidPart,
	"invalidpartorder":                             ErrInvalidPartOrder,
	"invalidpayer":                                 ErrInvalidPayer,
	"invalidpolicydocument":                        ErrInvalidPolicyDocument,
	"invalidrange":                                 ErrInvalidRange,
	"invalidrequest":                               ErrInvalidRequest,
	"invalidsecurity":                              ErrInvalidSecurity,
	"invalidsoaprequest":                           ErrInvalidSOAPRequest,
	"invalidstorageclass":                          ErrInvalidStorageClass,
	"invalidtargetbucketforlogging":                ErrInvalidTargetBucketForLogging,
	"invalidtoken":                                 ErrInvalidToken,
	"invaliduri":                                   ErrInvalidURI,
	"keytoolongerror":                              ErrKeyTooLongError,
	"malformedaclerror":                            ErrMalformedACLError,
	"malformedpostrequest":                         ErrMalformedPOSTRequest,
	"malformedxml":                                 ErrMalformedXML,
	"maxmessagelengthexceeded":                     ErrMaxMessageLengthExceeded,
	"maxpostpredatalengthexceedederror":            ErrMaxPostPreDataLengthExceededError,
	"metadatatoolarge":                             ErrMetadataTooLarge,
	"methodnotallowed":                             ErrMethodNotAllowed,
	"missingattachment":                            ErrMissingAttachment,
	"missingcontentlength":                         ErrMissingContentLength,
	"missingrequestbodyerror":                      ErrMissingRequestBodyError,
	"missingsecurityelement":                       ErrMissingSecurityElement,
	"missingsecurityheader":                        ErrMissingSecurityHeader,
	"nologgingstatusforkey":                        ErrNoLoggingStatusForKey,
	"nosuchbucket":                                 ErrNoSuchBucket,
	"nosuchbucketpolicy":                           ErrNoSuchBucketPolicy,
	"nosuchkey":                                    ErrNoSuchKey,
	"nosuchlifecycleconfiguration":                 ErrNoSuchLifecycleConfiguration,
	"nosuchupload":                                 ErrNoSuchUpload,
	"nosuchversion":                                ErrNoSuchVersion,
	"notimplemented":                               ErrNotImplemented,
	"notsignedup":                                  ErrNotSignedUp,
	"operationaborted":                             ErrOperationAborted,
	"permanentredirect":                            ErrPermanentRedirect,
	"preconditionfailed":                           ErrPreconditionFailed,
	"redirect":                                     ErrRedirect,
	"requestisnotmultipartcontent":                 ErrRequestIsNotMultiPartContent,
	"requesttimeout":                               ErrRequestTimeout,
	"requesttimetooskewed":                         ErrRequestTimeTooSkewed,
	"requesttorrentofbucketerror":                  ErrRequestTorrentOfBucketError,
	"serversideencryptionconfigurationnotfounderror": ErrServerSideEncryptionConfigurationNotFoundError,
	"serviceunavailable":                           ErrServiceUnavailable,
	"signaturedoesnotmatch":                        ErrSignatureDoesNotMatch,
	"slowdown":                                      ErrSlowDown,
	"temporaryredirect":                            ErrTemporaryRedirect,
	"tokenrefreshrequired":                         ErrTokenRefreshRequired,
	"toomanybuckets":                               ErrTooManyBuckets,
	"unexpectedcontent":                            ErrUnexpectedContent,
	"unresolvablegrantbyemailaddress":               ErrUnresolvableGrantByEmailAddress,
	"userkeymustbespecified":                       ErrUserKeyMustBeSpecified,
}

// ParseS3Error maps a response <Code> element's text onto the closed enum,
// case-insensitively. Empty text maps to ErrSuccess (no error element
// present); unrecognized text yields ErrUnknown, with the original text
// preserved by the caller alongside it.
func ParseS3Error(code string) S3Error {
	if e, ok := s3ErrorNames[strings.ToLower(code)]; ok {
		return e
	}
	return ErrUnknown
}

// TransportClass is the platform-level classification of a transport error,
// independent of any HTTP status ever being received.
type TransportClass int

const (
	TransportNone TransportClass = iota
	TransportConnectionRefused
	TransportConnectionReset
	TransportTimeout
	TransportTLSHandshakeFailure
	TransportNameResolutionFailure
	TransportOperationCancelled
	TransportInvalidServerResponse
	// HeaderNotFound / InvalidHeader / InvalidQuery / HeaderAlreadyExists /
	// RedirectFailed / Proxy* all indicate the peer was actually reached
	// (spec.md §7's curated "server was reached" subset) and therefore
	// suppress further failover/retry on this IP.
	TransportHeaderNotFound
	TransportInvalidHeader
	TransportInvalidQuery
	TransportHeaderAlreadyExists
	TransportRedirectFailed
	TransportProxyAuthRequired
	TransportProxyScriptError
)

// ServerWasReached reports whether this transport classification implies the
// peer was actually contacted, per spec.md §7 — such errors never count
// against an IP's bad-IP eligibility and never retry past this attempt.
func (t TransportClass) ServerWasReached() bool {
	switch t {
	case TransportHeaderNotFound, TransportInvalidHeader, TransportInvalidQuery,
		TransportHeaderAlreadyExists, TransportRedirectFailed,
		TransportProxyAuthRequired, TransportProxyScriptError:
		return true
	}
	return false
}

// QualifiesForBadIP reports whether this class of transport error may mark
// the IP it occurred on as bad (spec.md §4.4): transport-layer, excluding
// "operation cancelled" and "invalid server response".
func (t TransportClass) QualifiesForBadIP() bool {
	switch t {
	case TransportNone, TransportOperationCancelled, TransportInvalidServerResponse:
		return false
	}
	return !t.ServerWasReached()
}

// SecureErrorBit is one flag in the TLS validation-failure bitmask (spec.md
// §7's "secure-error bitmask").
type SecureErrorBit uint32

const (
	SecureErrUnknownCA SecureErrorBit = 1 << iota
	SecureErrExpired
	SecureErrCNMismatch
	SecureErrRevoked
	SecureErrWrongUsage
	SecureErrSelfSigned
	SecureErrWeakSignature
)

// Result is the classified outcome of one RequestEngine attempt (spec.md §7):
// three orthogonal classifications carried together, plus the ancillary
// fields every failure may attach.
type Result struct {
	Transport    TransportClass
	HTTPStatus   int
	S3           S3Error
	S3CodeText   string
	S3Resource   string
	S3RequestID  string
	Details      string
	HostAddr     string
	SecureError  SecureErrorBit
	CertInfo     []*x509.Certificate
}

// Error implements the error interface so a Result can be returned/wrapped
// directly through normal Go error-handling paths.
func (r *Result) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ecs: ")
	switch {
	case r.Transport != TransportNone:
		fmt.Fprintf(&sb, "transport error (%d)", r.Transport)
	case r.HTTPStatus != 0:
		fmt.Fprintf(&sb, "http %d", r.HTTPStatus)
	default:
		fmt.Fprintf(&sb, "s3 error %q", r.S3CodeText)
	}
	if r.S3RequestID != "" {
		fmt.Fprintf(&sb, " request-id=%s", r.S3RequestID)
	}
	if r.Details != "" {
		fmt.Fprintf(&sb, ": %s", r.Details)
	}
	return sb.String()
}

// IsOperationAborted reports whether this result represents a cancellation,
// which spec.md §7 models as a non-retryable terminal error.
func (r *Result) IsOperationAborted() bool {
	return r.Transport == TransportOperationCancelled
}

// Retryable reports whether spec.md's retry policy (§4.6, §7) allows another
// attempt for this classified result. It does not itself count attempts;
// callers combine it with their own attempt counter and the at-most-twice
// rule for timeouts.
func (r *Result) Retryable() bool {
	if r.IsOperationAborted() {
		return false
	}
	if r.Transport == TransportTimeout {
		return true
	}
	if r.Transport != TransportNone {
		return !r.Transport.ServerWasReached()
	}
	if r.HTTPStatus >= 500 {
		return true
	}
	return false
}
