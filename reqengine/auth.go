package reqengine

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/emcecs/ecs-go-client/connection"
	"github.com/emcecs/ecs-go-client/cos"
)

// authSchemePriority is the server-offered scheme priority order spec.md
// §4.6 phase 4 specifies. The highest-priority scheme on offer is chosen, but
// only Basic is replayable from pure Go without an OS-integrated SSPI/GSSAPI
// library (none of which is present anywhere in the dependency pack): when
// Negotiate, NTLM, Passport or Digest is chosen, no replay happens, even if
// Basic is offered as well.
var authSchemePriority = []string{"Negotiate", "NTLM", "Passport", "Digest", "Basic"}

// replayAuth inspects a 401/407 response's challenge header and, if the
// connection is configured with admin Basic credentials and the
// highest-priority scheme on offer is Basic, sets the Authorization header for a retry and reports
// true. It never replays more than three cycles per logical request.
func (e *Engine) replayAuth(header *cos.HeaderMap, resp *http.Response, pts *connection.PerThreadState) bool {
	if !pts.CanReplayAuth() {
		return false
	}
	if e.Conn.AdminUser == "" {
		return false
	}

	challengeHeader := "Www-Authenticate"
	if resp.StatusCode == http.StatusProxyAuthRequired {
		challengeHeader = "Proxy-Authenticate"
	}
	offered := resp.Header.Values(challengeHeader)
	chosen := ""
	for _, scheme := range authSchemePriority {
		if offersScheme(offered, scheme) {
			chosen = scheme
			break
		}
	}
	if chosen != "Basic" {
		return false
	}

	creds := e.Conn.AdminUser + ":" + e.Conn.AdminPassword
	encoded := base64.StdEncoding.EncodeToString([]byte(creds))
	authName := "Authorization"
	if resp.StatusCode == http.StatusProxyAuthRequired {
		authName = "Proxy-Authorization"
	}
	header.Set(authName, "Basic "+encoded)
	pts.AuthCyclesAttempted++
	return true
}

func offersScheme(challenges []string, want string) bool {
	for _, c := range challenges {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(c)), strings.ToLower(want)) {
			return true
		}
	}
	return false
}
