package connection

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Ping performs a minimal HEAD request against the service root to validate
// that a single candidate IP is reachable, supplementing the source's
// dedicated test-connection mode (SPEC_FULL.md's SUPPLEMENTED FEATURES).
// Per spec.md §4.4, a Ping target is always a single-candidate host, so a
// failure here must never feed the shared bad-IP map.
func (c *Connection) Ping(ctx context.Context, ip string, timeout time.Duration) error {
	client := c.NewClient(c.Host, ip, 0)
	client.Timeout = timeout

	url := c.BaseURL() + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return errors.Wrap(err, "connection: building ping request")
	}
	req.Host = c.Host

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "connection: ping to %s (%s) failed", c.Host, ip)
	}
	defer resp.Body.Close()
	return nil
}
