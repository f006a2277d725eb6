// Package s3 implements OperationLayer (spec.md §4.10): thin per-operation
// wrappers that compose headers and a resource path, then delegate to
// reqengine.Engine. Every XML response is parsed through xmlenc.Dispatch.
package s3

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/emcecs/ecs-go-client/connection"
	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/reqengine"
)

// Client drives S3 operations against one Connection.
type Client struct {
	Engine *reqengine.Engine
	Conn   *connection.Connection
}

// New returns a Client bound to conn.
func New(conn *connection.Connection) *Client {
	return &Client{Engine: reqengine.New(conn), Conn: conn}
}

func resourcePath(bucket, key string) string {
	if bucket == "" {
		return "/"
	}
	if key == "" {
		return "/" + bucket + "/"
	}
	return "/" + bucket + "/" + key
}

func (c *Client) do(ctx context.Context, req *reqengine.Request) (*reqengine.Response, error) {
	return c.Engine.Do(ctx, connection.NewPerThreadState(), req)
}

// asResult unwraps err into a *cos.Result when the engine classified it,
// falling back to a details-only Result for anything else (request
// construction failures, context cancellation before the first attempt).
func asResult(err error) *cos.Result {
	if err == nil {
		return nil
	}
	if r, ok := err.(*cos.Result); ok {
		return r
	}
	return &cos.Result{Details: err.Error()}
}

// newRequest builds a headerful request for method/bucket/key with an
// optional raw query string.
func newRequest(method, bucket, key, rawQuery string) *reqengine.Request {
	return &reqengine.Request{
		Method:   method,
		Path:     resourcePath(bucket, key),
		RawQuery: rawQuery,
		Header:   cos.NewHeaderMap(),
	}
}

// errIfMissingBucket is a small guard shared by every operation that
// requires a non-empty bucket name.
func errIfMissingBucket(bucket string) error {
	if strings.TrimSpace(bucket) == "" {
		return errors.New("s3: bucket name must not be empty")
	}
	return nil
}
