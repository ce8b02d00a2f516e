package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/mdlayher/vsock"

	"github.com/cloudx-io/assetauction/enclaveapi"
)

// DialFunc opens a connection to the enclave.
type DialFunc func(ctx context.Context) (net.Conn, error)

// VsockDialer dials the enclave's vsock listener at cid:port.
func VsockDialer(cid, port uint32) DialFunc {
	return func(ctx context.Context) (net.Conn, error) {
		return vsock.Dial(cid, port, nil)
	}
}

// Client sends one request per connection to the enclave and returns its raw
// JSON response.
type Client struct {
	dial    DialFunc
	timeout time.Duration
}

// NewClient creates a client. timeout bounds each round trip.
func NewClient(dial DialFunc, timeout time.Duration) *Client {
	return &Client{dial: dial, timeout: timeout}
}

// Do forwards req and returns the enclave's response unchanged.
func (c *Client) Do(ctx context.Context, req enclaveapi.Request) (json.RawMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial enclave: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("send %s request: %w", req.Type, err)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(conn).Decode(&raw); err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.Type, err)
	}
	return raw, nil
}
