package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/google/uuid"
)

// Client issues requests to a daemon over its Unix socket.
type Client struct {
	SocketPath string
	Token      string
}

// Call sends one request on a fresh connection and decodes the response.
// A structured daemon error is returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params any) (*Response, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
		raw = b
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.SocketPath, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	req := Request{
		ID:     "cli-" + uuid.NewString(),
		Type:   method,
		Token:  c.Token,
		Params: raw,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if err := WriteFrame(conn, payload); err != nil {
		return nil, err
	}
	respBytes, err := ReadFrame(conn)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return &resp, resp.Error
	}
	return &resp, nil
}

// CallInto is Call followed by decoding the result into out.
func (c *Client) CallInto(ctx context.Context, method string, params, out any) error {
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
