// Package ipc is the daemon's local control socket. Each connection carries
// exactly one request and one response, each gob-encoded and terminated by
// the sender shutting down its write side.
package ipc

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// ErrProtocol reports a malformed or unexpected message.
var ErrProtocol = errors.New("ipc: protocol error")

const maxMessage = 1 << 20

type Kind int

const (
	KindStatus Kind = iota + 1
	KindShutdown
)

type Request struct {
	Kind Kind
}

// Status is the engine's published state.
type Status struct {
	Running                bool
	CurrentWindow          string
	CurrentIssue           string
	SessionID              string
	SessionDurationSeconds int64
	Metrics                map[string]float64
}

// Response carries exactly one of Status or Ack.
type Response struct {
	Status *Status
	Ack    bool
	Error  string
}

// Handler answers requests. Implementations must not block on the engine.
type Handler interface {
	Status() Status
	RequestShutdown()
}

// Serve listens on socketPath until ctx is cancelled. A stale socket file is
// removed first and the new one is restricted to the owner.
func Serve(ctx context.Context, socketPath string, h Handler, log zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return fmt.Errorf("create ipc dir: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale ipc socket: %w", err)
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen ipc socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod ipc socket: %w", err)
	}
	defer ln.Close()

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()
	defer close(stop)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		go func() {
			if err := handle(conn, h); err != nil {
				log.Warn().Err(err).Msg("ipc connection dropped")
			}
		}()
	}
}

func handle(conn net.Conn, h Handler) error {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	var req Request
	if err := readMessage(conn, &req); err != nil {
		return err
	}
	var resp Response
	switch req.Kind {
	case KindStatus:
		st := h.Status()
		resp.Status = &st
	case KindShutdown:
		h.RequestShutdown()
		resp.Ack = true
	default:
		return fmt.Errorf("%w: unknown request kind %d", ErrProtocol, req.Kind)
	}
	return writeMessage(conn, resp)
}

// writeMessage encodes v, writes it, and half-closes the connection so the
// peer sees EOF.
func writeMessage(conn net.Conn, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		return uc.CloseWrite()
	}
	return nil
}

func readMessage(conn net.Conn, v any) error {
	data, err := io.ReadAll(io.LimitReader(conn, maxMessage+1))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty message", ErrProtocol)
	}
	if len(data) > maxMessage {
		return fmt.Errorf("%w: message too large", ErrProtocol)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}

// Client talks to a daemon socket.
type Client struct {
	SocketPath string
	Timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{SocketPath: socketPath, Timeout: 2 * time.Second}
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	resp, err := c.call(ctx, Request{Kind: KindStatus})
	if err != nil {
		return Status{}, err
	}
	if resp.Status == nil {
		return Status{}, fmt.Errorf("%w: status response missing", ErrProtocol)
	}
	return *resp.Status, nil
}

// Shutdown asks the daemon to stop after its current tick.
func (c *Client) Shutdown(ctx context.Context) error {
	resp, err := c.call(ctx, Request{Kind: KindShutdown})
	if err != nil {
		return err
	}
	if !resp.Ack {
		return fmt.Errorf("%w: shutdown not acknowledged", ErrProtocol)
	}
	return nil
}

func (c *Client) call(ctx context.Context, req Request) (*Response, error) {
	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, "unix", c.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("dial ipc socket: %w", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(c.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	if err := writeMessage(conn, req); err != nil {
		return nil, err
	}
	var resp Response
	if err := readMessage(conn, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return &resp, nil
}
