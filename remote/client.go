// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package remote implements the transport that carries calls over a
// persistent packet channel to a peer process, and the server that executes
// them there.
package remote

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/farcall/farcall"
	"github.com/farcall/farcall/channel"
	"github.com/farcall/farcall/peer"
	"github.com/farcall/farcall/wire"
)

// connectInterval is the minimum time between connection attempts. Bursts of
// calls against a down peer share a single failed attempt rather than
// storming it; the cost is up to one interval of staleness after the peer
// comes back.
const connectInterval = time.Second

// probeTimeout bounds the liveness probe issued by IsConnected.
const probeTimeout = 2 * time.Second

// healthTimeout bounds the server health query issued by Health.
const healthTimeout = 5 * time.Second

// ClientOptions configure a remote client.
type ClientOptions struct {
	// Dial opens a connection to the serving peer. If unset, connections are
	// made with net.Dial using the network guessed from Addr.
	Dial func(ctx context.Context) (net.Conn, error)

	// TLS, if set, wraps dialed connections in TLS. Ignored when Dial is set.
	TLS *tls.Config

	// Registry resolves targets locally to tag calls whose entries manage
	// their own blocking. Optional; unresolved targets are tagged synchronous.
	Registry *farcall.Registry

	// CallTimeout bounds CallSync and is sent to the server as the per-call
	// execution budget. If zero, DefaultCallTimeout is used.
	CallTimeout time.Duration

	// Logger receives transport logs. If unset, logs are discarded.
	Logger zerolog.Logger

	// Debug enables argument-level logging of each call.
	Debug bool
}

// DefaultCallTimeout is the call budget applied when the options do not
// specify one.
const DefaultCallTimeout = 30 * time.Second

// A Client is a transport that forwards calls to a serving peer over a
// packet channel. The connection is established lazily and re-established
// after failures, rate-limited to one attempt per second.
type Client struct {
	addr    string
	opts    ClientOptions
	metrics *farcall.Metrics
	execSeq atomic.Int64

	mu       sync.Mutex
	peer     *peer.Peer
	conn     net.Conn
	lastTry  time.Time
	attempts int
	closed   bool
}

// NewClient constructs a client for the service at addr. No connection is
// made until the first call.
func NewClient(addr string, opts ClientOptions) *Client {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	c := &Client{addr: addr, opts: opts, metrics: farcall.NewMetrics()}
	c.opts.Logger.Info().Str("addr", addr).Msg("remote transport client initialized")
	return c
}

var errNotConnected = errors.New("no connection to the serving peer")

// ensurePeer returns a live peer handle, attempting to connect if none
// exists and the minimum interval since the last attempt has elapsed. When
// the interval has not elapsed, the existing state is used as-is: a nil peer
// here means the caller fails without a network round trip.
func (c *Client) ensurePeer(ctx context.Context) *peer.Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.peer != nil {
		return c.peer
	}
	if time.Since(c.lastTry) < connectInterval {
		return nil
	}
	c.lastTry = time.Now()
	c.attempts++

	conn, err := c.dial(ctx)
	if err != nil {
		c.opts.Logger.Error().Err(err).Int("attempt", c.attempts).Str("addr", c.addr).
			Msg("connection failed")
		return nil
	}
	p := peer.New().Start(channel.IO(conn, conn))
	p.OnExit(func(err error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.peer == p {
			c.peer, c.conn = nil, nil
		}
		if err != nil {
			c.opts.Logger.Warn().Err(err).Msg("connection to serving peer lost")
		}
	})
	c.peer, c.conn = p, conn
	c.opts.Logger.Info().Str("addr", c.addr).Msg("connected to serving peer")
	return p
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	if c.opts.Dial != nil {
		return c.opts.Dial(ctx)
	}
	network, addr := peer.SplitAddress(c.addr)
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil || c.opts.TLS == nil {
		return conn, err
	}
	return tls.Client(conn, c.opts.TLS), nil
}

// livePeer returns the current peer handle without attempting to connect.
func (c *Client) livePeer() *peer.Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

// nextExecutionID mints a correlation ID for one call.
func (c *Client) nextExecutionID() string {
	return fmt.Sprintf("rpc_%d_%d", time.Now().UnixMilli(), c.execSeq.Add(1))
}

// Call implements part of the [farcall.Transport] interface. The call is
// serialized into an envelope and executed by the serving peer; the result
// is decoded and returned. A transport-level failure reports a
// [farcall.TransportError]; a failure of the target itself reports a
// [farcall.RemoteError] carrying the kind and message recorded by the peer.
func (c *Client) Call(ctx context.Context, target farcall.Target, args []any, kwargs map[string]any) (_ any, err error) {
	start := time.Now()
	defer func() { c.metrics.Observe(time.Since(start), err) }()

	if c.opts.Debug {
		c.opts.Logger.Debug().Stringer("target", target).Any("args", args).Any("kwargs", kwargs).Msg("remote call")
	} else {
		c.opts.Logger.Debug().Stringer("target", target).Msg("remote call")
	}

	p := c.ensurePeer(ctx)
	if p == nil {
		return nil, &farcall.TransportError{Op: "call " + target.String(), Err: errNotConnected}
	}

	env := wire.CallEnvelope{
		Module:      target.Module,
		Function:    target.Function,
		ExecutionID: c.nextExecutionID(),
		Async:       c.isAsync(target),
		Timeout:     c.callBudget(ctx),
		Args:        wire.EncodeAll(args),
		Kwargs:      wire.EncodeMap(kwargs),
	}
	rsp, err := p.Call(ctx, wire.MethodExecute, env.Encode())
	if err != nil {
		return nil, &farcall.TransportError{Op: "call " + target.String(), Err: err}
	}

	var res wire.ResultEnvelope
	if err := res.Decode(rsp.Data); err != nil {
		return nil, &farcall.TransportError{Op: "decode result for " + target.String(), Err: err}
	}
	if !res.OK {
		c.opts.Logger.Error().Stringer("target", target).Str("execution_id", env.ExecutionID).
			Str("error_type", res.ErrKind).Str("error", res.ErrMessage).Msg("remote execution failed")
		return nil, &farcall.RemoteError{Kind: res.ErrKind, Message: res.ErrMessage}
	}
	c.opts.Logger.Debug().Stringer("target", target).Str("execution_id", env.ExecutionID).
		Dur("elapsed", res.Elapsed).Msg("remote call complete")
	return res.Result.Decode(), nil
}

// isAsync reports the async tag for target from the local registry, or false
// when the target does not resolve locally.
func (c *Client) isAsync(target farcall.Target) bool {
	if c.opts.Registry == nil {
		return false
	}
	entry, err := c.opts.Registry.Resolve(target)
	return err == nil && entry.Async
}

// callBudget returns the execution budget to send with a call: the remaining
// time on ctx when it carries a deadline, otherwise the configured timeout.
func (c *Client) callBudget(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		return time.Until(dl)
	}
	return c.opts.CallTimeout
}

// CallSync implements part of the [farcall.Transport] interface. It runs
// Call on its own goroutine under the configured call timeout, so the caller
// need not participate in context plumbing. A failure propagates unchanged.
func (c *Client) CallSync(target farcall.Target, args []any, kwargs map[string]any) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.CallTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		v, err := c.Call(ctx, target, args, kwargs)
		done <- outcome{result: v, err: err}
	}()
	out := <-done
	return out.result, out.err
}

// HandleInbound implements part of the [farcall.Transport] interface by
// forwarding the inbound call to the serving peer. Failures are reported in
// the response body, never as an error.
func (c *Client) HandleInbound(ctx context.Context, req *wire.RFCRequest) *wire.RFCResponse {
	rsp, err := callJSON[wire.RFCResponse](ctx, c, wire.MethodHandleRFC, req)
	if err != nil {
		return &wire.RFCResponse{
			Status:     wire.Failure(farcall.Kind(err), err.Error()),
			StatusCode: 500,
			RequestID:  req.RequestID,
		}
	}
	return rsp
}

// IsConnected implements part of the [farcall.Transport] interface with a
// short-budget ping of the serving peer. Any failure reports false.
func (c *Client) IsConnected() bool {
	p := c.livePeer()
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	data, err := json.Marshal(wire.PingRequest{
		Message:        "connection_check",
		SentUnixMillis: time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	_, err = p.Call(ctx, wire.MethodPing, data)
	return err == nil
}

// Mode implements part of the [farcall.Transport] interface.
func (c *Client) Mode() string { return "remote(" + c.addr + ")" }

// Health implements part of the [farcall.Transport] interface. When the
// serving peer is reachable its detailed health snapshot is merged into the
// client's own counters; otherwise the local view is reported alone.
func (c *Client) Health() farcall.Health {
	h := c.metrics.Snapshot(c.Mode(), false)
	c.mu.Lock()
	h.Details = map[string]any{
		"addr":                c.addr,
		"connection_attempts": c.attempts,
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()
	sh, err := c.ServerHealth(ctx, true)
	if err != nil {
		h.Details["probe_error"] = err.Error()
		return h
	}
	h.Connected = sh.Healthy
	h.Details["server_state"] = sh.State
	h.Details["server_uptime_seconds"] = sh.UptimeSeconds
	if sh.MemoryRSSBytes > 0 {
		h.Details["server_memory_rss_bytes"] = sh.MemoryRSSBytes
	}
	if sh.CPUPercent > 0 {
		h.Details["server_cpu_percent"] = sh.CPUPercent
	}
	return h
}

// Close implements part of the [farcall.Transport] interface. It stops the
// peer and releases the connection. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	p := c.peer
	c.peer, c.conn = nil, nil
	already := c.closed
	c.closed = true
	c.mu.Unlock()
	if already || p == nil {
		return nil
	}
	c.opts.Logger.Info().Str("addr", c.addr).Msg("closing remote transport")
	return p.Stop()
}

// Metrics returns the call metrics for c.
func (c *Client) Metrics() *farcall.Metrics { return c.metrics }

// callJSON issues a JSON-payload operation against the serving peer and
// decodes its response.
func callJSON[R any, P any](ctx context.Context, c *Client, method uint32, req P) (*R, error) {
	p := c.ensurePeer(ctx)
	if p == nil {
		return nil, &farcall.TransportError{Op: wire.MethodName(method), Err: errNotConnected}
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, &farcall.TransportError{Op: "encode " + wire.MethodName(method), Err: err}
	}
	rsp, err := p.Call(ctx, method, data)
	if err != nil {
		return nil, &farcall.TransportError{Op: wire.MethodName(method), Err: err}
	}
	out := new(R)
	if err := json.Unmarshal(rsp.Data, out); err != nil {
		return nil, &farcall.TransportError{Op: "decode " + wire.MethodName(method), Err: err}
	}
	return out, nil
}
