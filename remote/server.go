// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package remote

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/rs/zerolog"

	"github.com/farcall/farcall"
	"github.com/farcall/farcall/channel"
	"github.com/farcall/farcall/peer"
	"github.com/farcall/farcall/wire"
)

// ServerOptions configure a server.
type ServerOptions struct {
	// Config reports the configuration snapshot echoed by the status
	// operation. Optional.
	Config func() map[string]string

	// Logger receives service logs. If unset, logs are discarded.
	Logger zerolog.Logger

	// Workers bounds the pool used to offload synchronous targets called
	// with asynchronous intent. If zero, DefaultWorkers is used.
	Workers int

	// Grace bounds how long Serve waits for in-flight calls after the
	// listener closes. If zero, DefaultGrace is used.
	Grace time.Duration

	// CommandTimeout is the execution budget applied to commands whose
	// request does not carry one. If zero, DefaultCommandTimeout is used.
	CommandTimeout time.Duration

	// TLSCert and TLSKey are paths to the server certificate and key. When
	// both are set, Listen binds with TLS. TLSRootCA, when additionally set,
	// is the path of the root pool used to verify client certificates, and
	// makes client authentication mandatory.
	TLSCert   string
	TLSKey    string
	TLSRootCA string
}

// Defaults applied when the corresponding option is zero.
const (
	DefaultWorkers        = 10
	DefaultGrace          = 5 * time.Second
	DefaultCommandTimeout = 60 * time.Second
)

// A Server executes call envelopes and file, process, and diagnostic
// operations on behalf of remote peers. One Server may serve any number of
// connections; its counters aggregate across all of them.
type Server struct {
	reg   *farcall.Registry
	opts  ServerOptions
	log   zerolog.Logger
	since time.Time

	workers   *taskgroup.Group
	startWork func(taskgroup.Task)

	// Request counters, shared by all in-flight requests.
	mu        sync.Mutex
	requests  int64
	succeeded int64
	failed    int64
	elapsed   time.Duration
}

// NewServer constructs a server executing targets from reg.
func NewServer(reg *farcall.Registry, opts ServerOptions) *Server {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	s := &Server{reg: reg, opts: opts, log: opts.Logger, since: time.Now()}
	s.workers, s.startWork = taskgroup.New(nil).Limit(opts.Workers)
	return s
}

// record updates the request counters for one completed request.
func (s *Server) record(ok bool, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	s.elapsed += elapsed
	if ok {
		s.succeeded++
	} else {
		s.failed++
	}
}

// Stats reports the request counters since the server started.
func (s *Server) Stats() (requests, succeeded, failed int64, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests, s.succeeded, s.failed, s.elapsed
}

// NewPeer constructs an unstarted peer with the service handlers installed.
func (s *Server) NewPeer() *peer.Peer {
	p := peer.New()
	p.Handle(wire.MethodExecute, s.handleExecute)
	p.Handle(wire.MethodHandleRFC, jsonHandler(s.handleRFC))
	p.Handle(wire.MethodReadFile, jsonHandler(s.readFile))
	p.Handle(wire.MethodWriteFile, jsonHandler(s.writeFile))
	p.Handle(wire.MethodDeleteFile, jsonHandler(s.deleteFile))
	p.Handle(wire.MethodListDir, jsonHandler(s.listDir))
	p.Handle(wire.MethodFileExists, jsonHandler(s.fileExists))
	p.Handle(wire.MethodMakeDir, jsonHandler(s.makeDir))
	p.Handle(wire.MethodMoveFile, jsonHandler(s.moveFile))
	p.Handle(wire.MethodCopyFile, jsonHandler(s.copyFile))
	p.Handle(wire.MethodCommand, jsonHandler(s.execCommand))
	p.Handle(wire.MethodHealth, jsonHandler(s.getHealth))
	p.Handle(wire.MethodStatus, jsonHandler(s.getStatus))
	p.Handle(wire.MethodPing, jsonHandler(s.ping))
	return p
}

// jsonHandler adapts an operation taking a typed request and returning a
// typed response to a peer handler. Operations report their failures inside
// the response, so the handler itself fails only on an undecodable request.
func jsonHandler[P, R any](f func(context.Context, P) R) peer.Handler {
	return func(ctx context.Context, req *peer.Request) ([]byte, error) {
		var p P
		if err := json.Unmarshal(req.Data, &p); err != nil {
			return nil, peer.ErrorData{Kind: farcall.KindEncoding, Message: err.Error()}
		}
		return json.Marshal(f(ctx, p))
	}
}

// handleExecute services a function execution request. Failures of the
// target, including an unresolvable target, are reported inside the result
// envelope; only an undecodable envelope is a call error.
func (s *Server) handleExecute(ctx context.Context, req *peer.Request) ([]byte, error) {
	var env wire.CallEnvelope
	if err := env.Decode(req.Data); err != nil {
		return nil, peer.ErrorData{Kind: farcall.KindEncoding, Message: err.Error()}
	}
	res := s.execute(ctx, &env)
	s.record(res.OK, res.Elapsed)
	return res.Encode(), nil
}

func (s *Server) execute(ctx context.Context, env *wire.CallEnvelope) wire.ResultEnvelope {
	start := time.Now()
	s.log.Debug().Str("execution_id", env.ExecutionID).Str("target", env.Target()).Msg("executing function")

	fail := func(err error) wire.ResultEnvelope {
		s.log.Error().Str("execution_id", env.ExecutionID).Str("target", env.Target()).
			Err(err).Msg("function execution failed")
		return wire.ResultEnvelope{
			ExecutionID: env.ExecutionID,
			ErrKind:     farcall.Kind(err),
			ErrMessage:  err.Error(),
			Elapsed:     time.Since(start),
		}
	}

	target := farcall.Target{Module: env.Module, Function: env.Function}
	entry, err := s.reg.Resolve(target)
	if err != nil {
		return fail(err)
	}

	if env.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, env.Timeout)
		defer cancel()
	}
	args := wire.DecodeAll(env.Args)
	kwargs := wire.DecodeMap(env.Kwargs)

	var result any
	if env.Async && !entry.Async {
		// The caller expects asynchronous behavior from a synchronous target:
		// run it on the worker pool so a slow handler cannot monopolize the
		// service routine.
		result, err = s.offload(ctx, entry, target, args, kwargs)
	} else {
		result, err = runEntry(ctx, entry, target, args, kwargs)
	}
	if err != nil {
		return fail(err)
	}
	elapsed := time.Since(start)
	s.log.Debug().Str("execution_id", env.ExecutionID).Str("target", env.Target()).
		Dur("elapsed", elapsed).Msg("function executed")
	return wire.ResultEnvelope{
		ExecutionID: env.ExecutionID,
		OK:          true,
		Result:      wire.Encode(result),
		Elapsed:     elapsed,
	}
}

type outcome struct {
	result any
	err    error
}

// offload runs a synchronous entry on the worker pool, honoring ctx while
// waiting. An abandoned worker delivers into its own buffered channel, so a
// timed-out call cannot corrupt a later one.
func (s *Server) offload(ctx context.Context, entry farcall.Entry, target farcall.Target, args []any, kwargs map[string]any) (any, error) {
	done := make(chan outcome, 1)
	s.startWork(func() error {
		v, err := runEntry(ctx, entry, target, args, kwargs)
		done <- outcome{result: v, err: err}
		return nil
	})
	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runEntry executes a registry entry, converting a panic into an error.
func runEntry(ctx context.Context, entry farcall.Entry, target farcall.Target, args []any, kwargs map[string]any) (result any, err error) {
	defer func() {
		if x := recover(); x != nil && err == nil {
			err = fmt.Errorf("target %q panicked: %v", target, x)
		}
	}()
	return entry.Run(ctx, args, kwargs)
}

// handleRFC services a call arriving over the legacy inbound surface: the
// request body carries a legacy call shape that is dispatched through the
// registry. Bad bodies yield a structured failure response.
func (s *Server) handleRFC(ctx context.Context, req wire.RFCRequest) wire.RFCResponse {
	s.log.Info().Str("method", req.Method).Str("path", req.Path).Str("request_id", req.RequestID).
		Msg("handling legacy inbound call")

	var call wire.LegacyCall
	if err := json.Unmarshal(req.Body, &call); err != nil {
		return wire.RFCResponse{
			Status:     wire.Failure(farcall.KindEncoding, "invalid call body: "+err.Error()),
			StatusCode: 400,
			RequestID:  req.RequestID,
		}
	}
	env := wire.CallEnvelope{
		Module:      call.Module,
		Function:    call.Function,
		ExecutionID: req.RequestID,
		Args:        wire.EncodeAll(call.Args),
		Kwargs:      wire.EncodeMap(call.Kwargs),
	}
	res := s.execute(ctx, &env)
	s.record(res.OK, res.Elapsed)
	if !res.OK {
		return wire.RFCResponse{
			Status:     wire.Failure(res.ErrKind, res.ErrMessage),
			StatusCode: 500,
			RequestID:  req.RequestID,
		}
	}
	body, err := json.Marshal(res.Result.Decode())
	if err != nil {
		return wire.RFCResponse{
			Status:     wire.Failure(farcall.KindEncoding, err.Error()),
			StatusCode: 500,
			RequestID:  req.RequestID,
		}
	}
	return wire.RFCResponse{
		Status:     wire.OK(),
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
		RequestID:  req.RequestID,
	}
}

// Listen binds a listener for addr, secured with TLS when a certificate and
// key are configured. Client certificates are required and verified exactly
// when a root pool is also configured.
func (s *Server) Listen(addr string) (net.Listener, error) {
	network, target := peer.SplitAddress(addr)
	if s.opts.TLSCert == "" || s.opts.TLSKey == "" {
		s.log.Info().Str("addr", addr).Msg("binding without TLS")
		return net.Listen(network, target)
	}

	cert, err := tls.LoadX509KeyPair(s.opts.TLSCert, s.opts.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	if s.opts.TLSRootCA != "" {
		pem, err := os.ReadFile(s.opts.TLSRootCA)
		if err != nil {
			return nil, fmt.Errorf("load root pool: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("root pool %q contains no certificates", s.opts.TLSRootCA)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		s.log.Info().Str("addr", addr).Msg("binding with mutual TLS")
	} else {
		s.log.Info().Str("addr", addr).Msg("binding with TLS")
	}
	return tls.Listen(network, target, cfg)
}

// Serve accepts connections from lst, running one peer per connection, until
// ctx ends or the listener closes. After accepting stops, in-flight calls
// are given the configured grace period to finish before their peers are
// forced down.
func (s *Server) Serve(ctx context.Context, lst net.Listener) error {
	g := taskgroup.New(nil)
	var mu sync.Mutex
	active := make(map[*peer.Peer]struct{})

	// A net.Listener does not obey a context, so simulate it by closing the
	// listener when ctx ends. The ok channel releases the watcher when the
	// accept loop exits on its own.
	ok := make(chan struct{})
	defer close(ok)
	taskgroup.Go(func() error {
		select {
		case <-ctx.Done():
			lst.Close()
		case <-ok:
		}
		return nil
	})

	s.log.Info().Str("addr", lst.Addr().String()).Msg("service accepting connections")
	var err error
	for {
		var conn net.Conn
		conn, err = lst.Accept()
		if err != nil {
			break
		}
		s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")
		p := s.NewPeer()
		mu.Lock()
		active[p] = struct{}{}
		mu.Unlock()
		g.Go(func() error {
			defer func() {
				mu.Lock()
				delete(active, p)
				mu.Unlock()
			}()
			p.Start(channel.IO(conn, conn))
			return p.Wait()
		})
	}
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	drained := make(chan struct{})
	go func() { g.Wait(); close(drained) }()
	select {
	case <-drained:
	case <-time.After(s.opts.Grace):
		s.log.Warn().Dur("grace", s.opts.Grace).Msg("grace period elapsed, stopping peers")
		mu.Lock()
		ps := slices.Collect(maps.Keys(active))
		mu.Unlock()
		for _, p := range ps {
			p.Stop()
		}
		<-drained
	}
	s.log.Info().Msg("service stopped")
	return err
}
