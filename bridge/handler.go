// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package bridge

import (
	"errors"
	"net/http"

	gorillarpc "github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/rs/zerolog"

	"github.com/farcall/farcall"
)

// NewRFCHandler returns an HTTP handler exposing the legacy call surface:
// the "Agent.Call" JSON-RPC method backed by reg. Requests must carry the
// given password; a mismatch is rejected before any dispatch.
func NewRFCHandler(reg *farcall.Registry, password string, log zerolog.Logger) http.Handler {
	srv := gorillarpc.NewServer()
	srv.RegisterCodec(json2.NewCodec(), "application/json")
	srv.RegisterService(&agentService{reg: reg, password: password, log: log}, "Agent")
	return srv
}

// agentService is the serving end of the legacy bridge contract.
type agentService struct {
	reg      *farcall.Registry
	password string
	log      zerolog.Logger
}

var errBadCredential = errors.New("invalid or missing credential")

// Call executes a registered target on behalf of a legacy HTTP caller.
func (s *agentService) Call(r *http.Request, args *CallArgs, reply *CallReply) error {
	if s.password == "" || args.Password != s.password {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rejected legacy call with bad credential")
		return errBadCredential
	}
	target := farcall.Target{Module: args.Module, Function: args.Function}
	s.log.Debug().Stringer("target", target).Str("remote", r.RemoteAddr).Msg("legacy inbound call")

	entry, err := s.reg.Resolve(target)
	if err != nil {
		return err
	}
	v, err := entry.Run(r.Context(), args.Args, args.Kwargs)
	if err != nil {
		s.log.Error().Stringer("target", target).Err(err).Msg("legacy inbound call failed")
		return err
	}
	reply.Result = v
	return nil
}
