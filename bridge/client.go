// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2/json2"

	"github.com/farcall/farcall"
)

// CallArgs is the parameter shape of the legacy "Agent.Call" method.
type CallArgs struct {
	Password string         `json:"password"`
	Module   string         `json:"module"`
	Function string         `json:"function"`
	Args     []any          `json:"args,omitempty"`
	Kwargs   map[string]any `json:"kwargs,omitempty"`
}

// CallReply is the result shape of the legacy "Agent.Call" method.
type CallReply struct {
	Result any `json:"result"`
}

// httpClient is shared by all bridge calls; per-call deadlines come from the
// caller's context.
var httpClient = &http.Client{Timeout: 0}

// JSONRPCCall is the default [CallFunc]: it invokes the legacy "Agent.Call"
// method on the endpoint at url as a JSON-RPC 2.0 request over HTTP POST.
// Transport-level failures are reported as [farcall.TransportError]; an
// error returned by the endpoint itself becomes a [farcall.RemoteError].
func JSONRPCCall(ctx context.Context, url, password string, target farcall.Target, args []any, kwargs map[string]any) (any, error) {
	body, err := json2.EncodeClientRequest("Agent.Call", &CallArgs{
		Password: password,
		Module:   target.Module,
		Function: target.Function,
		Args:     args,
		Kwargs:   kwargs,
	})
	if err != nil {
		return nil, &farcall.TransportError{Op: "encode legacy call", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &farcall.TransportError{Op: "build legacy request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	rsp, err := httpClient.Do(req)
	if err != nil {
		return nil, &farcall.TransportError{Op: "call " + url, Err: err}
	}
	defer func() {
		io.Copy(io.Discard, rsp.Body)
		rsp.Body.Close()
	}()
	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		return nil, &farcall.TransportError{Op: "call " + url,
			Err: fmt.Errorf("unexpected status %s", rsp.Status)}
	}

	var reply CallReply
	if err := json2.DecodeClientResponse(rsp.Body, &reply); err != nil {
		var jerr *json2.Error
		if ok := asJSONError(err, &jerr); ok {
			return nil, &farcall.RemoteError{Kind: farcall.KindRemote, Message: jerr.Message}
		}
		return nil, &farcall.TransportError{Op: "decode legacy response", Err: err}
	}
	return reply.Result, nil
}

func asJSONError(err error, out **json2.Error) bool {
	if jerr, ok := err.(*json2.Error); ok {
		*out = jerr
		return true
	}
	return false
}

// Probe issues a short HTTP probe of the legacy endpoint, reporting whether
// it answered at all. It is not part of the transport contract; the daemon
// uses it for startup diagnostics.
func Probe(ctx context.Context, url string, budget time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		return false
	}
	rsp, err := httpClient.Do(req)
	if err != nil {
		return false
	}
	rsp.Body.Close()
	return true
}
