// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/farcall/farcall/wire"
)

// execCommand runs a program in the execution environment. The request
// environment is merged over the service's own, and execution is bounded by
// the request timeout or the service default. A non-zero exit is a failure
// with the exit code preserved; a program that could not be started or that
// hit the timeout reports exit code -1.
func (s *Server) execCommand(ctx context.Context, req wire.CommandRequest) wire.CommandResponse {
	start := time.Now()
	execID := req.ExecutionID
	if execID == "" {
		execID = fmt.Sprintf("cmd_%d", time.Now().UnixMilli())
	}
	s.log.Debug().Str("execution_id", execID).Str("command", req.Command).Strs("args", req.Args).
		Msg("executing command")

	timeout := s.opts.CommandTimeout
	if req.TimeoutMillis > 0 {
		timeout = time.Duration(req.TimeoutMillis) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	cmd.Dir = req.Dir
	if len(req.Env) > 0 {
		cmd.Env = os.Environ()
		for key, val := range req.Env {
			cmd.Env = append(cmd.Env, key+"="+val)
		}
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	elapsed := time.Since(start)
	rsp := wire.CommandResponse{
		Status:        wire.OK(),
		Stdout:        stdout.String(),
		Stderr:        stderr.String(),
		ElapsedMillis: elapsed.Milliseconds(),
		ExecutionID:   execID,
	}
	switch {
	case err == nil:
		rsp.ExitCode = 0
	case ctx.Err() != nil:
		rsp.Status = wire.Failure("timeout", fmt.Sprintf("command timed out after %v", timeout))
		rsp.ExitCode = -1
	default:
		var xerr *exec.ExitError
		if errors.As(err, &xerr) {
			rsp.Status = wire.Failure("exit-status", err.Error())
			rsp.ExitCode = xerr.ExitCode()
		} else {
			rsp.Status = wire.Failure("exec-error", err.Error())
			rsp.ExitCode = -1
		}
	}
	s.log.Debug().Str("execution_id", execID).Int("exit_code", rsp.ExitCode).
		Dur("elapsed", elapsed).Msg("command complete")
	return rsp
}
