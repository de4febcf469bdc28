// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package farcall

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error-kind labels. A kind travels with an error across transport
// boundaries, so that a failure surfaced after fallback still reports where
// and why the original attempt failed.
const (
	KindEncoding  = "encoding"         // argument could not be encoded or decoded
	KindNotFound  = "target-not-found" // no registry entry for the target
	KindTransport = "transport"        // the call never reached the target
	KindRemote    = "remote-execution" // the target ran remotely and failed
	KindTimeout   = "timeout"          // the call exceeded its time budget
	KindCanceled  = "canceled"         // the caller gave up on the call
	KindConfig    = "configuration"    // the transport cannot be configured
	KindError     = "error"            // unclassified failure
)

// A NotFoundError reports a call target that has no registry entry.
type NotFoundError struct {
	Target Target
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("target %q is not registered", e.Target)
}

// A TransportError reports that a transport could not deliver a call to its
// execution environment. The target, if it ran at all, may or may not have
// completed.
type TransportError struct {
	Op  string // the operation that failed, for diagnostics
	Err error  // the underlying cause
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }

// Unwrap returns the underlying cause of e.
func (e *TransportError) Unwrap() error { return e.Err }

// A RemoteError reports that the target was delivered and executed in the
// remote environment, and failed there. Kind and Message are recorded at the
// point of failure and carried back verbatim.
type RemoteError struct {
	Kind    string // error-kind label assigned by the executing peer
	Message string // failure message from the executing peer
}

func (e *RemoteError) Error() string {
	if e.Kind == "" {
		return "remote: " + e.Message
	}
	return fmt.Sprintf("remote [%s]: %s", e.Kind, e.Message)
}

// A TimeoutError reports that a blocking call exhausted its time budget
// before a result was available.
type TimeoutError struct {
	Target Target
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call to %q timed out after %v", e.Target, e.Budget)
}

// A ConfigError reports that a transport cannot operate with its current
// configuration, for example a missing endpoint or credential. There is
// nothing to retry or fall back to; the configuration must be fixed.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "configuration: " + e.Reason }

// Kind classifies err by its error-kind label. It returns "" for nil, the
// originating kind for the typed errors of this package, and KindError for
// anything it does not recognize.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var (
		notFound  *NotFoundError
		transport *TransportError
		remote    *RemoteError
		timeout   *TimeoutError
		config    *ConfigError
	)
	switch {
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &remote):
		if remote.Kind != "" {
			return remote.Kind
		}
		return KindRemote
	case errors.As(err, &timeout):
		return KindTimeout
	case errors.As(err, &config):
		return KindConfig
	case errors.As(err, &transport):
		return KindTransport
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindError
	}
}
