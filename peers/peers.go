// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package peers provides support code for managing and testing peers.
package peers

import (
	"github.com/farcall/farcall/channel"
	"github.com/farcall/farcall/peer"
)

// Local is a pair of in-memory connected peers, suitable for testing.
type Local struct {
	A *peer.Peer
	B *peer.Peer
}

// Stop shuts down both the peers and blocks until both have exited.
func (p *Local) Stop() error {
	aerr := p.A.Stop()
	berr := p.B.Stop()
	if aerr != nil {
		return aerr
	}
	return berr
}

// NewLocal creates a pair of in-memory connected peers, that communicate via
// a direct channel without encoding.
func NewLocal() *Local {
	a2b, b2a := channel.Direct()
	return &Local{
		A: peer.New().Start(a2b),
		B: peer.New().Start(b2a),
	}
}
