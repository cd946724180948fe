// Package sonic streams query results from heterogeneous backend data
// sources to clients over a persistent connection, translating each
// backend's own pagination model into one uniform, backpressured
// message protocol.
//
// The pieces compose bottom-up: the wire codec frames protocol messages
// (package message) onto the byte stream; the session protocol stage
// enforces the Done/Acknowledge completion handshake on both ends;
// package publisher supplies the demand-driven machinery every backend
// driver runs under; package presto is the reference paginating driver.
// Package server wires them together behind a net.Listener and package
// client consumes a stream from the other end.
package sonic

import (
	"github.com/sonic-data/sonic-go/client"
	"github.com/sonic-data/sonic-go/server"
)

// Dial returns a client for the server at addr.
func Dial(addr string, opts ...client.Option) *client.Client {
	return client.New(addr, opts...)
}

// NewServer returns a server streaming sessions from resolver.
func NewServer(resolver server.SourceResolver, opts ...server.Option) *server.Server {
	return server.New(resolver, opts...)
}
