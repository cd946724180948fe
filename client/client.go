// Package client runs queries against a server over the framed protocol
// and delivers the resulting message stream to a callback.
package client

import (
	"context"
	"encoding/json"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/sonic-data/sonic-go/internal/stage"
	"github.com/sonic-data/sonic-go/internal/xsync"
	"github.com/sonic-data/sonic-go/log"
	"github.com/sonic-data/sonic-go/message"
)

type Client struct {
	addr   string
	dialer net.Dialer
	logger log.Logger

	sourcesMu xsync.RWMutex
	sources   map[string]json.RawMessage
}

type Option func(c *Client)

func WithLogger(l log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func New(addr string, opts ...Option) *Client {
	c := &Client{
		addr:    addr,
		logger:  log.Nop(),
		sources: make(map[string]json.RawMessage),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// RegisterSource binds alias to a backend config for later BuildQuery
// calls. Safe for concurrent use.
func (c *Client) RegisterSource(alias string, config json.RawMessage) {
	c.sourcesMu.WithLock(func() {
		c.sources[alias] = config
	})
}

// BuildQuery resolves alias against the registered sources and builds
// the query message.
func (c *Client) BuildQuery(alias, authToken, text string) (q *message.Query, err error) {
	c.sourcesMu.WithRLock(func() {
		q, err = BuildQuery(alias, c.sources, authToken, text)
	})

	return q, err
}

// Execute dials the server, submits q and calls fn for every message of
// the stream, the terminal Done included. It returns nil only when the
// session completed with Done(success=true) and the handshake finished.
func (c *Client) Execute(ctx context.Context, q *message.Query, fn func(m message.Message) error) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}

	var (
		st   = stage.New(conn, stage.WithLogger(c.logger))
		recv = make(chan message.Message)
		send = make(chan message.Message, 1)
	)
	// the query is the only outbound message; the stage tolerates the
	// half-closed outbound direction afterwards
	send <- q
	close(send)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return st.Run(gctx, recv, send)
	})
	g.Go(func() error {
		for m := range recv {
			if err := fn(m); err != nil {
				return err
			}
		}

		return nil
	})

	return g.Wait()
}
