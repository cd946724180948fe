// Command sonicd serves streaming query sessions over TCP. Every query
// carries its own backend configuration, so the daemon needs nothing
// beyond a listen address: sources are resolved per query.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sonic-data/sonic-go/auth"
	"github.com/sonic-data/sonic-go/log"
	"github.com/sonic-data/sonic-go/message"
	"github.com/sonic-data/sonic-go/presto"
	"github.com/sonic-data/sonic-go/publisher"
	"github.com/sonic-data/sonic-go/server"
)

func main() {
	var (
		addr     = flag.String("addr", ":10001", "listen address")
		logLevel = flag.String("log-level", "INFO", "minimal log level (TRACE..FATAL, QUIET)")
		logJSON  = flag.Bool("log-json", false, "structured JSON logs instead of text")
		secret   = flag.String("auth-secret", "", "HMAC secret for token verification, empty disables it")
	)
	flag.Parse()

	var logger log.Logger
	if *logJSON {
		logger = log.Zap(zap.Must(zap.NewProduction()))
	} else {
		logger = log.Default(os.Stderr, log.WithMinLevel(log.FromString(*logLevel)))
	}

	opts := []server.Option{server.WithLogger(logger)}
	if *secret != "" {
		opts = append(opts, server.WithVerifier(auth.NewVerifier([]byte(*secret))))
	}
	s := server.New(server.SourceResolverFunc(
		func(ctx context.Context, q *message.Query) (publisher.Source, error) {
			p, err := presto.NewPublisher(q, presto.WithLogger(logger))
			if err != nil {
				return nil, err
			}
			p.Start(ctx)

			return p, nil
		},
	), opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Log(log.WithLevel(ctx, log.INFO), "listening",
		log.String("addr", lis.Addr().String()),
	)

	if err := s.Serve(ctx, lis); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
