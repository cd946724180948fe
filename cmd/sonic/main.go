// Command sonic runs a query against a sonicd server and prints result
// rows as JSON lines. Source aliases are resolved against a JSON file
// mapping alias to backend config; ${VAR} placeholders in the query are
// substituted from -var flags.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sonic-data/sonic-go/client"
	"github.com/sonic-data/sonic-go/log"
	"github.com/sonic-data/sonic-go/message"
)

type varFlags []string

func (v *varFlags) String() string {
	return strings.Join(*v, ",")
}

func (v *varFlags) Set(s string) error {
	*v = append(*v, s)

	return nil
}

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:10001", "server address")
		source   = flag.String("source", "", "source alias or raw backend config")
		sources  = flag.String("sources", "", "path to a JSON file mapping alias to backend config")
		token    = flag.String("auth", "", "authorization token to attach to the query")
		logLevel = flag.String("log-level", "QUIET", "minimal log level (TRACE..FATAL, QUIET)")
		vars     varFlags
	)
	flag.Var(&vars, "var", "KEY=VALUE template variable, repeatable")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: sonic [flags] <query>")
		os.Exit(2)
	}
	if err := run(*addr, *source, *sources, *token, *logLevel, vars, flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addr, source, sourcesPath, token, logLevel string, vars []string, text string) error {
	pairs, err := client.SplitKeyValue(vars)
	if err != nil {
		return err
	}
	text, err = client.InjectVars(text, pairs)
	if err != nil {
		return err
	}

	logger := log.Default(os.Stderr, log.WithMinLevel(log.FromString(logLevel)))
	c := client.New(addr, client.WithLogger(logger))

	if sourcesPath != "" {
		raw, err := os.ReadFile(sourcesPath)
		if err != nil {
			return err
		}
		aliases := map[string]json.RawMessage{}
		if err = json.Unmarshal(raw, &aliases); err != nil {
			return fmt.Errorf("malformed sources file %s: %w", sourcesPath, err)
		}
		for alias, config := range aliases {
			c.RegisterSource(alias, config)
		}
	}
	q, err := c.BuildQuery(source, token, text)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		out       = json.NewEncoder(os.Stdout)
		completed int64
	)

	return c.Execute(ctx, q,
		func(m message.Message) error {
			switch m := m.(type) {
			case *message.TypeSchema:
				return out.Encode(m.Columns)
			case *message.DataRow:
				return out.Encode(m.Values)
			case *message.Progress:
				// progress events carry deltas
				completed += m.Value
				if m.Kind == message.ProgressRunning && m.Total != nil {
					fmt.Fprintf(os.Stderr, "\rprogress: %d/%d %s", completed, *m.Total, m.Unit)
				}
			case *message.Done:
				fmt.Fprintln(os.Stderr)
			}

			return nil
		},
	)
}
