package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/statline/internal/backend"
	"github.com/rileyhilliard/statline/internal/logger"
	"github.com/rileyhilliard/statline/internal/transport"
	"github.com/rileyhilliard/statline/internal/ui"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr       string
	SocketPath string
	FailEvery  int64
	GapEvery   uint32
	Latency    string
	Missing    string // comma-separated metric ids to leave out
}

// serveCommand runs the demo backend until interrupted.
func serveCommand(opts ServeOptions, out io.Writer) error {
	latency, err := ParseDurationFlag("latency", opts.Latency)
	if err != nil {
		return err
	}

	srv := backend.New(backend.Config{
		Generator:  backend.Waves{GapEvery: opts.GapEvery},
		SocketPath: opts.SocketPath,
		FailEvery:  opts.FailEvery,
		Missing:    splitList(opts.Missing),
		Latency:    latency,
		Logger:     logger.NewEnvLogger("[backend]"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, opts.Addr, func(addr string) {
		socket := opts.SocketPath
		if socket == "" {
			socket = transport.DefaultSocketPath
		}
		fmt.Fprintf(out, "%s Serving demo stats on http://%s\n", ui.SymbolSuccess, addr)
		fmt.Fprintf(out, "  poll: http://%s/backends/<owner>/machines/<machine>/stats\n", addr)
		fmt.Fprintf(out, "  push: ws://%s%s\n", addr, socket)
		fmt.Fprintln(out, "\nPoint a config at it with: statline init --endpoint http://"+addr)
	})
}
