package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/irmasession.
// It returns an error instead of calling os.Exit to keep defers effective.
func Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return Execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// Execute runs the command line args with the given streams.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	root := newRootCmd(&cli{in: in, out: out, errOut: errOut})
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
