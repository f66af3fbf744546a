package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"

	"github.com/nugget-labs/nugget/internal/config"
	"github.com/nugget-labs/nugget/internal/objectstore"
	"github.com/nugget-labs/nugget/internal/scriptstate"
	"github.com/nugget-labs/nugget/internal/server"
)

// bindError tags a run failure as a listener bind failure (exit code 2)
// rather than a configuration failure (exit code 1).
type bindError struct{ err error }

func (e *bindError) Error() string { return e.err.Error() }
func (e *bindError) Unwrap() error { return e.err }

var (
	name    = "nugget"
	version = "v0.0.0"
)

// Exit codes per §6: 0 clean shutdown, 1 configuration error, 2 bind
// failure. into's default lifecycle only distinguishes clean exit from
// error exit, so main maps the run error itself to the right code.
const (
	exitOK          = 0
	exitConfigError = 1
	exitBindFailure = 2
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the route-table configuration file")
	port := flag.String("port", "3000", "port to bind the HTTP server on")
	flag.Parse()

	config.Service = name + "/" + version

	var runErr error
	into.Init(func(ctx context.Context) error {
		runErr = run(ctx, *configPath, *port)
		return runErr
	},
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)

	os.Exit(exitCode(runErr))
}

func exitCode(err error) int {
	var be *bindError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &be):
		return exitBindFailure
	default:
		return exitConfigError
	}
}

func run(ctx context.Context, configPath, port string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	objects := objectstore.New()
	state := scriptstate.New()

	srv := server.New(cfg, "", port, objects, state)

	slog.Info("nugget starting", "routes", len(cfg.Routes), "port", port)

	if err := srv.Start(ctx); err != nil {
		return &bindError{err: fmt.Errorf("server error: %w", err)}
	}
	return nil
}
