// Package server wires the request pipeline (C7/C8) into an ada HTTP
// server with the same middleware stack the rest of this codebase uses.
package server

import (
	"context"
	"net"

	"github.com/rakunlabs/ada"

	mcors "github.com/rakunlabs/ada/middleware/cors"
	mlog "github.com/rakunlabs/ada/middleware/log"
	mrecover "github.com/rakunlabs/ada/middleware/recover"
	mrequestid "github.com/rakunlabs/ada/middleware/requestid"
	mserver "github.com/rakunlabs/ada/middleware/server"
	mtelemetry "github.com/rakunlabs/ada/middleware/telemetry"

	"github.com/nugget-labs/nugget/internal/config"
	"github.com/nugget-labs/nugget/internal/objectstore"
	"github.com/nugget-labs/nugget/internal/pipeline"
	"github.com/nugget-labs/nugget/internal/scriptstate"
)

// Server owns the ada mux and its listen address; the two process-wide
// stores (C2, C3) are held by the handlers registered in New.
type Server struct {
	mux  *ada.Server
	host string
	port string
}

// New builds a Server over cfg's route table. The reserved admin
// endpoint is registered directly; every other configured route is
// served by a single catch-all handler that defers to the pipeline's
// own matcher (§6), since ada's own mux would panic on the route-table
// collisions this spec resolves by precedence instead.
func New(cfg *config.Config, host, port string, objects *objectstore.Store, state *scriptstate.Store) *Server {
	mux := ada.New()
	mux.Use(
		mrecover.Middleware(),
		mserver.Middleware(config.Service),
		mcors.Middleware(),
		mrequestid.Middleware(),
		mlog.Middleware(),
		mtelemetry.Middleware(),
	)

	group := mux.Group("")
	group.POST(config.ReservedAdminPath, pipeline.StateAdmin(objects, state))
	group.Handle("/*", pipeline.New(cfg, objects, state))

	return &Server{mux: mux, host: host, port: port}
}

// Start blocks serving HTTP until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	return s.mux.StartWithContext(ctx, net.JoinHostPort(s.host, s.port))
}
