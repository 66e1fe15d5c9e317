// Package grpc serves the standard grpc.health.v1 service so orchestrators
// can probe the upload server.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/properbooky/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultProbeInterval = 15 * time.Second

// Probe checks one dependency, e.g. the catalog database.
type Probe func(ctx context.Context) error

type GRPCServer struct {
	address  string
	logger   logging.Logger
	health   *health.Server
	probes   map[string]Probe
	interval time.Duration
}

func NewGRPCServer(a string, l logging.Logger, probes map[string]Probe) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		health:   health.NewServer(),
		probes:   probes,
		interval: defaultProbeInterval,
	}
}

// Run serves until ctx is cancelled. The overall status ("") is SERVING
// while every probe passes and NOT_SERVING otherwise and during shutdown.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoveryInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.check(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
				s.check(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

// check runs every probe and publishes per-probe and overall status.
func (s *GRPCServer) check(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, probe := range s.probes {
		st := healthpb.HealthCheckResponse_SERVING
		pctx, cancel := context.WithTimeout(ctx, s.interval)
		if err := probe(pctx); err != nil {
			s.logger.Warn(ctx, "health probe failed", "probe", name, "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
		}
		cancel()
		s.health.SetServingStatus(name, st)
	}
	s.health.SetServingStatus("", overall)
}
