package daemon

import (
	"context"
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/chordd/internal/bus"
	"github.com/matheus3301/chordd/internal/instance"
	"github.com/matheus3301/chordd/internal/lock"
	"github.com/matheus3301/chordd/internal/status"
)

// ServiceName is the health service the control socket reports on.
const ServiceName = "chordd"

// Server manages the gRPC control server of a display instance.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	machine    *status.Machine
	events     <-chan bus.Event
	unsub      func()
	done       chan struct{} // closed when follow returns
	logger     *zap.Logger
}

// NewServer creates a gRPC server bound to the instance's Unix domain socket.
// Its health status follows the status machine. The lock is held before the
// stale socket is removed.
func NewServer(p Params, _ *lock.Lock, logger *zap.Logger, machine *status.Machine, b *bus.Bus) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = instance.SocketPath(p.Key)
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}

	// Set socket permissions to 0600.
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	events, unsub := b.Subscribe(bus.NamespaceDaemon, 16)
	s := &Server{
		grpcServer: srv,
		health:     hs,
		listener:   listener,
		socketPath: socketPath,
		machine:    machine,
		events:     events,
		unsub:      unsub,
		done:       make(chan struct{}),
		logger:     logger,
	}
	s.sync()
	go s.follow()
	return s, nil
}

// Start begins serving gRPC requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *Server) Stop(_ context.Context) {
	s.logger.Info("gRPC server stopping")
	s.unsub()
	<-s.done
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	_ = os.Remove(s.socketPath)
}

func (s *Server) follow() {
	defer close(s.done)
	for range s.events {
		s.sync()
	}
}

// sync reads the machine rather than the event payload, so a dropped event
// only delays the update.
func (s *Server) sync() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if s.machine.Current().Serving() {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
	s.health.SetServingStatus("", st)
}
