package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/crawlkit/sessiond/pkg/logger"
)

// Server serves the session control API over HTTP. JSON-RPC requests
// are accepted at /jsonrpc (POST) and over WebSocket at /jsonrpc/ws,
// both behind bearer token authentication.
type Server struct {
	log    logger.Logger
	rpc    *RPCServer
	listen string
	secret string

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a control server around an existing RPCServer.
// listen is the address in host:port form.
func NewServer(l logger.Logger, rpc *RPCServer, listen string) *Server {
	return &Server{
		log:    l,
		rpc:    rpc,
		listen: listen,
		secret: rpc.secret,
	}
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/jsonrpc", requireToken(s.secret, s.rpc.bridge))
	mux.Handle("/jsonrpc/ws", requireToken(s.secret, http.HandlerFunc(s.rpc.handleWS)))
	return mux
}

// Start begins serving and blocks until Shutdown is called or the
// listener fails.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:    s.listen,
		Handler: s.handler(),
	}
	s.mu.Unlock()

	s.log.Info("control api listening on %s", s.listen)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil // Expected during shutdown
	}
	return err
}

// Shutdown gracefully stops the server and closes the RPC bridge.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.rpc.Close()
	s.server = nil
	return err
}
