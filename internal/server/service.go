package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 5 * time.Second

// Service runs the HTTP JSON-RPC server, the websocket endpoint, and the
// event publisher as one unit.
type Service struct {
	node       *Node
	rpc        *Server
	ws         *WebSocketServer
	publisher  *Publisher
	httpServer *http.Server
}

// NewService builds the full RPC surface on one listen address. The websocket
// endpoint is mounted at /ws; everything else is JSON-RPC.
func NewService(node *Node, addr string, timeout time.Duration) *Service {
	rpc := NewServer(node, timeout)
	ws := NewWebSocketServer(node, timeout)

	mux := http.NewServeMux()
	mux.Handle("/", rpc)
	mux.Handle("/ws", ws)

	s := &Service{
		node: node,
		rpc:  rpc,
		ws:   ws,
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: timeout,
		},
	}
	if hub := node.Hub(); hub != nil {
		s.publisher = NewPublisher(hub, ws)
	}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.publisher != nil {
		g.Go(func() error {
			err := s.publisher.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		log.Printf("RPC server listening on %s", s.httpServer.Addr)
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
