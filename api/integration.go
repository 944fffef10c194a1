// api/integration.go

// APIManager wraps Server for lifecycle management: start it in the
// background, wait for it to come up, and shut it down cleanly when
// the node stops.

package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/komodex/dex-gossip/dex"
)

// APIManager manages the HTTP API server's lifecycle alongside the
// gossip engine it serves.
type APIManager struct {
	server *Server
	engine *dex.Engine
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAPIManager creates a new API manager bound to an engine and listen address.
func NewAPIManager(engine *dex.Engine, addr string, enableCORS bool) *APIManager {
	ctx, cancel := context.WithCancel(context.Background())

	return &APIManager{
		server: NewServer(engine, addr, enableCORS),
		engine: engine,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the API server in a goroutine.
func (am *APIManager) Start() error {
	go func() {
		if err := am.server.Start(); err != nil && err != http.ErrServerClosed {
			log.Printf("dex api: server error: %v", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	log.Printf("dex api: server started successfully")
	return nil
}

// Stop gracefully stops the API server.
func (am *APIManager) Stop() error {
	am.cancel()
	return am.server.Stop()
}
