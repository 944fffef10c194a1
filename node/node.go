package node

// node/node.go - wires the gossip engine, its libp2p transport, and
// the HTTP API surface into a single running process.

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/komodex/dex-gossip/api"
	"github.com/komodex/dex-gossip/config"
	"github.com/komodex/dex-gossip/dex"
	"github.com/komodex/dex-gossip/network/p2p"
)

// Node ties together the gossip engine, its transport, and the API
// server, and owns their combined start/stop lifecycle.
type Node struct {
	config *config.Config
	engine *dex.Engine
	host   *p2p.Host
	api    *api.APIManager

	isRunning bool
	mu        sync.RWMutex

	eventHandlers map[string][]func(interface{})

	ctx        context.Context
	cancelFunc context.CancelFunc
}

// NewNode creates a new node from config. The engine and transport
// are constructed but not started — call Start to bring the process up.
func NewNode(cfg *config.Config) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("node config cannot be nil")
	}

	engine := dex.NewEngine()

	host, err := p2p.NewHost(&p2p.Config{
		ListenPort:     p2pPortFromAddr(cfg.Network.ListenAddr),
		BootstrapPeers: cfg.Network.BootstrapPeers,
	}, engine)
	if err != nil {
		return nil, fmt.Errorf("failed to create p2p host: %w", err)
	}

	apiManager := api.NewAPIManager(engine, cfg.API.ListenAddr, cfg.API.EnableCORS)

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		config:        cfg,
		engine:        engine,
		host:          host,
		api:           apiManager,
		eventHandlers: make(map[string][]func(interface{})),
		ctx:           ctx,
		cancelFunc:    cancel,
	}, nil
}

// Start brings up the transport and the API server.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isRunning {
		return fmt.Errorf("node already running")
	}

	if err := n.host.Start(); err != nil {
		return fmt.Errorf("failed to start p2p host: %w", err)
	}
	if err := n.api.Start(); err != nil {
		return fmt.Errorf("failed to start api server: %w", err)
	}

	n.isRunning = true
	return nil
}

// Stop gracefully shuts down the API server and the transport.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.isRunning {
		return nil
	}

	n.cancelFunc()

	if err := n.api.Stop(); err != nil {
		return fmt.Errorf("error stopping api server: %w", err)
	}
	if err := n.host.Stop(); err != nil {
		return fmt.Errorf("error stopping p2p host: %w", err)
	}

	n.isRunning = false
	return nil
}

// AddEventHandler registers a callback for a named local event
// (currently just "quote_broadcast", fired by BroadcastLocal).
func (n *Node) AddEventHandler(event string, handler func(interface{})) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.eventHandlers[event] = append(n.eventHandlers[event], handler)
}

func (n *Node) fireEvent(event string, data interface{}) {
	n.mu.RLock()
	handlers := n.eventHandlers[event]
	n.mu.RUnlock()
	for _, h := range handlers {
		h(data)
	}
}

// BroadcastLocal originates a quote from this node, the same path the
// API's /broadcast handler takes, and fires the "quote_broadcast" event.
func (n *Node) BroadcastLocal(priority int, hexPayload, tagA, tagB, destpubHex, volA, volB string) (int, error) {
	now := uint32(time.Now().Unix())
	nbytes, err := n.engine.Broadcast(now, priority, hexPayload, tagA, tagB, destpubHex, volA, volB)
	if err != nil {
		return 0, err
	}
	n.fireEvent("quote_broadcast", nbytes)
	return nbytes, nil
}

// GetNodeStatus returns a snapshot of engine, transport, and runtime state.
func (n *Node) GetNodeStatus() map[string]interface{} {
	n.mu.RLock()
	running := n.isRunning
	n.mu.RUnlock()

	return map[string]interface{}{
		"running":  running,
		"node_id":  n.config.NodeID,
		"gossip":   n.engine.Stats(),
		"p2p":      n.host.GetStats(),
		"api_addr": n.config.API.ListenAddr,
	}
}

// IsP2PConnected reports whether the node has at least one live peer.
func (n *Node) IsP2PConnected() bool {
	return n.host.GetPeerCount() > 0
}

// p2pPortFromAddr extracts the TCP port out of a "/ip4/.../tcp/PORT"
// multiaddr-shaped listen address, falling back to 9000.
func p2pPortFromAddr(addr string) int {
	const marker = "/tcp/"
	idx := strings.LastIndex(addr, marker)
	if idx < 0 {
		return 9000
	}
	port, err := strconv.Atoi(addr[idx+len(marker):])
	if err != nil || port == 0 {
		return 9000
	}
	return port
}
