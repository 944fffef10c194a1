// File: cmd/dexnode/main.go
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/komodex/dex-gossip/config"
	"github.com/komodex/dex-gossip/node"
)

func main() {
	var port = flag.Int("port", 9000, "P2P listen port")
	var apiAddr = flag.String("api", ":8080", "HTTP API listen address")
	var bootstraps = flag.String("bootstrap", "", "Comma-separated bootstrap peer multiaddrs")
	var dataDir = flag.String("data", "./data", "Data directory (stored in the config but unused; state is in-memory only)")
	var nodeID = flag.String("node-id", "", "Node identifier (default: generated)")

	flag.Parse()

	fmt.Printf("starting dex-gossip node on port %d...\n", *port)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.Network.ListenAddr = fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", *port)
	cfg.API.ListenAddr = *apiAddr
	cfg.DataDir = *dataDir
	if *nodeID != "" {
		cfg.NodeID = *nodeID
	}

	if *bootstraps != "" {
		cfg.Network.BootstrapPeers = strings.Split(*bootstraps, ",")
		fmt.Printf("bootstrap peers: %v\n", cfg.Network.BootstrapPeers)
	} else {
		fmt.Println("no bootstrap peers configured; this node will be isolated until dialed")
	}

	n, err := node.NewNode(cfg)
	if err != nil {
		log.Fatalf("failed to initialize node: %v", err)
	}

	if err := n.Start(); err != nil {
		log.Fatalf("failed to start node: %v", err)
	}
	fmt.Printf("node %s started, api listening on %s\n", cfg.NodeID, cfg.API.ListenAddr)

	n.AddEventHandler("quote_broadcast", func(data interface{}) {
		if nbytes, ok := data.(int); ok {
			fmt.Printf("broadcast own quote: %d bytes\n", nbytes)
		}
	})

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	statusTicker := time.NewTicker(30 * time.Second)
	defer statusTicker.Stop()

	for {
		select {
		case <-c:
			fmt.Println("shutting down...")
			if err := n.Stop(); err != nil {
				log.Printf("error stopping node: %v", err)
			}
			fmt.Println("goodbye")
			return

		case <-statusTicker.C:
			printNodeStatus(n)
		}
	}
}

func printNodeStatus(n *node.Node) {
	status := n.GetNodeStatus()
	fmt.Printf("status: running=%v peers_connected=%v\n", status["running"], n.IsP2PConnected())
	fmt.Printf("gossip stats: %+v\n", status["gossip"])
}
