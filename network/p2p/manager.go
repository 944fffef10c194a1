package p2p

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	go_log "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
	"golang.org/x/time/rate"

	stdlog "log"

	"github.com/komodex/dex-gossip/dex"
)

// GossipProtocol is the single stream protocol the host speaks; it
// replaces the teacher's four block/tx/attestation/vote protocols and
// its pubsub topics with one raw-frame channel.
const GossipProtocol protocol.ID = "/dex/gossip/1.0.0"

// maxFrameSize bounds the length-prefixed read so a misbehaving or
// malicious peer can't make us allocate an unbounded buffer.
const maxFrameSize = 4096

// NetworkMetrics tracks P2P transport performance.
type NetworkMetrics struct {
	FramesReceived     int64
	FramesSent         int64
	ConnectionAttempts int64
	FailedConnections  int64
	PeerCount          int64
	mu                 sync.RWMutex
}

func (nm *NetworkMetrics) IncrementFramesReceived() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.FramesReceived++
}

func (nm *NetworkMetrics) IncrementFramesSent() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.FramesSent++
}

func (nm *NetworkMetrics) IncrementConnectionAttempts() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.ConnectionAttempts++
}

func (nm *NetworkMetrics) IncrementFailedConnections() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.FailedConnections++
}

func (nm *NetworkMetrics) UpdatePeerCount(count int64) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.PeerCount = count
}

func (nm *NetworkMetrics) GetSnapshot() map[string]interface{} {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return map[string]interface{}{
		"frames_received":     nm.FramesReceived,
		"frames_sent":         nm.FramesSent,
		"connection_attempts": nm.ConnectionAttempts,
		"failed_connections":  nm.FailedConnections,
		"peer_count":          nm.PeerCount,
	}
}

// ConnectionState tracks the state of a peer connection.
type ConnectionState struct {
	LastConnected time.Time
	Attempts      int
	IsHealthy     bool
	LastError     error
}

// Config represents the P2P transport's own configuration, distinct
// from dex.Engine's protocol constants.
type Config struct {
	ListenPort     int
	BootstrapPeers []string
}

// Peer wraps a libp2p peer.ID and an open gossip stream so it
// satisfies dex.Peer. The Host owns the stream's lifetime.
type Peer struct {
	id       peer.ID
	stream   network.Stream
	throttle *rate.Limiter
	mu       sync.Mutex
}

// ID returns a stable numeric handle derived from the libp2p peer.ID,
// satisfying dex.Peer (the core only needs a stable comparable key,
// not the string form — see PeerSlotMap).
func (p *Peer) ID() uint64 {
	return fnv1a(string(p.id))
}

// Send writes one length-prefixed frame to the peer's stream. G
// requests (pulls) are rate-limited per peer, on top of the engine's
// own NumPending gate, so a gap-heavy neighbor can't be pulled from
// faster than the wire can sustain.
func (p *Peer) Send(frame []byte) error {
	if len(frame) >= 2 && frame[1] == dex.FuncGet && p.throttle != nil {
		if err := p.throttle.Wait(context.Background()); err != nil {
			return fmt.Errorf("p2p: get throttle: %w", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(frame) > maxFrameSize {
		return fmt.Errorf("p2p: frame of %d bytes exceeds max %d", len(frame), maxFrameSize)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	if _, err := p.stream.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("p2p: write frame length: %w", err)
	}
	if _, err := p.stream.Write(frame); err != nil {
		return fmt.Errorf("p2p: write frame body: %w", err)
	}
	return nil
}

func fnv1a(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

// Host manages the libp2p host, dials bootstrap peers by multiaddr,
// and drives dex.Engine.OnMessage/OnPoll for every connected peer.
type Host struct {
	Host   host.Host
	Ctx    context.Context
	Cancel context.CancelFunc

	engine *dex.Engine

	listenPort     int
	bootstrapPeers []multiaddr.Multiaddr

	peers   map[peer.ID]*Peer
	peersMu sync.RWMutex

	getThrottle *rate.Limiter

	connectionStates map[peer.ID]*ConnectionState
	connectionsMu    sync.RWMutex

	metrics *NetworkMetrics

	pollTicker *time.Ticker
}

// NewHost creates a libp2p host bound to a raw gossip stream protocol.
func NewHost(config *Config, engine *dex.Engine) (*Host, error) {
	go_log.SetLogLevel("libp2p", "info")
	ctx, cancel := context.WithCancel(context.Background())

	var bootstrapPeers []multiaddr.Multiaddr
	for _, addr := range config.BootstrapPeers {
		maddr, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			stdlog.Printf("dex p2p: invalid bootstrap peer address %s: %v", addr, err)
			continue
		}
		bootstrapPeers = append(bootstrapPeers, maddr)
	}

	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", config.ListenPort)),
		libp2p.NATPortMap(),
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dex p2p: create libp2p host: %w", err)
	}

	stdlog.Printf("dex p2p: host created with peer ID %s, listening on %s", h.ID().String(), h.Addrs())

	host := &Host{
		Host:             h,
		Ctx:              ctx,
		Cancel:           cancel,
		engine:           engine,
		listenPort:       config.ListenPort,
		bootstrapPeers:   bootstrapPeers,
		peers:            make(map[peer.ID]*Peer),
		getThrottle:      rate.NewLimiter(rate.Limit(50), 100),
		connectionStates: make(map[peer.ID]*ConnectionState),
		metrics:          &NetworkMetrics{},
	}
	return host, nil
}

// Start begins dialing bootstrap peers and starts the protocol handler
// and heartbeat poll loop.
func (hst *Host) Start() error {
	hst.Host.SetStreamHandler(GossipProtocol, hst.handleIncomingStream)
	hst.connectToBootstrapPeersWithRetry()
	hst.startPollLoop()
	stdlog.Println("dex p2p: gossip transport started")
	return nil
}

// Stop tears down the poll loop and the libp2p host.
func (hst *Host) Stop() error {
	if hst.pollTicker != nil {
		hst.pollTicker.Stop()
	}
	hst.Cancel()
	if err := hst.Host.Close(); err != nil {
		return fmt.Errorf("dex p2p: close host: %w", err)
	}
	return nil
}

// connectToBootstrapPeersWithRetry dials every configured bootstrap
// multiaddr, retrying with a backoff of attempt² seconds, same cadence as
// the teacher's connectWithRetry.
func (hst *Host) connectToBootstrapPeersWithRetry() {
	var wg sync.WaitGroup
	for _, addr := range hst.bootstrapPeers {
		pi, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			stdlog.Printf("dex p2p: invalid bootstrap peer address %s: %v", addr, err)
			continue
		}
		if pi.ID == hst.Host.ID() {
			continue
		}
		wg.Add(1)
		go func(pi peer.AddrInfo) {
			defer wg.Done()
			hst.connectWithRetry(pi, 3)
		}(*pi)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		stdlog.Println("dex p2p: bootstrap peer connection attempts completed")
	case <-time.After(30 * time.Second):
		stdlog.Println("dex p2p: bootstrap peer connection attempts timed out")
	}
}

func (hst *Host) connectWithRetry(pi peer.AddrInfo, maxRetries int) {
	for attempt := 1; attempt <= maxRetries; attempt++ {
		hst.metrics.IncrementConnectionAttempts()

		connectCtx, connectCancel := context.WithTimeout(hst.Ctx, 10*time.Second)
		err := hst.Host.Connect(connectCtx, pi)
		connectCancel()

		if err == nil {
			stdlog.Printf("dex p2p: connected to peer %s (attempt %d)", pi.ID.String(), attempt)
			hst.updateConnectionState(pi.ID, true, nil)
			hst.openOutboundStream(pi.ID)
			return
		}

		hst.metrics.IncrementFailedConnections()
		hst.updateConnectionState(pi.ID, false, err)
		stdlog.Printf("dex p2p: failed to connect to peer %s (attempt %d/%d): %v", pi.ID.String(), attempt, maxRetries, err)

		if attempt < maxRetries {
			backoff := time.Duration(attempt*attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-hst.Ctx.Done():
				return
			}
		}
	}
	stdlog.Printf("dex p2p: failed to connect to peer %s after %d attempts", pi.ID.String(), maxRetries)
}

func (hst *Host) updateConnectionState(peerID peer.ID, isHealthy bool, err error) {
	hst.connectionsMu.Lock()
	defer hst.connectionsMu.Unlock()

	state, ok := hst.connectionStates[peerID]
	if !ok {
		state = &ConnectionState{}
		hst.connectionStates[peerID] = state
	}
	if isHealthy {
		state.LastConnected = time.Now()
		state.Attempts = 0
	} else {
		state.Attempts++
	}
	state.IsHealthy = isHealthy
	state.LastError = err
}

// openOutboundStream opens our half of the gossip stream to a newly
// connected peer and starts reading frames from it.
func (hst *Host) openOutboundStream(id peer.ID) {
	stream, err := hst.Host.NewStream(hst.Ctx, id, GossipProtocol)
	if err != nil {
		stdlog.Printf("dex p2p: open gossip stream to %s: %v", id.String(), err)
		return
	}
	hst.registerStream(id, stream)
}

// handleIncomingStream is invoked by libp2p when a remote peer opens a
// gossip stream to us.
func (hst *Host) handleIncomingStream(s network.Stream) {
	hst.registerStream(s.Conn().RemotePeer(), s)
}

func (hst *Host) registerStream(id peer.ID, stream network.Stream) {
	p := &Peer{id: id, stream: stream, throttle: rate.NewLimiter(hst.getThrottle.Limit(), hst.getThrottle.Burst())}

	hst.peersMu.Lock()
	hst.peers[id] = p
	hst.metrics.UpdatePeerCount(int64(len(hst.peers)))
	hst.peersMu.Unlock()

	go hst.readLoop(p)
}

// readLoop pulls length-prefixed frames off the stream and feeds them
// to the engine until the stream closes.
func (hst *Host) readLoop(p *Peer) {
	defer func() {
		p.stream.Close()
		hst.peersMu.Lock()
		delete(hst.peers, p.id)
		hst.metrics.UpdatePeerCount(int64(len(hst.peers)))
		hst.peersMu.Unlock()
	}()

	r := bufio.NewReader(p.stream)
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if n > maxFrameSize {
			stdlog.Printf("dex p2p: peer %s sent oversized frame (%d bytes), dropping connection", p.id.String(), n)
			return
		}
		frame := make([]byte, n)
		if _, err := io.ReadFull(r, frame); err != nil {
			return
		}
		hst.metrics.IncrementFramesReceived()

		now := uint32(time.Now().Unix())
		if err := hst.engine.OnMessage(now, p, frame); err != nil {
			stdlog.Printf("dex p2p: dispatch frame from %s: %v", p.id.String(), err)
		}
	}
}

// startPollLoop drives dex.Engine.OnPoll for every connected peer at
// heartbeat cadence, the transport-side half of spec.md §4.7's poll
// hook (the engine decides what, if anything, to send).
func (hst *Host) startPollLoop() {
	hst.pollTicker = time.NewTicker(time.Duration(dex.Heartbeat) * time.Second)
	go func() {
		for {
			select {
			case <-hst.pollTicker.C:
				hst.pollAll()
			case <-hst.Ctx.Done():
				return
			}
		}
	}()
}

func (hst *Host) pollAll() {
	now := uint32(time.Now().Unix())
	hst.peersMu.RLock()
	targets := make([]*Peer, 0, len(hst.peers))
	for _, p := range hst.peers {
		targets = append(targets, p)
	}
	hst.peersMu.RUnlock()

	for _, p := range targets {
		if err := hst.engine.OnPoll(now, p); err != nil {
			stdlog.Printf("dex p2p: poll peer %s: %v", p.id.String(), err)
		}
	}
}

// GetConnectedPeerIDs returns connected peer IDs as strings.
func (hst *Host) GetConnectedPeerIDs() []string {
	hst.peersMu.RLock()
	defer hst.peersMu.RUnlock()
	ids := make([]string, 0, len(hst.peers))
	for id := range hst.peers {
		ids = append(ids, id.String())
	}
	return ids
}

// GetPeerCount returns the number of connected peers.
func (hst *Host) GetPeerCount() int {
	hst.peersMu.RLock()
	defer hst.peersMu.RUnlock()
	return len(hst.peers)
}

// GetHostID returns the host's own peer ID.
func (hst *Host) GetHostID() peer.ID {
	return hst.Host.ID()
}

// GetListenAddresses returns the addresses the host is listening on.
func (hst *Host) GetListenAddresses() []multiaddr.Multiaddr {
	return hst.Host.Addrs()
}

// GetStats returns transport statistics including metrics.
func (hst *Host) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"peer_id":         hst.Host.ID().String(),
		"listen_port":     hst.listenPort,
		"connected_peers": hst.GetPeerCount(),
		"listen_addrs":    hst.Host.Addrs(),
		"bootstrap_peers": len(hst.bootstrapPeers),
	}
	for k, v := range hst.metrics.GetSnapshot() {
		stats[k] = v
	}
	return stats
}

// GetMetrics returns the live metrics struct.
func (hst *Host) GetMetrics() *NetworkMetrics {
	return hst.metrics
}
