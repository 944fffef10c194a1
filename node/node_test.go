package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodex/dex-gossip/config"
)

func TestNewNodeRejectsNilConfig(t *testing.T) {
	_, err := NewNode(nil)
	assert.Error(t, err)
}

func TestP2PPortFromAddr(t *testing.T) {
	assert.Equal(t, 9001, p2pPortFromAddr("/ip4/0.0.0.0/tcp/9001"))
	assert.Equal(t, 9000, p2pPortFromAddr("not-a-multiaddr"))
	assert.Equal(t, 9000, p2pPortFromAddr("/ip4/0.0.0.0/tcp/notanumber"))
}

func TestNewNodeBuildsEngineHostAndAPI(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Network.ListenAddr = "/ip4/0.0.0.0/tcp/0"
	cfg.API.ListenAddr = ":0"

	n, err := NewNode(cfg)
	require.NoError(t, err)
	require.NotNil(t, n.engine)
	require.NotNil(t, n.host)
	require.NotNil(t, n.api)

	status := n.GetNodeStatus()
	assert.Equal(t, false, status["running"])
}

func TestAddEventHandlerFiresOnBroadcastLocal(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Network.ListenAddr = "/ip4/0.0.0.0/tcp/0"
	cfg.API.ListenAddr = ":0"

	n, err := NewNode(cfg)
	require.NoError(t, err)

	fired := false
	n.AddEventHandler("quote_broadcast", func(data interface{}) {
		fired = true
	})

	_, err = n.BroadcastLocal(0, "", "btc", "usd", "", "1.0", "50000")
	require.NoError(t, err)
	assert.True(t, fired)
}
