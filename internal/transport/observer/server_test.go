package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelpipes.ai/internal/observerproto"
	"voxelpipes.ai/internal/sim/pipes/host"
	"voxelpipes.ai/internal/sim/pipes/loc"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	srv := NewServer(hub, "OVERWORLD", 8, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/observer/bootstrap", srv.BootstrapHandler())
	mux.HandleFunc("/ws", srv.WSHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return hub, ts
}

func TestServer_StreamsPacketEvents(t *testing.T) {
	hub, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
	}))
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	id := hub.Spawn(loc.Vec3f{X: 0.5, Y: 0.5, Z: 0.5}, "OVERWORLD", host.ItemStack{Kind: "STONE", Amount: 2})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev observerproto.PacketEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, observerproto.TypePacketSpawn, ev.Type)
	assert.Equal(t, uint64(id), ev.ID)
	assert.Equal(t, 2, ev.Amount)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_RejectsBadHandshake(t *testing.T) {
	hub, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "HELLO"}))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
	assert.Equal(t, 0, hub.Subscribers())
}

func TestServer_Bootstrap(t *testing.T) {
	hub, ts := newTestServer(t)
	hub.SetTick(42)
	hub.Spawn(loc.Vec3f{}, "OVERWORLD", host.ItemStack{Kind: "STONE", Amount: 1})
	hub.Spawn(loc.Vec3f{}, "NETHER", host.ItemStack{Kind: "QUARTZ", Amount: 1})

	resp, err := http.Get(ts.URL + "/observer/bootstrap?world=nether")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var boot observerproto.BootstrapResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&boot))
	assert.Equal(t, uint64(42), boot.Tick)
	assert.Equal(t, 8, boot.SegmentTicks)
	require.Len(t, boot.Packets, 1)
	assert.Equal(t, "QUARTZ", boot.Packets[0].Item)
}

func TestIsLoopbackRemote(t *testing.T) {
	assert.True(t, isLoopbackRemote("127.0.0.1:1234"))
	assert.True(t, isLoopbackRemote("[::1]:80"))
	assert.False(t, isLoopbackRemote("10.0.0.2:80"))
	assert.False(t, isLoopbackRemote("garbage"))
}
