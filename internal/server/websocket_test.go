package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenehook/internal/config"
	"github.com/zeusync/scenehook/internal/core/collectibles"
	"github.com/zeusync/scenehook/internal/engine"
	"github.com/zeusync/scenehook/internal/ledger"
)

type fakeSource struct {
	reads atomic.Int64
}

func (f *fakeSource) Diagnostics() engine.Diagnostics {
	f.reads.Add(1)
	return engine.Diagnostics{
		LastStrategy: "structural",
		SceneReady:   true,
		Collectibles: collectibles.Stats{Total: 30, Attached: 29, Collected: 1},
		Target:       &engine.TargetInfo{Name: "Player_Armature", Strategy: "structural", Confirmed: true},
	}
}

func (f *fakeSource) Minimap() collectibles.Minimap {
	return collectibles.Minimap{
		CenterX: 100,
		CenterY: 100,
		Markers: []collectibles.Marker{{ID: 2, X: 110, Y: 90, Visible: true}},
		Visible: 1,
	}
}

type fakeLedger struct{}

func (fakeLedger) Totals(context.Context) (ledger.Totals, error) {
	return ledger.Totals{Entries: 2, Units: 2}, nil
}

func (fakeLedger) Recent(_ context.Context, n int) ([]ledger.Entry, error) {
	return []ledger.Entry{{TxID: "a", CoinID: 4, Units: 1}}, nil
}

func newTestServer(t *testing.T, token string) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(config.ServerConfig{SnapshotInterval: 10 * time.Millisecond, Token: token}, &fakeSource{}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.ws.Close()
		ts.Close()
	})
	return srv, ts
}

func TestDiagnosticsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, "")
	resp, err := http.Get(ts.URL + "/diagnostics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var d engine.Diagnostics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	assert.True(t, d.SceneReady)
	assert.Equal(t, 29, d.Collectibles.Attached)
	require.NotNil(t, d.Target)
	assert.Equal(t, "Player_Armature", d.Target.Name)
}

func TestMinimapEndpoint(t *testing.T) {
	_, ts := newTestServer(t, "")
	resp, err := http.Get(ts.URL + "/minimap")
	require.NoError(t, err)
	defer resp.Body.Close()

	var m collectibles.Minimap
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	require.Len(t, m.Markers, 1)
	assert.Equal(t, 2, m.Markers[0].ID)
}

func TestLedgerEndpoint(t *testing.T) {
	srv, ts := newTestServer(t, "")
	resp, err := http.Get(ts.URL + "/ledger")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	srv.SetLedger(fakeLedger{})
	resp, err = http.Get(ts.URL + "/ledger?n=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v ledgerView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.EqualValues(t, 2, v.Totals.Units)
	require.Len(t, v.Recent, 1)

	resp, err = http.Get(ts.URL + "/ledger?n=x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTokenRequired(t *testing.T) {
	_, ts := newTestServer(t, "supersecrettoken")

	resp, err := http.Get(ts.URL + "/diagnostics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/diagnostics", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer supersecrettoken")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, _, err = websocket.DefaultDialer.Dial(u, nil)
	assert.Error(t, err)
	_, _, err = websocket.DefaultDialer.Dial(u+"?token=invalid", nil)
	assert.Error(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(u+"?token=supersecrettoken", nil)
	require.NoError(t, err)
	conn.Close()
}

func TestWebSocketStream(t *testing.T) {
	srv, ts := newTestServer(t, "")
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first, second Frame
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	require.NotNil(t, first.Diagnostics)
	require.NotNil(t, first.Minimap)
	assert.Equal(t, 1, srv.ws.Clients())
}

func TestWebSocketSelectsStream(t *testing.T) {
	_, ts := newTestServer(t, "")
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(u+"?stream=minimap", nil)
	require.NoError(t, err)
	defer conn.Close()
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Nil(t, f.Diagnostics)
	require.NotNil(t, f.Minimap)

	_, resp, err := websocket.DefaultDialer.Dial(u+"?stream=bogus", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestShutdownClosesStreams(t *testing.T) {
	srv, ts := newTestServer(t, "")
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
	}
	assert.Zero(t, srv.ws.Clients())
	assert.ErrorIs(t, srv.Serve(context.Background()), ErrServerClosed)
}

func TestServeStopsOnCancel(t *testing.T) {
	srv := New(config.ServerConfig{Addr: "127.0.0.1:0", SnapshotInterval: 10 * time.Millisecond}, &fakeSource{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 2*time.Second, 5*time.Millisecond)
	resp, err := http.Get("http://" + srv.Addr().String() + "/diagnostics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
}
