package livereload

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ter/internal/metrics"
)

// countMessages drains ch until it is closed and returns the number of messages.
func countMessages(ch chan []byte) *atomic.Int32 {
	var n atomic.Int32
	go func() {
		for range ch {
			n.Add(1)
		}
	}()
	return &n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(DefaultDelay, nil, nil)
	defer b.Close()

	assert.Equal(t, 0, b.ClientCount())
	ch := b.Subscribe()
	assert.Equal(t, 1, b.ClientCount())
	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.ClientCount())

	_, ok := <-ch
	assert.False(t, ok, "unsubscribe closes the channel")
}

func TestRequestReload_Debounces(t *testing.T) {
	b := NewBroker(100*time.Millisecond, nil, nil)
	chA := b.Subscribe()
	chB := b.Subscribe()
	a, bb := countMessages(chA), countMessages(chB)

	for i := 0; i < 5; i++ {
		b.RequestReload()
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return a.Load() == 1 && bb.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	b.Close()

	assert.Equal(t, int32(1), a.Load(), "one refresh per connection")
	assert.Equal(t, int32(1), bb.Load())
}

func TestRequestReload_SeparateWindows(t *testing.T) {
	b := NewBroker(30*time.Millisecond, nil, nil)
	n := countMessages(b.Subscribe())

	b.RequestReload()
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
	b.RequestReload()
	require.Eventually(t, func() bool { return n.Load() == 2 }, time.Second, 5*time.Millisecond)
	b.Close()
}

func TestRequestReload_NoClients(t *testing.T) {
	rec := metrics.New(prom.NewRegistry())
	b := NewBroker(10*time.Millisecond, nil, rec)
	defer b.Close()

	b.RequestReload()
	assert.Equal(t, 0, b.ClientCount())

	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return strings.Contains(w.Body.String(), "ter_livereload_broadcasts_total 1")
	}, time.Second, 10*time.Millisecond)
}

func TestClose(t *testing.T) {
	b := NewBroker(time.Hour, nil, nil)
	ch := b.Subscribe()
	b.RequestReload()

	b.Close()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "pending refresh is discarded on close")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	assert.Equal(t, 0, b.ClientCount())

	// Safe no-ops after close.
	b.RequestReload()
	b.Unsubscribe(ch)
	b.Close()
	_, ok := <-b.Subscribe()
	assert.False(t, ok)
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestServeWS_DeliversRefresh(t *testing.T) {
	b := NewBroker(20*time.Millisecond, nil, nil)
	defer b.Close()
	srv := httptest.NewServer(http.HandlerFunc(b.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/refresh"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	b.RequestReload()
	b.RequestReload()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, "refresh", string(msg))
}

func TestServeWS_UnsubscribesOnClientClose(t *testing.T) {
	rec := metrics.New(prom.NewRegistry())
	b := NewBroker(DefaultDelay, nil, rec)
	defer b.Close()
	srv := httptest.NewServer(http.HandlerFunc(b.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/refresh"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// Client frames are ignored.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return b.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "ter_livereload_clients 0")
}

func TestServeWS_BrokerCloseEndsConnection(t *testing.T) {
	b := NewBroker(DefaultDelay, nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(b.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/refresh"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	b.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestServeWS_RejectsPlainRequest(t *testing.T) {
	b := NewBroker(DefaultDelay, nil, nil)
	defer b.Close()

	req := httptest.NewRequest(http.MethodGet, "/refresh", nil)
	assert.False(t, IsUpgrade(req))

	w := httptest.NewRecorder()
	b.ServeWS(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, b.ClientCount())
}

func TestClientScript(t *testing.T) {
	s := ClientScript("/refresh")
	assert.True(t, strings.HasPrefix(s, "<script>"))
	assert.Contains(t, s, `"/refresh"`)
	assert.Contains(t, s, `"refresh"`)
	assert.Contains(t, s, "location.reload()")
}
