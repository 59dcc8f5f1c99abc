package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ter/internal/journal"
	"github.com/starford/ter/internal/livereload"
	"github.com/starford/ter/internal/metrics"
	"github.com/starford/ter/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// testEnv builds an output root with a small site and a router over it.
func testEnv(t *testing.T, opts ...Option) (string, *livereload.Broker, http.Handler) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "public")
	testutil.WriteFile(t, root, "index.html", "<h1>home</h1>")
	testutil.WriteFile(t, root, "blog/index.html", "<h1>blog</h1>")
	testutil.WriteFile(t, root, "blog/post/index.html", "<h1>post</h1>")
	testutil.WriteFile(t, root, "style.css", "body{}")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	broker := livereload.NewBroker(20*time.Millisecond, quietLogger(), nil)
	t.Cleanup(broker.Close)

	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return root, broker, New(root, broker, opts...).Routes()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestServe_RootAndDirectoryIndex(t *testing.T) {
	_, _, h := testEnv(t)

	for target, body := range map[string]string{
		"/":           "<h1>home</h1>",
		"/blog":       "<h1>blog</h1>",
		"/blog/":      "<h1>blog</h1>",
		"/blog/post":  "<h1>post</h1>",
		"/blog/post/": "<h1>post</h1>",
	} {
		w := get(t, h, target)
		assert.Equal(t, http.StatusOK, w.Code, target)
		assert.Equal(t, body, w.Body.String(), target)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html", target)
	}
}

func TestServe_RegularFile(t *testing.T) {
	_, _, h := testEnv(t)
	w := get(t, h, "/style.css")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body{}", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/css")
	assert.Equal(t, "6", w.Header().Get("Content-Length"))
}

func TestServe_PlainNotFound(t *testing.T) {
	_, _, h := testEnv(t)

	for _, target := range []string{"/missing", "/empty", "/blog/nope.html"} {
		w := get(t, h, target)
		assert.Equal(t, http.StatusNotFound, w.Code, target)
		assert.Equal(t, notFoundMsg, w.Body.String(), target)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain", target)
	}
}

func TestServe_CustomNotFound(t *testing.T) {
	root, _, h := testEnv(t)
	testutil.WriteFile(t, root, "404/index.html", "<h1>lost</h1>")

	w := get(t, h, "/missing/page")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "<h1>lost</h1>", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestServe_CannotEscapeRoot(t *testing.T) {
	root, _, h := testEnv(t)
	testutil.WriteFile(t, filepath.Dir(root), "secret.txt", "top secret")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../secret.txt"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.NotContains(t, w.Body.String(), "top secret")
}

func TestServe_Head(t *testing.T) {
	_, _, h := testEnv(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodHead, "/style.css", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestServe_RefreshWithoutUpgradeIsAFile(t *testing.T) {
	root, _, h := testEnv(t)
	w := get(t, h, "/refresh")
	assert.Equal(t, http.StatusNotFound, w.Code)

	testutil.WriteFile(t, root, "refresh/index.html", "not a socket")
	w = get(t, h, "/refresh")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not a socket", w.Body.String())
}

func TestServe_LiveReloadUpgrade(t *testing.T) {
	_, broker, h := testEnv(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/blog/post/refresh"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return broker.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	broker.RequestReload()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "refresh", string(msg))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return broker.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServe_CustomReloadSuffix(t *testing.T) {
	_, broker, h := testEnv(t, WithReloadSuffix("/__livereload"))
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/__livereload", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return broker.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/refresh", nil)
	assert.Error(t, err, "default suffix no longer upgrades")
}

func TestHealth(t *testing.T) {
	_, _, h := testEnv(t)
	w := get(t, h, "/_ter/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Clients)
}

func TestBuilds(t *testing.T) {
	db := testutil.TestJournal(t)
	require.NoError(t, db.Record(context.Background(), journal.Entry{
		StartedAt: time.Now(), Kind: "modify", Paths: []string{"/site/a.md"}, Error: "boom",
	}))

	_, _, h := testEnv(t, WithJournal(db))

	w := get(t, h, "/_ter/builds?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	var resp buildsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Builds, 1)
	assert.Equal(t, "boom", resp.Builds[0].Error)

	w = get(t, h, "/_ter/builds?limit=zero")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBuilds_Disabled(t *testing.T) {
	_, _, h := testEnv(t)
	w := get(t, h, "/_ter/builds")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "journal disabled")
}

func TestMetricsAndRequestLog(t *testing.T) {
	rec := metrics.New(prom.NewRegistry())
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	_, _, h := testEnv(t, WithMetrics(rec), WithLogger(logger))
	get(t, h, "/missing")
	get(t, h, "/")

	w := get(t, h, "/_ter/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ter_http_responses_total{code="404"} 1`)
	assert.Contains(t, w.Body.String(), `ter_http_responses_total{code="200"} 1`)

	logs := buf.String()
	assert.Contains(t, logs, `"msg":"server: request"`)
	assert.Contains(t, logs, `"status":404`)
	assert.Contains(t, logs, `"path":"/missing"`)
}
