package livereload

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/starford/ter/internal/logfields"
)

const writeWait = 5 * time.Second

// The dev server is local; any origin may connect.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 512,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// IsUpgrade reports whether r asks for a websocket handshake.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// ServeWS upgrades the request and keeps the client subscribed until either
// side closes the socket or the broker shuts down. Client frames are read
// only to notice the close.
func (b *Broker) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		b.logger.Warn("livereload: upgrade failed", logfields.Path(r.URL.Path), logfields.Error(err))
		return
	}
	id := uuid.NewString()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	defer conn.Close()

	b.logger.Debug("livereload: client connected", logfields.ConnID(id), slog.String("remote", r.RemoteAddr))

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			b.logger.Debug("livereload: client disconnected", logfields.ConnID(id))
			return
		case msg, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				b.logger.Debug("livereload: write failed", logfields.ConnID(id), logfields.Error(err))
				return
			}
		}
	}
}

// ClientScript returns the script element pages embed to reload themselves
// when the endpoint at path sends a refresh.
func ClientScript(path string) string {
	return fmt.Sprintf(`<script>
(() => {
  const proto = location.protocol === "https:" ? "wss:" : "ws:";
  const socket = new WebSocket(proto + "//" + location.host + %s);
  socket.addEventListener("message", (event) => {
    if (event.data === %s) location.reload();
  });
})();
</script>`, strconv.Quote(path), strconv.Quote(string(RefreshMessage)))
}
