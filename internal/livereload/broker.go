// Package livereload pushes refresh notifications to browsers connected over
// a websocket.
package livereload

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/ter/internal/logfields"
	"github.com/starford/ter/internal/metrics"
)

const (
	// DefaultDelay is the debounce window used when none is configured.
	DefaultDelay = 100 * time.Millisecond
	// DefaultPath is the suffix of the push endpoint.
	DefaultPath = "/refresh"
)

// RefreshMessage is the only message ever sent to clients.
var RefreshMessage = []byte("refresh")

// Broker tracks connected clients and broadcasts debounced refreshes.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + debounce timer). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	delay   time.Duration
	logger  *slog.Logger
	metrics *metrics.Recorder

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	reloadCh      chan struct{}
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker whose refreshes fire delay after the last
// RequestReload. rec may be nil.
func NewBroker(delay time.Duration, logger *slog.Logger, rec *metrics.Recorder) *Broker {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Broker{
		delay:         delay,
		logger:        logger,
		metrics:       rec,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		reloadCh:      make(chan struct{}),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})

	// fire is nil while the timer is idle.
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	broadcast := func() {
		dropped := 0
		for ch := range clients {
			select {
			case ch <- RefreshMessage:
			default:
				// Client buffer full; a refresh is already pending for it.
				dropped++
				b.metrics.IncReloadDropped()
			}
		}
		b.metrics.IncReloadBroadcast()
		b.logger.Debug("livereload: refresh sent",
			logfields.Clients(len(clients)),
			slog.Int("dropped", dropped),
		)
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			b.metrics.SetReloadClients(0)
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			b.metrics.SetReloadClients(len(clients))

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
				b.metrics.SetReloadClients(len(clients))
			}

		case <-b.reloadCh:
			if timer == nil {
				timer = time.NewTimer(b.delay)
			} else {
				timer.Stop()
				timer.Reset(b.delay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			broadcast()

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels. A pending
// refresh is discarded.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 1)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// RequestReload re-arms the shared debounce timer. Requests arriving within
// the delay collapse into a single refresh per client.
func (b *Broker) RequestReload() {
	if b.closed.Load() {
		return
	}
	select {
	case b.reloadCh <- struct{}{}:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}
