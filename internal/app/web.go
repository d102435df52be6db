package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/relabs-tech/spacenode/internal/config"
	"github.com/relabs-tech/spacenode/internal/env"
	"github.com/relabs-tech/spacenode/internal/store"
	log "github.com/sirupsen/logrus"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsWriteWait  = 10 * time.Second
	wsSendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local network use
	},
}

// Hub keeps the latest sample and fans every update out to WebSocket
// clients. With a history attached every update is also recorded.
type Hub struct {
	history *store.History

	mu      sync.RWMutex
	last    env.Sample
	have    bool
	clients map[chan env.Sample]struct{}
}

// NewHub returns an empty hub. history may be nil.
func NewHub(history *store.History) *Hub {
	return &Hub{history: history, clients: make(map[chan env.Sample]struct{})}
}

// Update stores s and queues it for every client. Slow clients miss
// samples rather than blocking the MQTT callback.
func (h *Hub) Update(s env.Sample) {
	if h.history != nil {
		if err := h.history.Record(context.Background(), s); err != nil {
			log.Warnf("web: %v", err)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = s
	h.have = true
	for ch := range h.clients {
		select {
		case ch <- s:
		default:
		}
	}
}

// Latest returns the most recent sample, if any.
func (h *Hub) Latest() (env.Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.have
}

func (h *Hub) subscribe() chan env.Sample {
	ch := make(chan env.Sample, wsSendBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	if h.have {
		ch <- h.last
	}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan env.Sample) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// Handler serves the JSON API, the sample stream and the static UI.
func (h *Hub) Handler(staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/env", h.handleEnv)
	mux.HandleFunc("/ws", h.handleWS)
	if h.history != nil {
		mux.HandleFunc("/api/history", h.handleHistory)
	}
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

func (h *Hub) handleEnv(w http.ResponseWriter, r *http.Request) {
	s, ok := h.Latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s); err != nil {
		log.Warnf("web: json encode error: %v", err)
	}
}

// handleHistory serves the newest samples first; ?limit=N bounds the count.
func (h *Hub) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	samples, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		log.Errorf("web: %v", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if samples == nil {
		samples = []env.Sample{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(samples); err != nil {
		log.Warnf("web: json encode error: %v", err)
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	// The reader only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case s := <-ch:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(s); err != nil {
				log.Debugf("web: websocket write error: %v", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// RunWeb subscribes to the sample topic and serves the live view.
func RunWeb() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	var history *store.History
	if cfg.HistoryDB != "" {
		history, err = store.Open(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer history.Close()
		log.Infof("web: recording samples to %s", cfg.HistoryDB)
	}

	hub := NewHub(history)
	if err := subscribeSamples(client, cfg.TopicEnv, hub.Update); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Infof("web server listening on %s", addr)
	return http.ListenAndServe(addr, hub.Handler("web"))
}
