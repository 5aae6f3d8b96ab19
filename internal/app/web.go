package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/msp_bridge/internal/bridge"
	"github.com/relabs-tech/msp_bridge/internal/drone"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served from the same host
	},
}

// Status is the bridge summary served at /api/status.
type Status struct {
	Armed            bool         `json:"armed"`
	ArmingState      string       `json:"arming_state"`
	TelemetryRunning bool         `json:"telemetry_running"`
	Operator         string       `json:"operator,omitempty"`
	Relay            bridge.Stats `json:"relay"`
}

// TelemetryResponse is served at /api/telemetry.
type TelemetryResponse struct {
	Armed   bool                    `json:"armed"`
	Samples map[string]drone.Report `json:"samples"`
}

// Hub fans samples out to connected websocket clients. It implements
// sampler.Sink. Slow clients drop messages instead of stalling the sampler.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

// Publish sends the sample's report to every client.
func (h *Hub) Publish(s drone.Sample) error {
	payload, err := json.Marshal(s.Report())
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (h *Hub) subscribe() chan []byte {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// NewWebHandler builds the dashboard router:
//
//	GET /api/telemetry             latest sample of every category
//	GET /api/telemetry/{category}  latest sample of one category
//	GET /api/status                arming, sampler and relay counters
//	GET /ws                        live sample stream
//	GET /ws/msp                    raw MSP reads (when mspDebug is set)
//	/                              static files from ./web
func NewWebHandler(state *drone.State, hub *Hub, status func() Status, mspDebug http.Handler) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/telemetry", func(w http.ResponseWriter, _ *http.Request) {
		snap := state.Snapshot()
		resp := TelemetryResponse{Armed: snap.Armed, Samples: make(map[string]drone.Report, len(snap.Samples))}
		for cat, s := range snap.Samples {
			resp.Samples[cat.String()] = s.Report()
		}
		writeJSON(w, resp)
	}).Methods("GET")

	r.HandleFunc("/api/telemetry/{category}", func(w http.ResponseWriter, r *http.Request) {
		cat, err := drone.ParseCategory(mux.Vars(r)["category"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s, ok := state.Get(cat)
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, s.Report())
	}).Methods("GET")

	r.HandleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, status())
	}).Methods("GET")

	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(hub, w, r)
	}).Methods("GET")

	if mspDebug != nil {
		r.Handle("/ws/msp", mspDebug).Methods("GET")
	}

	r.PathPrefix("/").Handler(http.FileServer(http.Dir("web")))
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func serveWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := hub.subscribe()
	defer hub.unsubscribe(ch)

	// The reader only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case payload := <-ch:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// RunWeb serves handler on addr until ctx is cancelled.
func RunWeb(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
