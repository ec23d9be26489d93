package pipeline

import (
	"log/slog"
	"sync"
)

// Sender delivers one JSON message to a client connection.
type Sender interface {
	Send(v any) error
}

// Notifier receives the progress events of a step run.
type Notifier interface {
	Notify(ev Event)
}

// Hub fans step events out to the clients subscribed to a key. Each client
// follows one run (job id) of the key, so the last events of a replaced run
// never reach the client of its replacement. Clients that fail a write are
// dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[Key]map[Sender]uint64
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[Key]map[Sender]uint64),
		logger:  logger.With("component", "pipeline_hub"),
	}
}

// Register subscribes s to the events of run under key. Registering again
// moves s to the newer run.
func (h *Hub) Register(key Key, run uint64, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[key]
	if !ok {
		set = make(map[Sender]uint64)
		h.clients[key] = set
	}
	set[s] = run
}

func (h *Hub) Unregister(key Key, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[key]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.clients, key)
	}
}

// UnregisterAll removes s from every key it is subscribed to.
func (h *Hub) UnregisterAll(s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, set := range h.clients {
		delete(set, s)
		if len(set) == 0 {
			delete(h.clients, key)
		}
	}
}

func (h *Hub) Clients(key Key) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[key])
}

// Send writes v to the clients of key following run.
func (h *Hub) Send(key Key, run uint64, v any) {
	h.mu.Lock()
	targets := make([]Sender, 0, len(h.clients[key]))
	for s, following := range h.clients[key] {
		if following == run {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		if err := s.Send(v); err != nil {
			h.logger.Warn("drop websocket client", "key", key.String(), "run", run, "error", err)
			h.Unregister(key, s)
		}
	}
}

// Notifier returns a Notifier publishing to the clients following run of key.
func (h *Hub) Notifier(key Key, run uint64) Notifier {
	return hubNotifier{hub: h, key: key, run: run}
}

type hubNotifier struct {
	hub *Hub
	key Key
	run uint64
}

func (n hubNotifier) Notify(ev Event) {
	n.hub.Send(n.key, n.run, ev)
}
