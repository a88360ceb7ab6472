package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNotInitialized is returned by Publish when the hub was never started.
	ErrNotInitialized = errors.New("websocket hub not initialized")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("websocket hub already started")
	// ErrClosed is returned once the hub's context is done.
	ErrClosed = errors.New("websocket hub closed")
)

// Hub maintains the set of active clients and broadcasts messages to them.
// All client bookkeeping happens on the run goroutine.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages for every client, in publish order.
	broadcast chan []byte

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	started atomic.Bool
	done    chan struct{}
	count   atomic.Int64

	// OnClientCount is called from the run goroutine whenever the client set changes.
	OnClientCount func(n int)
}

// NewHub creates a new Hub. It does nothing until Start is called.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Start launches the hub's processing loop. It may be called only once per hub;
// the loop stops when ctx is done.
func (h *Hub) Start(ctx context.Context) error {
	if !h.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go h.run(ctx)
	log.Info().Msg("Websocket hub started")
	return nil
}

// Publish delivers msg to every client registered at the time of the call.
// It does not wait for the message to be written to the connections.
func (h *Hub) Publish(msg Message) error {
	if !h.started.Load() {
		return ErrNotInitialized
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Event, err)
	}
	select {
	case h.broadcast <- payload:
		return nil
	case <-h.done:
		return ErrClosed
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) error {
	if !h.started.Load() {
		return ErrNotInitialized
	}
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrClosed
	}
}

// Unregister removes a client and closes its send queue.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Done is closed when the hub stops.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) run(ctx context.Context) {
	defer func() {
		for client := range h.clients {
			h.drop(client)
		}
		close(h.done)
		log.Info().Msg("Websocket hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
			h.changed()
			log.Info().Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Queue full: the client is too slow to keep up.
					h.drop(client)
					log.Warn().Int("total_clients", len(h.clients)).Msg("Dropped slow websocket client")
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	h.changed()
	close(client.send)
}

func (h *Hub) changed() {
	h.count.Store(int64(len(h.clients)))
	if h.OnClientCount != nil {
		h.OnClientCount(len(h.clients))
	}
}
