package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Hub holds websocket connections per user and fans events out to them.
// When a Redis client is configured, events travel through per-user
// pub/sub channels ("user:<id>") so every replica of the service sees
// them; the hub then delivers to whichever local connections belong to
// that user. With a nil Redis client the hub degrades to single-instance
// local delivery.
//
// One goroutine owns the client maps, so per-user delivery order matches
// the order events entered the hub, which together with Redis's
// per-channel ordering preserves commit order per (subscriber,
// counterparty) pair.
type Hub struct {
	rdb        *redis.Client
	clients    map[uint64]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	deliver    chan envelope
}

type envelope struct {
	userID  uint64
	payload []byte
}

// NewHub constructs a Hub and starts its dispatch loop. rdb may be nil.
func NewHub(rdb *redis.Client) *Hub {
	h := &Hub{
		rdb:        rdb,
		clients:    make(map[uint64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan envelope, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	if h.rdb != nil {
		pubsub := h.rdb.PSubscribe(context.Background(), "user:*")
		ch := pubsub.Channel()
		go func() {
			for msg := range ch {
				uid, ok := parseUserChannel(msg.Channel)
				if !ok {
					continue
				}
				h.deliver <- envelope{userID: uid, payload: []byte(msg.Payload)}
			}
		}()
	}

	for {
		select {
		case c := <-h.register:
			if _, ok := h.clients[c.userID]; !ok {
				h.clients[c.userID] = make(map[*Client]bool)
			}
			h.clients[c.userID][c] = true
			log.Printf("relay: client registered for user %d", c.userID)
		case c := <-h.unregister:
			if conns, ok := h.clients[c.userID]; ok {
				if _, exists := conns[c]; exists {
					delete(conns, c)
					close(c.send)
				}
				if len(conns) == 0 {
					delete(h.clients, c.userID)
				}
			}
		case env := <-h.deliver:
			conns, ok := h.clients[env.userID]
			if !ok {
				continue
			}
			for c := range conns {
				select {
				case c.send <- env.payload:
				default:
					// A client that cannot keep up is dropped rather
					// than allowed to stall everyone else's delivery.
					close(c.send)
					delete(conns, c)
				}
			}
		}
	}
}

// RegisterClient attaches a client to its user's fan-out set.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient detaches a client and closes its send channel.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// PublishToUser emits a change event on the user's channel. With Redis
// the event reaches every service replica; otherwise it is delivered to
// local connections only. The caller has already committed the change
// this event describes.
func (h *Hub) PublishToUser(ctx context.Context, userID uint64, ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if h.rdb != nil {
		return h.rdb.Publish(ctx, userChannel(userID), payload).Err()
	}
	h.deliver <- envelope{userID: userID, payload: payload}
	return nil
}

func userChannel(userID uint64) string {
	return fmt.Sprintf("user:%d", userID)
}

func parseUserChannel(channel string) (uint64, bool) {
	raw, ok := strings.CutPrefix(channel, "user:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
