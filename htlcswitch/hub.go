package htlcswitch

import (
	"fmt"
	"sync"

	"github.com/lightningnetwork/lndcore/channeldb"
	"github.com/lightningnetwork/lndcore/lnwallet"
)

// ErrActorNotFound mirrors the teacher's ErrChannelLinkNotFound: no actor
// is registered for the requested channel.
var ErrActorNotFound = fmt.Errorf("no channel actor registered for this channel")

// Hub is the process-wide registry of running channel actors, the
// goroutine-per-peer analogue of the teacher's Switch linkIndex. One Hub
// per daemon instance owns every actor; AddChannel/RemoveChannel are safe
// to call concurrently with Actor lookups.
type Hub struct {
	registry *channeldb.ChannelRegistry

	mu     sync.RWMutex
	actors map[lnwallet.ChannelID]*ChannelActor
}

// NewHub constructs an empty Hub backed by registry for persistence.
func NewHub(registry *channeldb.ChannelRegistry) *Hub {
	return &Hub{
		registry: registry,
		actors:   make(map[lnwallet.ChannelID]*ChannelActor),
	}
}

// AddChannel starts a new actor for channel and registers it, the hub-level
// equivalent of the teacher's addLink.
func (h *Hub) AddChannel(channel *lnwallet.Channel) *ChannelActor {
	h.mu.Lock()
	defer h.mu.Unlock()

	actor := NewChannelActor(channel, h.registry)
	actor.Start()
	h.actors[channel.ID] = actor

	log.Infof("started channel actor for channel_id=%x", channel.ID)

	return actor
}

// Actor looks up the running actor for a channel ID.
func (h *Hub) Actor(id lnwallet.ChannelID) (*ChannelActor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	actor, ok := h.actors[id]
	if !ok {
		return nil, ErrActorNotFound
	}
	return actor, nil
}

// RemoveChannel stops and unregisters the actor for id, the hub-level
// equivalent of the teacher's removeLink.
func (h *Hub) RemoveChannel(id lnwallet.ChannelID) error {
	h.mu.Lock()
	actor, ok := h.actors[id]
	if ok {
		delete(h.actors, id)
	}
	h.mu.Unlock()

	if !ok {
		return ErrActorNotFound
	}

	actor.Stop()
	return nil
}

// Stop halts every running actor, the hub-level equivalent of Switch.Stop:
// "a stop request cancels every actor" (§5).
func (h *Hub) Stop() {
	h.mu.Lock()
	actors := make([]*ChannelActor, 0, len(h.actors))
	for _, a := range h.actors {
		actors = append(actors, a)
	}
	h.actors = make(map[lnwallet.ChannelID]*ChannelActor)
	h.mu.Unlock()

	for _, a := range actors {
		a.Stop()
	}
}

// NumActors reports how many channel actors are currently running.
func (h *Hub) NumActors() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.actors)
}
