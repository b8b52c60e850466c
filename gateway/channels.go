package gateway

import (
	"fmt"
	"sync"

	"sanctuary/contract"
	"sanctuary/domain"
)

// RoomChannel and HostChannel name the two logical channels a connection may
// hold per session: one per concern.
func RoomChannel(id domain.SessionID) string { return fmt.Sprintf("room:%s", id) }
func HostChannel(id domain.SessionID) string { return fmt.Sprintf("hostctl:%s", id) }

// ChannelTable tracks which connections belong to which logical channel.
// A connection may belong to several channels at once (room + host control)
// but is never double-joined to the same one; Join is idempotent per
// connection.
type ChannelTable struct {
	mu       sync.RWMutex
	channels map[string]map[string]contract.ConnSink // channel -> connID -> sink
}

func NewChannelTable() *ChannelTable {
	return &ChannelTable{channels: make(map[string]map[string]contract.ConnSink)}
}

// Join adds the connection to the channel. Returns false if it was already a
// member.
func (t *ChannelTable) Join(channel string, sink contract.ConnSink) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.channels[channel]
	if !ok {
		members = make(map[string]contract.ConnSink)
		t.channels[channel] = members
	}
	if _, already := members[sink.ConnectionID()]; already {
		return false
	}
	members[sink.ConnectionID()] = sink
	return true
}

// Leave removes the connection from one channel, dropping the channel entry
// once empty to avoid leaking rooms over time.
func (t *ChannelTable) Leave(channel, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.channels[channel]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(t.channels, channel)
	}
}

// LeaveAll removes the connection from every channel it belongs to.
func (t *ChannelTable) LeaveAll(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for channel, members := range t.channels {
		delete(members, connID)
		if len(members) == 0 {
			delete(t.channels, channel)
		}
	}
}

// Members returns the sinks of every connection in the given channels,
// deduplicated by connection identifier. Recipient dedup happens here, by
// connection and not by channel, so a participant sitting in both the room
// and an audio sub-channel still receives each event exactly once.
func (t *ChannelTable) Members(channels ...string) []contract.ConnSink {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]struct{})
	var sinks []contract.ConnSink
	for _, channel := range channels {
		for connID, sink := range t.channels[channel] {
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}
			sinks = append(sinks, sink)
		}
	}
	return sinks
}
