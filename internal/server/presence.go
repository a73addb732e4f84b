package server

import "github.com/labops/coord/internal/types"

// Presence fan-out is advisory: no acknowledgment is required and no
// operation may depend on another party's presence being accurate.

func (r *Registry) notifyOnline(user types.User, skip *Session) {
	msg := newEvent(&Event{UserOnline: &user})
	msg.SkipSession = skip
	r.Broadcast(msg)
}

func (r *Registry) notifyOffline(user types.User) {
	r.Broadcast(newEvent(&Event{UserOffline: &user}))
}

// handleTyping relays a typing indicator to the peer's sessions. It is
// fire-and-forget: no response, no ordering guarantee relative to messages.
func (cs *CoordServer) handleTyping(s *Session, msg *ClientMessage) {
	ev := newEvent(&Event{
		Typing: &TypingEvent{
			UserId: s.user.Id,
			Active: msg.Typing.Active,
		},
	})

	for _, peer := range cs.registry.SessionsFor(msg.Typing.PeerId) {
		peer.queueMessage(ev)
	}
}
