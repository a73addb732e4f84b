package server

import (
	"testing"

	"github.com/labops/coord/internal/database"
	"github.com/labops/coord/internal/stats"
	"github.com/labops/coord/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleTyping(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	su.On("Incr", "ActiveSessions").Times(3)
	cs := newTestCoordServer(t, db, su)

	alice, bob := admitPair(t, cs)
	carol := newTestSession(cs, types.User{Id: 3, Username: "carol"})
	cs.registry.Admit(carol)
	nextMessage(t, carol) // online_users snapshot
	nextMessage(t, alice) // carol online
	nextMessage(t, bob)   // carol online

	cs.handleTyping(alice, &ClientMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Typing:      &Typing{PeerId: 2, Active: true},
	})

	// only the addressed peer sees the indicator, and no response is owed
	msg := nextMessage(t, bob)
	require.NotNil(t, msg.Event, "expected an event message")
	require.NotNil(t, msg.Event.Typing, "expected typing event")
	assert.Equal(t, 1, msg.Event.Typing.UserId, "expected the typist's id")
	assert.True(t, msg.Event.Typing.Active, "expected active flag")

	assertNoMessage(t, alice)
	assertNoMessage(t, carol)
}

func TestHandleTypingOfflinePeer(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	su.On("Incr", "ActiveSessions").Times(1)
	cs := newTestCoordServer(t, db, su)

	alice := newTestSession(cs, types.User{Id: 1, Username: "alice"})
	cs.registry.Admit(alice)
	nextMessage(t, alice)

	// fire-and-forget: nothing queued anywhere, no error
	cs.handleTyping(alice, &ClientMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Typing:      &Typing{PeerId: 9, Active: true},
	})

	assertNoMessage(t, alice)
}
