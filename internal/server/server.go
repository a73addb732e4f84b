package server

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/labops/coord/internal/database"
	"github.com/labops/coord/internal/stats"
)

// ErrDeliveryFailed signals that the durable write behind a message send
// failed after any optimistic echo already went out.
var ErrDeliveryFailed = errors.New("message delivery failed")

const sweepInterval = 30 * time.Second

// CoordServer owns the connection registry, the edit-presence tracker and
// every durable-state operation reachable from a session. The store is the
// sole point of mutual exclusion for state transitions; the server holds no
// locks across store round-trips.
type CoordServer struct {
	log      *log.Logger
	db       database.CoordRepository
	stats    stats.StatsProvider
	registry *Registry
	editing  *EditTracker
	maxIdle  time.Duration
	now      func() time.Time
	stop     chan struct{}
	done     chan struct{}
}

func NewCoordServer(logger *log.Logger, db database.CoordRepository, st stats.StatsProvider, maxIdle, editTTL time.Duration) (*CoordServer, error) {
	cs := &CoordServer{
		log:     logger,
		db:      db,
		stats:   st,
		maxIdle: maxIdle,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	cs.registry = NewRegistry(logger, st)
	cs.editing = NewEditTracker(editTTL)

	for _, metric := range []string{
		"ActiveSessions",
		"MessagesDelivered",
		"MessagesFailed",
		"ClaimsRejected",
		"ConflictsDetected",
		"HelpRequests",
	} {
		st.RegisterMetric(metric)
	}

	return cs, nil
}

func (cs *CoordServer) Registry() *Registry {
	return cs.registry
}

// dispatch is the single intake point for a connection. Variant fields of
// the envelope map one-to-one onto operation handlers.
func (cs *CoordServer) dispatch(s *Session, msg *ClientMessage) {
	switch {
	case msg.Heartbeat != nil:
		s.touch()
	case msg.Send != nil:
		cs.handleSend(s, msg)
	case msg.MarkRead != nil:
		cs.handleMarkRead(s, msg)
	case msg.Typing != nil:
		cs.handleTyping(s, msg)
	case msg.TaskCreate != nil:
		cs.handleTaskCreate(s, msg)
	case msg.TaskUpdate != nil:
		cs.handleTaskUpdate(s, msg)
	case msg.TaskDelete != nil:
		cs.handleTaskDelete(s, msg)
	case msg.TaskMove != nil:
		cs.handleTaskMove(s, msg)
	case msg.Editing != nil:
		cs.handleStartEditing(s, msg)
	case msg.StopEditing != nil:
		cs.handleStopEditing(s, msg)
	default:
		s.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

// Run drives the liveness sweeps: idle sessions past maxIdle and expired
// edit-presence entries. Both are silent cleanups, not user-visible errors.
func (cs *CoordServer) Run() {
	heartbeatTicker := time.NewTicker(sweepInterval)
	editTicker := time.NewTicker(time.Second)
	defer func() {
		heartbeatTicker.Stop()
		editTicker.Stop()
	}()

	for {
		select {
		case <-heartbeatTicker.C:
			cs.registry.Sweep(cs.maxIdle, cs.now())
		case <-editTicker.C:
			cs.sweepEditing()
		case <-cs.stop:
			cs.log.Println("closing sessions")
			cs.registry.CloseAll()
			close(cs.done)
			return
		}
	}
}

func (cs *CoordServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")
	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
