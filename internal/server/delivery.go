package server

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/labops/coord/internal/database"
	"github.com/labops/coord/internal/types"
)

// handleSend runs the two-phase delivery protocol: an optimistic echo to
// the sender and any online receiver sessions first, then the durable
// write, then a confirmation carrying the local->durable id mapping. On a
// failed write both sides are told to discard the optimistic copy.
func (cs *CoordServer) handleSend(s *Session, msg *ClientMessage) {
	req := msg.Send
	if uuid.Validate(req.LocalId) != nil || req.ReceiverId == 0 || req.Body == "" {
		s.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	kind := req.Kind
	if kind == "" {
		kind = types.MessageKindText
	}
	if kind != types.MessageKindText && kind != types.MessageKindAttachment {
		s.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	receivers := cs.registry.SessionsFor(req.ReceiverId)

	optimistic := types.Message{
		LocalId:    req.LocalId,
		SenderId:   s.user.Id,
		ReceiverId: req.ReceiverId,
		Body:       req.Body,
		Kind:       kind,
		Delivered:  len(receivers) > 0,
		CreatedAt:  msg.Timestamp,
	}

	// message_sent must be queued before the durable write starts so the
	// sender observes it strictly before the confirmation
	s.queueMessage(newEvent(&Event{MessageSent: &optimistic}))
	for _, rs := range receivers {
		rs.queueMessage(newEvent(&Event{NewMessage: &optimistic}))
	}

	saved, err := cs.db.CreateMessage(database.CreateMessageParams{
		SenderId:   s.user.Id,
		ReceiverId: req.ReceiverId,
		Body:       req.Body,
		Kind:       kind,
		Delivered:  len(receivers) > 0,
		CreatedAt:  msg.Timestamp,
	})
	if err != nil {
		cs.log.Println("error saving message:", err)
		cs.stats.Incr("MessagesFailed")

		failed := newEvent(&Event{
			MessageFailed: &MessageFailed{
				LocalId: req.LocalId,
				Reason:  "message not sent",
			},
		})
		s.queueMessage(failed)
		for _, rs := range receivers {
			rs.queueMessage(failed)
		}
		return
	}

	cs.stats.Incr("MessagesDelivered")
	cs.confirmMessage(req.LocalId, saved)
}

// confirmMessage fans the confirmation out to every session of both
// parties so all the sender's and receiver's devices converge.
func (cs *CoordServer) confirmMessage(localId string, saved database.Message) {
	confirmed := newEvent(&Event{
		MessageConfirmed: &MessageConfirmed{
			LocalId: localId,
			Message: toTypesMessage(saved, localId),
		},
	})

	for _, ss := range cs.registry.SessionsFor(saved.SenderId) {
		ss.queueMessage(confirmed)
	}
	for _, rs := range cs.registry.SessionsFor(saved.ReceiverId) {
		rs.queueMessage(confirmed)
	}
}

// SendDirect is the synchronous fallback for senders without a live
// connection. It skips the optimistic phase and returns the confirmed
// message, but still pushes to the receiver's live sessions.
func (cs *CoordServer) SendDirect(senderId int, localId string, receiverId int, body, kind string) (types.Message, error) {
	if uuid.Validate(localId) != nil || receiverId == 0 || body == "" {
		return types.Message{}, fmt.Errorf("%w: invalid send request", ErrDeliveryFailed)
	}
	if kind == "" {
		kind = types.MessageKindText
	}
	if kind != types.MessageKindText && kind != types.MessageKindAttachment {
		return types.Message{}, fmt.Errorf("%w: unknown message kind %q", ErrDeliveryFailed, kind)
	}

	receivers := cs.registry.SessionsFor(receiverId)

	saved, err := cs.db.CreateMessage(database.CreateMessageParams{
		SenderId:   senderId,
		ReceiverId: receiverId,
		Body:       body,
		Kind:       kind,
		Delivered:  len(receivers) > 0,
		CreatedAt:  Now(),
	})
	if err != nil {
		cs.stats.Incr("MessagesFailed")
		return types.Message{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	cs.stats.Incr("MessagesDelivered")

	final := toTypesMessage(saved, localId)
	for _, rs := range receivers {
		rs.queueMessage(newEvent(&Event{NewMessage: &final}))
	}
	cs.confirmMessage(localId, saved)

	return final, nil
}

// MissedMessages serves the pull path a reconnecting client uses to catch
// up; the core never queues pushes for offline recipients.
func (cs *CoordServer) MissedMessages(userId, sinceId, limit int) ([]types.Message, error) {
	dbMsgs, err := cs.db.GetMessagesForUser(userId, sinceId, limit)
	if err != nil {
		return nil, err
	}

	messages := make([]types.Message, 0, len(dbMsgs))
	for _, m := range dbMsgs {
		messages = append(messages, toTypesMessage(m, ""))
	}
	return messages, nil
}

func (cs *CoordServer) handleMarkRead(s *Session, msg *ClientMessage) {
	m, err := cs.db.MarkMessageRead(msg.MarkRead.MessageId, s.user.Id)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			s.queueMessage(ErrNotFoundResponse(msg.Id))
		case errors.Is(err, database.ErrNotAuthorized):
			s.queueMessage(ErrNotAuthorizedResponse(msg.Id))
		default:
			cs.log.Println("MarkMessageRead:", err)
			s.queueMessage(ErrInternalError(msg.Id))
		}
		return
	}

	s.queueMessage(NoErrOK(msg.Id, nil))

	readEv := newEvent(&Event{
		MessageRead: &MessageRead{
			MessageId: m.Id,
			ReaderId:  s.user.Id,
		},
	})
	for _, ss := range cs.registry.SessionsFor(m.SenderId) {
		ss.queueMessage(readEv)
	}
}

func toTypesMessage(m database.Message, localId string) types.Message {
	return types.Message{
		Id:         m.Id,
		LocalId:    localId,
		SenderId:   m.SenderId,
		ReceiverId: m.ReceiverId,
		Body:       m.Body,
		Kind:       m.Kind,
		Delivered:  m.Delivered,
		Read:       m.Read,
		CreatedAt:  m.CreatedAt,
	}
}
