package gateway

import (
	"context"

	"estategate/tools/decode"
	"estategate/tools/errs"
)

// joinHandler admits a room subscription. The participant check against
// the conversation store happens before the membership mutation, never
// during it.
type joinHandler struct{}

func (joinHandler) Type() EventType { return EvtJoinConversation }

func (joinHandler) Handle(ctx context.Context, s *Server, c *Client, f *Frame) error {
	p, err := decode.Payload[JoinPayload](f.Payload)
	if err != nil || p.ConversationID == "" {
		return errs.ErrInvalid.WithDetail("join_conversation needs conversation_id")
	}
	return s.Join(ctx, c, p.ConversationID)
}

type leaveHandler struct{}

func (leaveHandler) Type() EventType { return EvtLeaveConversation }

func (leaveHandler) Handle(_ context.Context, s *Server, c *Client, f *Frame) error {
	p, err := decode.Payload[JoinPayload](f.Payload)
	if err != nil || p.ConversationID == "" {
		return errs.ErrInvalid.WithDetail("leave_conversation needs conversation_id")
	}
	s.rooms.Leave(c.ConnID, p.ConversationID)
	return nil
}

type sendMessageHandler struct{}

func (sendMessageHandler) Type() EventType { return EvtSendMessage }

func (sendMessageHandler) Handle(ctx context.Context, s *Server, c *Client, f *Frame) error {
	p, err := decode.Payload[SendMessagePayload](f.Payload)
	if err != nil {
		return errs.ErrInvalid.Wrap(err)
	}
	_, err = s.relay.Submit(ctx, c, p.ConversationID, p.Body)
	return err
}

type typingStartHandler struct{}

func (typingStartHandler) Type() EventType { return EvtTypingStart }

func (typingStartHandler) Handle(_ context.Context, s *Server, c *Client, f *Frame) error {
	p, err := decode.Payload[TypingPayload](f.Payload)
	if err != nil {
		return errs.ErrInvalid.Wrap(err)
	}
	return s.typing.Start(c, p.ConversationID)
}

type typingStopHandler struct{}

func (typingStopHandler) Type() EventType { return EvtTypingStop }

func (typingStopHandler) Handle(_ context.Context, s *Server, c *Client, f *Frame) error {
	p, err := decode.Payload[TypingPayload](f.Payload)
	if err != nil {
		return errs.ErrInvalid.Wrap(err)
	}
	return s.typing.Stop(c, p.ConversationID)
}

type fetchNotificationsHandler struct{}

func (fetchNotificationsHandler) Type() EventType { return EvtFetchNotifications }

func (fetchNotificationsHandler) Handle(ctx context.Context, s *Server, c *Client, f *Frame) error {
	p, err := decode.Payload[FetchNotificationsPayload](f.Payload)
	if err != nil {
		p = &FetchNotificationsPayload{}
	}
	return s.notifier.DeliverMissed(ctx, c, p.Limit)
}

type pingHandler struct{}

func (pingHandler) Type() EventType { return EvtPing }

func (pingHandler) Handle(_ context.Context, _ *Server, c *Client, _ *Frame) error {
	c.Enqueue(BuildPong())
	return nil
}
