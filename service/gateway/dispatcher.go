package gateway

import (
	"context"
	"fmt"
)

// Handler processes one client event type.
type Handler interface {
	Type() EventType
	Handle(ctx context.Context, s *Server, c *Client, f *Frame) error
}

type Dispatcher struct {
	handlers map[EventType]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventType]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Type()] = h }

func (d *Dispatcher) Dispatch(ctx context.Context, s *Server, c *Client, f *Frame) error {
	h, ok := d.handlers[f.Type]
	if !ok {
		return fmt.Errorf("no handler for type=%s", f.Type)
	}
	return h.Handle(ctx, s, c, f)
}

func (d *Dispatcher) GetHandler(t EventType) Handler {
	return d.handlers[t]
}
