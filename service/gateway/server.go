package gateway

import (
	"context"
	"time"

	"estategate/logger"
	"estategate/tools/errs"
	"estategate/tools/safe"
)

// Options wires the gateway core to its collaborators. Auth,
// Conversations, Notifications and Identities are required; Mirror,
// RecentCache and Offline are optional write-through extras.
type Options struct {
	Identities    IdentityProvider
	Conversations ConversationStore
	Notifications NotificationStore
	Mirror        PresenceMirror
	RecentCache   RecentCache
	Offline       OfflineQueue

	JWTSecret string
	JWTAlg    string

	HandshakeTimeout time.Duration
	StoreTimeout     time.Duration
	TypingTTL        time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	WriteTimeout     time.Duration

	SendQueueSize int
	FanoutWorkers int
	FanoutQueue   int
}

func (o *Options) norm() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 3 * time.Second
	}
	if o.TypingTTL <= 0 {
		o.TypingTTL = 6 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.FanoutWorkers <= 0 {
		o.FanoutWorkers = 8
	}
	if o.FanoutQueue <= 0 {
		o.FanoutQueue = 1024
	}
}

// Server owns the gateway core: presence registry, room membership, and
// the stateless transforms around them.
type Server struct {
	opts Options

	auth     *Authenticator
	reg      *Registry
	rooms    *Rooms
	fan      *Fanout
	relay    *Relay
	notifier *Notifier
	typing   *TypingCoordinator
	disp     *Dispatcher

	convs ConversationStore
}

func NewServer(opts Options) *Server {
	opts.norm()

	fan := NewFanout(opts.FanoutWorkers, opts.FanoutQueue)
	reg := NewRegistry()
	rooms := NewRooms()

	s := &Server{
		opts:     opts,
		reg:      reg,
		rooms:    rooms,
		fan:      fan,
		relay:    NewRelay(rooms, opts.Conversations, fan, opts.RecentCache, opts.StoreTimeout),
		notifier: NewNotifier(reg, opts.Notifications, fan, opts.Offline, opts.StoreTimeout),
		typing:   NewTypingCoordinator(rooms, fan, opts.TypingTTL),
		disp:     NewDispatcher(),
		convs:    opts.Conversations,
	}
	s.auth = NewAuthenticator(
		securityOptions(opts.JWTSecret, opts.JWTAlg),
		opts.Identities,
		opts.HandshakeTimeout,
	)

	s.disp.Register(joinHandler{})
	s.disp.Register(leaveHandler{})
	s.disp.Register(sendMessageHandler{})
	s.disp.Register(typingStartHandler{})
	s.disp.Register(typingStopHandler{})
	s.disp.Register(fetchNotificationsHandler{})
	s.disp.Register(pingHandler{})
	return s
}

func (s *Server) Registry() *Registry        { return s.reg }
func (s *Server) Rooms() *Rooms              { return s.rooms }
func (s *Server) Relay() *Relay              { return s.relay }
func (s *Server) Notifier() *Notifier        { return s.notifier }
func (s *Server) Typing() *TypingCoordinator { return s.typing }

// Admit registers an authenticated connection. Ordering matters: the
// connection ack and the online snapshot land on the new connection's
// own queue before identity_online is offered to any peer, so no peer
// can see a live event for an identity missing from its snapshot.
func (s *Server) Admit(c *Client) {
	cameOnline := s.reg.Register(c)

	c.Enqueue(BuildConnectionAck(c.ConnID, c.Identity.ID, s.opts.PingInterval, s.opts.PongTimeout))
	c.Enqueue(BuildOnlineSnapshot(s.reg.Snapshot()))

	if cameOnline {
		s.fan.Broadcast("presence", s.reg.ListAll(), c.ConnID, BuildIdentityOnline(c.Identity))
		s.mirrorOnline(c.Identity.ID)
	}
	logger.Infof("[gateway] connected conn=%s user=%s", c.ConnID, c.Identity.ID)
}

// Teardown removes every trace of a connection: all room subscriptions
// via the reverse index, then the presence entry. Safe to call twice.
func (s *Server) Teardown(c *Client) {
	left := s.rooms.DropConn(c.ConnID)
	gone, wentOffline := s.reg.Deregister(c.ConnID)
	if gone == nil {
		return
	}
	if wentOffline {
		s.fan.Broadcast("presence", s.reg.ListAll(), "", BuildIdentityOffline(c.Identity))
		s.mirrorOffline(c.Identity.ID)
	}
	logger.Infof("[gateway] disconnected conn=%s user=%s rooms=%d", c.ConnID, c.Identity.ID, len(left))
}

// Join runs the authorization check against the conversation store, then
// applies the membership mutation.
func (s *Server) Join(ctx context.Context, c *Client, conversationID string) error {
	if s.reg.Client(c.ConnID) == nil {
		return errs.ErrNotAuthenticated
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	ok, err := s.convs.IsParticipant(sctx, conversationID, c.Identity.ID)
	if err != nil {
		return errs.ErrUnavailable.Wrap(err)
	}
	if !ok {
		return errs.ErrForbidden.WithDetail("not a participant of " + conversationID)
	}

	s.rooms.Join(c, conversationID)
	return nil
}

// HandleFrame dispatches one client event. Errors go back to the
// originating connection only and never interrupt anyone else.
func (s *Server) HandleFrame(ctx context.Context, c *Client, f *Frame) {
	if err := s.disp.Dispatch(ctx, s, c, f); err != nil {
		logger.Debug("[gateway] event error: " + err.Error())
		c.Enqueue(BuildError(err, f.Type))
	}
}

// Close shuts the gateway down: every client gets closed, timers are
// cancelled, the fanout pool drains.
func (s *Server) Close() {
	for _, c := range s.reg.ListAll() {
		s.Teardown(c)
		c.Close()
	}
	s.typing.Shutdown()
	s.fan.Close()
}

func (s *Server) mirrorOnline(identityID string) {
	if s.opts.Mirror == nil {
		return
	}
	m := s.opts.Mirror
	safe.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.StoreTimeout)
		defer cancel()
		if err := m.Online(ctx, identityID); err != nil {
			logger.Warnf("[gateway] presence mirror online failed user=%s: %v", identityID, err)
		}
	})
}

func (s *Server) mirrorOffline(identityID string) {
	if s.opts.Mirror == nil {
		return
	}
	m := s.opts.Mirror
	safe.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.StoreTimeout)
		defer cancel()
		if err := m.Offline(ctx, identityID); err != nil {
			logger.Warnf("[gateway] presence mirror offline failed user=%s: %v", identityID, err)
		}
	})
}
