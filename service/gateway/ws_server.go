package gateway

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"estategate/logger"
	"estategate/middleware/security"
	"estategate/tools/errs"
	"estategate/tools/ids"
	"estategate/tools/safe"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin is enforced by the gin middleware in front of this handler.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS is the websocket entry point. The credential is verified
// before the upgrade: a rejected handshake is an HTTP 401 and the
// connection never appears in presence.
func (s *Server) HandleWS(c *gin.Context) {
	token := security.TokenFrom(c)
	if token == "" {
		// browsers cannot set headers on websocket dials
		token = c.Query("token")
	}

	hctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.HandshakeTimeout)
	defer cancel()

	identity, err := s.auth.Authenticate(hctx, token)
	if err != nil {
		logger.Infof("[ws] handshake rejected: %v", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, errs.CodeOf(err))
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), identity, ws, s.opts.SendQueueSize)

	ws.SetReadLimit(64 << 10)
	_ = ws.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	})

	s.Admit(client)
	safe.Go(func() { client.writePump(s.opts.WriteTimeout, s.opts.PingInterval) })

	s.readLoop(client, ws)

	// teardown runs on every exit path, explicit leave or not
	s.Teardown(client)
	client.Close()
}

func (s *Server) readLoop(client *Client, ws *websocket.Conn) {
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s err=%v", client.ConnID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", client.ConnID, rerr)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", client.ConnID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad frame conn=%s err=%v sample=%q", client.ConnID, perr, sample)
			client.Enqueue(BuildError(errs.ErrInvalid.Wrap(perr), ""))
			continue
		}

		if s.disp.GetHandler(frame.Type) == nil {
			client.Enqueue(BuildError(errs.ErrInvalid.WithDetail("unknown event "+string(frame.Type)), frame.Type))
			continue
		}

		// a connection's own events apply in the order it sent them
		s.HandleFrame(context.Background(), client, frame)
	}
}
