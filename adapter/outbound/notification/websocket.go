package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

const closeWriteWait = time.Second

// WebSocketSource subscribes to a notification endpoint sending one envelope per frame
type WebSocketSource struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger outbound.Logger
}

var _ outbound.NotificationSource = (*WebSocketSource)(nil)

func NewWebSocketSource(url string, header http.Header, logger outbound.Logger) *WebSocketSource {
	return &WebSocketSource{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *WebSocketSource) Connect(ctx context.Context) (outbound.NotificationStream, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, s.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %v", model.ErrTransport, s.url, err)
	}

	s.logger.Info("Connected to notification endpoint", "url", s.url)
	return &webSocketStream{conn: conn}, nil
}

type webSocketStream struct {
	conn *websocket.Conn
}

func (s *webSocketStream) Next(ctx context.Context) (*model.Notification, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: reading notification: %v", model.ErrTransport, err)
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		return decodeEnvelope(data)
	}
}

func (s *webSocketStream) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWriteWait))
	return s.conn.Close()
}
