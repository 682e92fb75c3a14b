// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"lightshow/internal/command"
)

const wsWriteTimeout = 2 * time.Second

// WSLink talks to the fixture firmware over a websocket, one JSON text
// message per command.
type WSLink struct {
	url    string
	dialer *websocket.Dialer
	conn   *websocket.Conn
}

func NewWSLink(url string) *WSLink {
	return &WSLink{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

func (l *WSLink) Open(ctx context.Context) error {
	conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", l.url, err)
	}
	l.conn = conn

	// The firmware never talks back, but reading is how close frames and
	// pings get processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// Write sends the frame's servo and LED commands as separate messages.
func (l *WSLink) Write(_ context.Context, f command.Frame) error {
	if l.conn == nil {
		return fmt.Errorf("websocket %s is not open", l.url)
	}
	msgs, err := f.Messages()
	if err != nil {
		return err
	}
	if err := l.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	for _, m := range msgs {
		if err := l.conn.WriteMessage(websocket.TextMessage, m); err != nil {
			return fmt.Errorf("failed to write to %s: %w", l.url, err)
		}
	}
	return nil
}

func (l *WSLink) Close() error {
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}

var _ Link = (*WSLink)(nil)
