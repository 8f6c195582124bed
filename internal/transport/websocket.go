// SPDX-License-Identifier: Apache-2.0
package transport

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// wsTransport adapts a *websocket.Conn to rawTransport — the default
// transport per §4.8.
type wsTransport struct {
	conn *websocket.Conn
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// DialWebSocket opens an outgoing WebSocket connection to url and wraps it
// with the given plugin chain.
func DialWebSocket(url string, plugins ...Plugin) (*Connection, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: websocket dial: %w", err)
	}
	return NewConnection(&wsTransport{conn: conn}, plugins...), nil
}

// AcceptWebSocket upgrades an incoming HTTP request to a WebSocket and
// wraps it with the given plugin chain — the incoming-direct route's
// listener handler.
func AcceptWebSocket(w http.ResponseWriter, r *http.Request, plugins ...Plugin) (*Connection, error) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: websocket upgrade: %w", err)
	}
	return NewConnection(&wsTransport{conn: conn}, plugins...), nil
}

func (t *wsTransport) ReadMessage() (Message, error) {
	kind, data, err := t.conn.ReadMessage()
	if err != nil {
		return Message{}, err
	}
	if kind == websocket.TextMessage {
		return Message{IsText: true, Text: string(data)}, nil
	}
	return Message{Data: data}, nil
}

func (t *wsTransport) WriteMessage(msg Message) error {
	if msg.IsText {
		return t.conn.WriteMessage(websocket.TextMessage, []byte(msg.Text))
	}
	return t.conn.WriteMessage(websocket.BinaryMessage, msg.Data)
}

func (t *wsTransport) Close() error { return t.conn.Close() }
