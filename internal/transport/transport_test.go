// SPDX-License-Identifier: Apache-2.0
package transport

import (
	"encoding/json"
	"testing"
	"time"
)

// pipeTransport is an in-memory rawTransport test double: writes on one end
// are readable on the other, wired up in pairs by newPipe.
type pipeTransport struct {
	out chan Message
	in  chan Message
}

func newPipe() (*pipeTransport, *pipeTransport) {
	a := make(chan Message, 64)
	b := make(chan Message, 64)
	return &pipeTransport{out: a, in: b}, &pipeTransport{out: b, in: a}
}

func (p *pipeTransport) ReadMessage() (Message, error) {
	msg, ok := <-p.in
	if !ok {
		return Message{}, errClosedPipe
	}
	return msg, nil
}

func (p *pipeTransport) WriteMessage(msg Message) error {
	p.out <- msg
	return nil
}

func (p *pipeTransport) Close() error {
	return nil
}

type closedPipeErr struct{}

func (closedPipeErr) Error() string { return "pipe closed" }

var errClosedPipe = closedPipeErr{}

func TestPlainPassThroughWithoutEncryption(t *testing.T) {
	clientRaw, serverRaw := newPipe()
	serverPromise := NewPromise()
	server := NewConnection(serverRaw, serverPromise)
	client := NewConnection(clientRaw)
	defer client.Close("test done")
	defer server.Close("test done")

	if err := client.WriteMessage(Message{IsText: true, Text: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := serverPromise.ReadString(time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
}

func TestPromiseTypedReads(t *testing.T) {
	clientRaw, serverRaw := newPipe()
	serverPromise := NewPromise()
	server := NewConnection(serverRaw, serverPromise)
	client := NewConnection(clientRaw)
	defer client.Close("test done")
	defer server.Close("test done")

	type envelope struct {
		Command string `json:"command"`
		Value   int    `json:"value"`
	}
	raw, _ := json.Marshal(envelope{Command: "greet", Value: 42})
	if err := client.WriteMessage(Message{IsText: true, Text: string(raw)}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got envelope
	if err := serverPromise.ReadTypedJSON(time.Second, "greet", &got); err != nil {
		t.Fatalf("ReadTypedJSON: %v", err)
	}
	if got.Value != 42 {
		t.Fatalf("got value %d, want 42", got.Value)
	}

	if err := client.WriteMessage(Message{Data: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	bin, err := serverPromise.ReadBinary(time.Second)
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	if len(bin) != 3 || bin[0] != 1 {
		t.Fatalf("got %v, want [1 2 3]", bin)
	}
}

func TestStatisticsCountsBothDirections(t *testing.T) {
	clientRaw, serverRaw := newPipe()
	serverStats := NewStatistics()
	serverPromise := NewPromise()
	server := NewConnection(serverRaw, serverStats, serverPromise)
	clientStats := NewStatistics()
	client := NewConnection(clientRaw, clientStats)
	defer client.Close("test done")
	defer server.Close("test done")

	if err := client.WriteMessage(Message{IsText: true, Text: "abcde"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := serverPromise.ReadString(time.Second); err != nil {
		t.Fatalf("read: %v", err)
	}

	if clientStats.MessagesOut != 1 || clientStats.BytesOut != 5 {
		t.Fatalf("client stats = %+v", clientStats)
	}
	// Incoming runs last-to-first, so the server's Promise (listed last) sees
	// the message before Statistics does; poll briefly for the counters.
	deadline := time.Now().Add(time.Second)
	for serverStats.MessagesIn == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if serverStats.MessagesIn != 1 || serverStats.BytesIn != 5 {
		t.Fatalf("server stats = %+v", serverStats)
	}
}

func TestEncryptionRoundTrip(t *testing.T) {
	clientRaw, serverRaw := newPipe()
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}

	clientEnc := NewEncryption([]byte("conn-1"))
	clientEnc.Install(key)
	client := NewConnection(clientRaw, clientEnc)

	serverEnc := NewEncryption([]byte("conn-1"))
	serverEnc.Install(key)
	serverPromise := NewPromise()
	server := NewConnection(serverRaw, serverEnc, serverPromise)
	defer client.Close("test done")
	defer server.Close("test done")

	if err := client.WriteMessage(Message{IsText: true, Text: "secret payload"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := serverPromise.ReadString(time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "secret payload" {
		t.Fatalf("got %q, want %q", got, "secret payload")
	}
}

func TestPingPongNotDeliveredToPromise(t *testing.T) {
	clientRaw, serverRaw := newPipe()
	serverPing := NewPingPong(20*time.Millisecond, 2*time.Second)
	serverPromise := NewPromise()
	// Incoming runs last-to-first, so PingPong (listed last) intercepts
	// ping/pong frames before Promise ever sees them.
	server := NewConnection(serverRaw, serverPromise, serverPing)
	serverPing.Attach(server)
	clientPing := NewPingPong(time.Hour, time.Hour) // passive: only replies
	client := NewConnection(clientRaw, clientPing)
	clientPing.Attach(client)
	defer client.Close("test done")
	defer server.Close("test done")

	if err := client.WriteMessage(Message{IsText: true, Text: "real message"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := serverPromise.ReadString(time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "real message" {
		t.Fatalf("got %q, want real message", got)
	}

	// Give the server's 20ms ping loop time to exchange pings with the
	// client; the client's pong replies must not show up as a delivered
	// Promise message on the server.
	time.Sleep(100 * time.Millisecond)
	if _, found := serverPromise.popMatching(func(Message) bool { return true }); found {
		t.Fatalf("unexpected extra message in server promise queue")
	}
}
