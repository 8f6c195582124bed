// SPDX-License-Identifier: Apache-2.0
package transport

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	bytesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "onestore_transport_bytes_total",
		Help: "Bytes transferred over transport connections.",
	}, []string{"direction"})
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "onestore_transport_messages_total",
		Help: "Messages transferred over transport connections.",
	}, []string{"direction"})
)

func init() {
	prometheus.MustRegister(bytesCounter, messagesCounter)
}

// Statistics counts bytes/messages in each direction and tracks the last
// activity timestamp, per §4.8.
type Statistics struct {
	BytesIn, BytesOut       int64
	MessagesIn, MessagesOut int64
	lastActivity            int64 // unix nanos, atomic
}

func NewStatistics() *Statistics { return &Statistics{} }

func (s *Statistics) Name() string { return "statistics" }

func (s *Statistics) touch() { atomic.StoreInt64(&s.lastActivity, time.Now().UnixNano()) }

// LastActivity returns the time of the most recent traffic in either
// direction.
func (s *Statistics) LastActivity() time.Time {
	return time.Unix(0, atomic.LoadInt64(&s.lastActivity))
}

func messageSize(msg Message) int64 {
	if msg.IsText {
		return int64(len(msg.Text))
	}
	return int64(len(msg.Data))
}

func (s *Statistics) Incoming(msg Message) (Message, bool) {
	atomic.AddInt64(&s.BytesIn, messageSize(msg))
	atomic.AddInt64(&s.MessagesIn, 1)
	bytesCounter.WithLabelValues("in").Add(float64(messageSize(msg)))
	messagesCounter.WithLabelValues("in").Inc()
	s.touch()
	return msg, true
}

func (s *Statistics) Outgoing(msg Message) (Message, bool) {
	atomic.AddInt64(&s.BytesOut, messageSize(msg))
	atomic.AddInt64(&s.MessagesOut, 1)
	bytesCounter.WithLabelValues("out").Add(float64(messageSize(msg)))
	messagesCounter.WithLabelValues("out").Inc()
	s.touch()
	return msg, true
}

func (s *Statistics) Closed(reason string, origin CloseOrigin) {}
