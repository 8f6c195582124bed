// SPDX-License-Identifier: Apache-2.0
package transport

import "time"

// PluginSet bundles the four standard plugins (§4.8) in the order that
// satisfies NewConnection's wire-ordering requirement: Encryption listed
// last so it decrypts before anything else sees an incoming frame and
// encrypts immediately before an outgoing frame reaches the raw transport.
type PluginSet struct {
	Statistics *Statistics
	Promise    *Promise
	Ping       *PingPong
	Encryption *Encryption
}

// NewPluginSet builds one PluginSet with a fresh Promise/Statistics and an
// Encryption plugin bound to aad (normally the connection's session id),
// uninstalled until the handshake derives a shared key. pingInterval/
// pingTimeout of zero (or less) select the defaults of 20s and 60s. The
// PingPong loop runs only once Attach is called on a Connection, so routes
// that don't want keepalive can skip Attach entirely (e.g. comm-server
// control channels).
func NewPluginSet(aad []byte, pingInterval, pingTimeout time.Duration) *PluginSet {
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	if pingTimeout <= 0 {
		pingTimeout = 60 * time.Second
	}
	return &PluginSet{
		Statistics: NewStatistics(),
		Promise:    NewPromise(),
		Ping:       NewPingPong(pingInterval, pingTimeout),
		Encryption: NewEncryption(aad),
	}
}

// Plugins returns the set in NewConnection's required order.
func (s *PluginSet) Plugins() []Plugin {
	return []Plugin{s.Statistics, s.Promise, s.Ping, s.Encryption}
}
