package ws

import (
	"time"

	"github.com/okian/ballpark/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithSendBuffer sets the per-viewer outbound buffer size.
func WithSendBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.sendBuffer = size
		}
	}
}

// WithBroadcastBuffer sets the hub's inbound event buffer size.
func WithBroadcastBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.broadcastBuffer = size
		}
	}
}

// WithWriteTimeout sets the per-message write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithReadTimeout sets how long a viewer may stay silent before its
// connection is considered dead. Pings reset it, so it must exceed
// the ping interval.
func WithReadTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.readTimeout = d
		}
	}
}

// WithPingInterval sets how often keepalive pings go out.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithAllowedOrigins restricts the upgrade handshake to the given
// Origin values. "*" or an empty list admits everyone.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		h.allowedOrigins = origins
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
