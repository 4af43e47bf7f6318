// Package realtime keeps the client in sync with the store: a websocket
// push stream per user and, as a fallback, fixed-interval polling.
package realtime

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-client/internal/logger"
	"chat-client/internal/models"
)

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// Subscriber reads ChatEvents from /ws/users/:id and reconnects on failure.
type Subscriber struct {
	url        string
	header     http.Header
	handle     func(models.ChatEvent)
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	onConnect  func()
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithBackoff bounds the reconnect delay.
func WithBackoff(lo, hi time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		s.minBackoff = lo
		s.maxBackoff = hi
	}
}

// WithToken sends a bearer token on the handshake.
func WithToken(token string) SubscriberOption {
	return func(s *Subscriber) {
		if token != "" {
			s.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// OnConnect is called after every successful handshake, so callers can
// resynchronise state missed while disconnected.
func OnConnect(fn func()) SubscriberOption {
	return func(s *Subscriber) { s.onConnect = fn }
}

// StreamURL turns the store base URL into the user's websocket endpoint.
func StreamURL(baseURL, userID string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws/users/" + url.PathEscape(userID)
}

// NewSubscriber streams userID's events from the store at baseURL into handle.
func NewSubscriber(baseURL, userID string, handle func(models.ChatEvent), opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		url:        StreamURL(baseURL, userID),
		header:     http.Header{},
		handle:     handle,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled, reconnecting with capped exponential backoff.
func (s *Subscriber) Run(ctx context.Context) error {
	attempt := 0
	for {
		connected, err := s.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			attempt = 0
		}
		delay := backoff(s.minBackoff, s.maxBackoff, attempt)
		attempt++
		logger.Warn("event stream disconnected",
			zap.String("url", s.url),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Subscriber) stream(ctx context.Context) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	logger.Debug("event stream connected", zap.String("url", s.url))
	if s.onConnect != nil {
		s.onConnect()
	}
	for {
		var ev models.ChatEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return true, err
		}
		if ev.Type == "" {
			continue
		}
		s.handle(ev)
	}
}

func backoff(lo, hi time.Duration, attempt int) time.Duration {
	d := lo
	for i := 0; i < attempt && d < hi; i++ {
		d *= 2
	}
	if d > hi {
		return hi
	}
	return d
}
