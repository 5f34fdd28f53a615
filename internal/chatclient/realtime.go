package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	jww "github.com/spf13/jwalterweatherman"

	"crewlink/internal/models"
	"crewlink/internal/ws"
)

// ErrDisconnected is returned by Send while no connection is up.
var ErrDisconnected = errors.New("realtime connection is down")

// Subscription is a handle on a registered event handler.
type Subscription struct {
	once  sync.Once
	close func()
}

// Close unregisters the handler. Calling it more than once is fine.
func (s *Subscription) Close() {
	s.once.Do(s.close)
}

// Realtime keeps one websocket session open to the server, redialing with exponential
// backoff whenever it drops, and dispatches decoded events to subscribers.
type Realtime struct {
	url    string
	token  string
	dialer *websocket.Dialer

	// NewBackOff builds the redial schedule. It is reset after every successful dial.
	NewBackOff func() backoff.BackOff
	// OnConnect runs after every successful dial, e.g. to refetch missed messages.
	OnConnect func(ctx context.Context)

	handlers map[ws.Kind]map[*Subscription]func(ws.Event)
	mu       sync.RWMutex

	conn   *websocket.Conn
	connMu sync.Mutex
}

// NewRealtime builds a client for the websocket endpoint wsURL (e.g.
// ws://localhost:8083/ws).
func NewRealtime(wsURL, token string) *Realtime {
	return &Realtime{
		url:    wsURL,
		token:  token,
		dialer: websocket.DefaultDialer,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 15 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		handlers: make(map[ws.Kind]map[*Subscription]func(ws.Event)),
	}
}

// Subscribe registers fn for events of kind.
func (r *Realtime) Subscribe(kind ws.Kind, fn func(ws.Event)) *Subscription {
	sub := &Subscription{}
	sub.close = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers[kind], sub)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers[kind] == nil {
		r.handlers[kind] = make(map[*Subscription]func(ws.Event))
	}
	r.handlers[kind][sub] = fn
	return sub
}

// Run dials and reads until ctx ends, redialing after every drop.
func (r *Realtime) Run(ctx context.Context) error {
	schedule := backoff.WithContext(r.NewBackOff(), ctx)
	for {
		conn, err := r.dial(ctx)
		if err == nil {
			schedule.Reset()
			if r.OnConnect != nil {
				r.OnConnect(ctx)
			}
			err = r.read(ctx, conn)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := schedule.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		jww.WARN.Printf("realtime connection lost, redialing in %s: %v", wait, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Send writes an event on the current connection.
func (r *Realtime) Send(ev ws.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn == nil {
		return ErrDisconnected
	}
	return r.conn.WriteMessage(websocket.TextMessage, payload)
}

func (r *Realtime) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.token)
	conn, _, err := r.dialer.DialContext(ctx, r.url, header)
	if err != nil {
		return nil, err
	}
	r.connMu.Lock()
	r.conn = conn
	r.connMu.Unlock()
	return conn, nil
}

func (r *Realtime) read(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() {
		r.connMu.Lock()
		if r.conn == conn {
			r.conn = nil
		}
		r.connMu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := ws.Decode(data)
		if err != nil {
			jww.DEBUG.Printf("realtime frame dropped: %v", err)
			continue
		}
		r.dispatch(ev)
	}
}

func (r *Realtime) dispatch(ev ws.Event) {
	r.mu.RLock()
	handlers := make([]func(ws.Event), 0, len(r.handlers[ev.Kind]))
	for _, fn := range r.handlers[ev.Kind] {
		handlers = append(handlers, fn)
	}
	r.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// BindCache keeps cache in step with pushed messages and status updates.
func BindCache(rt *Realtime, cache *Cache) []*Subscription {
	return []*Subscription{
		rt.Subscribe(ws.KindNewMessage, func(ev ws.Event) {
			if p, ok := ev.Payload.(ws.NewMessagePayload); ok {
				cache.Merge([]models.ChatMessage{p.Message})
			}
		}),
		rt.Subscribe(ws.KindMessageStatusUpdate, func(ev ws.Event) {
			if p, ok := ev.Payload.(ws.StatusUpdatePayload); ok {
				cache.SetStatus(p.RoomID, p.MessageID, p.Status)
			}
		}),
	}
}
