// Package eventstream is an in-memory publish/subscribe channel.
//
// Subscribers receive events on a buffered channel. Publish never blocks: when
// a subscriber's buffer is full the event is dropped for that subscriber only.
// A subscription ends when its context is cancelled, when the returned cancel
// function is called, or when the stream is closed; in all cases the channel
// is closed.
package eventstream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const defaultBuffer = 64

var ErrClosed = errors.New("eventstream: closed")

// Event is one published notification.
type Event[P any] struct {
	ID      ulid.ULID
	Topic   string
	At      time.Time
	Payload P
}

// Filter selects topics a subscriber is interested in. Nil accepts all.
type Filter func(topic string) bool

type subscriber[P any] struct {
	filter Filter
	ch     chan Event[P]
}

// Stream fans events out to subscribers.
type Stream[P any] struct {
	mu     sync.RWMutex
	subs   map[*subscriber[P]]struct{}
	closed bool
	buffer int
	now    func() time.Time
}

func New[P any]() *Stream[P] {
	return &Stream[P]{
		subs:   make(map[*subscriber[P]]struct{}),
		buffer: defaultBuffer,
		now:    time.Now,
	}
}

// Subscribe registers a subscriber. The returned function unsubscribes and is
// safe to call more than once.
func (s *Stream[P]) Subscribe(ctx context.Context, filter Filter) (<-chan Event[P], func(), error) {
	sub := &subscriber[P]{filter: filter, ch: make(chan Event[P], s.buffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, ErrClosed
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			s.remove(sub)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return sub.ch, cancel, nil
}

// Publish delivers payload under topic to every matching subscriber.
func (s *Stream[P]) Publish(topic string, payload P) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	evt := Event[P]{ID: ulid.Make(), Topic: topic, At: s.now(), Payload: payload}
	for sub := range s.subs {
		if sub.filter != nil && !sub.filter(topic) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Close ends every subscription. Publish after Close is a no-op.
func (s *Stream[P]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		close(sub.ch)
	}
	s.subs = nil
}

func (s *Stream[P]) remove(sub *subscriber[P]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	close(sub.ch)
}

// Topics returns a Filter accepting only the given topics.
func Topics(topics ...string) Filter {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return func(topic string) bool {
		_, ok := set[topic]
		return ok
	}
}
