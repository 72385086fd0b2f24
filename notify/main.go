// Package notify fans events out to subscribed channels.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const multiplexerTimeout = 200 * time.Millisecond

type subscriber[E any] struct {
	ch      chan E
	comment string
}

// MultiplexerSender is the sending half of a Multiplexer.
type MultiplexerSender[E any] struct {
	m *Multiplexer[E]
}

// Send delivers e to every subscriber in subscription order. A subscriber that doesn't receive
// within multiplexerTimeout misses e.
func (ms *MultiplexerSender[E]) Send(e E) {
	ms.m.send(e)
}

func NewMultiplexerSender[E any](comment string) (*MultiplexerSender[E], *Multiplexer[E]) {
	m := &Multiplexer[E]{
		comment: comment,
	}
	return &MultiplexerSender[E]{m: m}, m
}

// Multiplexer is the subscribing half. Subscribers must Unsubscribe when they are done.
type Multiplexer[E any] struct {
	comment         string
	subscribersLock sync.Mutex
	subscribers     []subscriber[E]
	current         E
	hasCurrent      bool
}

func (m *Multiplexer[E]) Subscribe(comment string, c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	m.subscribers = append(m.subscribers, subscriber[E]{
		ch:      c,
		comment: comment,
	})
}

func (m *Multiplexer[E]) Unsubscribe(c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	i := slices.IndexFunc(m.subscribers, func(sub subscriber[E]) bool { return sub.ch == c })
	if i == -1 {
		panic("already unsubscribed")
	}
	m.subscribers = slices.Delete(m.subscribers, i, i+1)
}

// Len returns the number of subscribers.
func (m *Multiplexer[E]) Len() int {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	return len(m.subscribers)
}

// Current returns the last event sent.
func (m *Multiplexer[E]) Current() (E, bool) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	return m.current, m.hasCurrent
}

func (m *Multiplexer[E]) send(e E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	m.current, m.hasCurrent = e, true
	for _, sub := range m.subscribers {
		select {
		case sub.ch <- e:
		default:
			timer := time.NewTimer(multiplexerTimeout)
			select {
			case sub.ch <- e:
			case <-timer.C:
				m.timeout(sub, e)
			}
			timer.Stop()
		}
	}
}

func (m *Multiplexer[E]) timeout(sub subscriber[E], e E) {
	zap.S().Warnw("subscriber timed out", "multiplexer", m.comment, "subscriber", sub.comment, "event", e)
}
