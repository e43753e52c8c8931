package bus

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Message is one delivery: the topic key it was published under and the
// payload.
type Message[K comparable, M any] struct {
	Key     K
	Message M
}

// Publisher publishes to a fixed key.
type Publisher[M any] func(ctx context.Context, msg M)

// Subscriber opens a subscription bound to keys chosen in advance.
type Subscriber[K comparable, M any] func(ctx context.Context) <-chan Message[K, M]

// Bus is an in-process publish/subscribe exchange keyed by topic. A single
// dispatcher preserves publish order, fanning each message out to the global
// subscribers and then the key's subscribers, blocking on every channel
// until it accepts or the context ends.
type Bus[K comparable, M any] struct {
	log   *zap.Logger
	ready chan struct{}

	ch         chan Message[K, M]
	keySubs    *xsync.MapOf[K, map[chan Message[K, M]]struct{}]
	globalSubs *xsync.MapOf[chan Message[K, M], struct{}]
}

func NewBus[K comparable, M any](log *zap.Logger) *Bus[K, M] {
	return &Bus[K, M]{
		log:        log,
		ready:      make(chan struct{}),
		ch:         make(chan Message[K, M]),
		keySubs:    xsync.NewMapOf[K, map[chan Message[K, M]]struct{}](),
		globalSubs: xsync.NewMapOf[chan Message[K, M], struct{}](),
	}
}

func (b *Bus[K, M]) Start(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-b.ch:
				b.dispatch(ctx, msg)
			}
		}
	}()
	close(b.ready)
	return nil
}

func (b *Bus[K, M]) Ready() <-chan struct{} {
	return b.ready
}

func (b *Bus[K, M]) Publish(ctx context.Context, key K, msg M) {
	select {
	case <-ctx.Done():
	case b.ch <- Message[K, M]{key, msg}:
	}
}

func (b *Bus[K, M]) CreatePublisher(key K) Publisher[M] {
	return func(ctx context.Context, msg M) {
		b.Publish(ctx, key, msg)
	}
}

func (b *Bus[K, M]) CreateSubscriber(key ...K) Subscriber[K, M] {
	return func(ctx context.Context) <-chan Message[K, M] {
		return b.Subscribe(ctx, key...)
	}
}

func (b *Bus[K, M]) dispatch(ctx context.Context, msg Message[K, M]) {
	b.globalSubs.Range(func(sub chan Message[K, M], _ struct{}) bool {
		select {
		case <-ctx.Done():
			return false
		case sub <- msg:
		}
		return true
	})
	subs, ok := b.keySubs.Load(msg.Key)
	if !ok {
		return
	}
	for sub := range subs {
		select {
		case <-ctx.Done():
			return
		case sub <- msg:
		}
	}
}

// Subscribe delivers messages published under any of the given keys until
// the context ends; with no keys it delivers everything. The returned
// channel is unbuffered and closed on cancellation.
func (b *Bus[K, M]) Subscribe(ctx context.Context, key ...K) <-chan Message[K, M] {
	ch := make(chan Message[K, M])
	if len(key) == 0 {
		b.globalSubs.Store(ch, struct{}{})
		go func() {
			<-ctx.Done()
			b.globalSubs.Delete(ch)
			close(ch)
		}()
		return ch
	}
	for _, k := range key {
		b.keySubs.Compute(k, func(val map[chan Message[K, M]]struct{}, ok bool) (map[chan Message[K, M]]struct{}, bool) {
			// The dispatcher ranges over these sets without a lock; mutations
			// swap in a fresh copy instead of editing in place.
			next := make(map[chan Message[K, M]]struct{}, len(val)+1)
			for sub := range val {
				next[sub] = struct{}{}
			}
			next[ch] = struct{}{}
			return next, false
		})
	}
	go func() {
		<-ctx.Done()
		for _, k := range key {
			b.keySubs.Compute(k, func(val map[chan Message[K, M]]struct{}, ok bool) (map[chan Message[K, M]]struct{}, bool) {
				next := make(map[chan Message[K, M]]struct{}, len(val))
				for sub := range val {
					if sub != ch {
						next[sub] = struct{}{}
					}
				}
				return next, len(next) == 0
			})
		}
		close(ch)
	}()
	return ch
}
