package backend

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/JerryLinyx/PressGO/models"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EventBus carries auth state changes from the driver that caused them to
// every subscriber.
type EventBus interface {
	Publish(ctx context.Context, ev models.AuthEvent) error
	Subscribe() (<-chan models.AuthEvent, func())
}

// Broker fans events out to in-process subscribers. A subscriber whose
// buffer is full misses the event; publishers never block.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]chan models.AuthEvent
	next   int
	buffer int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{subs: make(map[int]chan models.AuthEvent), buffer: buffer}
}

func (b *Broker) Publish(_ context.Context, ev models.AuthEvent) error {
	b.deliver(ev)
	return nil
}

func (b *Broker) deliver(ev models.AuthEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Broker) Subscribe() (<-chan models.AuthEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan models.AuthEvent, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers reports how many subscriptions are open.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// RedisBroker relays events through a redis channel so every instance of
// the app sees sign-ins and sign-outs made through any other.
type RedisBroker struct {
	local   *Broker
	rdb     *redis.Client
	channel string
	pubsub  *redis.PubSub
	log     *zap.SugaredLogger
	done    chan struct{}
}

func NewRedisBroker(ctx context.Context, rdb *redis.Client, channel string, log *zap.SugaredLogger) (*RedisBroker, error) {
	pubsub := rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	b := &RedisBroker{
		local:   NewBroker(0),
		rdb:     rdb,
		channel: channel,
		pubsub:  pubsub,
		log:     log,
		done:    make(chan struct{}),
	}
	go b.relay()
	return b, nil
}

func (b *RedisBroker) relay() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		var ev models.AuthEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			b.log.Warnw("dropping malformed auth event", "channel", msg.Channel, "error", err)
			continue
		}
		b.local.deliver(ev)
	}
}

func (b *RedisBroker) Publish(ctx context.Context, ev models.AuthEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBroker) Subscribe() (<-chan models.AuthEvent, func()) {
	return b.local.Subscribe()
}

func (b *RedisBroker) Close() error {
	err := b.pubsub.Close()
	<-b.done
	return err
}
