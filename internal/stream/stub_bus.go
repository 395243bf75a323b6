package stream

import (
	"context"
	"sync"

	"github.com/nexusx/pricer/internal/domain"
)

// StubBus records published ticks in memory. Test double; also useful
// for dry runs without a broker.
type StubBus struct {
	mu          sync.Mutex
	ticks       []domain.PriceTick
	subscribers []chan domain.PriceTick
	failWith    error
	closed      bool
}

// NewStubBus builds an empty stub.
func NewStubBus() *StubBus { return &StubBus{} }

// FailWith makes subsequent publishes return err (nil to clear).
func (b *StubBus) FailWith(err error) {
	b.mu.Lock()
	b.failWith = err
	b.mu.Unlock()
}

func (b *StubBus) PublishTick(_ context.Context, tick domain.PriceTick) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}
	b.ticks = append(b.ticks, tick)
	for _, sub := range b.subscribers {
		select {
		case sub <- tick:
		default:
		}
	}
	return nil
}

func (b *StubBus) Subscribe(ctx context.Context) (<-chan domain.PriceTick, error) {
	ch := make(chan domain.PriceTick, 64)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subscribers {
			if sub == ch {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch, nil
}

// Ticks returns a copy of everything published so far.
func (b *StubBus) Ticks() []domain.PriceTick {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.PriceTick, len(b.ticks))
	copy(out, b.ticks)
	return out
}

func (b *StubBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}
