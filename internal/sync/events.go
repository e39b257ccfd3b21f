package sync

import (
	"log/slog"
	stdsync "sync"

	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
)

// Listener receives engine events synchronously, in emission order.
type Listener func(model.Event)

type subscription struct {
	id int
	fn Listener
}

// bus delivers events to listeners. A panicking listener is logged and
// does not affect the emitter or the other listeners.
type bus struct {
	mu     stdsync.RWMutex
	nextID int
	subs   []subscription
	logger *slog.Logger
}

func (b *bus) subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})

	var once stdsync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *bus) emit(ev model.Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s.fn, ev)
	}
}

func (b *bus) deliver(fn Listener, ev model.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event listener panicked",
				logging.Event(string(ev.Type())),
				slog.String(logging.KeyError, ErrorMessage(r)),
			)
		}
	}()
	fn(ev)
}
