package cache

import (
	"context"
	"sync"
	"time"

	"tg-digester/internal/domain"
)

// Local реализует блокировки внутри одного процесса. TTL не учитывается.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ domain.Locker = (*Local)(nil)

// NewLocal создаёт пустой набор блокировок.
func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

// TryLock захватывает ключ, если он свободен.
func (l *Local) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
