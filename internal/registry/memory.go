package registry

import (
	"context"
	"sync"
	"time"

	"github.com/localdns/syncd/internal/dnserrors"
	"github.com/localdns/syncd/internal/dnsrecord"
)

// Memory is an in-process Registry used by engine and reconciler tests. It
// honors the same lock-ordering contract as EtcdRegistry -- canonical key
// order, reverse-order release -- so tests exercising mutual exclusion or
// deadlock freedom do not need a live etcd cluster.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]byte // key -> encoded value
	locks   map[string]*sync.Mutex
}

// NewMemory returns an empty Memory registry.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string][]byte),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (m *Memory) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func (m *Memory) Register(ctx context.Context, intent dnsrecord.Intent) error {
	value, err := EncodeValue(intent)
	if err != nil {
		return err
	}
	key := KeyForName("/records", intent.Record.Name)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *Memory) Remove(ctx context.Context, intent dnsrecord.Intent) error {
	key := KeyForName("/records", intent.Record.Name)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) List(ctx context.Context) ([]dnsrecord.Intent, error) {
	m.mu.Lock()
	snapshot := make(map[string][]byte, len(m.entries))
	for k, v := range m.entries {
		snapshot[k] = v
	}
	m.mu.Unlock()

	out := make([]dnsrecord.Intent, 0, len(snapshot))
	for k, v := range snapshot {
		intent, err := DecodeValue("/records", k, v)
		if err != nil {
			continue
		}
		out = append(out, intent)
	}
	return out, nil
}

// LockTransaction acquires the real *sync.Mutex for each canonical key in
// order, polling TryLock until it succeeds or ctx is done. There is no lease
// TTL in the in-memory fake -- a caller that forgets to release wedges every
// future acquisition of the same key, which is the point: it makes a broken
// release path visible immediately instead of masking it behind a lease
// expiry.
func (m *Memory) LockTransaction(ctx context.Context, keys ...string) (Unlock, error) {
	ordered := canonicalLockKeys(keys)
	held := make([]*sync.Mutex, 0, len(ordered))

	for _, k := range ordered {
		l := m.lockFor(LockKey(k))
		if !pollTryLock(ctx, l) {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].Unlock()
			}
			return nil, dnserrors.LockTimeoutError(k, ctx.Err())
		}
		held = append(held, l)
	}

	return func(ctx context.Context) error {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
		return nil
	}, nil
}

// pollTryLock attempts l.TryLock in a tight retry loop until it succeeds or
// ctx is done, mirroring the retry-until-timeout shape of the real lock
// transaction without needing a lease.
func pollTryLock(ctx context.Context, l *sync.Mutex) bool {
	for {
		if l.TryLock() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Millisecond):
		}
	}
}
