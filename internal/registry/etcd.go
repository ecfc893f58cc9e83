package registry

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/localdns/syncd/internal/dnserrors"
	"github.com/localdns/syncd/internal/dnsrecord"
)

// EtcdRegistry is the production Registry backed by an etcd cluster. It
// holds no local cache -- every call is a round trip -- since the sync loop
// already bounds call frequency to the reconciliation tick.
type EtcdRegistry struct {
	client        *clientv3.Client
	prefix        string
	lockTTL       time.Duration
	lockTimeout   time.Duration
	retryInterval time.Duration
}

// EtcdOptions configures a new EtcdRegistry.
type EtcdOptions struct {
	Endpoints     []string
	DialTimeout   time.Duration
	Prefix        string
	LockTTL       time.Duration
	LockTimeout   time.Duration
	RetryInterval time.Duration
}

// NewEtcdRegistry dials endpoints and returns a ready EtcdRegistry.
func NewEtcdRegistry(opts EtcdOptions) (*EtcdRegistry, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: opts.DialTimeout,
	})
	if err != nil {
		return nil, dnserrors.ConnectionError(err)
	}
	return newEtcdRegistry(cli, opts), nil
}

// NewEtcdRegistryWithClient wraps an already-constructed clientv3.Client --
// used when the caller has built the client itself (e.g. with a TLS config
// from internal/tlsutil) so dial options stay in one place.
func NewEtcdRegistryWithClient(cli *clientv3.Client, opts EtcdOptions) *EtcdRegistry {
	return newEtcdRegistry(cli, opts)
}

func newEtcdRegistry(cli *clientv3.Client, opts EtcdOptions) *EtcdRegistry {
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retry := opts.RetryInterval
	if retry <= 0 {
		retry = 250 * time.Millisecond
	}
	return &EtcdRegistry{
		client:        cli,
		prefix:        opts.Prefix,
		lockTTL:       ttl,
		lockTimeout:   timeout,
		retryInterval: retry,
	}
}

// Close releases the underlying etcd client connection.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

func (r *EtcdRegistry) Register(ctx context.Context, intent dnsrecord.Intent) error {
	value, err := EncodeValue(intent)
	if err != nil {
		return err
	}
	key := KeyForName(r.prefix, intent.Record.Name)
	if _, err := r.client.Put(ctx, key, string(value)); err != nil {
		return dnserrors.ConnectionError(err)
	}
	return nil
}

func (r *EtcdRegistry) Remove(ctx context.Context, intent dnsrecord.Intent) error {
	key := KeyForName(r.prefix, intent.Record.Name)
	if _, err := r.client.Delete(ctx, key); err != nil {
		return dnserrors.ConnectionError(err)
	}
	return nil
}

func (r *EtcdRegistry) List(ctx context.Context) ([]dnsrecord.Intent, error) {
	resp, err := r.client.Get(ctx, r.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, dnserrors.ConnectionError(err)
	}

	out := make([]dnsrecord.Intent, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		intent, err := DecodeValue(r.prefix, string(kv.Key), kv.Value)
		if err != nil {
			// Skip, don't abort: one malformed entry must not hide the
			// rest of the registry from the reconciler.
			continue
		}
		out = append(out, intent)
	}
	return out, nil
}

// LockTransaction implements the lock protocol: keys are deduplicated and
// sorted into canonical order, then acquired one at a time as etcd
// concurrency.Mutex instances backed by a session leased for lockTTL. If any
// acquisition blocks past lockTimeout, every lock already held is released
// (in reverse acquisition order) and a LockTimeoutError is returned --
// callers should treat this the same as a failed reconciliation pass and
// retry on the next tick, not crash the process.
func (r *EtcdRegistry) LockTransaction(ctx context.Context, keys ...string) (Unlock, error) {
	ordered := canonicalLockKeys(keys)

	session, err := concurrency.NewSession(r.client, concurrency.WithTTL(int(r.lockTTL.Seconds())))
	if err != nil {
		return nil, dnserrors.ConnectionError(err)
	}

	held := make([]*concurrency.Mutex, 0, len(ordered))
	release := func(ctx context.Context) error {
		var firstErr error
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Unlock(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}

	for _, k := range ordered {
		lockCtx, cancel := context.WithTimeout(ctx, r.lockTimeout)
		m := concurrency.NewMutex(session, LockKey(k))
		err := m.Lock(lockCtx)
		cancel()
		if err != nil {
			_ = release(ctx)
			return nil, dnserrors.LockTimeoutError(k, err)
		}
		held = append(held, m)
	}

	return release, nil
}
