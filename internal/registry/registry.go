// Package registry is the registry backend (C2): it encodes record intents
// into etcd keys/values, performs the prefix scan that materializes actual
// state, and implements the multi-key lease-based lock protocol that
// serializes mutations across hosts. See other_examples'
// zero-day-ai-sdk/registry/client.go and envoyage/internal/registry for the
// clientv3 idioms this package builds on.
package registry

import (
	"context"
	"strings"

	"github.com/localdns/syncd/internal/dnserrors"
	"github.com/localdns/syncd/internal/dnsrecord"
)

// Registry is the capability set the sync engine and reconciler depend on.
// Alternative backends may be substituted provided they honor the lock
// semantics documented on LockTransaction.
type Registry interface {
	// Register writes the key/value for intent. Unconditional put --
	// last writer wins within the scope of a held lock.
	Register(ctx context.Context, intent dnsrecord.Intent) error

	// Remove deletes the key for intent. Deleting an absent key is not an
	// error.
	Remove(ctx context.Context, intent dnsrecord.Intent) error

	// List performs a prefix scan and returns every successfully parsed
	// intent. An entry that fails to parse is skipped without aborting the
	// scan; EtcdRegistry and Memory do not log such entries.
	List(ctx context.Context) ([]dnsrecord.Intent, error)

	// LockTransaction acquires one or more named locks, in canonical
	// (deduplicated, sorted) order, and returns an Unlock function that
	// must be called exactly once -- on every exit path, including
	// errors -- to release them in reverse order. See
	// EtcdRegistry.LockTransaction for the etcd-backed protocol.
	LockTransaction(ctx context.Context, keys ...string) (Unlock, error)
}

// Unlock releases a lock transaction's held locks. Best-effort: callers
// should still treat the locks as released even if Unlock returns an error,
// since the lease TTL guarantees eventual release regardless.
type Unlock func(ctx context.Context) error

// KeyForName returns the registry key for a fully-qualified record name
// under prefix: labels are reversed so that prefix scans are hierarchical.
// Leading/trailing dots are stripped before splitting.
//
//	KeyForName("/records", "a.b.example.com") == "/records/com/example/b/a"
func KeyForName(prefix, name string) string {
	labels := strings.Split(dnsrecord.NormalizeName(name), ".")
	reversed := make([]string, len(labels))
	for i, l := range labels {
		reversed[len(labels)-1-i] = l
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.Join(reversed, "/")
}

// NameForKey is the inverse of KeyForName: it strips prefix from key,
// splits the remaining path, reverses it, and joins with dots.
func NameForKey(prefix, key string) string {
	rest := strings.TrimPrefix(key, strings.TrimSuffix(prefix, "/"))
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return ""
	}
	labels := strings.Split(rest, "/")
	reversed := make([]string, len(labels))
	for i, l := range labels {
		reversed[len(labels)-1-i] = l
	}
	return strings.Join(reversed, ".")
}

// LockKey returns the registry key under which a named lock is stored.
func LockKey(name string) string {
	return "/locks/" + name
}

// canonicalLockKeys deduplicates and sorts keys into the canonical
// acquisition order used by LockTransaction, so that two callers racing
// for overlapping key sets (e.g. {X,Y} and {Y,X}) always acquire them in
// the same order and cannot deadlock against each other.
func canonicalLockKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sortStrings(out)
	return out
}

// sortStrings is a tiny insertion sort to avoid importing sort for a
// single call site; kept local so the canonical-order invariant is easy to audit
// in one place.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// unsupportedRecordType returns the taxonomy error for a record whose type
// the encoder does not recognize.
func unsupportedRecordType(t dnsrecord.Type) error {
	return dnserrors.UnsupportedRecordTypeError(string(t))
}
