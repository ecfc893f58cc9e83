// Package audit persists a trail of registry mutations this host has
// applied, for operator diagnostics after the fact. It is not a source of
// truth: on restart the sync engine rebuilds desired state from the live
// container inventory and reconciles fresh, it never reads this trail back
// into the tracker.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/localdns/syncd/internal/dnsrecord"
)

var bucketMutations = []byte("mutations")

// keyTimeLayout is RFC3339 with a fixed nine-digit fraction, so keys of
// equal-length UTC timestamps compare lexically in chronological order.
const keyTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Operation identifies which side of a reconciliation pass produced a
// mutation.
type Operation string

const (
	OpAdd    Operation = "add"
	OpRemove Operation = "remove"
)

// Entry is one applied registry mutation.
type Entry struct {
	Timestamp     time.Time  `json:"timestamp"`
	Operation     Operation  `json:"operation"`
	RecordType    dnsrecord.Type `json:"record_type"`
	Name          string     `json:"name"`
	Value         string     `json:"value"`
	ContainerName string     `json:"container_name"`
	Error         string     `json:"error,omitempty"`
}

// Trail wraps a BoltDB database holding the append-only mutation log.
type Trail struct {
	db *bolt.DB
}

// Open creates or opens the audit database at path, creating its bucket if
// necessary.
func Open(path string) (*Trail, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMutations)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit bucket: %w", err)
	}

	return &Trail{db: db}, nil
}

// Close closes the underlying database.
func (t *Trail) Close() error {
	return t.db.Close()
}

// Record appends entry to the trail. Key format is
// "{RFC3339 UTC, nanosecond fraction}::{name}" so entries sort
// chronologically even when several are written within the same
// reconciliation pass.
func (t *Trail) Record(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	return t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMutations)
		key := []byte(entry.Timestamp.Format(keyTimeLayout) + "::" + entry.Name)
		return b.Put(key, data)
	})
}

// Recent returns the most recently applied mutations, newest first, up to
// limit.
func (t *Trail) Recent(limit int) ([]Entry, error) {
	var entries []Entry
	err := t.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMutations)
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(entries) < limit; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

// ForContainer returns the recorded mutations for containerName, newest
// first, up to limit.
func (t *Trail) ForContainer(containerName string, limit int) ([]Entry, error) {
	var entries []Entry
	err := t.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMutations)
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(entries) < limit; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}
			if e.ContainerName == containerName {
				entries = append(entries, e)
			}
		}
		return nil
	})
	return entries, err
}

// FromIntent builds an Entry for op applied to intent, ready for Record.
func FromIntent(op Operation, intent dnsrecord.Intent, applyErr error) Entry {
	e := Entry{
		Operation:     op,
		RecordType:    intent.Record.Type,
		Name:          intent.Record.Name,
		Value:         intent.Record.Value,
		ContainerName: intent.ContainerName,
	}
	if applyErr != nil {
		e.Error = applyErr.Error()
	}
	return e
}
