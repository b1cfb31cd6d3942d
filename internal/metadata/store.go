// Package metadata implements the control-plane metadata store: a durable, name-addressed blob store for every resource kind
// (indexes, data sources, skillsets, indexers, synonym maps, indexer run
// state). Backed by go.etcd.io/bbolt, one top-level bucket per kind, so
// that `list` gets bbolt's MVCC snapshot isolation for free.
package metadata

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

// Kind names a resource bucket. Declared as a distinct type so callers
// can't accidentally pass an arbitrary string where a known kind is
// expected.
type Kind string

const (
	KindIndex        Kind = "indexes"
	KindDataSource   Kind = "datasources"
	KindSkillset     Kind = "skillsets"
	KindIndexer      Kind = "indexers"
	KindSynonymMap   Kind = "synonymmaps"
	KindIndexerState Kind = "indexer-state" // not exposed over the REST surface directly
)

var allKinds = []Kind{KindIndex, KindDataSource, KindSkillset, KindIndexer, KindSynonymMap, KindIndexerState}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,127}$`)

// ValidName enforces the shared resource-name grammar.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Record is one stored blob plus its monotone etag.
type Record struct {
	Name  string
	Bytes []byte
	ETag  string
}

// Store is the durable, name-addressed control-plane store.
type Store struct {
	db *bbolt.DB
	// Etags come from each kind bucket's NextSequence inside the write
	// transaction; bbolt serializes writers via its single-writer-
	// transaction model, which keeps etags monotone without a separate
	// counter.
}

// Open opens (creating if necessary) a bbolt-backed store at path, with
// every known kind's bucket pre-created so list/get never race bucket
// creation against a concurrent put.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, k := range allKinds {
			if _, err := tx.CreateBucketIfNotExists([]byte(k)); err != nil {
				return fmt.Errorf("create bucket %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying bbolt file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func validate(kind Kind, name string) error {
	found := false
	for _, k := range allKinds {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown metadata kind %q", kind)
	}
	if !ValidName(name) {
		return fmt.Errorf("invalid resource name %q", name)
	}
	return nil
}

// Put durably writes bytes under (kind, name), returning the new etag.
// The write is fsynced before Put returns (bbolt's default NoSync is
// false), satisfying the "durable before return" requirement.
func (s *Store) Put(kind Kind, name string, bytes []byte) (string, error) {
	if err := validate(kind, name); err != nil {
		return "", err
	}
	var etag string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(kind))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		etag = fmt.Sprintf("%x", seq)
		rec := encodeRecord(etag, bytes)
		return b.Put([]byte(name), rec)
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", kind, name, err)
	}
	return etag, nil
}

// Get returns the stored bytes and etag for (kind, name), or ok=false if
// not present.
func (s *Store) Get(kind Kind, name string) (bytes []byte, etag string, ok bool, err error) {
	if verr := validate(kind, name); verr != nil {
		return nil, "", false, verr
	}
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(kind))
		raw := b.Get([]byte(name))
		if raw == nil {
			return nil
		}
		ok = true
		etag, bytes = decodeRecord(raw)
		return nil
	})
	if err != nil {
		return nil, "", false, fmt.Errorf("get %s/%s: %w", kind, name, err)
	}
	return bytes, etag, ok, nil
}

// Exists reports whether (kind, name) is present, without paying the
// cost of copying its bytes out.
func (s *Store) Exists(kind Kind, name string) (bool, error) {
	_, _, ok, err := s.Get(kind, name)
	return ok, err
}

// Delete removes (kind, name), reporting whether it had been present.
func (s *Store) Delete(kind Kind, name string) (bool, error) {
	if err := validate(kind, name); err != nil {
		return false, err
	}
	var existed bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(kind))
		existed = b.Get([]byte(name)) != nil
		if !existed {
			return nil
		}
		return b.Delete([]byte(name))
	})
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", kind, name, err)
	}
	return existed, nil
}

// List returns every record of kind, sorted by name, as a single
// consistent snapshot — bbolt's View transaction is a point-in-time MVCC
// read, so no write landing mid-iteration can be partially observed.
func (s *Store) List(kind Kind) ([]Record, error) {
	found := false
	for _, k := range allKinds {
		if k == kind {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown metadata kind %q", kind)
	}

	var records []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(kind))
		return b.ForEach(func(k, v []byte) error {
			etag, bytes := decodeRecord(v)
			records = append(records, Record{Name: string(k), Bytes: bytes, ETag: etag})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}
