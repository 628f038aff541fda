// Package cqlstore is the networked Store backend: a Cassandra-backed
// drive.Store using gocql, modeling the remote half of the pluggable
// persistence boundary (as opposed to boltstore/badgerstore's local disk).
package cqlstore

import (
	"encoding/hex"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	drive "github.com/vtnerd/MaidSafe-Drive"
)

// Config describes how to reach a Cassandra cluster and which keyspace
// holds this store's tables.
type Config struct {
	Hosts       []string
	Keyspace    string
	Consistency gocql.Consistency
	Timeout     time.Duration
}

// Store is a drive.Store backed by three Cassandra tables in Config's
// keyspace: objects(hash, data), versions(directory_id, index, content_hash),
// and chunk_refs(hash, count) with count as a Cassandra counter column.
type Store struct {
	session *gocql.Session
	cfg     Config
}

// Open connects to the cluster described by cfg and returns a ready Store.
// The keyspace and its three tables are assumed already provisioned by a
// schema migration external to this package.
func Open(cfg Config) (*Store, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	if cfg.Consistency != 0 {
		cluster.Consistency = cfg.Consistency
	} else {
		cluster.Consistency = gocql.Quorum
	}
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrap(err, "create cql session")
	}
	return &Store{session: session, cfg: cfg}, nil
}

// Close releases the underlying Cassandra session.
func (s *Store) Close() {
	s.session.Close()
}

func withRetry(op string, fn func() error) error {
	var lastErr error
	backoff := 20 * time.Millisecond
	for attempt := 0; attempt < 4; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return drive.WrapStoreErr(op, lastErr)
}

func isTransient(err error) bool {
	switch err {
	case gocql.ErrTimeoutNoResponse, gocql.ErrConnectionClosed, gocql.ErrNoConnections:
		return true
	default:
		return false
	}
}

func (s *Store) Put(c *drive.Ctx, hash drive.ContentHash, data []byte) error {
	return withRetry("cqlstore.Put", func() error {
		return s.session.Query(
			`INSERT INTO objects (hash, data) VALUES (?, ?)`,
			hex.EncodeToString(hash[:]), data).Exec()
	})
}

func (s *Store) Get(c *drive.Ctx, hash drive.ContentHash) ([]byte, error) {
	var data []byte
	var notFound bool

	err := withRetry("cqlstore.Get", func() error {
		scanErr := s.session.Query(
			`SELECT data FROM objects WHERE hash = ?`,
			hex.EncodeToString(hash[:])).Scan(&data)
		if scanErr == gocql.ErrNotFound {
			notFound = true
			return nil
		}
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, drive.NewError(drive.ErrNoSuchFile, "cqlstore.Get", hash.String(), nil)
	}
	return data, nil
}

func (s *Store) Delete(c *drive.Ctx, hash drive.ContentHash) error {
	return withRetry("cqlstore.Delete", func() error {
		return s.session.Query(
			`DELETE FROM objects WHERE hash = ?`,
			hex.EncodeToString(hash[:])).Exec()
	})
}

func (s *Store) IncrementReferences(c *drive.Ctx, hashes []drive.ChunkHash) error {
	for _, h := range hashes {
		hash := h
		err := withRetry("cqlstore.IncrementReferences", func() error {
			return s.session.Query(
				`UPDATE chunk_refs SET count = count + 1 WHERE hash = ?`,
				hex.EncodeToString(hash[:])).Exec()
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AppendVersion(c *drive.Ctx, dir drive.DirectoryId, version drive.VersionName) error {
	var alreadyExists bool
	err := withRetry("cqlstore.AppendVersion", func() error {
		applied, err := s.session.Query(
			`INSERT INTO versions (directory_id, index, content_hash)
			 VALUES (?, ?, ?) IF NOT EXISTS`,
			hex.EncodeToString(dir[:]), version.Index, hex.EncodeToString(version.ContentHash[:]),
		).ScanCAS()
		if err != nil {
			return err
		}
		alreadyExists = !applied
		return nil
	})
	if err != nil {
		return err
	}
	if alreadyExists {
		return drive.NewError(drive.ErrFileExists, "cqlstore.AppendVersion", dir.String(), nil)
	}
	return nil
}

func (s *Store) GetVersions(c *drive.Ctx, dir drive.DirectoryId) ([]drive.VersionName, error) {
	var versions []drive.VersionName

	err := withRetry("cqlstore.GetVersions", func() error {
		versions = nil
		iter := s.session.Query(
			`SELECT index, content_hash FROM versions WHERE directory_id = ?`,
			hex.EncodeToString(dir[:])).Iter()

		var index uint64
		var hashHex string
		for iter.Scan(&index, &hashHex) {
			id, err := drive.ParseIdentity(hashHex)
			if err != nil {
				return err
			}
			versions = append(versions, drive.VersionName{
				Index:       index,
				ContentHash: drive.ContentHash(id),
			})
		}
		return iter.Close()
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}
