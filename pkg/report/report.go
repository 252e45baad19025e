// Package report defines the persisted result of a detection run and
// a bbolt-backed store for it.
package report

import (
	"bytes"
	"encoding/json"
	"io/ioutil"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/famarks/logscope/pkg/process"
)

// Report is one target run's result: every AnomalyContext found plus
// enough metadata to render or re-query it later.
type Report struct {
	ID         string                   `json:"id"`
	Target     string                   `json:"target"`
	Baseline   string                   `json:"baseline"`
	LineCount  int                      `json:"line_count"`
	ByteCount  int                      `json:"byte_count"`
	Anomalies  []process.AnomalyContext `json:"anomalies"`
	CreatedUTC int64                    `json:"created_utc"`
}

var bucketName = []byte("reports")

// Store persists Reports as gzip-compressed JSON in a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt database at path and
// ensures the reports bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening report store %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating reports bucket")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put compresses and stores r under r.ID, overwriting any prior report
// with the same ID.
func (s *Store) Put(r *Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "marshaling report")
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return errors.Wrap(err, "compressing report")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "closing gzip writer")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(r.ID), buf.Bytes())
	})
}

// Get decompresses and decodes the report stored under id. The second
// return value is false when no report with that ID exists.
func (s *Store) Get(id string) (*Report, bool, error) {
	var compressed []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(id))
		if v != nil {
			compressed = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "reading report")
	}
	if compressed == nil {
		return nil, false, nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, false, errors.Wrap(err, "opening gzip reader")
	}
	defer gz.Close()

	raw, err := ioutil.ReadAll(gz)
	if err != nil {
		return nil, false, errors.Wrap(err, "decompressing report")
	}

	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, errors.Wrap(err, "unmarshaling report")
	}
	return &r, true, nil
}

// List returns every stored report ID.
func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing reports")
	}
	return ids, nil
}
