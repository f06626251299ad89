package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"github.com/ardnew/utmisim/pkg"
)

// Bucket names.
const (
	BucketVectors = "vectors"
	BucketRuns    = "runs"
)

// Store is a bbolt database of test vectors and run records.
type Store struct {
	DB *bbolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{BucketVectors, BucketRuns} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	pkg.LogDebug(pkg.ComponentStore, "store opened", "path", path)
	return &Store{DB: db}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.DB.Path()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// PutVector stores rec under its name, replacing any previous record.
func (s *Store) PutVector(rec VectorRecord) error {
	if rec.Name == "" {
		return fmt.Errorf("vector without name: %w", pkg.ErrInvalidParameter)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketVectors)).Put([]byte(rec.Name), data)
	})
}

// Vector returns the vector stored under name.
func (s *Store) Vector(name string) (VectorRecord, error) {
	var rec VectorRecord
	err := s.DB.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(BucketVectors)).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("vector %q: %w", name, pkg.ErrNotFound)
		}
		return yaml.Unmarshal(data, &rec)
	})
	return rec, err
}

// Vectors returns every stored vector ordered by name.
func (s *Store) Vectors() ([]VectorRecord, error) {
	var out []VectorRecord
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketVectors)).ForEach(func(k, v []byte) error {
			var rec VectorRecord
			if err := yaml.Unmarshal(v, &rec); err != nil {
				pkg.LogError(pkg.ComponentStore, "corrupt vector record", "key", string(k), "error", err)
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// PutRun stores rec with the next run ID and returns the ID.
func (s *Store) PutRun(rec *RunRecord) (uint64, error) {
	err := s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec.ID = id
		data, err := yaml.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
	if err != nil {
		return 0, err
	}
	pkg.LogInfo(pkg.ComponentStore, "run recorded", "id", rec.ID, "name", rec.Name, "passed", rec.Passed)
	return rec.ID, nil
}

// Runs returns every stored run in ID order.
func (s *Store) Runs() ([]RunRecord, error) {
	var out []RunRecord
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketRuns)).ForEach(func(_, v []byte) error {
			var rec RunRecord
			if err := yaml.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
