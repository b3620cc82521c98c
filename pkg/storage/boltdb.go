package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/flotilla/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketFramework  = []byte("framework")
	bucketTasks      = []byte("tasks")
	bucketStatuses   = []byte("statuses")
	bucketProperties = []byte("properties")

	keyFrameworkID = []byte("id")
	keySuppressed  = []byte("suppressed")
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "flotilla.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketFramework,
			bucketTasks,
			bucketStatuses,
			bucketProperties,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Framework identity

func (s *BoltStore) StoreFrameworkID(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFramework).Put(keyFrameworkID, []byte(id))
	})
}

func (s *BoltStore) FrameworkID() (string, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFramework).Get(keyFrameworkID)
		if data == nil {
			return ErrNotFound
		}
		id = string(data)
		return nil
	})
	return id, err
}

func (s *BoltStore) ClearFrameworkID() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFramework).Delete(keyFrameworkID)
	})
}

// Task operations

func (s *BoltStore) StoreTasks(infos ...*types.TaskInfo) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		for _, info := range infos {
			data, err := json.Marshal(info)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(info.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Task(name string) (*types.TaskInfo, error) {
	var info types.TaskInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTasks).Get([]byte(name))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *BoltStore) Tasks() ([]*types.TaskInfo, error) {
	var infos []*types.TaskInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(k, v []byte) error {
			var info types.TaskInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return err
			}
			infos = append(infos, &info)
			return nil
		})
	})
	return infos, err
}

func (s *BoltStore) DeleteTask(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).Delete([]byte(name))
	})
}

// Status operations

func (s *BoltStore) StoreStatus(status types.TaskStatus) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(status)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketStatuses).Put([]byte(status.TaskID), data)
	})
}

func (s *BoltStore) Status(taskID string) (types.TaskStatus, error) {
	var status types.TaskStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketStatuses).Get([]byte(taskID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &status)
	})
	return status, err
}

func (s *BoltStore) Statuses() ([]types.TaskStatus, error) {
	var statuses []types.TaskStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStatuses).ForEach(func(k, v []byte) error {
			var status types.TaskStatus
			if err := json.Unmarshal(v, &status); err != nil {
				return err
			}
			statuses = append(statuses, status)
			return nil
		})
	})
	return statuses, err
}

// Suppression flag

func (s *BoltStore) SetSuppressed(suppressed bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		value := []byte("false")
		if suppressed {
			value = []byte("true")
		}
		return tx.Bucket(bucketFramework).Put(keySuppressed, value)
	})
}

func (s *BoltStore) Suppressed() (bool, error) {
	var suppressed bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFramework).Get(keySuppressed)
		suppressed = string(data) == "true"
		return nil
	})
	return suppressed, err
}

// Property operations

func (s *BoltStore) PutProperty(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProperties).Put([]byte(key), value)
	})
}

func (s *BoltStore) GetProperty(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketProperties).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		value = append([]byte(nil), data...)
		return nil
	})
	return value, err
}

func (s *BoltStore) DeleteProperty(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProperties).Delete([]byte(key))
	})
}
