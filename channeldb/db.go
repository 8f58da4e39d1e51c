package channeldb

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
)

const (
	dbName           = "channel.db"
	dbFilePermission = 0600
)

var (
	openChannelBucket = []byte("open-channels")
	preimageBucket    = []byte("preimages")
	skipSetBucket     = []byte("route-skips")

	// byteOrder is the preferred byte order, chosen so cursor scans over
	// integer keys iterate in order.
	byteOrder = binary.BigEndian
)

// DB is the primary datastore for the daemon: open channel state, invoice
// preimages, and the payment router's edge skip sets (§3 component H).
type DB struct {
	*bolt.DB
	dbPath string
}

// Open opens an existing channeldb, creating it (and its top-level
// buckets) if it doesn't yet exist.
func Open(dbPath string) (*DB, error) {
	path := filepath.Join(dbPath, dbName)

	if !fileExists(path) {
		if err := createChannelDB(dbPath); err != nil {
			return nil, err
		}
	}

	bdb, err := bolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, err
	}

	return &DB{DB: bdb, dbPath: dbPath}, nil
}

// createChannelDB creates and initializes a fresh channeldb at dbPath,
// creating the directory if necessary along with all top-level buckets.
func createChannelDB(dbPath string) error {
	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return err
		}
	}

	path := filepath.Join(dbPath, dbName)
	bdb, err := bolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return err
	}
	defer bdb.Close()

	return bdb.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucket(openChannelBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(preimageBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(skipSetBucket); err != nil {
			return err
		}
		return nil
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
