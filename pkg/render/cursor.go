package render

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketCursors = []byte("cursors")

// Cursor persists the follow position per journal file so a restarted
// renderer resumes where it left off instead of re-rendering the day or
// skipping to the end.
type Cursor struct {
	db *bolt.DB
}

// OpenCursor opens (or creates) the cursor database at path.
func OpenCursor(path string) (*Cursor, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cursor db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCursors)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cursor bucket: %w", err)
	}

	return &Cursor{db: db}, nil
}

// Get returns the stored offset for file, or (0, false) if none exists.
func (c *Cursor) Get(file string) (int64, bool) {
	var off int64
	var found bool
	c.db.View(func(tx *bolt.Tx) error { //nolint:errcheck
		data := tx.Bucket(bucketCursors).Get([]byte(file))
		if len(data) == 8 {
			off = int64(binary.BigEndian.Uint64(data))
			found = true
		}
		return nil
	})
	return off, found
}

// Put stores the offset for file.
func (c *Cursor) Put(file string, off int64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(off))
		return tx.Bucket(bucketCursors).Put([]byte(file), buf[:])
	})
}

// Close closes the database.
func (c *Cursor) Close() error {
	return c.db.Close()
}
